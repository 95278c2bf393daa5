package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voiceloom/meetscribe/internal/config"
)

func TestSingleFileParaformerDerivesTokensPathFromSibling(t *testing.T) {
	paths := singleFileParaformer("/models/asr_Standard.bin")
	assert.Equal(t, "paraformer", paths.ModelType)
	assert.Equal(t, "/models/asr_Standard.bin", paths.Paraformer.Model)
	assert.Equal(t, "/models/tokens.txt", paths.Tokens)
}

func TestHardwareProviderMapsEveryAccelerator(t *testing.T) {
	cases := map[config.Accelerator]string{
		config.AccelCUDA:  "cuda",
		config.AccelMetal: "coreml",
		config.AccelCPU:   "cpu",
		config.AccelAuto:  "",
	}
	for accel, want := range cases {
		assert.Equal(t, want, hardwareProvider(accel))
	}
}
