package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/voiceloom/meetscribe/internal/testsupport"
)

// runGenerate implements `scribectl generate --output <dir> --count N
// [--challenging]`: writes count synthetic WAV+JSON fixture pairs, per §8's
// "generate synthetic speech-like audio with controllable speaker count,
// turn pattern, overlap ratio, and SNR".
func runGenerate(args []string) error {
	fs := pflag.NewFlagSet("generate", pflag.ContinueOnError)
	output := fs.String("output", "", "Directory to write fixtures into")
	count := fs.Int("count", 0, "Number of fixtures to generate")
	challenging := fs.Bool("challenging", false, "Generate harder fixtures: more speakers, more overlap, more noise")
	if err := fs.Parse(args); err != nil {
		return invalidArgs("generate: %v", err)
	}
	if *output == "" || *count <= 0 {
		return invalidArgs("generate: --output and --count (> 0) are required")
	}
	if err := os.MkdirAll(*output, 0o755); err != nil {
		return ioError("generate: create %s: %v", *output, err)
	}

	for i := 0; i < *count; i++ {
		sc := testsupport.Scenario{
			SampleRate:   16000,
			DurationS:    10,
			SpeakerCount: 2,
			TurnSeconds:  5,
			OverlapRatio: 0.1,
			SNRdB:        20,
			Seed:         int64(i),
		}
		if *challenging {
			sc.SpeakerCount = 3
			sc.TurnSeconds = 3
			sc.OverlapRatio = 0.4
			sc.SNRdB = -10
		}

		samples, refs := testsupport.Generate(sc)
		base := fmt.Sprintf("fixture-%04d", i)

		if err := testsupport.WriteWAV(filepath.Join(*output, base+".wav"), samples, sc.SampleRate); err != nil {
			return ioError("generate: write wav %s: %v", base, err)
		}

		segs := make([]testsupport.DiarizationInterval, len(refs))
		texts := make([]string, len(refs))
		for j, r := range refs {
			segs[j] = testsupport.DiarizationInterval{SpeakerID: r.SpeakerID, StartMs: r.StartMs, EndMs: r.EndMs}
			texts[j] = r.Text
		}
		fx := Fixture{
			Transcript: strings.Join(texts, " "),
			Segments:   segs,
			DurationMs: int64(sc.DurationS * 1000),
		}
		if err := writeJSONFile(filepath.Join(*output, base+".json"), fx); err != nil {
			return ioError("generate: write fixture json %s: %v", base, err)
		}
	}

	fmt.Printf("generate: wrote %d fixtures to %s\n", *count, *output)
	return nil
}
