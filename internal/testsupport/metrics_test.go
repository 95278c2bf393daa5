package testsupport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWERIdenticalTranscriptsIsZero(t *testing.T) {
	assert.Zero(t, WER("he hoped there would be stew", "he hoped there would be stew"))
}

func TestWEROneSubstitution(t *testing.T) {
	w := WER("he hoped there would be stew", "he hoped there would be soup")
	assert.InDelta(t, 1.0/6, w, 1e-9)
}

func TestWERBothEmptyIsZero(t *testing.T) {
	assert.Zero(t, WER("", ""))
}

func TestWEREmptyReferenceWithHypothesisIsOne(t *testing.T) {
	assert.Equal(t, 1.0, WER("", "hello"))
}

func TestDERPerfectMatchIsZero(t *testing.T) {
	ref := []DiarizationInterval{{SpeakerID: "A", StartMs: 0, EndMs: 1000}}
	hyp := []DiarizationInterval{{SpeakerID: "A", StartMs: 0, EndMs: 1000}}
	assert.Zero(t, DER(ref, hyp, 1000))
}

func TestDERTotalMismatchIsOne(t *testing.T) {
	ref := []DiarizationInterval{{SpeakerID: "A", StartMs: 0, EndMs: 1000}}
	hyp := []DiarizationInterval{{SpeakerID: "B", StartMs: 0, EndMs: 1000}}
	assert.Equal(t, 1.0, DER(ref, hyp, 1000))
}

func TestDERPartialMiss(t *testing.T) {
	ref := []DiarizationInterval{{SpeakerID: "A", StartMs: 0, EndMs: 1000}}
	hyp := []DiarizationInterval{{SpeakerID: "A", StartMs: 0, EndMs: 500}}
	der := DER(ref, hyp, 1000)
	assert.InDelta(t, 0.5, der, 0.02)
}

func TestDERIgnoresNonSpeechReferenceGaps(t *testing.T) {
	ref := []DiarizationInterval{{SpeakerID: "A", StartMs: 500, EndMs: 1000}}
	hyp := []DiarizationInterval{{SpeakerID: "A", StartMs: 500, EndMs: 1000}}
	assert.Zero(t, DER(ref, hyp, 1000))
}
