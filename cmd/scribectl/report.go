// Command scribectl is the operator/developer CLI described in §6: it
// validates diarization+ASR output against ground truth, runs synthetic
// benchmarks, generates fixtures, and renders a trend report across runs.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/voiceloom/meetscribe/internal/testsupport"
)

const (
	exitOK               = 0
	exitInvalidArgs      = 2
	exitIOError          = 3
	exitIntegrityFailure = 4
	exitThresholdsNotMet = 5
)

// cliError carries the exit code a subcommand wants main to use.
type cliError struct {
	code int
	msg  string
}

func (e *cliError) Error() string { return e.msg }

func invalidArgs(format string, args ...any) error {
	return &cliError{code: exitInvalidArgs, msg: fmt.Sprintf(format, args...)}
}

func ioError(format string, args ...any) error {
	return &cliError{code: exitIOError, msg: fmt.Sprintf(format, args...)}
}

// Fixture is the JSON shape ground-truth and predicted files share: a
// transcript plus the diarization segments that produced it, used by
// validate, batch-validate, and generate.
type Fixture struct {
	Transcript string                            `json:"transcript"`
	Segments   []testsupport.DiarizationInterval `json:"segments"`
	DurationMs int64                             `json:"duration_ms"`
}

// Report is the JSON report validate/benchmark/batch-validate write to
// --output; trend reads a directory of these back in.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Command     string    `json:"command"`
	Scenario    string    `json:"scenario,omitempty"`
	GroundTruth string    `json:"ground_truth,omitempty"`
	Predicted   string    `json:"predicted,omitempty"`
	WER         float64   `json:"wer,omitempty"`
	DER         float64   `json:"der,omitempty"`
	RTF         float64   `json:"rtf,omitempty"`
	Passed      bool      `json:"passed"`
	Notes       []string  `json:"notes,omitempty"`
}

func loadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ioError("read %s: %v", path, err)
	}
	var fx Fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return nil, ioError("parse %s: %v", path, err)
	}
	return &fx, nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeReport(dir, name string, r Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return writeJSONFile(filepath.Join(dir, name+".json"), r)
}

// collar widens each hypothesis segment by toleranceMs on both ends before
// DER scoring, the standard way a boundary tolerance is applied to a
// diarization comparison without needing DER itself to know about it.
func collar(segs []testsupport.DiarizationInterval, toleranceMs int64) []testsupport.DiarizationInterval {
	if toleranceMs <= 0 {
		return segs
	}
	out := make([]testsupport.DiarizationInterval, len(segs))
	for i, s := range segs {
		start := s.StartMs - toleranceMs
		if start < 0 {
			start = 0
		}
		out[i] = testsupport.DiarizationInterval{SpeakerID: s.SpeakerID, StartMs: start, EndMs: s.EndMs + toleranceMs}
	}
	return out
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}
