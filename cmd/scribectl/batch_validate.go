package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/voiceloom/meetscribe/internal/testsupport"
)

// runBatchValidate implements `scribectl batch-validate --ground-truth-dir
// <path> --predicted-dir <path> --output <dir> [--summary]`: scores every
// ground-truth fixture against its same-named predicted counterpart.
func runBatchValidate(args []string) error {
	fs := pflag.NewFlagSet("batch-validate", pflag.ContinueOnError)
	gtDir := fs.String("ground-truth-dir", "", "Directory of ground-truth fixture JSON files")
	predDir := fs.String("predicted-dir", "", "Directory of predicted fixture JSON files, same basenames as ground-truth-dir")
	output := fs.String("output", "", "Directory to write per-fixture reports into")
	summary := fs.Bool("summary", false, "Also write an aggregate summary.json")
	if err := fs.Parse(args); err != nil {
		return invalidArgs("batch-validate: %v", err)
	}
	if *gtDir == "" || *predDir == "" || *output == "" {
		return invalidArgs("batch-validate: --ground-truth-dir, --predicted-dir, and --output are required")
	}

	entries, err := os.ReadDir(*gtDir)
	if err != nil {
		return ioError("batch-validate: read %s: %v", *gtDir, err)
	}

	var reports []Report
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		gtPath := filepath.Join(*gtDir, e.Name())
		predPath := filepath.Join(*predDir, e.Name())

		gt, err := loadFixture(gtPath)
		if err != nil {
			return err
		}
		pred, err := loadFixture(predPath)
		if err != nil {
			return err
		}

		wer := testsupport.WER(gt.Transcript, pred.Transcript)
		der := testsupport.DER(gt.Segments, pred.Segments, gt.DurationMs)
		r := Report{
			GeneratedAt: time.Now().UTC(),
			Command:     "batch-validate",
			GroundTruth: gtPath,
			Predicted:   predPath,
			WER:         wer,
			DER:         der,
			Passed:      true,
		}
		if err := writeReport(*output, name, r); err != nil {
			return ioError("batch-validate: write report for %s: %v", name, err)
		}
		reports = append(reports, r)
	}

	if len(reports) == 0 {
		return invalidArgs("batch-validate: no fixture pairs found in %s", *gtDir)
	}

	if *summary {
		if err := writeJSONFile(filepath.Join(*output, "summary.json"), summarize(reports)); err != nil {
			return ioError("batch-validate: write summary: %v", err)
		}
	}

	fmt.Printf("batch-validate: scored %d fixture pairs\n", len(reports))
	return nil
}

type batchSummary struct {
	Count  int     `json:"count"`
	MeanWER float64 `json:"mean_wer"`
	MeanDER float64 `json:"mean_der"`
}

func summarize(reports []Report) batchSummary {
	s := batchSummary{Count: len(reports)}
	for _, r := range reports {
		s.MeanWER += r.WER
		s.MeanDER += r.DER
	}
	if s.Count > 0 {
		s.MeanWER /= float64(s.Count)
		s.MeanDER /= float64(s.Count)
	}
	return s
}
