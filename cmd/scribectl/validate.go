package main

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/voiceloom/meetscribe/internal/testsupport"
)

// runValidate implements `scribectl validate --ground-truth <path>
// --predicted <path> --tolerance <ms> --output <dir> [--no-reports]`: scores
// a predicted fixture against ground truth with WER/DER per §8.
func runValidate(args []string) error {
	fs := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	groundTruth := fs.String("ground-truth", "", "Path to the ground-truth fixture JSON")
	predicted := fs.String("predicted", "", "Path to the predicted fixture JSON")
	toleranceMs := fs.Int64("tolerance", 0, "Boundary collar applied to predicted segments, in milliseconds")
	output := fs.String("output", "", "Directory to write the validation report into")
	noReports := fs.Bool("no-reports", false, "Skip writing a report file")
	strict := fs.Bool("strict", false, "Fail with exit code 5 when WER/DER exceed --max-wer/--max-der")
	maxWER := fs.Float64("max-wer", 0.5, "Strict-mode WER threshold")
	maxDER := fs.Float64("max-der", 0.15, "Strict-mode DER threshold")
	if err := fs.Parse(args); err != nil {
		return invalidArgs("validate: %v", err)
	}
	if *groundTruth == "" || *predicted == "" {
		return invalidArgs("validate: --ground-truth and --predicted are required")
	}
	if !*noReports && *output == "" {
		return invalidArgs("validate: --output is required unless --no-reports is set")
	}

	gt, err := loadFixture(*groundTruth)
	if err != nil {
		return err
	}
	pred, err := loadFixture(*predicted)
	if err != nil {
		return err
	}

	if gt.DurationMs > 0 && pred.DurationMs > 0 {
		drift := gt.DurationMs - pred.DurationMs
		if drift < 0 {
			drift = -drift
		}
		if drift > gt.DurationMs/10 {
			return &cliError{code: exitIntegrityFailure, msg: fmt.Sprintf(
				"validate: ground-truth/predicted duration mismatch: %dms vs %dms", gt.DurationMs, pred.DurationMs)}
		}
	}

	hyp := collar(pred.Segments, *toleranceMs)
	wer := testsupport.WER(gt.Transcript, pred.Transcript)
	der := testsupport.DER(gt.Segments, hyp, gt.DurationMs)

	report := Report{
		GeneratedAt: time.Now().UTC(),
		Command:     "validate",
		GroundTruth: *groundTruth,
		Predicted:   *predicted,
		WER:         wer,
		DER:         der,
		Passed:      true,
	}
	if *strict && (wer > *maxWER || der > *maxDER) {
		report.Passed = false
		report.Notes = append(report.Notes, fmt.Sprintf("thresholds: max_wer=%.3f max_der=%.3f", *maxWER, *maxDER))
	}

	if !*noReports {
		if err := writeReport(*output, "validate", report); err != nil {
			return ioError("validate: write report: %v", err)
		}
	}

	fmt.Printf("validate: wer=%.3f der=%.3f passed=%v\n", wer, der, report.Passed)
	if !report.Passed {
		return &cliError{code: exitThresholdsNotMet, msg: "validate: WER/DER exceeded configured thresholds"}
	}
	return nil
}
