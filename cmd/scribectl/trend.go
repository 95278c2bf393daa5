package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// runTrend implements `scribectl trend --reports-dir <path> --output
// <html>`: reads every report validate/benchmark/batch-validate has written
// and renders a simple chronological HTML table so regressions are visible
// across runs without a charting dependency.
func runTrend(args []string) error {
	fs := pflag.NewFlagSet("trend", pflag.ContinueOnError)
	reportsDir := fs.String("reports-dir", "", "Directory of prior Report JSON files")
	output := fs.String("output", "", "HTML file to write the trend report to")
	if err := fs.Parse(args); err != nil {
		return invalidArgs("trend: %v", err)
	}
	if *reportsDir == "" || *output == "" {
		return invalidArgs("trend: --reports-dir and --output are required")
	}

	entries, err := os.ReadDir(*reportsDir)
	if err != nil {
		return ioError("trend: read %s: %v", *reportsDir, err)
	}

	var reports []Report
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" || e.Name() == "summary.json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(*reportsDir, e.Name()))
		if err != nil {
			continue
		}
		var r Report
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		reports = append(reports, r)
	}
	if len(reports) == 0 {
		return invalidArgs("trend: no reports found in %s", *reportsDir)
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].GeneratedAt.Before(reports[j].GeneratedAt) })

	if err := os.WriteFile(*output, []byte(renderTrendHTML(reports)), 0o644); err != nil {
		return ioError("trend: write %s: %v", *output, err)
	}

	fmt.Printf("trend: wrote %d-point trend to %s\n", len(reports), *output)
	return nil
}

func renderTrendHTML(reports []Report) string {
	var b strings.Builder
	b.WriteString("<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>meetscribe validation trend</title></head><body>\n")
	b.WriteString("<h1>Validation trend</h1>\n<table border=\"1\" cellpadding=\"4\" cellspacing=\"0\">\n")
	b.WriteString("<tr><th>Time</th><th>Command</th><th>Scenario</th><th>WER</th><th>DER</th><th>RTF</th><th>Passed</th></tr>\n")
	for _, r := range reports {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%.3f</td><td>%.3f</td><td>%.3f</td><td>%v</td></tr>\n",
			r.GeneratedAt.Format(time.RFC3339), r.Command, r.Scenario, r.WER, r.DER, r.RTF, r.Passed)
	}
	b.WriteString("</table>\n</body></html>\n")
	return b.String()
}
