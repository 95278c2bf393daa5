package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBenchmarkQuickScenarioWritesReport(t *testing.T) {
	out := filepath.Join(t.TempDir(), "benchmark.json")
	require.NoError(t, runBenchmark([]string{"--scenario", "quick", "--iterations", "2", "--output", out}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var report Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, "quick", report.Scenario)
	assert.True(t, report.Passed)
	assert.NotEmpty(t, report.Notes)
}

func TestRunBenchmarkUnknownScenarioIsInvalidArgs(t *testing.T) {
	err := runBenchmark([]string{"--scenario", "nonexistent", "--output", filepath.Join(t.TempDir(), "r.json")})
	var ce *cliError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, exitInvalidArgs, ce.code)
}

func TestRunBenchmarkStrictModeFailsOnUnreachableThreshold(t *testing.T) {
	out := filepath.Join(t.TempDir(), "benchmark.json")
	err := runBenchmark([]string{
		"--scenario", "quick", "--iterations", "2", "--output", out, "--strict", "--max-rtf", "0",
	})
	var ce *cliError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, exitThresholdsNotMet, ce.code)
}
