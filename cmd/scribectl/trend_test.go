package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTrendRendersChronologicalTable(t *testing.T) {
	dir := t.TempDir()
	older := Report{GeneratedAt: time.Unix(1000, 0).UTC(), Command: "validate", WER: 0.2, DER: 0.1, Passed: true}
	newer := Report{GeneratedAt: time.Unix(2000, 0).UTC(), Command: "validate", WER: 0.1, DER: 0.05, Passed: true}
	require.NoError(t, writeJSONFile(filepath.Join(dir, "b.json"), newer))
	require.NoError(t, writeJSONFile(filepath.Join(dir, "a.json"), older))

	out := filepath.Join(t.TempDir(), "trend.html")
	require.NoError(t, runTrend([]string{"--reports-dir", dir, "--output", out}))

	html, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<table")

	firstIdx := indexOf(string(html), "0.200")
	secondIdx := indexOf(string(html), "0.100")
	assert.Greater(t, secondIdx, firstIdx, "older report (wer=0.2) should render before newer (wer=0.1)")
}

func TestRunTrendNoReportsIsInvalidArgs(t *testing.T) {
	err := runTrend([]string{"--reports-dir", t.TempDir(), "--output", filepath.Join(t.TempDir(), "trend.html")})
	var ce *cliError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, exitInvalidArgs, ce.code)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
