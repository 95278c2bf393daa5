package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetricsCreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestStageDurationHistogramsRecord(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ASRDuration.Record(ctx, 0.2)
	m.ASRDuration.Record(ctx, 0.4)
	m.EmbedDuration.Record(ctx, 0.1)

	rm := collect(t, reader)

	asr := findMetric(rm, "meetscribe.asr.duration")
	if asr == nil {
		t.Fatal("asr duration metric not found")
	}
	hist, ok := asr.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("asr duration is not a histogram")
	}
	if len(hist.DataPoints) == 0 || hist.DataPoints[0].Count != 2 {
		t.Fatalf("expected 2 samples, got %+v", hist.DataPoints)
	}

	if findMetric(rm, "meetscribe.embed.duration") == nil {
		t.Fatal("embed duration metric not found")
	}
}

func TestRecordModelDownloadIncrementsErrorOnFailure(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordModelDownload(ctx, "asr", "Standard", true)
	m.RecordModelDownload(ctx, "asr", "Standard", false)

	rm := collect(t, reader)

	downloads := findMetric(rm, "meetscribe.models.downloads")
	errs := findMetric(rm, "meetscribe.models.download_errors")
	if downloads == nil || errs == nil {
		t.Fatal("expected both download counters present")
	}

	downloadSum, ok := downloads.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("downloads is not a sum")
	}
	var total int64
	for _, dp := range downloadSum.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Fatalf("expected 2 total download attempts, got %d", total)
	}

	errSum, ok := errs.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("download_errors is not a sum")
	}
	var errTotal int64
	for _, dp := range errSum.DataPoints {
		errTotal += dp.Value
	}
	if errTotal != 1 {
		t.Fatalf("expected 1 failed download, got %d", errTotal)
	}
}

func TestRecordPipelineErrorTagsStageAndCode(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPipelineError(ctx, "asr", "decode_failed")

	rm := collect(t, reader)
	met := findMetric(rm, "meetscribe.pipeline.errors")
	if met == nil {
		t.Fatal("pipeline errors metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("pipeline errors is not a sum")
	}
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Fatalf("expected a single data point with value 1, got %+v", sum.DataPoints)
	}
}
