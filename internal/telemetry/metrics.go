package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/voiceloom/meetscribe"

// stageLatencyBuckets covers the sub-100ms-to-multi-second range the
// pipeline's stages actually occupy: VAD/boundary scoring is sub-10ms,
// ASR decode and embedding extraction can run into the low seconds under
// load, per §5's cancellation flush budgets.
var stageLatencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics holds every OpenTelemetry instrument the pipeline records to,
// grouped by the stage or resource they describe.
type Metrics struct {
	// --- Stage latency histograms ---
	ASRDuration     metric.Float64Histogram
	EmbedDuration   metric.Float64Histogram
	ClusterDuration metric.Float64Histogram
	DedupDuration   metric.Float64Histogram
	MergeDuration   metric.Float64Histogram

	// RealTimeFactor reports processed-audio-seconds / wall-clock-seconds
	// for a completed session; >1 means the pipeline keeps up with live
	// audio, per §8's throughput property.
	RealTimeFactor metric.Float64Histogram

	// --- Queue / saturation gauges ---
	ASRQueueDepth   metric.Int64UpDownCounter
	EmbedQueueDepth metric.Int64UpDownCounter

	// --- Session-level counters and gauges ---
	ActiveSessions   metric.Int64UpDownCounter
	SpeakersDetected metric.Int64Counter
	SegmentsEmitted  metric.Int64Counter
	EventsDropped    metric.Int64Counter

	// --- Model manager counters ---
	ModelDownloads      metric.Int64Counter
	ModelDownloadErrors metric.Int64Counter

	// --- Pipeline error counter ---
	PipelineErrors metric.Int64Counter
}

// NewMetrics creates every instrument against mp. Returns an error if any
// instrument registration fails (name collision, invalid unit).
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	hist := func(name, desc string, buckets []float64) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(buckets...),
		)
	}

	if met.ASRDuration, err = hist("meetscribe.asr.duration", "ASR decode latency per scheduled span.", stageLatencyBuckets); err != nil {
		return nil, err
	}
	if met.EmbedDuration, err = hist("meetscribe.embed.duration", "Embedding extraction latency per speech segment.", stageLatencyBuckets); err != nil {
		return nil, err
	}
	if met.ClusterDuration, err = hist("meetscribe.cluster.duration", "Online cluster assignment latency.", stageLatencyBuckets); err != nil {
		return nil, err
	}
	if met.DedupDuration, err = hist("meetscribe.dedup.duration", "Dedup filter latency per candidate.", stageLatencyBuckets); err != nil {
		return nil, err
	}
	if met.MergeDuration, err = hist("meetscribe.merge.duration", "Segment merge latency per ASR batch.", stageLatencyBuckets); err != nil {
		return nil, err
	}
	if met.RealTimeFactor, err = m.Float64Histogram("meetscribe.realtime_factor",
		metric.WithDescription("Processed audio seconds per wall-clock second for a session."),
		metric.WithExplicitBucketBoundaries(0.5, 0.8, 1, 1.2, 1.5, 2, 5, 10),
	); err != nil {
		return nil, err
	}

	if met.ASRQueueDepth, err = m.Int64UpDownCounter("meetscribe.asr.queue_depth",
		metric.WithDescription("In-flight ASR decode jobs."),
	); err != nil {
		return nil, err
	}
	if met.EmbedQueueDepth, err = m.Int64UpDownCounter("meetscribe.embed.queue_depth",
		metric.WithDescription("In-flight embedding extraction jobs."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("meetscribe.sessions.active",
		metric.WithDescription("Number of sessions currently in the Running state."),
	); err != nil {
		return nil, err
	}
	if met.SpeakersDetected, err = m.Int64Counter("meetscribe.speakers.detected",
		metric.WithDescription("Total distinct speakers detected across all sessions."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsEmitted, err = m.Int64Counter("meetscribe.segments.emitted",
		metric.WithDescription("Total AttributedSegments emitted."),
	); err != nil {
		return nil, err
	}
	if met.EventsDropped, err = m.Int64Counter("meetscribe.events.dropped",
		metric.WithDescription("Events evicted from a subscriber's buffer under backpressure, by criticality."),
	); err != nil {
		return nil, err
	}

	if met.ModelDownloads, err = m.Int64Counter("meetscribe.models.downloads",
		metric.WithDescription("Total model artifact downloads attempted, by role and tier."),
	); err != nil {
		return nil, err
	}
	if met.ModelDownloadErrors, err = m.Int64Counter("meetscribe.models.download_errors",
		metric.WithDescription("Total model artifact download/verification failures, by role and tier."),
	); err != nil {
		return nil, err
	}

	if met.PipelineErrors, err = m.Int64Counter("meetscribe.pipeline.errors",
		metric.WithDescription("Total recoverable/unrecoverable pipeline errors, by stage and code."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// Default returns the package-level Metrics instance built against the
// globally registered MeterProvider, creating it on first call. Panics if
// instrument creation fails, which should not happen against a healthy
// global provider.
func Default() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("telemetry: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordModelDownload records one model-manager fetch attempt outcome.
func (m *Metrics) RecordModelDownload(ctx context.Context, role, tier string, ok bool) {
	attrs := metric.WithAttributes(attribute.String("role", role), attribute.String("tier", tier))
	m.ModelDownloads.Add(ctx, 1, attrs)
	if !ok {
		m.ModelDownloadErrors.Add(ctx, 1, attrs)
	}
}

// RecordPipelineError records one pipeline-stage error by stage name and
// error code, per §7's stable-code error surface.
func (m *Metrics) RecordPipelineError(ctx context.Context, stage, code string) {
	m.PipelineErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("code", code),
	))
}

// RecordEventDropped records one evicted subscriber-buffer event.
func (m *Metrics) RecordEventDropped(ctx context.Context, critical bool) {
	m.EventsDropped.Add(ctx, 1, metric.WithAttributes(attribute.Bool("critical", critical)))
}
