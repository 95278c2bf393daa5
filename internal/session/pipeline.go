package session

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/voiceloom/meetscribe/internal/asr"
	"github.com/voiceloom/meetscribe/internal/boundary"
	"github.com/voiceloom/meetscribe/internal/cluster"
	"github.com/voiceloom/meetscribe/internal/dedup"
	"github.com/voiceloom/meetscribe/internal/embed"
	"github.com/voiceloom/meetscribe/internal/merge"
	"github.com/voiceloom/meetscribe/internal/obs"
	"github.com/voiceloom/meetscribe/internal/profile"
	"github.com/voiceloom/meetscribe/internal/ringbuffer"
	"github.com/voiceloom/meetscribe/internal/telemetry"
	"github.com/voiceloom/meetscribe/internal/vad"
	"github.com/voiceloom/meetscribe/pkg/api"
)

var pipelineLog = obs.New("session.pipeline")

// Backends gathers the model-backed capability handles a pipeline needs.
// These come from the already-resolved artifact paths (internal/models)
// loaded into concrete backend instances elsewhere; the pipeline only
// depends on the small capability interfaces per §9's design note.
type Backends struct {
	VADScorer   vad.FrameScorer
	ASR         map[asr.Tier]asr.Backend
	Embed       embed.Backend
}

// pipeline wires B..J together for a single session, per §4.L. It consumes
// conditioned samples pushed via feedChunk, drives VAD and boundary
// detection, schedules ASR/embedding work on the bounded pool, runs online
// clustering, applies dedup (H) to raw candidates, and merges (I) into
// AttributedSegments.
type pipeline struct {
	sessionID string
	cfg       Config

	bus          *ringbuffer.Bus
	consumerID   string
	vadDetector  *vad.Detector
	boundaryDet  *boundary.Detector
	asrEngine    *asr.Engine
	embedExtract *embed.Extractor
	clusterer    *cluster.OnlineClusterer
	dedupASR     *dedup.Filter
	dedupSpeaker *dedup.Filter
	merger       *merge.Merger

	asrPool   *saturable
	embedPool *saturable
	jobs      *errGroup // bounded worker pool for the heavy stage calls

	events  *broadcaster
	metrics *telemetry.Metrics // optional; nil disables instrument recording

	mu            sync.Mutex
	pendingCutMs  int64 // ms since last ASR cut point
	lastCutSample int64
	attributed    []merge.Attributed
	acceptedSpans []pendingSpeakerSpan
	speakerSeen   map[string]bool
	warnings      []string
}

func newPipeline(sessionID string, cfg Config, bus *ringbuffer.Bus, backends Backends, events *broadcaster, metrics *telemetry.Metrics) (*pipeline, error) {
	vadDet, err := vad.New(cfg.VAD, cfg.SampleRate, backends.VADScorer)
	if err != nil {
		return nil, fmt.Errorf("session: init vad: %w", err)
	}
	clusterer, err := cluster.NewOnline(cfg.Cluster)
	if err != nil {
		return nil, fmt.Errorf("session: init cluster: %w", err)
	}

	consumerID := "session:" + sessionID
	bus.Register(consumerID)

	return &pipeline{
		sessionID:    sessionID,
		cfg:          cfg,
		bus:          bus,
		consumerID:   consumerID,
		vadDetector:  vadDet,
		boundaryDet:  boundary.New(cfg.Boundary),
		asrEngine:    asr.New(cfg.SampleRate, backends.ASR),
		embedExtract: embed.New(cfg.Embed, backends.Embed),
		clusterer:    clusterer,
		dedupASR:     dedup.New(cfg.Dedup),
		dedupSpeaker: dedup.New(cfg.Dedup),
		merger:       merge.New(cfg.Merge),
		asrPool:      newSaturable(cfg.WorkerPoolSize),
		embedPool:    newSaturable(cfg.WorkerPoolSize),
		jobs:         newErrGroup(cfg.WorkerPoolSize),
		events:       events,
		metrics:      metrics,
		speakerSeen:  map[string]bool{},
	}, nil
}

// feedChunk writes one conditioned chunk to the bus and drives the VAD/
// boundary state machines over it. chunkStartSample is the chunk's absolute
// start position in the bus's sample coordinate space, used to convert to ms.
func (p *pipeline) feedChunk(ctx context.Context, samples []float32, chunkStartSample int64) error {
	p.bus.Write(samples)
	chunkEndSample := chunkStartSample + int64(len(samples))
	chunkStartMs := sampleToMs(chunkStartSample, p.cfg.SampleRate)
	chunkEndMs := sampleToMs(chunkEndSample, p.cfg.SampleRate)

	segments, err := p.vadDetector.Process(samples, chunkStartMs)
	if err != nil {
		p.addWarning(fmt.Sprintf("vad: %v", err))
	} else {
		for _, seg := range segments {
			// The detector already force-cuts at MaxSpeechMs, but SplitLong
			// is the one place §8's boundary invariant is guaranteed
			// regardless of detector internals, so it runs here too.
			for _, split := range vad.SplitLong(seg, p.cfg.VAD.MinSpeechMs, p.cfg.VAD.MaxSpeechMs) {
				p.scheduleSpeakerSpan(ctx, split)
			}
		}
	}

	energy := rmsEnergy(samples)
	boundaryType := p.boundaryDet.Process(energy, chunkEndMs)

	p.mu.Lock()
	sinceLastCutMs := chunkEndMs - p.pendingCutMs
	forceFlush := sinceLastCutMs >= p.cfg.MaxBufferMs
	p.mu.Unlock()

	shouldCut := boundaryType == boundary.Hard || forceFlush
	if boundaryType == boundary.Soft && !p.asrPool.Saturated() {
		shouldCut = true
	}

	if shouldCut {
		p.mu.Lock()
		startSample := p.lastCutSample
		p.lastCutSample = chunkEndSample
		p.pendingCutMs = chunkEndMs
		p.mu.Unlock()

		if chunkEndSample > startSample {
			p.scheduleASR(ctx, startSample, chunkEndSample)
		}
	}

	return nil
}

// scheduleASR submits an ASR decode over [startSample, endSample) to the
// worker pool, retrying once on the Turbo tier per §7's propagation policy
// before recording a warning and skipping the span.
func (p *pipeline) scheduleASR(ctx context.Context, startSample, endSample int64) {
	p.asrPool.acquire()
	if p.metrics != nil {
		p.metrics.ASRQueueDepth.Add(ctx, 1)
	}
	p.jobs.Go(func() error {
		defer p.asrPool.release()
		if p.metrics != nil {
			defer p.metrics.ASRQueueDepth.Add(ctx, -1)
		}

		samples, err := p.bus.Range(startSample, endSample)
		if err != nil {
			p.addWarning(fmt.Sprintf("asr: span unavailable: %v", err))
			return nil
		}

		decodeStart := time.Now()
		opts := asr.Options{Language: p.cfg.ASRLanguage, WordTimestamps: p.cfg.EnableWordTimestamps}
		segments, err := p.asrEngine.Transcribe(ctx, samples, p.cfg.ASRTier, opts)
		if err != nil {
			segments, err = p.asrEngine.Transcribe(ctx, samples, asr.Turbo, opts)
			if err != nil {
				p.addWarning(fmt.Sprintf("asr: span %d-%d failed twice, skipped: %v", startSample, endSample, err))
				if p.metrics != nil {
					p.metrics.RecordPipelineError(ctx, "asr", "decode_failed")
				}
				return nil
			}
		}
		if p.metrics != nil {
			p.metrics.ASRDuration.Record(ctx, time.Since(decodeStart).Seconds())
		}

		offsetMs := sampleToMs(startSample, p.cfg.SampleRate)
		for i := range segments {
			segments[i].StartMs += offsetMs
			segments[i].EndMs += offsetMs
			for j := range segments[i].Words {
				segments[i].Words[j].StartMs += offsetMs
				segments[i].Words[j].EndMs += offsetMs
			}
		}

		p.acceptASRSegments(ctx, segments)
		return nil
	})
}

// acceptASRSegments runs each decoded segment through H (content-duplicate
// and invalid-timing rejection) before handing survivors to the merger.
func (p *pipeline) acceptASRSegments(ctx context.Context, segments []asr.Segment) {
	var survivors []asr.Segment
	nowMs := int64(0)
	for _, seg := range segments {
		if len(seg.Text) == 0 {
			continue
		}
		if seg.EndMs > nowMs {
			nowMs = seg.EndMs
		}
	}
	for _, seg := range segments {
		cand := dedup.Segment{SpeakerID: "_asr", StartMs: seg.StartMs, EndMs: seg.EndMs, Text: seg.Text, Confidence: seg.Confidence}
		result, accepted, err := p.dedupASR.Process(cand, nowMs)
		if err != nil || !accepted {
			continue
		}
		seg.Text = result.Text
		seg.StartMs = result.StartMs
		seg.EndMs = result.EndMs
		survivors = append(survivors, seg)
	}
	if len(survivors) == 0 {
		return
	}

	spans := p.speakerSpansFor(survivors[0].StartMs, survivors[len(survivors)-1].EndMs)
	attributed := p.merger.Merge(spans, survivors)

	p.mu.Lock()
	p.attributed = append(p.attributed, attributed...)
	sort.SliceStable(p.attributed, func(i, j int) bool { return p.attributed[i].StartMs < p.attributed[j].StartMs })
	p.mu.Unlock()

	if p.metrics != nil && len(attributed) > 0 {
		p.metrics.SegmentsEmitted.Add(ctx, int64(len(attributed)))
	}
}

// pendingSpeakerSpan tracks one session-local diarized span not yet
// surfaced to merging, keyed by its VAD segment.
type pendingSpeakerSpan struct {
	speakerID  string
	startMs    int64
	endMs      int64
	confidence float32
}

// speakerSpansFor returns the session's accepted speaker spans in a time
// range, queried when a new ASR batch needs them for merging.
func (p *pipeline) speakerSpansFor(startMs, endMs int64) []merge.SpeakerSpan {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []merge.SpeakerSpan
	for _, s := range p.acceptedSpans {
		if s.endMs > startMs && s.startMs < endMs {
			out = append(out, merge.SpeakerSpan{SpeakerID: s.speakerID, StartMs: s.startMs, EndMs: s.endMs, Confidence: s.confidence})
		}
	}
	return out
}

// scheduleSpeakerSpan extracts embeddings for a newly completed
// SpeechSegment, assigns it a speaker via online clustering, runs it
// through H's temporal-conflict filter, and emits SpeakerDetected/
// SpeakerActivity events.
func (p *pipeline) scheduleSpeakerSpan(ctx context.Context, seg vad.SpeechSegment) {
	p.embedPool.acquire()
	if p.metrics != nil {
		p.metrics.EmbedQueueDepth.Add(ctx, 1)
	}
	p.jobs.Go(func() error {
		defer p.embedPool.release()
		if p.metrics != nil {
			defer p.metrics.EmbedQueueDepth.Add(ctx, -1)
		}

		startSample := msToSample(seg.StartMs, p.cfg.SampleRate)
		endSample := msToSample(seg.EndMs, p.cfg.SampleRate)

		extractStart := time.Now()
		embeddings, err := p.embedExtract.ExtractSegment(p.bus, startSample, endSample)
		if p.metrics != nil {
			p.metrics.EmbedDuration.Record(ctx, time.Since(extractStart).Seconds())
		}
		if err != nil {
			p.addWarning(fmt.Sprintf("embed: span %d-%d skipped: %v", seg.StartMs, seg.EndMs, err))
			if p.metrics != nil {
				p.metrics.RecordPipelineError(ctx, "embed", "extract_failed")
			}
			return nil
		}
		if len(embeddings) == 0 {
			return nil
		}

		// Under embedder saturation, keep only the anchor (first) window
		// and drop the rest — the spec's "drop overlapping hop windows
		// first" rule, applied post-hoc since embed.Extractor computes
		// its hop windows internally rather than exposing them one at a
		// time.
		if p.embedPool.Saturated() && len(embeddings) > 1 {
			embeddings = embeddings[:1]
		}

		counts := map[string]int{}
		var confSum float32
		for _, e := range embeddings {
			id := p.clusterer.Assign(e)
			counts[id]++
			confSum += e.Confidence
		}
		speakerID, isNew := p.majoritySpeaker(ctx, counts)
		avgConf := confSum / float32(len(embeddings))

		span := pendingSpeakerSpan{speakerID: speakerID, startMs: seg.StartMs, endMs: seg.EndMs, confidence: avgConf}
		cand := dedup.Segment{SpeakerID: speakerID, StartMs: seg.StartMs, EndMs: seg.EndMs, Text: "", Confidence: avgConf}
		result, accepted, err := p.dedupSpeaker.Process(cand, seg.EndMs)
		if err == nil && accepted {
			span.startMs, span.endMs = result.StartMs, result.EndMs
			p.recordSpan(span)
		}

		p.emitSpeakerEvents(speakerID, isNew, avgConf, seg)
		return nil
	})
}

func (p *pipeline) majoritySpeaker(ctx context.Context, counts map[string]int) (string, bool) {
	var best string
	var bestN int
	for id, n := range counts {
		if n > bestN {
			best, bestN = id, n
		}
	}
	p.mu.Lock()
	isNew := !p.speakerSeen[best]
	p.speakerSeen[best] = true
	p.mu.Unlock()
	if isNew && p.metrics != nil {
		p.metrics.SpeakersDetected.Add(ctx, 1)
	}
	return best, isNew
}

func (p *pipeline) recordSpan(span pendingSpeakerSpan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acceptedSpans = append(p.acceptedSpans, span)
}

func (p *pipeline) emitSpeakerEvents(speakerID string, isNew bool, confidence float32, seg vad.SpeechSegment) {
	if p.events == nil {
		return
	}
	if isNew {
		p.events.Publish(api.Event{Kind: api.KindSpeakerDetected, SpeakerDetected: &api.SpeakerDetected{
			SessionID: p.sessionID, SpeakerID: speakerID, IsNew: true, Confidence: confidence, TMs: seg.StartMs,
		}})
	}
	endMs := seg.EndMs
	p.events.Publish(api.Event{Kind: api.KindSpeakerActivity, SpeakerActivity: &api.SpeakerActivity{
		SessionID: p.sessionID, SpeakerID: speakerID, IsActive: true, Confidence: confidence, StartMs: seg.StartMs, EndMs: &endMs,
	}})
}

func (p *pipeline) addWarning(msg string) {
	pipelineLog.Warnf("session %s: %s", p.sessionID, msg)
	p.mu.Lock()
	p.warnings = append(p.warnings, msg)
	p.mu.Unlock()
}

// wait blocks until every scheduled job has completed.
func (p *pipeline) wait() error {
	return p.jobs.Wait()
}

// segments returns the accumulated AttributedSegments sorted per §4.I.
func (p *pipeline) segments() []merge.Attributed {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]merge.Attributed, len(p.attributed))
	copy(out, p.attributed)
	return out
}

// clusters returns every session-local speaker's embeddings, for §4.J
// reconciliation at session end.
func (p *pipeline) clusters() map[string][]embed.Embedding {
	return p.clusterer.Speakers()
}

func (p *pipeline) warningsSnapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.warnings...)
}

func sampleToMs(sample int64, sampleRate int) int64 {
	return sample * 1000 / int64(sampleRate)
}

func msToSample(ms int64, sampleRate int) int64 {
	return ms * int64(sampleRate) / 1000
}

func rmsEnergy(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	mean := sum / float64(len(samples))
	return float32(math.Sqrt(mean))
}

// profileClusters adapts the clusterer's per-speaker embeddings into the
// ClusterEmbedding shape profile.Reconciler expects: one representative
// embedding per cluster, chosen as the highest-quality member.
func profileClusters(bySpeaker map[string][]embed.Embedding) []profile.ClusterEmbedding {
	out := make([]profile.ClusterEmbedding, 0, len(bySpeaker))
	for speakerID, embeddings := range bySpeaker {
		if len(embeddings) == 0 {
			continue
		}
		best := embeddings[0]
		for _, e := range embeddings[1:] {
			if e.Quality > best.Quality {
				best = e
			}
		}
		out = append(out, profile.ClusterEmbedding{
			ClusterID:  speakerID,
			Vector:     best.Vector,
			Quality:    best.Quality,
			DurationMs: best.EndMs - best.StartMs,
		})
	}
	return out
}
