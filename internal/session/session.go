// Package session implements §4.L: the orchestrator that wires audio
// capture, VAD, boundary detection, ASR, embedding, clustering, dedup, and
// segment merging into one running meeting-transcription session, and
// reconciles its speakers against the long-lived profile store on stop.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voiceloom/meetscribe/internal/audio"
	"github.com/voiceloom/meetscribe/internal/obs"
	"github.com/voiceloom/meetscribe/internal/profile"
	"github.com/voiceloom/meetscribe/internal/ringbuffer"
	"github.com/voiceloom/meetscribe/internal/telemetry"
	"github.com/voiceloom/meetscribe/pkg/api"
)

var sessionLog = obs.New("session")

// Session is one live or batch transcription run, per §4.L. The zero value
// is not usable; construct with New.
type Session struct {
	id  string
	cfg Config

	state       *stateMachine
	bus         *ringbuffer.Bus
	conditioner *audio.Conditioner
	pipeline    *pipeline
	events      *broadcaster
	reconciler  *profile.Reconciler
	metrics     *telemetry.Metrics

	mu        sync.Mutex
	cancel    context.CancelFunc
	startedAt time.Time
}

// New constructs a Session but does not start it; call Start to begin
// consuming audio. reconciler may be nil, in which case Stop skips §4.J
// reconciliation and every speaker keeps its session-local cluster ID.
// metrics may be nil to disable instrument recording (e.g. in tests).
func New(id string, cfg Config, backends Backends, reconciler *profile.Reconciler, metrics *telemetry.Metrics) (*Session, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = ringbuffer.SampleRate
	}
	if cfg.WorkerPoolSize == 0 {
		cfg.WorkerPoolSize = workerPoolSize()
	}
	if cfg.EventBufferSize == 0 {
		cfg.EventBufferSize = 64
	}

	bus := ringbuffer.New(float64(cfg.Boundary.MaxBufferMs)/1000 + 60)
	events := newBroadcaster()

	p, err := newPipeline(id, cfg, bus, backends, events, metrics)
	if err != nil {
		return nil, err
	}

	return &Session{
		id:         id,
		cfg:        cfg,
		state:      newStateMachine(),
		bus:        bus,
		pipeline:   p,
		events:     events,
		reconciler: reconciler,
		metrics:    metrics,
	}, nil
}

// State reports the session's current lifecycle state.
func (s *Session) State() State {
	return s.state.current()
}

// Subscribe registers a new event consumer; the returned channel delivers
// every SpeakerDetected/SpeakerActivity/ProcessingProgress/Error/Complete
// event for this session until Unsubscribe is called or the session stops.
func (s *Session) Subscribe(id string) <-chan api.Event {
	return s.events.Subscribe(id, s.cfg.EventBufferSize)
}

// Unsubscribe releases a consumer registered with Subscribe.
func (s *Session) Unsubscribe(id string) {
	s.events.Unsubscribe(id)
}

// Start transitions Idle -> Initializing -> Running and begins pulling
// frames from source until ctx is cancelled or Stop is called. Calling
// Start while already Running is a no-op, per §4.L.
func (s *Session) Start(ctx context.Context, source audio.Source, conditioner *audio.Conditioner) error {
	if s.state.current() == Running {
		return nil
	}
	if !s.state.transition(Initializing) {
		return fmt.Errorf("session %s: cannot start from state %s", s.id, s.state.current())
	}

	s.conditioner = conditioner
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.startedAt = time.Now()
	s.mu.Unlock()

	if !s.state.transition(Running) {
		cancel()
		return fmt.Errorf("session %s: could not enter Running", s.id)
	}
	if s.metrics != nil {
		s.metrics.ActiveSessions.Add(ctx, 1)
	}

	go s.pullLoop(runCtx, source)
	return nil
}

// pullLoop drives audio.Source.Pull until cancellation or a terminal error,
// conditioning each frame and feeding it to the pipeline.
func (s *Session) pullLoop(ctx context.Context, source audio.Source) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := source.Pull(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.emitError("audio_pull_failed", err.Error(), true)
			continue
		}

		conditioned, err := s.conditioner.Condition(frame)
		if err != nil {
			s.emitError("condition_failed", err.Error(), true)
			continue
		}

		if err := s.pipeline.feedChunk(ctx, conditioned.Samples, conditioned.SampleIndex); err != nil {
			s.emitError("pipeline_feed_failed", err.Error(), true)
		}

		s.emitProgress(conditioned.SampleIndex)
	}
}

func (s *Session) emitProgress(sampleIndex int64) {
	processedS := float64(sampleIndex) / float64(s.cfg.SampleRate)
	s.events.Publish(api.Event{Kind: api.KindProcessingProgress, ProcessingProgress: &api.ProcessingProgress{
		SessionID:     s.id,
		ProcessedS:    processedS,
		SpeakersFound: len(s.pipeline.clusters()),
	}})
}

func (s *Session) emitError(code, message string, recoverable bool) {
	sessionLog.Errorf("session %s: %s: %s", s.id, code, message)
	s.events.Publish(api.Event{Kind: api.KindError, Error: &api.Error{
		SessionID: s.id, Code: code, Message: message, Recoverable: recoverable,
	}})
}

// Stop transitions Running -> Stopping -> Stopped, per §4.L's cancellation
// sequencing: cancel audio ingestion, drain in-flight ASR/embedding work,
// flush dedup state, reconcile clusters against the profile store, then
// emit Complete. Stop always flushes even if the session errored, unless it
// already reached Stopped or Error.
func (s *Session) Stop(ctx context.Context) (*api.Complete, error) {
	current := s.state.current()
	if current == Stopped || current == Error {
		return nil, fmt.Errorf("session %s: already terminal (%s)", s.id, current)
	}
	if !s.state.transition(Stopping) {
		return nil, fmt.Errorf("session %s: cannot stop from state %s", s.id, current)
	}

	s.mu.Lock()
	cancel := s.cancel
	startedAt := s.startedAt
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if err := s.pipeline.wait(); err != nil {
		sessionLog.Warnf("session %s: stage pool returned error on stop: %v", s.id, err)
	}

	totalSpeakers := len(s.pipeline.clusters())
	if s.reconciler != nil {
		clusters := profileClusters(s.pipeline.clusters())
		if _, err := s.reconciler.Reconcile(ctx, s.id, clusters); err != nil {
			sessionLog.Warnf("session %s: profile reconciliation failed: %v", s.id, err)
			s.pipeline.addWarning(fmt.Sprintf("profile reconciliation failed: %v", err))
		}
	}

	s.bus.Unregister("session:" + s.id)

	complete := &api.Complete{
		SessionID:        s.id,
		TotalSpeakers:    totalSpeakers,
		ProcessingTimeMs: time.Since(startedAt).Milliseconds(),
		Warnings:         s.pipeline.warningsSnapshot(),
	}
	s.events.Publish(api.Event{Kind: api.KindComplete, Complete: complete})
	s.events.UnsubscribeAll()

	if s.metrics != nil {
		s.metrics.ActiveSessions.Add(ctx, -1)
		if startedAt.Before(time.Now()) {
			elapsed := time.Since(startedAt).Seconds()
			if elapsed > 0 {
				processedS := float64(s.bus.Head()) / float64(s.cfg.SampleRate)
				s.metrics.RealTimeFactor.Record(ctx, processedS/elapsed)
			}
		}
	}

	s.state.transition(Stopped)
	return complete, nil
}

// PushSamples feeds pre-conditioned 16kHz mono samples directly into the
// pipeline, bypassing audio.Source — used for batch/file input and tests.
// startSample is the chunk's absolute position in the session's sample
// coordinate space.
func (s *Session) PushSamples(ctx context.Context, samples []float32, startSample int64) error {
	return s.pipeline.feedChunk(ctx, samples, startSample)
}

// Segments returns every AttributedSegment produced so far, sorted by start
// time, per §4.I.
func (s *Session) Segments() []api.AttributedSegmentView {
	attributed := s.pipeline.segments()
	out := make([]api.AttributedSegmentView, len(attributed))
	for i, a := range attributed {
		out[i] = api.AttributedSegmentView{
			SpeakerID:               a.SpeakerID,
			StartMs:                 a.StartMs,
			EndMs:                   a.EndMs,
			Text:                    a.Text,
			TranscriptionConfidence: a.TranscriptionConfidence,
			SpeakerConfidence:       a.SpeakerConfidence,
			Overall:                 a.Overall,
			Merged:                  a.Merged,
		}
	}
	return out
}
