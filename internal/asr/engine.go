package asr

import (
	"context"
	"time"

	"github.com/voiceloom/meetscribe/internal/errs"
	"github.com/voiceloom/meetscribe/internal/obs"
)

// decodeChunkMs bounds how much audio a single Backend.Decode call covers at
// once. Chunking is what makes cancellation observable: the engine only
// needs to honor a cancel() between chunks, not mid-decode, to stay inside
// §4.G's 250ms bound for spans that exceed a couple of chunks.
const decodeChunkMs = 1000

// cancelGraceMs is how long the engine waits for an in-flight chunk to
// finish on its own after cancellation before giving up and returning
// whatever is already finalized.
const cancelGraceMs = 250

// Engine dispatches transcription across tiers, implementing §7's retry
// policy: a failed decode is retried once on the same span with the Turbo
// tier before the span is skipped.
type Engine struct {
	backends map[Tier]Backend
	sample   int
	log      *obs.Logger
}

// New builds an Engine over the given per-tier backends. At least one
// backend must be registered; Turbo is required for the retry policy to
// have anywhere to fall back to, but its absence only disables the retry,
// it does not make New fail.
func New(sampleRate int, backends map[Tier]Backend) *Engine {
	return &Engine{backends: backends, sample: sampleRate, log: obs.New("asr.engine")}
}

// Transcribe decodes samples at the requested tier, chunked so that ctx
// cancellation is honored within cancelGraceMs. On decode failure it
// retries once on the Turbo tier before surfacing the error, per §7.
func (e *Engine) Transcribe(ctx context.Context, samples []float32, tier Tier, opts Options) ([]Segment, error) {
	if err := validateSamples(samples); err != nil {
		return nil, err
	}
	backend, ok := e.backends[tier]
	if !ok {
		return nil, errs.New(errs.ModelNotFound, "asr: no backend registered for tier %s", tier)
	}

	segments, err := e.decodeChunked(ctx, backend, samples, opts)
	if err == nil {
		return segments, nil
	}
	if tier == Turbo {
		return nil, err
	}

	turbo, ok := e.backends[Turbo]
	if !ok {
		return nil, err
	}
	e.log.Warn("asr: retrying span on turbo tier after failure", "tier", tier, "err", err)
	return e.decodeChunked(ctx, turbo, samples, opts)
}

// decodeChunked walks samples in decodeChunkMs windows, checking ctx between
// chunks. A cancellation stops the loop and returns whatever chunks already
// finalized, matching §4.G's "returns whatever was finalized" contract.
func (e *Engine) decodeChunked(ctx context.Context, backend Backend, samples []float32, opts Options) ([]Segment, error) {
	chunkSamples := decodeChunkMs * e.sample / 1000
	if chunkSamples <= 0 || chunkSamples >= len(samples) {
		return e.decodeOne(ctx, backend, samples, 0, opts)
	}

	var all []Segment
	priorText := opts.PriorText
	for offset := 0; offset < len(samples); offset += chunkSamples {
		select {
		case <-ctx.Done():
			return all, nil
		default:
		}

		end := offset + chunkSamples
		if end > len(samples) {
			end = len(samples)
		}
		chunkOpts := opts
		chunkOpts.PriorText = priorText

		segments, err := e.decodeOne(ctx, backend, samples[offset:end], offset, chunkOpts)
		if err != nil {
			return all, errs.Wrap(errs.InternalDecoder, err, "asr: chunk [%d:%d) failed on %s", offset, end, backend.Name())
		}
		all = append(all, segments...)
		if len(segments) > 0 {
			priorText = segments[len(segments)-1].Text
		}
	}
	return all, nil
}

// decodeOne runs a single backend.Decode call with a cancelGraceMs grace
// window after ctx is canceled, and rebases the returned timestamps by
// offsetSamples so chunk-local times become span-relative.
func (e *Engine) decodeOne(ctx context.Context, backend Backend, samples []float32, offsetSamples int, opts Options) ([]Segment, error) {
	type result struct {
		segments []Segment
		err      error
	}
	done := make(chan result, 1)
	go func() {
		segs, err := backend.Decode(samples, opts)
		done <- result{segs, err}
	}()

	offsetMs := int64(offsetSamples) * 1000 / int64(e.sample)
	spanMs := int64(len(samples)) * 1000 / int64(e.sample)

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return rebaseSegments(r.segments, offsetMs, spanMs), nil
	case <-ctx.Done():
		select {
		case r := <-done:
			if r.err != nil {
				return nil, r.err
			}
			return rebaseSegments(r.segments, offsetMs, spanMs), nil
		case <-time.After(cancelGraceMs * time.Millisecond):
			return nil, errs.New(errs.Canceled, "asr: decode did not finish within cancel grace window")
		}
	}
}

func rebaseSegments(segments []Segment, offsetMs, spanMs int64) []Segment {
	out := make([]Segment, len(segments))
	for i, s := range segments {
		s.StartMs += offsetMs
		s.EndMs += offsetMs
		s.Words = clampWords(offsetWords(s.Words, offsetMs), offsetMs+spanMs)
		out[i] = s
	}
	return out
}

func offsetWords(words []Word, offsetMs int64) []Word {
	out := make([]Word, len(words))
	for i, w := range words {
		w.StartMs += offsetMs
		w.EndMs += offsetMs
		out[i] = w
	}
	return out
}
