package session

import "sync/atomic"

// saturable is a counting gate used to decide whether a CPU-heavy stage
// (ASR, embedder) is currently saturated, per §5's bounded-worker-pool
// model and §4.L's backpressure rules. acquire/release bracket one unit of
// work; Saturated reports whether the pool is fully occupied at this
// instant — callers use that to decide whether to shed optional work
// rather than to block (the pool itself, via the buffered jobs channel,
// is what actually bounds concurrency).
type saturable struct {
	limit   int32
	inFlight int32
}

func newSaturable(limit int) *saturable {
	if limit < 1 {
		limit = 1
	}
	return &saturable{limit: int32(limit)}
}

func (s *saturable) acquire() { atomic.AddInt32(&s.inFlight, 1) }
func (s *saturable) release() { atomic.AddInt32(&s.inFlight, -1) }

// Saturated reports whether every worker slot is currently occupied.
func (s *saturable) Saturated() bool {
	return atomic.LoadInt32(&s.inFlight) >= s.limit
}
