package session

import (
	"sync"

	"github.com/voiceloom/meetscribe/internal/obs"
	"github.com/voiceloom/meetscribe/pkg/api"
)

var broadcastLog = obs.New("session.broadcast")

// subscriber is one consumer's bounded event channel; send evicts an
// oldest non-critical event when the channel is full, mirroring
// the ring buffer's single-writer/many-reader discipline (internal/
// ringbuffer.Bus) but for discrete events rather than samples.
type subscriber struct {
	id   string
	ch   chan api.Event
	size int
}

// broadcaster fans events out to every subscriber. A slow subscriber never
// blocks the producer: when its channel is full, the broadcaster drops the
// oldest buffered non-critical event (Error and Complete are dropped only
// as a last resort — if the channel is full of nothing but critical events, the new
// one is still delivered by dropping the single oldest entry, since a
// terminal-state channel being saturated with criticals is itself a bug
// elsewhere, not a reason to lose session-ending information).
type broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subscribers: map[string]*subscriber{}}
}

// Subscribe registers a new consumer and returns its receive channel.
// Unsubscribe must be called to release it.
func (b *broadcaster) Subscribe(id string, bufferSize int) <-chan api.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &subscriber{id: id, ch: make(chan api.Event, bufferSize), size: bufferSize}
	b.subscribers[id] = sub
	return sub.ch
}

// Unsubscribe removes and closes a consumer's channel.
func (b *broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}

// UnsubscribeAll closes every consumer's channel, used during Stop.
func (b *broadcaster) UnsubscribeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}

// Publish delivers ev to every subscriber, applying the drop-oldest policy
// on a full channel.
func (b *broadcaster) Publish(ev api.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		sub.send(ev)
	}
}

func (s *subscriber) send(ev api.Event) {
	select {
	case s.ch <- ev:
		return
	default:
	}

	// Channel is full. Drop the oldest non-critical event to make room; if
	// everything buffered is critical, drop the oldest of those rather than
	// lose the new event.
	if s.dropOldest(false) || s.dropOldest(true) {
		select {
		case s.ch <- ev:
		default:
			broadcastLog.Warnf("subscriber %s still full after eviction, dropping event %s", s.id, ev.Kind)
		}
	}
}

// dropOldest removes one buffered event matching wantCritical, returning
// whether it found one to remove. It does this by draining and
// re-buffering everything but the first qualifying match — O(n) in the
// buffer size, acceptable given EventBufferSize is small (tens of events).
func (s *subscriber) dropOldest(wantCritical bool) bool {
	buffered := len(s.ch)
	if buffered == 0 {
		return false
	}

	dropped := false
	kept := make([]api.Event, 0, buffered)
	for i := 0; i < buffered; i++ {
		ev := <-s.ch
		if !dropped && ev.Critical() == wantCritical {
			dropped = true
			continue
		}
		kept = append(kept, ev)
	}
	for _, ev := range kept {
		s.ch <- ev
	}
	return dropped
}
