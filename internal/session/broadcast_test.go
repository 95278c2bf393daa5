package session

import (
	"testing"

	"github.com/voiceloom/meetscribe/pkg/api"
)

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	b := newBroadcaster()
	chA := b.Subscribe("a", 4)
	chB := b.Subscribe("b", 4)

	b.Publish(api.Event{Kind: api.KindComplete, Complete: &api.Complete{SessionID: "s1"}})

	select {
	case ev := <-chA:
		if ev.Complete.SessionID != "s1" {
			t.Fatalf("unexpected event on a: %+v", ev)
		}
	default:
		t.Fatalf("expected event on subscriber a")
	}
	select {
	case ev := <-chB:
		if ev.Complete.SessionID != "s1" {
			t.Fatalf("unexpected event on b: %+v", ev)
		}
	default:
		t.Fatalf("expected event on subscriber b")
	}
}

func TestBroadcasterDropsOldestNonCriticalWhenFull(t *testing.T) {
	b := newBroadcaster()
	ch := b.Subscribe("s", 2)

	progress := func(n int) api.Event {
		return api.Event{Kind: api.KindProcessingProgress, ProcessingProgress: &api.ProcessingProgress{ProcessedS: float64(n)}}
	}

	b.Publish(progress(1))
	b.Publish(progress(2))
	b.Publish(progress(3)) // channel full of non-critical, must drop progress(1)

	first := <-ch
	if first.ProcessingProgress.ProcessedS != 2 {
		t.Fatalf("expected oldest event dropped, got %v first", first.ProcessingProgress.ProcessedS)
	}
	second := <-ch
	if second.ProcessingProgress.ProcessedS != 3 {
		t.Fatalf("expected progress(3) second, got %v", second.ProcessingProgress.ProcessedS)
	}
}

func TestBroadcasterDropsCriticalOnlyAsLastResort(t *testing.T) {
	b := newBroadcaster()
	ch := b.Subscribe("s", 1)

	// Buffer has room for exactly one event. Fill it with a critical one,
	// then publish a second event: since there is no non-critical entry to
	// evict, the broadcaster falls back to evicting the buffered critical
	// rather than lose the incoming event.
	b.Publish(api.Event{Kind: api.KindError, Error: &api.Error{Code: "first"}})
	b.Publish(api.Event{Kind: api.KindProcessingProgress, ProcessingProgress: &api.ProcessingProgress{ProcessedS: 5}})

	ev := <-ch
	if ev.Kind != api.KindProcessingProgress || ev.ProcessingProgress.ProcessedS != 5 {
		t.Fatalf("expected the newest event to win once the buffer is all-critical, got %+v", ev)
	}
}

func TestBroadcasterPreservesCriticalAmongNonCritical(t *testing.T) {
	b := newBroadcaster()
	ch := b.Subscribe("s", 2)

	b.Publish(api.Event{Kind: api.KindProcessingProgress, ProcessingProgress: &api.ProcessingProgress{ProcessedS: 1}})
	b.Publish(api.Event{Kind: api.KindError, Error: &api.Error{Code: "keep-me"}})
	b.Publish(api.Event{Kind: api.KindProcessingProgress, ProcessingProgress: &api.ProcessingProgress{ProcessedS: 2}})

	first := <-ch
	second := <-ch
	if first.Kind != api.KindError || first.Error.Code != "keep-me" {
		t.Fatalf("expected critical event to survive the non-critical eviction, got first=%+v second=%+v", first, second)
	}
	if second.Kind != api.KindProcessingProgress || second.ProcessingProgress.ProcessedS != 2 {
		t.Fatalf("expected newest progress second, got %+v", second)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := newBroadcaster()
	ch := b.Subscribe("s", 1)
	b.Unsubscribe("s")

	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after unsubscribe")
	}
}
