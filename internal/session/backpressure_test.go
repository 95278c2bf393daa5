package session

import "testing"

func TestSaturableReportsSaturationAtLimit(t *testing.T) {
	s := newSaturable(2)
	if s.Saturated() {
		t.Fatalf("fresh gate must not be saturated")
	}
	s.acquire()
	if s.Saturated() {
		t.Fatalf("gate with 1/2 in flight must not be saturated")
	}
	s.acquire()
	if !s.Saturated() {
		t.Fatalf("gate with 2/2 in flight must be saturated")
	}
	s.release()
	if s.Saturated() {
		t.Fatalf("gate with 1/2 in flight after release must not be saturated")
	}
}

func TestSaturableClampsLimitToOne(t *testing.T) {
	s := newSaturable(0)
	if s.limit != 1 {
		t.Fatalf("expected limit clamped to 1, got %d", s.limit)
	}
}
