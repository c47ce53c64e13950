package state

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

var testStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestPolicyExpired(t *testing.T) {
	p := &Policy{
		StartDate: testStart,
		EndDate:   testStart.Add(365 * 24 * time.Hour),
	}

	if p.Expired(testStart) {
		t.Error("expired at start")
	}
	if p.Expired(p.EndDate.Add(-time.Nanosecond)) {
		t.Error("expired one nanosecond before end")
	}
	if !p.Expired(p.EndDate) {
		t.Error("not expired at the end instant")
	}
	if !p.Expired(p.EndDate.Add(time.Hour)) {
		t.Error("not expired after end")
	}
}

func TestPolicyTimeRemaining(t *testing.T) {
	p := &Policy{
		StartDate: testStart,
		EndDate:   testStart.Add(100 * time.Hour),
	}

	if got := p.TimeRemaining(testStart); got != 100*time.Hour {
		t.Errorf("at start: %s, want 100h", got)
	}
	if got := p.TimeRemaining(testStart.Add(60 * time.Hour)); got != 40*time.Hour {
		t.Errorf("mid-term: %s, want 40h", got)
	}
	if got := p.TimeRemaining(testStart.Add(200 * time.Hour)); got != 0 {
		t.Errorf("past end: %s, want 0", got)
	}
}

func TestPolicyRegistry(t *testing.T) {
	r := NewPolicyRegistry()
	participant := uuid.New()

	if r.Get(participant) != nil {
		t.Error("Get on empty registry returned a policy")
	}
	if _, ok := r.Active(participant); ok {
		t.Error("Active on empty registry returned true")
	}

	r.Put(&Policy{Participant: participant, CoverageAmount: 1000, IsActive: true})

	got, ok := r.Active(participant)
	if !ok || got.CoverageAmount != 1000 {
		t.Fatalf("Active = %+v, %v", got, ok)
	}
	if r.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", r.ActiveCount())
	}

	got.IsActive = false
	if _, ok := r.Active(participant); ok {
		t.Error("Active returned a deactivated policy")
	}
	if r.Get(participant) == nil {
		t.Error("deactivated slot was deleted")
	}
	if r.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0", r.ActiveCount())
	}

	// Repurchase overwrites the inactive slot.
	r.Put(&Policy{Participant: participant, CoverageAmount: 2000, IsActive: true})
	got, _ = r.Active(participant)
	if got.CoverageAmount != 2000 {
		t.Errorf("repurchased coverage = %d, want 2000", got.CoverageAmount)
	}
}
