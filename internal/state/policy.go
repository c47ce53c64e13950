package state

import (
	"time"

	"github.com/google/uuid"
)

// Policy is one participant's coverage slot. A participant has at most one
// policy record; the record is reused across purchases — an inactive slot is
// available for the next purchase, never deleted.
type Policy struct {
	Participant    uuid.UUID
	CoverageAmount int64 // remaining covered value, reduced by approved payouts
	Premium        int64 // fixed at purchase
	StartDate      time.Time
	EndDate        time.Time // StartDate + coverage period, immutable
	IsActive       bool
}

// Expired reports whether the policy's coverage window has ended at now.
// The end instant itself counts as expired.
func (p *Policy) Expired(now time.Time) bool {
	return !now.Before(p.EndDate)
}

// TimeRemaining returns the unexpired portion of the coverage window,
// clamped at zero.
func (p *Policy) TimeRemaining(now time.Time) time.Duration {
	remaining := p.EndDate.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PolicyRegistry owns one policy slot per participant. It performs no
// locking of its own — all access is serialized by the engine.
type PolicyRegistry struct {
	policies map[uuid.UUID]*Policy
}

func NewPolicyRegistry() *PolicyRegistry {
	return &PolicyRegistry{
		policies: make(map[uuid.UUID]*Policy),
	}
}

// Get returns the participant's policy slot, or nil if the participant has
// never purchased.
func (r *PolicyRegistry) Get(participant uuid.UUID) *Policy {
	return r.policies[participant]
}

// Active returns the participant's policy if one is currently active.
func (r *PolicyRegistry) Active(participant uuid.UUID) (*Policy, bool) {
	p, ok := r.policies[participant]
	if !ok || !p.IsActive {
		return nil, false
	}
	return p, true
}

// Put commits a freshly purchased policy into the participant's slot,
// overwriting any inactive prior policy.
func (r *PolicyRegistry) Put(p *Policy) {
	r.policies[p.Participant] = p
}

// ActiveCount returns the number of currently active policies.
func (r *PolicyRegistry) ActiveCount() int {
	n := 0
	for _, p := range r.policies {
		if p.IsActive {
			n++
		}
	}
	return n
}
