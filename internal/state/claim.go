package state

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ClaimStatus is the claim lifecycle state. Transitions are one-way:
// Pending → Approved or Pending → Rejected, both terminal.
type ClaimStatus int8

const (
	ClaimPending ClaimStatus = iota
	ClaimApproved
	ClaimRejected
)

func (s ClaimStatus) String() string {
	switch s {
	case ClaimPending:
		return "Pending"
	case ClaimApproved:
		return "Approved"
	case ClaimRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the status admits no further transition.
func (s ClaimStatus) Terminal() bool {
	switch s {
	case ClaimApproved, ClaimRejected:
		return true
	case ClaimPending:
		return false
	default:
		panic(fmt.Sprintf("FATAL: unknown claim status %d", s))
	}
}

// Claim is one filed claim. Amount and FileDate are immutable; Status
// changes exactly once, at adjudication.
type Claim struct {
	Amount   int64
	FileDate time.Time
	Status   ClaimStatus
}

// ReviewDeadline returns the last instant at which the claim may still be
// adjudicated.
func (c *Claim) ReviewDeadline(reviewPeriod time.Duration) time.Time {
	return c.FileDate.Add(reviewPeriod)
}

// ClaimLedger owns the append-only, per-participant ordered claim
// sequences. A claim is identified by its position in the participant's
// sequence. Claims are never deleted. No internal locking — all access is
// serialized by the engine.
type ClaimLedger struct {
	claims map[uuid.UUID][]*Claim
}

func NewClaimLedger() *ClaimLedger {
	return &ClaimLedger{
		claims: make(map[uuid.UUID][]*Claim),
	}
}

// Append adds a new pending claim and returns its index.
func (l *ClaimLedger) Append(participant uuid.UUID, amount int64, fileDate time.Time) int {
	c := &Claim{
		Amount:   amount,
		FileDate: fileDate,
		Status:   ClaimPending,
	}
	l.claims[participant] = append(l.claims[participant], c)
	return len(l.claims[participant]) - 1
}

// Get returns the claim at index claimID, or false if out of range.
func (l *ClaimLedger) Get(participant uuid.UUID, claimID int) (*Claim, bool) {
	seq := l.claims[participant]
	if claimID < 0 || claimID >= len(seq) {
		return nil, false
	}
	return seq[claimID], true
}

// Count returns the number of claims the participant has filed.
func (l *ClaimLedger) Count(participant uuid.UUID) int {
	return len(l.claims[participant])
}

// PendingCount returns the number of claims still awaiting adjudication,
// across all participants.
func (l *ClaimLedger) PendingCount() int {
	n := 0
	for _, seq := range l.claims {
		for _, c := range seq {
			if c.Status == ClaimPending {
				n++
			}
		}
	}
	return n
}
