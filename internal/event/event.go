package event

import (
	"time"

	"github.com/google/uuid"
)

// Type discriminator for event payloads
type Type int32

const (
	TypeUnknown Type = iota
	TypePolicyPurchased
	TypePolicyCancelled
	TypeClaimFiled
	TypeClaimProcessed
	TypeClaimProcessingFeeUpdated
	TypeCoverageLimitsUpdated
	TypeExcessFundsWithdrawn
)

func (t Type) String() string {
	switch t {
	case TypePolicyPurchased:
		return "PolicyPurchased"
	case TypePolicyCancelled:
		return "PolicyCancelled"
	case TypeClaimFiled:
		return "ClaimFiled"
	case TypeClaimProcessed:
		return "ClaimProcessed"
	case TypeClaimProcessingFeeUpdated:
		return "ClaimProcessingFeeUpdated"
	case TypeCoverageLimitsUpdated:
		return "CoverageLimitsUpdated"
	case TypeExcessFundsWithdrawn:
		return "ExcessFundsWithdrawn"
	default:
		return "Unknown"
	}
}

// Envelope wraps every emitted event. One envelope is produced per
// state-changing operation, after all state mutation for that operation
// has committed.
type Envelope struct {
	// Monotonic sequence assigned by the engine
	Sequence int64 `json:"sequence"`

	// Event type discriminator
	Type Type `json:"event_type"`

	// Participant context (nil for admin-config events)
	Participant *uuid.UUID `json:"participant,omitempty"`

	// Logical time observed at operation entry (NOT wall-clock)
	Timestamp time.Time `json:"timestamp"`

	// Event-specific payload
	Payload any `json:"payload"`

	// SHA-256 of the audit chain AFTER this event
	StateHash [32]byte `json:"state_hash"`

	// Previous envelope's state hash (chain integrity)
	PrevHash [32]byte `json:"prev_hash"`
}

// Sink receives envelopes as an append-only side channel. Implementations
// must not block the caller; a failing sink never affects engine state.
type Sink interface {
	Emit(Envelope)
}

// --- Payloads ---

type PolicyPurchased struct {
	Participant    uuid.UUID `json:"participant"`
	CoverageAmount int64     `json:"coverage_amount"`
	Premium        int64     `json:"premium"`
}

type PolicyCancelled struct {
	Participant  uuid.UUID `json:"participant"`
	RefundAmount int64     `json:"refund_amount"`
}

type ClaimFiled struct {
	Participant uuid.UUID `json:"participant"`
	ClaimID     int       `json:"claim_id"`
	Amount      int64     `json:"amount"`
}

type ClaimProcessed struct {
	Participant uuid.UUID `json:"participant"`
	ClaimID     int       `json:"claim_id"`
	Status      string    `json:"status"`
}

type ClaimProcessingFeeUpdated struct {
	NewFee int64 `json:"new_fee"`
}

type CoverageLimitsUpdated struct {
	NewMin int64 `json:"new_min"`
	NewMax int64 `json:"new_max"`
}

type ExcessFundsWithdrawn struct {
	Amount int64 `json:"amount"`
}
