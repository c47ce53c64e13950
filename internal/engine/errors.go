package engine

import "errors"

// Operation failures are sentinel errors so callers can classify outcomes
// with errors.Is. Every failure is surfaced synchronously; none is retried
// internally — retry policy belongs to the caller.
var (
	// Validation failures
	ErrCoverageOutOfBounds   = errors.New("coverage amount outside configured limits")
	ErrPolicyAlreadyActive   = errors.New("participant already holds an active policy")
	ErrNoActivePolicy        = errors.New("no active policy for participant")
	ErrPolicyExpired         = errors.New("policy coverage period has ended")
	ErrExceedsCoverage       = errors.New("claim amount exceeds remaining coverage")
	ErrInvalidClaimID        = errors.New("claim id out of range")
	ErrClaimAlreadyProcessed = errors.New("claim already adjudicated")
	ErrReviewWindowExpired   = errors.New("claim review window has expired")
	ErrInvalidAmount         = errors.New("amount must be positive")

	// Payment rail declined a collection or payout
	ErrPaymentFailed = errors.New("payment rail declined")

	// Caller is not an administrator
	ErrNotAdministrator = errors.New("caller is not an administrator")

	// Config invariant violation (min >= max)
	ErrInvalidCoverageLimits = errors.New("invalid coverage limits")

	// Pool cannot fund the requested debit
	ErrInsufficientPool = errors.New("premium pool balance insufficient")
)
