// Package rail defines the payment-rail collaborator contract: the external
// system that actually moves value between a participant and the pool.
package rail

import (
	"context"

	"github.com/google/uuid"
)

// PaymentRail moves funds in and out of the pool. Either call may fail; the
// engine surfaces every failure to the caller and never retries internally.
// The engine holds its exclusivity lock across these calls, so
// implementations must not call back into the engine.
type PaymentRail interface {
	// Collect pulls amount from the participant into the pool's custody.
	Collect(ctx context.Context, from uuid.UUID, amount int64) error

	// Pay pushes amount from the pool's custody to the participant.
	Pay(ctx context.Context, to uuid.UUID, amount int64) error
}
