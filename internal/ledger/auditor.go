package ledger

import "fmt"

// PoolAuditor tracks the cumulative flows through the premium pool and
// re-derives what the balance must be:
//
//	balance = premiums collected - approved payouts - cancellation refunds - withdrawals
//
// This is an accounting identity, not a non-negativity check. The engine
// records each flow as it commits and verifies the identity after every
// state-changing operation; a mismatch means the engine itself is broken.
type PoolAuditor struct {
	premiumsCollected int64
	payoutsPaid       int64
	refundsPaid       int64
	withdrawals       int64
}

func NewPoolAuditor() *PoolAuditor {
	return &PoolAuditor{}
}

func (a *PoolAuditor) RecordPremium(amount int64)    { a.premiumsCollected += amount }
func (a *PoolAuditor) RecordPayout(amount int64)     { a.payoutsPaid += amount }
func (a *PoolAuditor) RecordRefund(amount int64)     { a.refundsPaid += amount }
func (a *PoolAuditor) RecordWithdrawal(amount int64) { a.withdrawals += amount }

// ExpectedBalance returns the balance implied by the recorded flows.
func (a *PoolAuditor) ExpectedBalance() int64 {
	return a.premiumsCollected - a.payoutsPaid - a.refundsPaid - a.withdrawals
}

// Verify checks the pool balance against the accounting identity.
func (a *PoolAuditor) Verify(balance int64) error {
	expected := a.ExpectedBalance()
	if balance != expected {
		return fmt.Errorf(
			"pool balance %d violates accounting identity: premiums=%d payouts=%d refunds=%d withdrawals=%d expected=%d",
			balance, a.premiumsCollected, a.payoutsPaid, a.refundsPaid, a.withdrawals, expected,
		)
	}
	if balance < 0 {
		return fmt.Errorf("pool balance negative: %d", balance)
	}
	return nil
}
