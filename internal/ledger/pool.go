// Package ledger holds the pool accounting: the aggregate premium pool
// balance, the fee-revenue account, and the auditor that re-derives the
// pool balance from flow totals after every mutation.
package ledger

import "fmt"

// PremiumPool is the single aggregate balance holding funds on behalf of
// all policyholders. It is mutated exclusively through the engine's
// operations; no other writer exists. No internal locking — all access is
// serialized by the engine.
type PremiumPool struct {
	balance int64
}

func NewPremiumPool() *PremiumPool {
	return &PremiumPool{}
}

// Credit adds amount to the pool balance.
func (p *PremiumPool) Credit(amount int64) {
	p.balance += amount
}

// Debit removes amount from the pool balance. It errors rather than let the
// balance go negative.
func (p *PremiumPool) Debit(amount int64) error {
	if amount > p.balance {
		return fmt.Errorf("pool debit %d exceeds balance %d", amount, p.balance)
	}
	p.balance -= amount
	return nil
}

// Balance returns the current pool balance.
func (p *PremiumPool) Balance() int64 {
	return p.balance
}

// FeeRevenue accumulates claim processing fees. Fees compensate
// administrative processing and sit outside the premium-accounting
// identity, so they are tracked in a separate account and never enter the
// premium pool.
type FeeRevenue struct {
	total int64
}

func NewFeeRevenue() *FeeRevenue {
	return &FeeRevenue{}
}

func (f *FeeRevenue) Credit(amount int64) {
	f.total += amount
}

func (f *FeeRevenue) Total() int64 {
	return f.total
}
