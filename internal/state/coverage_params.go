package state

import "fmt"

// CoverageParams are the administrator-tunable parameters. Changes affect
// only future operations: existing policies keep their purchased coverage
// and already-filed claims keep the fee they paid.
type CoverageParams struct {
	ClaimProcessingFee int64 // charged on every file, retained as fee revenue
	MinCoverageAmount  int64
	MaxCoverageAmount  int64
}

// DefaultCoverageParams are the deployment defaults; overridable via
// configuration at startup.
var DefaultCoverageParams = CoverageParams{
	ClaimProcessingFee: 10,
	MinCoverageAmount:  100,
	MaxCoverageAmount:  1_000_000,
}

// ValidateCoverageParams checks min < max, both positive, fee non-negative.
func ValidateCoverageParams(p CoverageParams) error {
	if p.ClaimProcessingFee < 0 {
		return fmt.Errorf("claim_processing_fee must be >= 0, got %d", p.ClaimProcessingFee)
	}
	if p.MinCoverageAmount <= 0 {
		return fmt.Errorf("min_coverage_amount must be > 0, got %d", p.MinCoverageAmount)
	}
	if p.MinCoverageAmount >= p.MaxCoverageAmount {
		return fmt.Errorf("min_coverage_amount (%d) must be < max_coverage_amount (%d)",
			p.MinCoverageAmount, p.MaxCoverageAmount)
	}
	return nil
}

// CoverageParamsManager holds the current parameters. No internal locking —
// all access is serialized by the engine.
type CoverageParamsManager struct {
	params CoverageParams
}

func NewCoverageParamsManager(initial CoverageParams) (*CoverageParamsManager, error) {
	if err := ValidateCoverageParams(initial); err != nil {
		return nil, fmt.Errorf("invalid initial coverage params: %w", err)
	}
	return &CoverageParamsManager{params: initial}, nil
}

func (m *CoverageParamsManager) Get() CoverageParams {
	return m.params
}

// SetClaimProcessingFee replaces the fee unconditionally.
func (m *CoverageParamsManager) SetClaimProcessingFee(fee int64) {
	m.params.ClaimProcessingFee = fee
}

// SetCoverageLimits replaces the purchase bounds; rejects min >= max.
func (m *CoverageParamsManager) SetCoverageLimits(newMin, newMax int64) error {
	next := m.params
	next.MinCoverageAmount = newMin
	next.MaxCoverageAmount = newMax
	if err := ValidateCoverageParams(next); err != nil {
		return err
	}
	m.params = next
	return nil
}

// InBounds reports whether a coverage amount is purchasable under the
// current limits. Both boundary values are accepted.
func (m *CoverageParamsManager) InBounds(coverageAmount int64) bool {
	return coverageAmount >= m.params.MinCoverageAmount &&
		coverageAmount <= m.params.MaxCoverageAmount
}
