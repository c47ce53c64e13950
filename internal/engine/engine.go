// Package engine implements the policy/claim lifecycle state machine and the
// premium-pool accounting around it. The Engine is the single owner of all
// shared state; every public operation runs as an atomic unit under one
// exclusivity lock that is held across the payment-rail call as well as the
// bookkeeping — a reentrant call arriving during a rail suspension blocks
// rather than observing intermediate state.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"CoverPool/internal/authz"
	"CoverPool/internal/clock"
	"CoverPool/internal/event"
	"CoverPool/internal/ledger"
	"CoverPool/internal/observability"
	"CoverPool/internal/premium"
	"CoverPool/internal/rail"
	"CoverPool/internal/state"
)

// Config holds the deployment-time constants of the engine.
type Config struct {
	// CoveragePeriod is the fixed policy duration (endDate - startDate).
	CoveragePeriod time.Duration

	// ReviewPeriod is the window after filing during which a claim may
	// still be adjudicated.
	ReviewPeriod time.Duration

	// InitialParams seeds the administrator-tunable parameters.
	InitialParams state.CoverageParams
}

// DefaultConfig returns the production constants.
func DefaultConfig() Config {
	return Config{
		CoveragePeriod: 365 * 24 * time.Hour,
		ReviewPeriod:   7 * 24 * time.Hour,
		InitialParams:  state.DefaultCoverageParams,
	}
}

// Deps are the injected collaborators. Clock, Rail and Authorizer are
// required; Sink defaults to a no-op and Metrics may be nil.
type Deps struct {
	Clock      clock.Clock
	Rail       rail.PaymentRail
	Authorizer authz.Authorizer
	Sink       event.Sink
	Metrics    *observability.Metrics
	Logger     zerolog.Logger
}

// Engine is the coordinating owner of the policy registry, the claim
// ledger, and the premium pool. All mutation is routed through its methods.
type Engine struct {
	mu sync.Mutex

	cfg      Config
	sequence int64
	hasher   *ChainHasher

	policies *state.PolicyRegistry
	claims   *state.ClaimLedger
	params   *state.CoverageParamsManager
	pool     *ledger.PremiumPool
	fees     *ledger.FeeRevenue
	auditor  *ledger.PoolAuditor

	clock   clock.Clock
	rail    rail.PaymentRail
	authz   authz.Authorizer
	sink    event.Sink
	metrics *observability.Metrics
	log     zerolog.Logger
}

func New(cfg Config, deps Deps) (*Engine, error) {
	if cfg.CoveragePeriod <= 0 {
		return nil, fmt.Errorf("coverage period must be positive, got %s", cfg.CoveragePeriod)
	}
	if cfg.ReviewPeriod <= 0 {
		return nil, fmt.Errorf("review period must be positive, got %s", cfg.ReviewPeriod)
	}
	if deps.Clock == nil || deps.Rail == nil || deps.Authorizer == nil {
		return nil, fmt.Errorf("clock, rail, and authorizer are required")
	}

	params, err := state.NewCoverageParamsManager(cfg.InitialParams)
	if err != nil {
		return nil, err
	}

	sink := deps.Sink
	if sink == nil {
		sink = event.NopSink{}
	}

	return &Engine{
		cfg:      cfg,
		hasher:   NewChainHasher(),
		policies: state.NewPolicyRegistry(),
		claims:   state.NewClaimLedger(),
		params:   params,
		pool:     ledger.NewPremiumPool(),
		fees:     ledger.NewFeeRevenue(),
		auditor:  ledger.NewPoolAuditor(),
		clock:    deps.Clock,
		rail:     deps.Rail,
		authz:    deps.Authorizer,
		sink:     sink,
		metrics:  deps.Metrics,
		log:      deps.Logger,
	}, nil
}

// PurchasePolicy creates an active policy for the participant. The premium
// is collected through the payment rail before any state is committed: a
// declined collection leaves no policy and no pool mutation.
func (e *Engine) PurchasePolicy(ctx context.Context, participant uuid.UUID, coverageAmount int64) (state.Policy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "purchase"
	start := time.Now()
	now := e.clock.Now()

	p := e.params.Get()
	if !e.params.InBounds(coverageAmount) {
		return state.Policy{}, e.reject(op, "out_of_bounds", fmt.Errorf(
			"coverage %d outside [%d, %d]: %w",
			coverageAmount, p.MinCoverageAmount, p.MaxCoverageAmount, ErrCoverageOutOfBounds))
	}
	if _, ok := e.policies.Active(participant); ok {
		return state.Policy{}, e.reject(op, "already_active", fmt.Errorf(
			"participant %s: %w", participant, ErrPolicyAlreadyActive))
	}

	prem := premium.ForCoverage(coverageAmount)
	if err := e.collect(ctx, participant, prem); err != nil {
		return state.Policy{}, e.reject(op, "payment_failed", err)
	}

	pol := &state.Policy{
		Participant:    participant,
		CoverageAmount: coverageAmount,
		Premium:        prem,
		StartDate:      now,
		EndDate:        now.Add(e.cfg.CoveragePeriod),
		IsActive:       true,
	}
	e.policies.Put(pol)
	e.pool.Credit(prem)
	e.auditor.RecordPremium(prem)
	e.mustVerifyPool()

	e.emit(event.TypePolicyPurchased, &participant, now, event.PolicyPurchased{
		Participant:    participant,
		CoverageAmount: coverageAmount,
		Premium:        prem,
	})
	e.applied(op, start)

	if e.metrics != nil {
		e.metrics.PremiumsCollected.Add(float64(prem))
	}
	e.log.Info().
		Str("op", op).
		Str("participant", participant.String()).
		Int64("coverage", coverageAmount).
		Int64("premium", prem).
		Msg("policy purchased")

	return *pol, nil
}

// CancelPolicy deactivates the participant's active policy and refunds the
// prorated unused premium. The refund payout is requested before the policy
// is deactivated and the pool debited: a declined payout leaves the policy
// active and the pool untouched.
func (e *Engine) CancelPolicy(ctx context.Context, participant uuid.UUID) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "cancel"
	start := time.Now()
	now := e.clock.Now()

	pol, ok := e.policies.Active(participant)
	if !ok {
		return 0, e.reject(op, "no_active_policy", fmt.Errorf(
			"participant %s: %w", participant, ErrNoActivePolicy))
	}

	refund := premium.ProratedRefund(pol.Premium, pol.TimeRemaining(now), e.cfg.CoveragePeriod)
	if refund > e.pool.Balance() {
		return 0, e.reject(op, "insufficient_pool", fmt.Errorf(
			"refund %d exceeds pool balance %d: %w", refund, e.pool.Balance(), ErrInsufficientPool))
	}
	if refund > 0 {
		if err := e.pay(ctx, participant, refund); err != nil {
			return 0, e.reject(op, "payment_failed", err)
		}
	}

	pol.IsActive = false
	if refund > 0 {
		if err := e.pool.Debit(refund); err != nil {
			panic(fmt.Sprintf("FATAL: refund debit after balance check: %v", err))
		}
		e.auditor.RecordRefund(refund)
	}
	e.mustVerifyPool()

	e.emit(event.TypePolicyCancelled, &participant, now, event.PolicyCancelled{
		Participant:  participant,
		RefundAmount: refund,
	})
	e.applied(op, start)

	if e.metrics != nil {
		e.metrics.RefundsTotal.Add(float64(refund))
	}
	e.log.Info().
		Str("op", op).
		Str("participant", participant.String()).
		Int64("refund", refund).
		Msg("policy cancelled")

	return refund, nil
}

// FileClaim appends a pending claim against the participant's active
// policy. The processing fee is collected through the rail before the claim
// is committed; the fee is retained as fee revenue, never credited to the
// premium pool.
func (e *Engine) FileClaim(ctx context.Context, participant uuid.UUID, amount int64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "file"
	start := time.Now()
	now := e.clock.Now()

	pol, ok := e.policies.Active(participant)
	if !ok {
		return 0, e.reject(op, "no_active_policy", fmt.Errorf(
			"participant %s: %w", participant, ErrNoActivePolicy))
	}
	if pol.Expired(now) {
		return 0, e.reject(op, "policy_expired", fmt.Errorf(
			"policy ended %s, now %s: %w", pol.EndDate.Format(time.RFC3339), now.Format(time.RFC3339), ErrPolicyExpired))
	}
	if amount <= 0 {
		return 0, e.reject(op, "invalid_amount", fmt.Errorf(
			"claim amount %d: %w", amount, ErrInvalidAmount))
	}
	if amount > pol.CoverageAmount {
		return 0, e.reject(op, "exceeds_coverage", fmt.Errorf(
			"claim %d exceeds remaining coverage %d: %w", amount, pol.CoverageAmount, ErrExceedsCoverage))
	}

	fee := e.params.Get().ClaimProcessingFee
	if fee > 0 {
		if err := e.collect(ctx, participant, fee); err != nil {
			return 0, e.reject(op, "payment_failed", err)
		}
	}

	claimID := e.claims.Append(participant, amount, now)
	e.fees.Credit(fee)
	e.mustVerifyPool()

	e.emit(event.TypeClaimFiled, &participant, now, event.ClaimFiled{
		Participant: participant,
		ClaimID:     claimID,
		Amount:      amount,
	})
	e.applied(op, start)

	e.log.Info().
		Str("op", op).
		Str("participant", participant.String()).
		Int("claim_id", claimID).
		Int64("amount", amount).
		Msg("claim filed")

	return claimID, nil
}

// ProcessClaim adjudicates a pending claim within its review window.
// Administrator-gated. On approval, the payout is requested through the
// rail first; the Approved transition, the pool debit, and the coverage
// reduction commit atomically only after the payout succeeds — a declined
// payout leaves the claim Pending with no pool or coverage mutation. On
// rejection no funds move.
func (e *Engine) ProcessClaim(ctx context.Context, caller, participant uuid.UUID, claimID int, approve bool) (state.ClaimStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "adjudicate"
	start := time.Now()
	now := e.clock.Now()

	if !e.authz.IsAdministrator(caller) {
		return state.ClaimPending, e.reject(op, "not_administrator", fmt.Errorf(
			"caller %s: %w", caller, ErrNotAdministrator))
	}

	c, ok := e.claims.Get(participant, claimID)
	if !ok {
		return state.ClaimPending, e.reject(op, "invalid_claim_id", fmt.Errorf(
			"participant %s claim %d: %w", participant, claimID, ErrInvalidClaimID))
	}

	switch c.Status {
	case state.ClaimPending:
		// adjudicable
	case state.ClaimApproved, state.ClaimRejected:
		return c.Status, e.reject(op, "already_processed", fmt.Errorf(
			"claim %d is %s: %w", claimID, c.Status, ErrClaimAlreadyProcessed))
	default:
		panic(fmt.Sprintf("FATAL: claim %d in unknown status %d", claimID, c.Status))
	}

	// The deadline instant itself is still adjudicable.
	if now.After(c.ReviewDeadline(e.cfg.ReviewPeriod)) {
		return c.Status, e.reject(op, "review_window_expired", fmt.Errorf(
			"filed %s, window %s: %w", c.FileDate.Format(time.RFC3339), e.cfg.ReviewPeriod, ErrReviewWindowExpired))
	}

	if !approve {
		c.Status = state.ClaimRejected
		e.emit(event.TypeClaimProcessed, &participant, now, event.ClaimProcessed{
			Participant: participant,
			ClaimID:     claimID,
			Status:      c.Status.String(),
		})
		e.applied(op, start)
		e.log.Info().
			Str("op", op).
			Str("participant", participant.String()).
			Int("claim_id", claimID).
			Str("status", c.Status.String()).
			Msg("claim rejected")
		return c.Status, nil
	}

	pol := e.policies.Get(participant)
	if pol == nil {
		panic(fmt.Sprintf("FATAL: claim %d exists without a policy slot for %s", claimID, participant))
	}
	// Coverage may have shrunk since filing if other claims were approved
	// in between; the payout must never push remaining coverage negative.
	if c.Amount > pol.CoverageAmount {
		return c.Status, e.reject(op, "exceeds_coverage", fmt.Errorf(
			"payout %d exceeds remaining coverage %d: %w", c.Amount, pol.CoverageAmount, ErrExceedsCoverage))
	}
	if c.Amount > e.pool.Balance() {
		return c.Status, e.reject(op, "insufficient_pool", fmt.Errorf(
			"payout %d exceeds pool balance %d: %w", c.Amount, e.pool.Balance(), ErrInsufficientPool))
	}

	if err := e.pay(ctx, participant, c.Amount); err != nil {
		return c.Status, e.reject(op, "payment_failed", err)
	}

	c.Status = state.ClaimApproved
	if err := e.pool.Debit(c.Amount); err != nil {
		panic(fmt.Sprintf("FATAL: payout debit after balance check: %v", err))
	}
	e.auditor.RecordPayout(c.Amount)
	pol.CoverageAmount -= c.Amount
	if pol.CoverageAmount == 0 {
		pol.IsActive = false
	}
	e.mustVerifyPool()

	e.emit(event.TypeClaimProcessed, &participant, now, event.ClaimProcessed{
		Participant: participant,
		ClaimID:     claimID,
		Status:      c.Status.String(),
	})
	e.applied(op, start)

	if e.metrics != nil {
		e.metrics.PayoutsTotal.Add(float64(c.Amount))
	}
	e.log.Info().
		Str("op", op).
		Str("participant", participant.String()).
		Int("claim_id", claimID).
		Int64("payout", c.Amount).
		Int64("coverage_remaining", pol.CoverageAmount).
		Msg("claim approved")

	return c.Status, nil
}

// SetClaimProcessingFee replaces the processing fee. Administrator-gated;
// affects only future FileClaim calls.
func (e *Engine) SetClaimProcessingFee(ctx context.Context, caller uuid.UUID, fee int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "set_fee"
	start := time.Now()
	now := e.clock.Now()

	if !e.authz.IsAdministrator(caller) {
		return e.reject(op, "not_administrator", fmt.Errorf("caller %s: %w", caller, ErrNotAdministrator))
	}
	if fee < 0 {
		return e.reject(op, "invalid_amount", fmt.Errorf("fee %d: %w", fee, ErrInvalidAmount))
	}

	e.params.SetClaimProcessingFee(fee)

	e.emit(event.TypeClaimProcessingFeeUpdated, nil, now, event.ClaimProcessingFeeUpdated{
		NewFee: fee,
	})
	e.applied(op, start)

	e.log.Info().Str("op", op).Int64("fee", fee).Msg("claim processing fee updated")
	return nil
}

// SetCoverageLimits replaces the purchase bounds. Administrator-gated;
// rejects min >= max; existing policies keep their purchased coverage.
func (e *Engine) SetCoverageLimits(ctx context.Context, caller uuid.UUID, newMin, newMax int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "set_limits"
	start := time.Now()
	now := e.clock.Now()

	if !e.authz.IsAdministrator(caller) {
		return e.reject(op, "not_administrator", fmt.Errorf("caller %s: %w", caller, ErrNotAdministrator))
	}
	if err := e.params.SetCoverageLimits(newMin, newMax); err != nil {
		return e.reject(op, "invalid_limits", fmt.Errorf("%v: %w", err, ErrInvalidCoverageLimits))
	}

	e.emit(event.TypeCoverageLimitsUpdated, nil, now, event.CoverageLimitsUpdated{
		NewMin: newMin,
		NewMax: newMax,
	})
	e.applied(op, start)

	e.log.Info().Str("op", op).Int64("min", newMin).Int64("max", newMax).Msg("coverage limits updated")
	return nil
}

// WithdrawExcessFunds transfers pool funds to the administrator through the
// rail. The transfer is requested before the pool is debited.
func (e *Engine) WithdrawExcessFunds(ctx context.Context, caller uuid.UUID, amount int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "withdraw"
	start := time.Now()
	now := e.clock.Now()

	if !e.authz.IsAdministrator(caller) {
		return e.reject(op, "not_administrator", fmt.Errorf("caller %s: %w", caller, ErrNotAdministrator))
	}
	if amount <= 0 {
		return e.reject(op, "invalid_amount", fmt.Errorf("withdrawal %d: %w", amount, ErrInvalidAmount))
	}
	if amount > e.pool.Balance() {
		return e.reject(op, "insufficient_pool", fmt.Errorf(
			"withdrawal %d exceeds pool balance %d: %w", amount, e.pool.Balance(), ErrInsufficientPool))
	}

	if err := e.pay(ctx, caller, amount); err != nil {
		return e.reject(op, "payment_failed", err)
	}

	if err := e.pool.Debit(amount); err != nil {
		panic(fmt.Sprintf("FATAL: withdrawal debit after balance check: %v", err))
	}
	e.auditor.RecordWithdrawal(amount)
	e.mustVerifyPool()

	e.emit(event.TypeExcessFundsWithdrawn, nil, now, event.ExcessFundsWithdrawn{
		Amount: amount,
	})
	e.applied(op, start)

	if e.metrics != nil {
		e.metrics.WithdrawalsTotal.Add(float64(amount))
	}
	e.log.Info().Str("op", op).Int64("amount", amount).Msg("excess funds withdrawn")
	return nil
}

// --- Reads (no side effects, still serialized) ---

// GetPolicy returns a copy of the participant's policy slot.
func (e *Engine) GetPolicy(participant uuid.UUID) (state.Policy, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pol := e.policies.Get(participant)
	if pol == nil {
		return state.Policy{}, false
	}
	return *pol, true
}

// GetClaimsCount returns how many claims the participant has filed.
func (e *Engine) GetClaimsCount(participant uuid.UUID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.claims.Count(participant)
}

// GetClaim returns a copy of the claim at claimID.
func (e *Engine) GetClaim(participant uuid.UUID, claimID int) (state.Claim, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.claims.Get(participant, claimID)
	if !ok {
		return state.Claim{}, fmt.Errorf("participant %s claim %d: %w", participant, claimID, ErrInvalidClaimID)
	}
	return *c, nil
}

// GetPoolBalance returns the current premium pool balance.
func (e *Engine) GetPoolBalance() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Balance()
}

// GetFeeRevenue returns the accumulated claim processing fee revenue.
func (e *Engine) GetFeeRevenue() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fees.Total()
}

// GetParams returns the current administrator-tunable parameters.
func (e *Engine) GetParams() state.CoverageParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params.Get()
}

// Sequence returns the next event sequence number.
func (e *Engine) Sequence() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}

// StateHash returns the audit chain tip.
func (e *Engine) StateHash() [32]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasher.PrevHash()
}

// --- internals (all called with e.mu held) ---

func (e *Engine) collect(ctx context.Context, from uuid.UUID, amount int64) error {
	return e.railCall(ctx, "collect", from, amount, e.rail.Collect)
}

func (e *Engine) pay(ctx context.Context, to uuid.UUID, amount int64) error {
	return e.railCall(ctx, "pay", to, amount, e.rail.Pay)
}

func (e *Engine) railCall(
	ctx context.Context,
	call string,
	participant uuid.UUID,
	amount int64,
	fn func(context.Context, uuid.UUID, int64) error,
) error {
	start := time.Now()
	err := fn(ctx, participant, amount)
	if e.metrics != nil {
		e.metrics.RailDuration.WithLabelValues(call).Observe(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = "declined"
		}
		e.metrics.RailCalls.WithLabelValues(call, outcome).Inc()
	}
	if err != nil {
		return fmt.Errorf("%s %d for %s: %v: %w", call, amount, participant, err, ErrPaymentFailed)
	}
	return nil
}

// emit assigns the next sequence, advances the audit hash chain, and hands
// the envelope to the sink. Sink failures never affect engine state.
func (e *Engine) emit(t event.Type, participant *uuid.UUID, now time.Time, payload any) {
	digest, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("FATAL: marshal %s payload: %v", t, err))
	}

	seq := e.sequence
	prev := e.hasher.PrevHash()
	hash := e.hasher.ComputeHash(seq, digest)

	e.sink.Emit(event.Envelope{
		Sequence:    seq,
		Type:        t,
		Participant: participant,
		Timestamp:   now,
		Payload:     payload,
		StateHash:   hash,
		PrevHash:    prev,
	})
	e.sequence++

	if e.metrics != nil {
		e.metrics.EventsEmitted.WithLabelValues(t.String()).Inc()
		e.metrics.Sequence.Set(float64(e.sequence))
	}
}

// mustVerifyPool checks the accounting identity after a mutation. A
// violation means the engine itself is broken, not the caller's request.
func (e *Engine) mustVerifyPool() {
	if err := e.auditor.Verify(e.pool.Balance()); err != nil {
		panic(fmt.Sprintf("FATAL: %v", err))
	}
}

func (e *Engine) reject(op, reason string, err error) error {
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(op, reason).Inc()
	}
	e.log.Debug().Str("op", op).Str("reason", reason).Err(err).Msg("operation rejected")
	return err
}

func (e *Engine) applied(op string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.OpsApplied.WithLabelValues(op).Inc()
	e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	e.metrics.PoolBalance.Set(float64(e.pool.Balance()))
	e.metrics.FeeRevenue.Set(float64(e.fees.Total()))
	e.metrics.ActivePolicies.Set(float64(e.policies.ActiveCount()))
	e.metrics.ClaimsPending.Set(float64(e.claims.PendingCount()))
}
