// Package server exposes the engine's operations and reads over HTTP/JSON.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"CoverPool/internal/engine"
	"CoverPool/internal/observability"
	"CoverPool/internal/state"
)

// callerHeader carries the caller identity for administrator-gated
// endpoints. Authentication of the header is an upstream concern (gateway
// or mTLS); the engine's Authorizer decides whether the identity is an
// administrator.
const callerHeader = "X-Caller-ID"

// Server wires the engine to a chi router.
type Server struct {
	engine  *engine.Engine
	health  *observability.HealthChecker
	metrics *observability.Metrics
	log     zerolog.Logger
}

func New(eng *engine.Engine, health *observability.HealthChecker, metrics *observability.Metrics, log zerolog.Logger) *Server {
	return &Server{
		engine:  eng,
		health:  health,
		metrics: metrics,
		log:     log,
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/policies", s.instrument("purchase_policy", s.handlePurchase))
		r.Route("/policies/{participant}", func(r chi.Router) {
			r.Get("/", s.instrument("get_policy", s.handleGetPolicy))
			r.Delete("/", s.instrument("cancel_policy", s.handleCancel))
			r.Post("/claims", s.instrument("file_claim", s.handleFileClaim))
			r.Get("/claims", s.instrument("get_claims_count", s.handleClaimsCount))
			r.Get("/claims/{claimID}", s.instrument("get_claim", s.handleGetClaim))
			r.Post("/claims/{claimID}/decision", s.instrument("process_claim", s.handleProcessClaim))
		})
		r.Get("/pool", s.instrument("get_pool", s.handleGetPool))
		r.Route("/admin", func(r chi.Router) {
			r.Get("/config", s.instrument("get_config", s.handleGetConfig))
			r.Put("/config/fee", s.instrument("set_fee", s.handleSetFee))
			r.Put("/config/limits", s.instrument("set_limits", s.handleSetLimits))
			r.Post("/withdrawals", s.instrument("withdraw", s.handleWithdraw))
		})
	})

	return r
}

// Serve runs the HTTP server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", addr).Msg("http server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}
	return nil
}

// --- handlers ---

type purchaseRequest struct {
	Participant    uuid.UUID `json:"participant"`
	CoverageAmount int64     `json:"coverage_amount"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !s.decode(w, r, &req) {
		return
	}

	pol, err := s.engine.PurchasePolicy(r.Context(), req.Participant, req.CoverageAmount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, policyResponse(pol))
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	participant, ok := s.participantParam(w, r)
	if !ok {
		return
	}

	pol, found := s.engine.GetPolicy(participant)
	if !found {
		s.writeJSON(w, http.StatusNotFound, errorBody("no policy for participant"))
		return
	}
	s.writeJSON(w, http.StatusOK, policyResponse(pol))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	participant, ok := s.participantParam(w, r)
	if !ok {
		return
	}

	refund, err := s.engine.CancelPolicy(r.Context(), participant)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"refund_amount": refund})
}

type fileClaimRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) handleFileClaim(w http.ResponseWriter, r *http.Request) {
	participant, ok := s.participantParam(w, r)
	if !ok {
		return
	}
	var req fileClaimRequest
	if !s.decode(w, r, &req) {
		return
	}

	claimID, err := s.engine.FileClaim(r.Context(), participant, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"claim_id": claimID})
}

func (s *Server) handleClaimsCount(w http.ResponseWriter, r *http.Request) {
	participant, ok := s.participantParam(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"count": s.engine.GetClaimsCount(participant)})
}

func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	participant, ok := s.participantParam(w, r)
	if !ok {
		return
	}
	claimID, ok := s.claimIDParam(w, r)
	if !ok {
		return
	}

	c, err := s.engine.GetClaim(participant, claimID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"claim_id":  claimID,
		"amount":    c.Amount,
		"file_date": c.FileDate,
		"status":    c.Status.String(),
	})
}

type decisionRequest struct {
	Approve bool `json:"approve"`
}

func (s *Server) handleProcessClaim(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	participant, ok := s.participantParam(w, r)
	if !ok {
		return
	}
	claimID, ok := s.claimIDParam(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if !s.decode(w, r, &req) {
		return
	}

	status, err := s.engine.ProcessClaim(r.Context(), caller, participant, claimID, req.Approve)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"claim_id": claimID, "status": status.String()})
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"balance":     s.engine.GetPoolBalance(),
		"fee_revenue": s.engine.GetFeeRevenue(),
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	p := s.engine.GetParams()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"claim_processing_fee": p.ClaimProcessingFee,
		"min_coverage_amount":  p.MinCoverageAmount,
		"max_coverage_amount":  p.MaxCoverageAmount,
	})
}

type setFeeRequest struct {
	Fee int64 `json:"fee"`
}

func (s *Server) handleSetFee(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req setFeeRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.SetClaimProcessingFee(r.Context(), caller, req.Fee); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"fee": req.Fee})
}

type setLimitsRequest struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

func (s *Server) handleSetLimits(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req setLimitsRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.SetCoverageLimits(r.Context(), caller, req.Min, req.Max); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"min": req.Min, "max": req.Max})
}

type withdrawRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req withdrawRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.WithdrawExcessFunds(r.Context(), caller, req.Amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"amount": req.Amount})
}

// --- helpers ---

type policyBody struct {
	Participant    uuid.UUID `json:"participant"`
	CoverageAmount int64     `json:"coverage_amount"`
	Premium        int64     `json:"premium"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	IsActive       bool      `json:"is_active"`
}

func policyResponse(pol state.Policy) policyBody {
	return policyBody{
		Participant:    pol.Participant,
		CoverageAmount: pol.CoverageAmount,
		Premium:        pol.Premium,
		StartDate:      pol.StartDate,
		EndDate:        pol.EndDate,
		IsActive:       pol.IsActive,
	}
}

func (s *Server) participantParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "participant")
	id, err := uuid.Parse(raw)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("invalid participant id %q", raw)))
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) claimIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "claimID")
	id, err := strconv.Atoi(raw)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("invalid claim id %q", raw)))
		return 0, false
	}
	return id, true
}

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(callerHeader)
	if raw == "" {
		s.writeJSON(w, http.StatusUnauthorized, errorBody(callerHeader+" header required"))
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("invalid caller id %q", raw)))
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// writeError maps engine sentinel errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, engine.ErrCoverageOutOfBounds),
		errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidCoverageLimits):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrNoActivePolicy),
		errors.Is(err, engine.ErrInvalidClaimID):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrPolicyAlreadyActive),
		errors.Is(err, engine.ErrClaimAlreadyProcessed),
		errors.Is(err, engine.ErrPolicyExpired),
		errors.Is(err, engine.ErrReviewWindowExpired),
		errors.Is(err, engine.ErrExceedsCoverage),
		errors.Is(err, engine.ErrInsufficientPool):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrPaymentFailed):
		status = http.StatusPaymentRequired
	case errors.Is(err, engine.ErrNotAdministrator):
		status = http.StatusForbidden
	}

	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("unclassified engine error")
	}
	s.writeJSON(w, status, errorBody(err.Error()))
}

// instrument records per-route request metrics.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
			s.metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
