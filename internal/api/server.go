// Package api provides the HTTP server for the JudgePay escrow ledger.
// It exposes the task lifecycle and the token ledger as JSON endpoints.
//
// The transport trusts the caller identity carried in each request body:
// authenticating that identity (signatures, sessions) belongs to the
// deployment in front of this service, not to the escrow core.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/judgepay-labs/judgepay/internal/app/token"
	"github.com/judgepay-labs/judgepay/internal/domain"
	"github.com/judgepay-labs/judgepay/internal/health"
	"github.com/judgepay-labs/judgepay/internal/infra/ledger"
	"github.com/judgepay-labs/judgepay/internal/infra/metrics"
)

// Server is the JudgePay HTTP API server.
type Server struct {
	ledger         *ledger.Engine
	tokens         *token.Service
	health         *health.Checker
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(l *ledger.Engine, t *token.Service) *Server {
	return &Server{ledger: l, tokens: t}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth attaches an invariant checker whose results /health reports.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Minute))
	r.Use(observeLatency)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if s.health == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		status, code := "ok", http.StatusOK
		if !s.health.IsHealthy() {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{
			"status": status,
			"checks": s.health.Statuses(),
		})
	})

	// Escrow task lifecycle
	r.Route("/api/tasks", func(r chi.Router) {
		r.Post("/", s.handleCreateTask)
		r.Get("/", s.handleListTasks)
		r.Get("/count", s.handleTaskCount)
		r.Get("/find", s.handleFindTask)
		r.Get("/{id}", s.handleGetTask)
		r.Get("/{id}/events", s.handleTaskEvents)
		r.Post("/{id}/claim", s.handleClaimTask)
		r.Post("/{id}/submit", s.handleSubmitWork)
		r.Post("/{id}/evaluate", s.handleEvaluate)
		r.Post("/{id}/refund", s.handleRefund)
	})

	// Token ledger (value-asset collaborator)
	r.Route("/api/token", func(r chi.Router) {
		r.Post("/approve", s.handleApprove)
		r.Post("/mint", s.handleMint)
		r.Get("/allowance", s.handleAllowance)
		r.Get("/balance", s.handleBalance)
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// observeLatency records request duration per matched route pattern.
func observeLatency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ─── Error Mapping ───────────────────────────────────────────────────────────
// Every domain error maps 1:1 to a stable code so the API client can
// reconstruct the typed failure on its side.

var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{domain.ErrTaskNotFound, "not_found", http.StatusNotFound},
	{domain.ErrInvalidState, "invalid_state", http.StatusConflict},
	{domain.ErrAlreadyClaimed, "already_claimed", http.StatusConflict},
	{domain.ErrExpired, "expired", http.StatusConflict},
	{domain.ErrUnauthorized, "unauthorized", http.StatusForbidden},
	{domain.ErrDuplicateVote, "duplicate_vote", http.StatusConflict},
	{domain.ErrLengthOutOfRange, "length_out_of_range", http.StatusUnprocessableEntity},
	{domain.ErrInsufficientAllowance, "insufficient_allowance", http.StatusPaymentRequired},
	{domain.ErrInsufficientFunds, "insufficient_funds", http.StatusPaymentRequired},
	{domain.ErrInvalidParameters, "invalid_parameters", http.StatusBadRequest},
}

// ErrorFor returns the domain error for a wire code, or nil if unknown.
func ErrorFor(code string) error {
	for _, m := range errorCodes {
		if m.code == code {
			return m.err
		}
	}
	return nil
}

func writeDomainError(w http.ResponseWriter, err error) {
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}
	writeError(w, http.StatusInternalServerError, "internal", err.Error())
}

// ─── JSON Helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", err.Error())
		return false
	}
	return true
}

func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameters", "task id must be an integer")
		return 0, false
	}
	return id, true
}
