// Package api exposes the booking core over HTTP for the customer and walker
// surfaces. Authentication happens upstream; the gateway forwards the caller's
// account id in X-Account-ID.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"walkpack/internal/access"
	"walkpack/internal/metrics"
	"walkpack/internal/model"
)

const (
	headerAccountID = "X-Account-ID"
	headerAPIKey    = "X-Api-Key"
)

// Config configures the HTTP server.
type Config struct {
	Port         int
	APIKey       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// HTTPServer serves the JSON API.
type HTTPServer struct {
	server *http.Server
	deps   Deps
	apiKey string
	logger zerolog.Logger
}

// NewHTTPServer wires routes onto a new server.
func NewHTTPServer(cfg Config, deps Deps, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &HTTPServer{
		deps:   deps,
		apiKey: cfg.APIKey,
		logger: logger.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Str("addr", s.server.Addr).Msg("API server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	handle := func(pattern, route string, h http.HandlerFunc) {
		mux.Handle(pattern, s.withAPIKey(s.withLogging(route, h)))
	}

	handle("GET /api/walk-blocks/{id}", "walk_block", s.handleWalkBlock)
	handle("GET /api/walk-blocks/{id}/availability", "availability", s.handleAvailability)
	handle("GET /api/walk-blocks/{id}/pack", "pack", s.handlePack)
	handle("POST /api/walk-blocks/{id}/bookings", "request_booking", s.handleRequestBooking)
	handle("GET /api/walk-blocks/{id}/bookings", "block_bookings", s.handleBlockBookings)
	handle("POST /api/walk-blocks/{id}/admit", "admit_pending", s.handleAdmitPending)

	handle("POST /api/bookings/{id}/approve", "approve", s.handleDecision(model.StatusApproved))
	handle("POST /api/bookings/{id}/reject", "reject", s.handleDecision(model.StatusRejected))

	handle("GET /api/me/bookings", "my_bookings", s.handleMyBookings)
	handle("GET /api/me/dogs", "my_dogs", s.handleMyDogs)

	handle("GET /api/walkers/me/dashboard", "walker_dashboard", s.handleWalkerDashboard)
	handle("GET /api/walkers/me/bookings", "walker_bookings", s.handleWalkerBookings)
	handle("GET /api/walkers/me/dogs", "walker_dogs", s.handleWalkerDogs)
	handle("GET /api/walkers/me/walk-blocks", "walker_walk_blocks", s.handleWalkerWalkBlocks)
	handle("GET /api/walkers/me/export", "walker_export", s.handleWalkerExport)
}

// withAPIKey rejects requests without the configured key. An empty key
// disables the check.
func (s *HTTPServer) withAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			got := r.Header.Get(headerAPIKey)
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.apiKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing API key")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *HTTPServer) withLogging(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		metrics.IncHTTPRequest(route, strconv.Itoa(rec.status))
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", rec.status).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("request completed")
	}
}

// principal reads the caller identity set by the gateway.
func principal(r *http.Request) access.Principal {
	return access.Customer(r.Header.Get(headerAccountID))
}

// requireAccount writes 401 and returns false when no account id is present.
func requireAccount(w http.ResponseWriter, r *http.Request) (access.Principal, bool) {
	p := principal(r)
	if p.AccountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", headerAccountID+" header is required")
		return p, false
	}
	return p, true
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// statusFor maps the error taxonomy onto HTTP.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrEligibility):
		return http.StatusForbidden, "meet_and_greet_required"
	case errors.Is(err, model.ErrDuplicateBooking):
		return http.StatusConflict, "duplicate_booking"
	case errors.Is(err, model.ErrCapacityExceeded):
		return http.StatusConflict, "fully_booked"
	case errors.Is(err, model.ErrStaleBooking):
		return http.StatusConflict, "stale_booking"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrWalkBlockInPast):
		return http.StatusUnprocessableEntity, "walk_block_in_past"
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, model.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	default:
		return http.StatusServiceUnavailable, "storage_unavailable"
	}
}

func (s *HTTPServer) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusServiceUnavailable {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		message = "temporarily unavailable, retry the request"
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, code, message)
}
