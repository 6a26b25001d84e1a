// Package api provides the HTTP surface over the ecoboard core. The
// handlers are thin glue: request parsing, identity resolution, and typed
// error mapping around the app services.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecoboard/ecoboard/internal/app/approval"
	"github.com/ecoboard/ecoboard/internal/app/reward"
	"github.com/ecoboard/ecoboard/internal/app/shop"
	"github.com/ecoboard/ecoboard/internal/app/task"
	"github.com/ecoboard/ecoboard/internal/domain"
)

// Server is the ecoboard HTTP API server.
type Server struct {
	tasks          *task.Service
	votes          *approval.Service
	ledger         *reward.Ledger
	shop           *shop.Service
	verifier       TokenVerifier
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(tasks *task.Service, votes *approval.Service, ledger *reward.Ledger, shop *shop.Service, verifier TokenVerifier) *Server {
	return &Server{tasks: tasks, votes: votes, ledger: ledger, shop: shop, verifier: verifier}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(s.identityMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/tasks", s.handleCreateTask)
		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{id}", s.handleGetTask)
		r.Put("/tasks/{id}/status", s.handleSetTaskStatus)
		r.Put("/tasks/{id}/assignee", s.handleAssignTask)
		r.Post("/tasks/{id}/vote", s.handleVote)
		r.Get("/tasks/{id}/attachments/{attachmentID}", s.handleGetAttachment)

		r.Get("/account", s.handleGetAccount)
		r.Get("/account/events", s.handleAccountEvents)
		r.Post("/account/writeoff", s.handleWriteOff)
		r.Put("/accounts/{userID}/status", s.handleSetAccountStatus)

		r.Get("/shop/items", s.handleListItems)
		r.Post("/shop/items", s.handleCreateItem)
		r.Post("/shop/items/{id}/purchase", s.handlePurchase)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps a typed domain failure onto an HTTP status. None of
// the caller-correctable conditions are swallowed.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrApprovalNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrAttachmentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyVoted),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAccountNotActive),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrOutOfStock):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
