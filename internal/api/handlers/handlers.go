// Package handlers implements the HTTP surface over the record lifecycle:
// expense and dependent CRUD, scan jobs, backup transfer, and the live
// watch stream.
package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/agilizei/irorganiza/internal/api/middleware"
	"github.com/agilizei/irorganiza/internal/backup"
	"github.com/agilizei/irorganiza/internal/domain"
	"github.com/agilizei/irorganiza/internal/jobs"
	"github.com/agilizei/irorganiza/internal/lifecycle"
	"github.com/agilizei/irorganiza/internal/recordstore"
)

// Handler carries the dependencies shared by every endpoint.
type Handler struct {
	ctrl      *lifecycle.Controller
	publisher jobs.Publisher
	jobStore  jobs.JobStore
	log       zerolog.Logger
}

// New creates a Handler.
func New(ctrl *lifecycle.Controller, publisher jobs.Publisher, jobStore jobs.JobStore, log zerolog.Logger) *Handler {
	return &Handler{ctrl: ctrl, publisher: publisher, jobStore: jobStore, log: log}
}

// Routes registers every endpoint on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/expenses", h.ListExpenses)
	mux.HandleFunc("POST /api/expenses", h.CreateExpense)
	mux.HandleFunc("GET /api/expenses/watch", h.Watch)
	mux.HandleFunc("GET /api/expenses/{id}", h.GetExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", h.UpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", h.DeleteExpense)
	mux.HandleFunc("GET /api/expenses/{id}/attachment", h.GetAttachment)

	mux.HandleFunc("GET /api/dependents", h.ListDependents)
	mux.HandleFunc("POST /api/dependents", h.CreateDependent)
	mux.HandleFunc("DELETE /api/dependents/{id}", h.DeleteDependent)

	mux.HandleFunc("POST /api/scan", h.CreateScan)
	mux.HandleFunc("GET /api/scan/{id}", h.GetScan)

	mux.HandleFunc("GET /api/backup", h.ExportBackup)
	mux.HandleFunc("POST /api/backup", h.ImportBackup)

	mux.HandleFunc("GET /health", h.Health)

	return mux
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// owner resolves the request identity, writing a 401 when absent.
func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "No identity resolved")
	}
	return owner, ok
}

// writeLifecycleError maps controller errors onto the response taxonomy:
// rejected input is 422, a malformed backup is 400, unknown ids are 404,
// and anything else means the remote store let us down.
func (h *Handler) writeLifecycleError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, domain.ErrInvalidDraft):
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, lifecycle.ErrEmptyName):
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, backup.ErrBadBackup):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, recordstore.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Record not found")
	case errors.Is(err, lifecycle.ErrNoIdentity):
		middleware.WriteError(w, http.StatusUnauthorized, "No identity resolved")
	default:
		h.log.Error().Err(err).Str("action", action).Msg("Record store operation failed")
		middleware.WriteError(w, http.StatusBadGateway, "Record store unavailable")
	}
}
