package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/agilizei/irorganiza/internal/api/middleware"
)

// CreateDependent handles POST /api/dependents.
func (h *Handler) CreateDependent(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	d, err := h.ctrl.AddDependent(r.Context(), owner, req.Name)
	if err != nil {
		h.writeLifecycleError(w, err, "create dependent")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, d)
}

// DeleteDependent handles DELETE /api/dependents/{id}.
func (h *Handler) DeleteDependent(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	if err := h.ctrl.DeleteDependent(r.Context(), owner, r.PathValue("id")); err != nil {
		h.writeLifecycleError(w, err, "delete dependent")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDependents handles GET /api/dependents.
func (h *Handler) ListDependents(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	dependents, err := h.ctrl.ListDependents(r.Context(), owner)
	if err != nil {
		h.writeLifecycleError(w, err, "list dependents")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"dependents": dependents,
		"count":      len(dependents),
	})
}
