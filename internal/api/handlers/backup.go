package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/agilizei/irorganiza/internal/api/middleware"
	"github.com/agilizei/irorganiza/internal/backup"
)

// ExportBackup handles GET /api/backup: a whole-account snapshot, minus
// attachment bytes.
func (h *Handler) ExportBackup(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	doc, err := h.ctrl.Export(r.Context(), owner)
	if err != nil {
		h.writeLifecycleError(w, err, "export backup")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, doc)
}

// ImportBackup handles POST /api/backup. The document is validated
// wholesale before any record lands.
func (h *Handler) ImportBackup(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var doc backup.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid backup document")
		return
	}

	if err := h.ctrl.Import(r.Context(), owner, doc); err != nil {
		h.writeLifecycleError(w, err, "import backup")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
