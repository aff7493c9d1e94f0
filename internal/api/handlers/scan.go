package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/agilizei/irorganiza/internal/api/middleware"
	"github.com/agilizei/irorganiza/internal/jobs"
)

// CreateScan handles POST /api/scan: the captured document is queued for
// extraction and the client polls the returned job id for the draft.
func (h *Handler) CreateScan(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req struct {
		Data     string `json:"data"`
		MimeType string `json:"mime_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Data == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Document data is required")
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid document encoding")
		return
	}
	mime := req.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}

	job := &jobs.ScanReceiptJob{
		Owner:    owner,
		Data:     data,
		MimeType: mime,
	}
	if err := h.publisher.PublishScanReceipt(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to queue scan job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to queue scan")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// GetScan handles GET /api/scan/{id}. The draft appears on the job once
// extraction completes.
func (h *Handler) GetScan(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	job, err := h.jobStore.GetJob(r.Context(), r.PathValue("id"))
	if err != nil || job.Owner != owner {
		middleware.WriteError(w, http.StatusNotFound, "Scan not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}
