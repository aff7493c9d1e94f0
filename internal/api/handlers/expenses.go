package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/agilizei/irorganiza/internal/api/middleware"
	"github.com/agilizei/irorganiza/internal/domain"
	"github.com/agilizei/irorganiza/internal/lifecycle"
)

// expenseRequest is the create/update payload: the editable draft fields
// plus an optional captured document.
type expenseRequest struct {
	domain.Draft
	Attachment         string `json:"attachment,omitempty"`
	AttachmentMimeType string `json:"attachment_mime_type,omitempty"`
}

// capture decodes the optional attachment into a lifecycle capture.
func (req expenseRequest) capture() (*lifecycle.Capture, error) {
	if req.Attachment == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(req.Attachment)
	if err != nil {
		return nil, err
	}
	mime := req.AttachmentMimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	return &lifecycle.Capture{Data: data, MimeType: mime}, nil
}

// CreateExpense handles POST /api/expenses.
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	capture, err := req.capture()
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid attachment encoding")
		return
	}

	e, err := h.ctrl.Create(r.Context(), owner, req.Draft, capture)
	if err != nil {
		h.writeLifecycleError(w, err, "create expense")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, e)
}

// UpdateExpense handles PUT /api/expenses/{id}.
func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	capture, err := req.capture()
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid attachment encoding")
		return
	}

	e, err := h.ctrl.Update(r.Context(), owner, id, req.Draft, capture)
	if err != nil {
		h.writeLifecycleError(w, err, "update expense")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, e)
}

// DeleteExpense handles DELETE /api/expenses/{id}.
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	if err := h.ctrl.Delete(r.Context(), owner, r.PathValue("id")); err != nil {
		h.writeLifecycleError(w, err, "delete expense")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListExpenses handles GET /api/expenses. An optional year query parameter
// restricts the list to that fiscal year.
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	expenses, err := h.ctrl.ListExpenses(r.Context(), owner)
	if err != nil {
		h.writeLifecycleError(w, err, "list expenses")
		return
	}

	if year := r.URL.Query().Get("year"); year != "" {
		filtered := expenses[:0]
		for _, e := range expenses {
			if strings.HasPrefix(e.Date, year+"-") {
				filtered = append(filtered, e)
			}
		}
		expenses = filtered
	}

	// Accumulated and per-category totals over the (filtered) list, summed
	// in decimal so repeated float amounts do not drift.
	total := decimal.Zero
	byCategory := make(map[domain.Category]decimal.Decimal)
	for _, e := range expenses {
		v := decimal.NewFromFloat(e.Amount)
		total = total.Add(v)
		byCategory[e.Category] = byCategory[e.Category].Add(v)
	}
	categoryTotals := make(map[domain.Category]float64, len(byCategory))
	for cat, v := range byCategory {
		categoryTotals[cat] = v.InexactFloat64()
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"expenses":        expenses,
		"count":           len(expenses),
		"total":           total.InexactFloat64(),
		"category_totals": categoryTotals,
	})
}

// GetExpense handles GET /api/expenses/{id}. The response says whether the
// attachment bytes are locally available; the bytes themselves come from
// the attachment endpoint.
func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	v, err := h.ctrl.Materialize(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		h.writeLifecycleError(w, err, "get expense")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"expense":              v.Expense,
		"attachment_available": v.Attachment != nil,
	})
}

// GetAttachment handles GET /api/expenses/{id}/attachment, serving the raw
// stored bytes. A record whose local bytes are gone answers 404 like one
// that never had any.
func (h *Handler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	v, err := h.ctrl.Materialize(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		h.writeLifecycleError(w, err, "get attachment")
		return
	}
	if v.Attachment == nil {
		middleware.WriteError(w, http.StatusNotFound, "No attachment available")
		return
	}

	mime := v.Expense.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mime)
	w.WriteHeader(http.StatusOK)
	w.Write(v.Attachment)
}
