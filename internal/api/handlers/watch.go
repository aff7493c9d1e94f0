package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/agilizei/irorganiza/internal/api/middleware"
)

// Watch handles GET /api/expenses/watch: a server-sent-events stream where every
// event carries the full current state of one collection. Clients replace
// their local state wholesale on each event.
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.WriteError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	sess, err := h.ctrl.Watch(r.Context(), owner)
	if err != nil {
		h.writeLifecycleError(w, err, "watch")
		return
	}
	defer sess.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	writeEvent := func(event string, payload interface{}) bool {
		data, err := json.Marshal(payload)
		if err != nil {
			h.log.Error().Err(err).Str("event", event).Msg("Failed to encode watch event")
			return false
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-sess.Expenses:
			if !ok {
				return
			}
			if !writeEvent("expenses", snap) {
				return
			}
		case snap, ok := <-sess.Dependents:
			if !ok {
				return
			}
			if !writeEvent("dependents", snap) {
				return
			}
		}
	}
}
