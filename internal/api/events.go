package api

import (
	"net/http"
	"time"

	"logwatch-backend/internal/rules"
	"logwatch-backend/internal/storage"
)

const eventListLimit = 100

type eventRequest struct {
	Type       string            `json:"type"`
	Name       string            `json:"name"`
	Properties map[string]any    `json:"properties"`
	Value      *float64          `json:"value"`
	Tags       map[string]string `json:"tags"`
	Timestamp  *time.Time        `json:"timestamp"`
}

func (h *Handler) handleEventTrack(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	evt := storage.Event{
		Type:       req.Type,
		Name:       req.Name,
		Properties: req.Properties,
		Value:      req.Value,
		Tags:       req.Tags,
		TraceID:    r.Header.Get("X-Trace-Id"),
		SessionID:  r.Header.Get("X-Session-Id"),
	}
	if req.Timestamp != nil {
		evt.Timestamp = *req.Timestamp
	}
	if verr := rules.ValidateEvent(evt); verr != nil {
		writeValidationError(w, verr)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	created, err := h.Events.CreateEvent(ctx, evt)
	if err != nil {
		h.logError("failed to track event", err)
		writeMessage(w, http.StatusInternalServerError, "failed to track event")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleEventList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	since, until, msg := parseDateRange(q)
	if msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	filter := storage.EventFilter{
		Type:      q.Get("type"),
		TraceID:   q.Get("traceId"),
		SessionID: q.Get("sessionId"),
		Since:     since,
		Until:     until,
	}
	ctx, cancel := h.context(r)
	defer cancel()
	events, err := h.Events.ListEvents(ctx, filter, eventListLimit)
	if err != nil {
		h.logError("failed to list events", err)
		writeMessage(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

