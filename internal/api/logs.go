package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"logwatch-backend/internal/rules"
	"logwatch-backend/internal/storage"
)

const (
	defaultLogLimit   = 10
	maxLogLimit       = 500
	groupedErrorLimit = 10
	statsWindow       = 24 * time.Hour
)

type pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

func newPagination(total, page, limit int) pagination {
	return pagination{Total: total, Page: page, Limit: limit, Pages: (total + limit - 1) / limit}
}

type logRequest struct {
	Type      string         `json:"type"`
	ProjectID string         `json:"projectId"`
	Timestamp *time.Time     `json:"timestamp"`
	Level     string         `json:"level"`
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload"`
	Data      map[string]any `json:"data"`
}

func (h *Handler) handleLogCreate(w http.ResponseWriter, r *http.Request) {
	var req logRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	rec := storage.LogRecord{
		Type:      req.Type,
		ProjectID: req.ProjectID,
		Level:     req.Level,
		Event:     req.Event,
		Payload:   req.Payload,
		Data:      req.Data,
	}
	if req.Timestamp != nil {
		rec.Timestamp = *req.Timestamp
	}
	ctx, cancel := h.context(r)
	defer cancel()
	created, err := h.Ingest.Ingest(ctx, rec)
	var verr *rules.ValidationError
	if errors.As(err, &verr) {
		writeValidationError(w, verr)
		return
	}
	if err != nil {
		h.logError("failed to create log", err)
		writeMessage(w, http.StatusInternalServerError, "failed to create log")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func parseLogOrder(sortBy, sortOrder string) storage.LogOrder {
	switch {
	case sortBy == "timestamp" && strings.EqualFold(sortOrder, "asc"):
		return storage.OrderTimestampAsc
	case sortBy == "timestamp":
		return storage.OrderTimestampDesc
	default:
		return storage.OrderSeverityDesc
	}
}

func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

// parseDateRange reads startDate and endDate. The returned message is empty
// on success.
func parseDateRange(q url.Values) (since, until time.Time, message string) {
	since, err := parseTimeParam(q.Get("startDate"))
	if err != nil {
		return time.Time{}, time.Time{}, "invalid startDate"
	}
	until, err = parseTimeParam(q.Get("endDate"))
	if err != nil {
		return time.Time{}, time.Time{}, "invalid endDate"
	}
	return since, until, ""
}

func (h *Handler) handleLogList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	since, until, msg := parseDateRange(q)
	if msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	limit := defaultLogLimit
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeMessage(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(parsed, maxLogLimit)
	}
	page := 1
	if raw := q.Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeMessage(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = parsed
	}
	filter := storage.LogFilter{
		Type:      q.Get("type"),
		Level:     q.Get("level"),
		ProjectID: q.Get("projectId"),
		Since:     since,
		Until:     until,
	}
	ctx, cancel := h.context(r)
	defer cancel()
	total, err := h.Logs.CountLogs(ctx, filter)
	if err != nil {
		h.logError("failed to count logs", err)
		writeMessage(w, http.StatusInternalServerError, "failed to fetch logs")
		return
	}
	logs, err := h.Logs.FindLogs(ctx, filter, parseLogOrder(q.Get("sortBy"), q.Get("sortOrder")), limit, (page-1)*limit)
	if err != nil {
		h.logError("failed to find logs", err)
		writeMessage(w, http.StatusInternalServerError, "failed to fetch logs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": logs, "pagination": newPagination(total, page, limit)})
}

func (h *Handler) handleGroupedErrors(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()
	groups, err := h.Stats.GroupedErrors(ctx, time.Now().Add(-statsWindow), r.URL.Query().Get("projectId"), groupedErrorLimit)
	if err != nil {
		h.logError("failed to fetch grouped errors", err)
		writeMessage(w, http.StatusInternalServerError, "failed to fetch grouped errors")
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *Handler) handleErrorsPerHour(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()
	hours, err := h.Stats.ErrorsPerHour(ctx, time.Now().Add(-statsWindow), r.URL.Query().Get("projectId"))
	if err != nil {
		h.logError("failed to fetch errors per hour", err)
		writeMessage(w, http.StatusInternalServerError, "failed to fetch errors per hour")
		return
	}
	writeJSON(w, http.StatusOK, hours)
}
