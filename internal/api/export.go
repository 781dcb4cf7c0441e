package api

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"time"

	"logwatch-backend/internal/storage"
)

// maxExportRows caps a single export so one request cannot load the whole
// log table into memory.
const maxExportRows = 50000

var exportHeader = []string{"id", "type", "data", "timestamp", "projectId", "payload"}

func (h *Handler) handleLogExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := q.Get("format")
	if format != "csv" && format != "json" {
		writeMessage(w, http.StatusBadRequest, "invalid format, use csv or json")
		return
	}
	since, until, msg := parseDateRange(q)
	if msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	filter := storage.LogFilter{
		Type:      q.Get("type"),
		ProjectID: q.Get("projectId"),
		Since:     since,
		Until:     until,
	}
	ctx, cancel := h.context(r)
	defer cancel()
	logs, err := h.Logs.FindLogs(ctx, filter, storage.OrderTimestampDesc, maxExportRows, 0)
	if err != nil {
		h.logError("failed to export logs", err)
		writeMessage(w, http.StatusInternalServerError, "failed to export logs")
		return
	}
	if format == "json" {
		writeJSON(w, http.StatusOK, logs)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=logs.csv")
	w.WriteHeader(http.StatusOK)
	cw := csv.NewWriter(w)
	_ = cw.Write(exportHeader)
	for _, rec := range logs {
		_ = cw.Write([]string{
			rec.ID,
			rec.Type,
			jsonCell(rec.Data),
			rec.Timestamp.UTC().Format(time.RFC3339Nano),
			rec.ProjectID,
			jsonCell(rec.Payload),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logError("failed to write csv export", err)
	}
}

// jsonCell encodes v for a CSV cell; a nil map becomes an empty cell.
func jsonCell(v map[string]any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
