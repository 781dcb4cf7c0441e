package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"logwatch-backend/internal/storage"
)

func (h *Handler) handleAnomalyList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()
	list, err := h.Anomalies.GetAnomalies(ctx)
	if err != nil {
		h.logError("failed to fetch anomalies", err)
		writeMessage(w, http.StatusInternalServerError, "failed to fetch anomalies")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleAnomalyCreate(w http.ResponseWriter, r *http.Request) {
	var req storage.AnomalyPatch
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CurrentHourCount == nil || req.Average24hCount == nil || req.Threshold == nil {
		writeMessage(w, http.StatusBadRequest, "currentHourCount, average24hCount and threshold are required")
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	created, err := h.Anomalies.CreateAnomaly(ctx, req.Apply(storage.Anomaly{}))
	if err != nil {
		h.logError("failed to create anomaly", err)
		writeMessage(w, http.StatusInternalServerError, "failed to create anomaly")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleAnomalyUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req storage.AnomalyPatch
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	updated, err := h.Anomalies.UpdateAnomaly(ctx, id, req)
	if isNotFound(err) {
		writeMessage(w, http.StatusNotFound, "anomaly not found")
		return
	}
	if err != nil {
		h.logError("failed to update anomaly", err)
		writeMessage(w, http.StatusInternalServerError, "failed to update anomaly")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
