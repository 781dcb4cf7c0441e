package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"logwatch-backend/internal/rules"
	"logwatch-backend/internal/storage"
)

// ruleRequest uses pointers so that updates only touch supplied fields.
type ruleRequest struct {
	Type            *string `json:"type"`
	Level           *string `json:"level"`
	ProjectID       *string `json:"projectId"`
	ThresholdCount  *int    `json:"thresholdCount"`
	IntervalMinutes *int    `json:"intervalMinutes"`
	IsActive        *bool   `json:"isActive"`
	NotifyChannel   *string `json:"notifyChannel"`
	NotifyTarget    *string `json:"notifyTarget"`
}

func (req ruleRequest) apply(rule storage.AlertRule) storage.AlertRule {
	if req.Type != nil {
		rule.Type = *req.Type
	}
	if req.Level != nil {
		rule.Level = *req.Level
	}
	if req.ProjectID != nil {
		rule.ProjectID = *req.ProjectID
	}
	if req.ThresholdCount != nil {
		rule.ThresholdCount = *req.ThresholdCount
	}
	if req.IntervalMinutes != nil {
		rule.IntervalMinutes = *req.IntervalMinutes
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.NotifyChannel != nil {
		rule.NotifyChannel = *req.NotifyChannel
	}
	if req.NotifyTarget != nil {
		rule.NotifyTarget = *req.NotifyTarget
	}
	return rule
}

func (h *Handler) handleRuleCreate(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	rule := req.apply(storage.AlertRule{IsActive: true, NotifyChannel: storage.ChannelWebhook})
	if verr := rules.ValidateAlertRule(rule); verr != nil {
		writeValidationError(w, verr)
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	created, err := h.Rules.CreateRule(ctx, rule)
	if err != nil {
		h.logError("failed to create alert rule", err)
		writeMessage(w, http.StatusInternalServerError, "failed to create alert rule")
		return
	}
	h.publish("rule.created", map[string]any{"rule_id": created.ID})
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleRuleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()
	list, err := h.Rules.ListRules(ctx)
	if err != nil {
		h.logError("failed to list alert rules", err)
		writeMessage(w, http.StatusInternalServerError, "failed to list alert rules")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleRuleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := h.context(r)
	defer cancel()
	rule, err := h.Rules.GetRule(ctx, id)
	if isNotFound(err) {
		writeMessage(w, http.StatusNotFound, "alert rule not found")
		return
	}
	if err != nil {
		h.logError("failed to fetch alert rule", err)
		writeMessage(w, http.StatusInternalServerError, "failed to fetch alert rule")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *Handler) handleRuleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	current, err := h.Rules.GetRule(ctx, id)
	if isNotFound(err) {
		writeMessage(w, http.StatusNotFound, "alert rule not found")
		return
	}
	if err != nil {
		h.logError("failed to fetch alert rule", err)
		writeMessage(w, http.StatusInternalServerError, "failed to fetch alert rule")
		return
	}
	rule := req.apply(current)
	if verr := rules.ValidateAlertRule(rule); verr != nil {
		writeValidationError(w, verr)
		return
	}
	updated, err := h.Rules.UpdateRule(ctx, rule)
	if isNotFound(err) {
		writeMessage(w, http.StatusNotFound, "alert rule not found")
		return
	}
	if err != nil {
		h.logError("failed to update alert rule", err)
		writeMessage(w, http.StatusInternalServerError, "failed to update alert rule")
		return
	}
	h.publish("rule.updated", map[string]any{"rule_id": id})
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleRuleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := h.context(r)
	defer cancel()
	err := h.Rules.DeleteRule(ctx, id)
	if isNotFound(err) {
		writeMessage(w, http.StatusNotFound, "alert rule not found")
		return
	}
	if err != nil {
		h.logError("failed to delete alert rule", err)
		writeMessage(w, http.StatusInternalServerError, "failed to delete alert rule")
		return
	}
	h.publish("rule.deleted", map[string]any{"rule_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
