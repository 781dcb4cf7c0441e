package rules

import (
	"fmt"
	"net/mail"
	"net/url"
	"slices"
	"strings"

	"logwatch-backend/internal/storage"
)

type ErrorDetail struct {
	Field   string `json:"field"`
	Problem string `json:"problem"`
	Hint    string `json:"hint,omitempty"`
}

type ValidationError struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details"`
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		fields = append(fields, d.Field+" "+d.Problem)
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(fields, ", "))
}

func ValidateAlertRule(rule storage.AlertRule) *ValidationError {
	var details []ErrorDetail
	if !slices.Contains(storage.LogTypes, rule.Type) {
		details = append(details, ErrorDetail{Field: "type", Problem: "invalid", Hint: "One of " + strings.Join(storage.LogTypes, ", ")})
	}
	if rule.Level != "" && !slices.Contains(storage.Levels, rule.Level) {
		details = append(details, ErrorDetail{Field: "level", Problem: "invalid", Hint: "One of " + strings.Join(storage.Levels, ", ")})
	}
	if strings.TrimSpace(rule.ProjectID) == "" {
		details = append(details, ErrorDetail{Field: "projectId", Problem: "missing"})
	}
	if rule.ThresholdCount < 1 {
		details = append(details, ErrorDetail{Field: "thresholdCount", Problem: "out of range", Hint: "Must be >= 1"})
	}
	if rule.IntervalMinutes < 1 {
		details = append(details, ErrorDetail{Field: "intervalMinutes", Problem: "out of range", Hint: "Must be >= 1"})
	}
	if !slices.Contains(storage.NotifyChannels, rule.NotifyChannel) {
		details = append(details, ErrorDetail{Field: "notifyChannel", Problem: "invalid", Hint: "One of " + strings.Join(storage.NotifyChannels, ", ")})
	} else if detail := validateTarget(rule.NotifyChannel, rule.NotifyTarget); detail != nil {
		details = append(details, *detail)
	}
	if len(details) > 0 {
		return &ValidationError{Code: "ALERT_RULE_INVALID", Message: "alert rule failed validation", Details: details}
	}
	return nil
}

func validateTarget(channel, target string) *ErrorDetail {
	target = strings.TrimSpace(target)
	if target == "" {
		return &ErrorDetail{Field: "notifyTarget", Problem: "missing"}
	}
	switch channel {
	case storage.ChannelEmail:
		if _, err := mail.ParseAddress(target); err != nil {
			return &ErrorDetail{Field: "notifyTarget", Problem: "invalid", Hint: "Provide an email address"}
		}
	case storage.ChannelWebhook, storage.ChannelSlack:
		u, err := url.Parse(target)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ErrorDetail{Field: "notifyTarget", Problem: "invalid", Hint: "Provide an http(s) URL"}
		}
	}
	return nil
}

func ValidateLogRecord(rec storage.LogRecord) *ValidationError {
	var details []ErrorDetail
	if !slices.Contains(storage.LogTypes, rec.Type) {
		details = append(details, ErrorDetail{Field: "type", Problem: "invalid", Hint: "One of " + strings.Join(storage.LogTypes, ", ")})
	}
	if rec.Level != "" && !slices.Contains(storage.Levels, rec.Level) {
		details = append(details, ErrorDetail{Field: "level", Problem: "invalid", Hint: "One of " + strings.Join(storage.Levels, ", ")})
	}
	if strings.TrimSpace(rec.ProjectID) == "" {
		details = append(details, ErrorDetail{Field: "projectId", Problem: "missing"})
	}
	if len(details) > 0 {
		return &ValidationError{Code: "LOG_INVALID", Message: "log record failed validation", Details: details}
	}
	return nil
}

var eventTypes = []string{storage.EventTypeEvent, storage.EventTypeMetric}

func ValidateEvent(evt storage.Event) *ValidationError {
	var details []ErrorDetail
	if evt.Type == "" {
		details = append(details, ErrorDetail{Field: "type", Problem: "missing"})
	} else if !slices.Contains(eventTypes, evt.Type) {
		details = append(details, ErrorDetail{Field: "type", Problem: "invalid", Hint: "One of " + strings.Join(eventTypes, ", ")})
	}
	if strings.TrimSpace(evt.Name) == "" {
		details = append(details, ErrorDetail{Field: "name", Problem: "missing"})
	}
	if evt.Timestamp.IsZero() {
		details = append(details, ErrorDetail{Field: "timestamp", Problem: "missing"})
	}
	if evt.Type == storage.EventTypeMetric && evt.Value == nil {
		details = append(details, ErrorDetail{Field: "value", Problem: "missing", Hint: "Metrics need a numeric value"})
	}
	if len(details) > 0 {
		return &ValidationError{Code: "EVENT_INVALID", Message: "event failed validation", Details: details}
	}
	return nil
}
