package rules

import (
	"testing"
	"time"

	"logwatch-backend/internal/storage"
)

func validRule() storage.AlertRule {
	return storage.AlertRule{
		Type:            storage.LogTypeError,
		ProjectID:       "checkout",
		ThresholdCount:  3,
		IntervalMinutes: 5,
		NotifyChannel:   storage.ChannelWebhook,
		NotifyTarget:    "https://hooks.example.com/alert",
	}
}

func TestValidateAlertRule(t *testing.T) {
	if err := ValidateAlertRule(validRule()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateAlertRuleBounds(t *testing.T) {
	rule := validRule()
	rule.ThresholdCount = 0
	rule.IntervalMinutes = -1
	err := ValidateAlertRule(rule)
	if err == nil || len(err.Details) != 2 {
		t.Fatalf("expected two details, got %+v", err)
	}
	if err.Details[0].Field != "thresholdCount" || err.Details[1].Field != "intervalMinutes" {
		t.Fatalf("unexpected fields: %+v", err.Details)
	}
}

func TestValidateAlertRuleEnums(t *testing.T) {
	rule := validRule()
	rule.Type = "metric"
	rule.Level = "fatal"
	rule.NotifyChannel = "pager"
	err := ValidateAlertRule(rule)
	if err == nil || len(err.Details) != 3 {
		t.Fatalf("expected three details, got %+v", err)
	}
}

func TestValidateAlertRuleTargets(t *testing.T) {
	cases := []struct {
		channel string
		target  string
		valid   bool
	}{
		{storage.ChannelEmail, "ops@example.com", true},
		{storage.ChannelEmail, "ops", false},
		{storage.ChannelSlack, "https://hooks.slack.com/services/T/B/X", true},
		{storage.ChannelSlack, "hooks.slack.com", false},
		{storage.ChannelWebhook, "ftp://example.com", false},
		{storage.ChannelTelegram, "-100123", true},
		{storage.ChannelTelegram, " ", false},
	}
	for _, tc := range cases {
		rule := validRule()
		rule.NotifyChannel = tc.channel
		rule.NotifyTarget = tc.target
		err := ValidateAlertRule(rule)
		if (err == nil) != tc.valid {
			t.Fatalf("%s %q: expected valid=%v, got %v", tc.channel, tc.target, tc.valid, err)
		}
	}
}

func TestValidateLogRecord(t *testing.T) {
	if err := ValidateLogRecord(storage.LogRecord{Type: storage.LogTypeRequest, ProjectID: "p"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := ValidateLogRecord(storage.LogRecord{Type: "trace", Level: "loud"})
	if err == nil || len(err.Details) != 3 {
		t.Fatalf("expected three details, got %+v", err)
	}
	if err.Error() == "" {
		t.Fatalf("expected error text")
	}
}

func TestValidateEvent(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	value := 3.5
	if err := ValidateEvent(storage.Event{Type: storage.EventTypeEvent, Name: "signup", Timestamp: at}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateEvent(storage.Event{Type: storage.EventTypeMetric, Name: "latency", Value: &value, Timestamp: at}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := ValidateEvent(storage.Event{Type: storage.EventTypeMetric, Name: "latency", Timestamp: at})
	if err == nil || len(err.Details) != 1 || err.Details[0].Field != "value" {
		t.Fatalf("expected missing value, got %+v", err)
	}
	err = ValidateEvent(storage.Event{Type: "click"})
	if err == nil || len(err.Details) != 3 || err.Code != "EVENT_INVALID" {
		t.Fatalf("expected type, name and timestamp details, got %+v", err)
	}
}
