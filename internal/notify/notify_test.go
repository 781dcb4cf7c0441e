package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wneessen/go-mail"

	"logwatch-backend/internal/storage"
)

var firedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testRule(channel, target string) storage.AlertRule {
	return storage.AlertRule{
		ID:              "rule-1",
		Type:            storage.LogTypeError,
		Level:           storage.LevelCritical,
		ProjectID:       "checkout",
		ThresholdCount:  3,
		IntervalMinutes: 5,
		IsActive:        true,
		NotifyChannel:   channel,
		NotifyTarget:    target,
	}
}

type recordingSender struct {
	channel string
	err     error
	sent    []Payload
}

func (r *recordingSender) Channel() string { return r.channel }

func (r *recordingSender) Send(_ context.Context, payload Payload) error {
	r.sent = append(r.sent, payload)
	return r.err
}

func TestNewPayloadDetails(t *testing.T) {
	payload := NewPayload(testRule(storage.ChannelWebhook, ""), 4, firedAt)
	if payload.Details["interval"] != 5 || payload.Details["threshold"] != 3 || payload.Details["actualCount"] != 4 {
		t.Fatalf("unexpected details: %+v", payload.Details)
	}
}

func TestDispatcherRoutesByChannel(t *testing.T) {
	webhook := &recordingSender{channel: storage.ChannelWebhook}
	email := &recordingSender{channel: storage.ChannelEmail}
	d := NewDispatcher(webhook, email)

	if err := d.Send(context.Background(), NewPayload(testRule(storage.ChannelEmail, "ops@example.com"), 3, firedAt)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(email.sent) != 1 || len(webhook.sent) != 0 {
		t.Fatalf("expected only email sender to be used")
	}
}

func TestDispatcherUnknownChannel(t *testing.T) {
	d := NewDispatcher()
	err := d.Send(context.Background(), NewPayload(testRule("pager", ""), 3, firedAt))
	if !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("expected unknown channel, got %v", err)
	}
}

func TestDispatcherWrapsSenderError(t *testing.T) {
	failure := errors.New("boom")
	d := NewDispatcher(&recordingSender{channel: storage.ChannelSlack, err: failure})
	err := d.Send(context.Background(), NewPayload(testRule(storage.ChannelSlack, ""), 3, firedAt))
	if !errors.Is(err, failure) || !strings.Contains(err.Error(), "notify slack") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestWebhookSenderPostsEnvelope(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewWebhookSender(server.Client())
	if err := sender.Send(context.Background(), NewPayload(testRule(storage.ChannelWebhook, server.URL), 4, firedAt)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rule, ok := got["rule"].(map[string]any)
	if !ok || rule["id"] != "rule-1" || rule["level"] != "critical" || rule["projectId"] != "checkout" || rule["type"] != "error" {
		t.Fatalf("unexpected rule section: %+v", got["rule"])
	}
	if got["count"] != float64(4) || got["timestamp"] != "2024-05-01T12:00:00Z" {
		t.Fatalf("unexpected envelope: %+v", got)
	}
	details := got["details"].(map[string]any)
	if details["actualCount"] != float64(4) || details["threshold"] != float64(3) || details["interval"] != float64(5) {
		t.Fatalf("unexpected details: %+v", details)
	}
}

func TestWebhookEnvelopeOmitsUnsetLevel(t *testing.T) {
	rule := testRule(storage.ChannelWebhook, "")
	rule.Level = ""
	data, err := json.Marshal(buildWebhookEnvelope(NewPayload(rule, 1, firedAt)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), `"level"`) {
		t.Fatalf("expected level to be omitted, got %s", data)
	}
}

func TestWebhookSenderFailsOnNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewWebhookSender(server.Client()).Send(context.Background(), NewPayload(testRule(storage.ChannelWebhook, server.URL), 3, firedAt))
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestSlackSenderBlocks(t *testing.T) {
	var msg slackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&msg)
		_, _ = io.WriteString(w, "ok")
	}))
	defer server.Close()

	if err := NewSlackSender(server.Client()).Send(context.Background(), NewPayload(testRule(storage.ChannelSlack, server.URL), 7, firedAt)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Text != "Alert: error threshold exceeded" || len(msg.Blocks) != 3 {
		t.Fatalf("unexpected slack message: %+v", msg)
	}
	if msg.Blocks[0].Type != "header" || len(msg.Blocks[1].Fields) != 6 {
		t.Fatalf("unexpected block layout: %+v", msg.Blocks)
	}
	if msg.Blocks[1].Fields[4].Text != "*Count:*\n7" {
		t.Fatalf("unexpected count field: %q", msg.Blocks[1].Fields[4].Text)
	}
}

func TestSlackSenderRequires200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := NewSlackSender(server.Client()).Send(context.Background(), NewPayload(testRule(storage.ChannelSlack, server.URL), 3, firedAt))
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNoContent {
		t.Fatalf("expected status error for 204, got %v", err)
	}
}

func TestTelegramSenderPostsMarkdown(t *testing.T) {
	var path string
	var msg telegramMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&msg)
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer server.Close()

	sender := NewTelegramSender(server.Client(), "123:abc", server.URL)
	if err := sender.Send(context.Background(), NewPayload(testRule(storage.ChannelTelegram, "-100200"), 3, firedAt)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/bot123:abc/sendMessage" {
		t.Fatalf("unexpected path %q", path)
	}
	if msg.ChatID != "-100200" || msg.ParseMode != "Markdown" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if !strings.HasPrefix(msg.Text, "*Alert: error threshold exceeded*") || !strings.Contains(msg.Text, "*Count:* 3 (threshold 3)") {
		t.Fatalf("unexpected text: %q", msg.Text)
	}
}

func TestTelegramSenderEscapesMarkdown(t *testing.T) {
	rule := testRule(storage.ChannelTelegram, "1")
	rule.Type = storage.LogTypeCustomEvent
	text := buildTelegramText(NewPayload(rule, 1, firedAt))
	if !strings.Contains(text, `custom\_event`) {
		t.Fatalf("expected escaped underscore, got %q", text)
	}
}

func TestTelegramSenderWithoutTokenFailsFast(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	err := NewTelegramSender(server.Client(), "", server.URL).Send(context.Background(), NewPayload(testRule(storage.ChannelTelegram, "1"), 3, firedAt))
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
	if called {
		t.Fatalf("no request expected without a token")
	}
}

func TestTelegramSenderFailsOnNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	defer server.Close()

	err := NewTelegramSender(server.Client(), "t", server.URL).Send(context.Background(), NewPayload(testRule(storage.ChannelTelegram, "1"), 3, firedAt))
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestEmailSenderWithoutHostFailsFast(t *testing.T) {
	sender := NewEmailSender(SMTPConfig{})
	err := sender.Send(context.Background(), NewPayload(testRule(storage.ChannelEmail, "ops@example.com"), 3, firedAt))
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}

func TestEmailSenderDelivers(t *testing.T) {
	sender := NewEmailSender(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "alerts@example.com"})
	var delivered *mail.Msg
	sender.deliver = func(_ context.Context, msg *mail.Msg) error {
		delivered = msg
		return nil
	}
	if err := sender.Send(context.Background(), NewPayload(testRule(storage.ChannelEmail, "ops@example.com"), 3, firedAt)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delivered == nil {
		t.Fatalf("expected a message to be delivered")
	}
}

func TestEmailSenderRejectsBadRecipient(t *testing.T) {
	sender := NewEmailSender(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "alerts@example.com"})
	sender.deliver = func(context.Context, *mail.Msg) error {
		t.Fatalf("deliver must not be called")
		return nil
	}
	if err := sender.Send(context.Background(), NewPayload(testRule(storage.ChannelEmail, "not an address"), 3, firedAt)); err == nil {
		t.Fatalf("expected recipient error")
	}
}

func TestRenderEmailHTML(t *testing.T) {
	rule := testRule(storage.ChannelEmail, "ops@example.com")
	rule.ProjectID = "<script>"
	body, err := renderEmailHTML(NewPayload(rule, 9, firedAt))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		"<h2>Alert: error threshold exceeded</h2>",
		"<strong>Rule ID:</strong> rule-1",
		"<strong>Level:</strong> critical",
		"<strong>Count:</strong> 9",
		"<strong>Threshold:</strong> 3",
		"<strong>Interval:</strong> 5 minutes",
		"<strong>Timestamp:</strong> 2024-05-01T12:00:00Z",
		"<li>actualCount: 9</li>",
		"&lt;script&gt;",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in body:\n%s", want, body)
		}
	}
}
