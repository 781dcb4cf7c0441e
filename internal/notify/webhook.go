package notify

import (
	"context"
	"net/http"
	"time"

	"logwatch-backend/internal/storage"
)

type webhookRule struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Level     string `json:"level,omitempty"`
	ProjectID string `json:"projectId"`
}

type webhookEnvelope struct {
	Rule      webhookRule    `json:"rule"`
	Count     int            `json:"count"`
	Timestamp string         `json:"timestamp"`
	Details   map[string]any `json:"details"`
}

// WebhookSender posts a JSON envelope to the rule's target URL.
type WebhookSender struct {
	client *http.Client
}

func NewWebhookSender(client *http.Client) *WebhookSender {
	return &WebhookSender{client: newHTTPClient(client)}
}

func (s *WebhookSender) Channel() string { return storage.ChannelWebhook }

func (s *WebhookSender) Send(ctx context.Context, payload Payload) error {
	return postJSON(ctx, s.client, payload.Rule.NotifyTarget, buildWebhookEnvelope(payload), is2xx)
}

func buildWebhookEnvelope(payload Payload) webhookEnvelope {
	return webhookEnvelope{
		Rule: webhookRule{
			ID:        payload.Rule.ID,
			Type:      payload.Rule.Type,
			Level:     payload.Rule.Level,
			ProjectID: payload.Rule.ProjectID,
		},
		Count:     payload.Count,
		Timestamp: payload.Timestamp.UTC().Format(time.RFC3339Nano),
		Details:   payload.Details,
	}
}
