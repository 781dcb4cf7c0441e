package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"logwatch-backend/internal/storage"
)

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

// SlackSender posts a Block Kit message to an incoming-webhook URL.
type SlackSender struct {
	client *http.Client
}

func NewSlackSender(client *http.Client) *SlackSender {
	return &SlackSender{client: newHTTPClient(client)}
}

func (s *SlackSender) Channel() string { return storage.ChannelSlack }

func (s *SlackSender) Send(ctx context.Context, payload Payload) error {
	return postJSON(ctx, s.client, payload.Rule.NotifyTarget, buildSlackMessage(payload), is200)
}

func buildSlackMessage(payload Payload) slackMessage {
	rule := payload.Rule
	title := alertSubject(rule)
	field := func(label string, value any) slackText {
		return slackText{Type: "mrkdwn", Text: fmt.Sprintf("*%s:*\n%v", label, value)}
	}
	return slackMessage{
		Text: title,
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: title}},
			{Type: "section", Fields: []slackText{
				field("Rule", rule.ID),
				field("Project", rule.ProjectID),
				field("Type", rule.Type),
				field("Level", levelOrAny(rule.Level)),
				field("Count", payload.Count),
				field("Threshold", rule.ThresholdCount),
			}},
			{Type: "context", Elements: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("Window: last %d minutes | %s", rule.IntervalMinutes, payload.Timestamp.UTC().Format(time.RFC3339))},
			}},
		},
	}
}

func alertSubject(rule storage.AlertRule) string {
	return fmt.Sprintf("Alert: %s threshold exceeded", rule.Type)
}

func levelOrAny(level string) string {
	if level == "" {
		return "any"
	}
	return level
}
