package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"logwatch-backend/internal/storage"
)

const DefaultTelegramAPI = "https://api.telegram.org"

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// TelegramSender posts to the Bot API sendMessage method with the rule's
// target as chat id.
type TelegramSender struct {
	client  *http.Client
	token   string
	baseURL string
}

func NewTelegramSender(client *http.Client, token, baseURL string) *TelegramSender {
	if baseURL == "" {
		baseURL = DefaultTelegramAPI
	}
	return &TelegramSender{client: newHTTPClient(client), token: token, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *TelegramSender) Channel() string { return storage.ChannelTelegram }

func (s *TelegramSender) Send(ctx context.Context, payload Payload) error {
	if s.token == "" {
		return fmt.Errorf("telegram bot token missing: %w", ErrNotConfigured)
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	msg := telegramMessage{
		ChatID:    payload.Rule.NotifyTarget,
		Text:      buildTelegramText(payload),
		ParseMode: "Markdown",
	}
	return postJSON(ctx, s.client, url, msg, is200)
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func buildTelegramText(payload Payload) string {
	rule := payload.Rule
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n\n", markdownEscaper.Replace(alertSubject(rule)))
	fmt.Fprintf(&b, "*Rule:* %s\n", markdownEscaper.Replace(rule.ID))
	fmt.Fprintf(&b, "*Project:* %s\n", markdownEscaper.Replace(rule.ProjectID))
	fmt.Fprintf(&b, "*Level:* %s\n", markdownEscaper.Replace(levelOrAny(rule.Level)))
	fmt.Fprintf(&b, "*Count:* %d (threshold %d)\n", payload.Count, rule.ThresholdCount)
	fmt.Fprintf(&b, "*Window:* last %d minutes\n", rule.IntervalMinutes)
	fmt.Fprintf(&b, "*Time:* %s", payload.Timestamp.UTC().Format(time.RFC3339))
	return b.String()
}
