// Package notify delivers triggered alerts to external channels. Each channel
// is a Sender selected by the rule's notify channel; there is no fallback
// between channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"logwatch-backend/internal/storage"
)

var (
	ErrNotConfigured  = errors.New("channel not configured")
	ErrUnknownChannel = errors.New("unknown notify channel")
)

// StatusError reports a non-success HTTP response from a channel endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Payload is built per firing and discarded after the send.
type Payload struct {
	Rule      storage.AlertRule
	Count     int
	Timestamp time.Time
	Details   map[string]any
}

func NewPayload(rule storage.AlertRule, count int, at time.Time) Payload {
	return Payload{
		Rule:      rule,
		Count:     count,
		Timestamp: at,
		Details: map[string]any{
			"interval":    rule.IntervalMinutes,
			"threshold":   rule.ThresholdCount,
			"actualCount": count,
		},
	}
}

type Sender interface {
	Channel() string
	Send(ctx context.Context, payload Payload) error
}

type Dispatcher struct {
	senders map[string]Sender
}

func NewDispatcher(senders ...Sender) *Dispatcher {
	d := &Dispatcher{senders: map[string]Sender{}}
	for _, s := range senders {
		d.Register(s)
	}
	return d
}

// Register replaces any sender already bound to the same channel.
func (d *Dispatcher) Register(s Sender) {
	d.senders[s.Channel()] = s
}

func (d *Dispatcher) Send(ctx context.Context, payload Payload) error {
	channel := payload.Rule.NotifyChannel
	sender, ok := d.senders[channel]
	if !ok {
		return fmt.Errorf("notify %q: %w", channel, ErrUnknownChannel)
	}
	if err := sender.Send(ctx, payload); err != nil {
		return fmt.Errorf("notify %s: %w", channel, err)
	}
	return nil
}

const defaultHTTPTimeout = 10 * time.Second

func newHTTPClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// postJSON posts body as JSON and accepts any status for which ok returns true.
func postJSON(ctx context.Context, client *http.Client, url string, body any, ok func(status int) bool) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()
	if !ok(resp.StatusCode) {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func is2xx(status int) bool { return status >= 200 && status < 300 }

func is200(status int) bool { return status == http.StatusOK }
