package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/wneessen/go-mail"

	"logwatch-backend/internal/storage"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// EmailSender renders an HTML summary and sends it over SMTP. Implicit TLS
// is used on port 465, opportunistic STARTTLS otherwise.
type EmailSender struct {
	cfg     SMTPConfig
	deliver func(ctx context.Context, msg *mail.Msg) error
}

func NewEmailSender(cfg SMTPConfig) *EmailSender {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	s := &EmailSender{cfg: cfg}
	s.deliver = s.dialAndSend
	return s
}

func (s *EmailSender) Channel() string { return storage.ChannelEmail }

func (s *EmailSender) Send(ctx context.Context, payload Payload) error {
	if s.cfg.Host == "" {
		return fmt.Errorf("smtp host missing: %w", ErrNotConfigured)
	}
	msg, err := s.buildMessage(payload)
	if err != nil {
		return err
	}
	return s.deliver(ctx, msg)
}

func (s *EmailSender) buildMessage(payload Payload) (*mail.Msg, error) {
	body, err := renderEmailHTML(payload)
	if err != nil {
		return nil, err
	}
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("sender address: %w", err)
	}
	if err := msg.To(payload.Rule.NotifyTarget); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(alertSubject(payload.Rule))
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextHTML, body)
	return msg, nil
}

func (s *EmailSender) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{mail.WithPort(s.cfg.Port)}
	if s.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	if s.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.cfg.Timeout))
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

type detailRow struct {
	Key   string
	Value any
}

type emailView struct {
	Subject   string
	RuleID    string
	Type      string
	Level     string
	ProjectID string
	Count     int
	Threshold int
	Interval  int
	Timestamp string
	Details   []detailRow
}

var emailTemplate = template.Must(template.New("alert").Parse(`<h2>{{.Subject}}</h2>
<p><strong>Rule ID:</strong> {{.RuleID}}</p>
<p><strong>Type:</strong> {{.Type}}</p>
<p><strong>Level:</strong> {{.Level}}</p>
<p><strong>Project:</strong> {{.ProjectID}}</p>
<p><strong>Count:</strong> {{.Count}}</p>
<p><strong>Threshold:</strong> {{.Threshold}}</p>
<p><strong>Interval:</strong> {{.Interval}} minutes</p>
<p><strong>Timestamp:</strong> {{.Timestamp}}</p>
{{- if .Details}}
<h3>Details</h3>
<ul>
{{- range .Details}}
<li>{{.Key}}: {{.Value}}</li>
{{- end}}
</ul>
{{- end}}
`))

func renderEmailHTML(payload Payload) (string, error) {
	rule := payload.Rule
	view := emailView{
		Subject:   alertSubject(rule),
		RuleID:    rule.ID,
		Type:      rule.Type,
		Level:     levelOrAny(rule.Level),
		ProjectID: rule.ProjectID,
		Count:     payload.Count,
		Threshold: rule.ThresholdCount,
		Interval:  rule.IntervalMinutes,
		Timestamp: payload.Timestamp.UTC().Format(time.RFC3339),
	}
	keys := make([]string, 0, len(payload.Details))
	for key := range payload.Details {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		view.Details = append(view.Details, detailRow{Key: key, Value: payload.Details[key]})
	}
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}
