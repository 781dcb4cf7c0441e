package storage

import "time"

const (
	LogTypeError       = "error"
	LogTypePerformance = "performance"
	LogTypeRequest     = "request"
	LogTypeCustomEvent = "custom_event"
)

const (
	LevelInfo     = "info"
	LevelWarn     = "warn"
	LevelError    = "error"
	LevelCritical = "critical"
)

const (
	ChannelEmail    = "email"
	ChannelWebhook  = "webhook"
	ChannelSlack    = "slack"
	ChannelTelegram = "telegram"
)

const AnomalyErrorSpike = "ERROR_SPIKE"

const (
	EventTypeEvent  = "event"
	EventTypeMetric = "metric"
)

var (
	LogTypes       = []string{LogTypeError, LogTypePerformance, LogTypeRequest, LogTypeCustomEvent}
	Levels         = []string{LevelInfo, LevelWarn, LevelError, LevelCritical}
	NotifyChannels = []string{ChannelEmail, ChannelWebhook, ChannelSlack, ChannelTelegram}
)

type AlertRule struct {
	ID              string     `json:"id"`
	Type            string     `json:"type"`
	Level           string     `json:"level,omitempty"`
	ProjectID       string     `json:"projectId"`
	ThresholdCount  int        `json:"thresholdCount"`
	IntervalMinutes int        `json:"intervalMinutes"`
	IsActive        bool       `json:"isActive"`
	LastEvaluatedAt *time.Time `json:"lastEvaluatedAt"`
	NotifyChannel   string     `json:"notifyChannel"`
	NotifyTarget    string     `json:"notifyTarget"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type LogRecord struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	ProjectID     string         `json:"projectId"`
	Timestamp     time.Time      `json:"timestamp"`
	Level         string         `json:"level,omitempty"`
	Event         string         `json:"event,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	Data          map[string]any `json:"data"`
	Fingerprint   string         `json:"fingerprint,omitempty"`
	SeverityScore int            `json:"severityScore"`
}

type Anomaly struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	ProjectID        string    `json:"projectId"`
	DetectedAt       time.Time `json:"detectedAt"`
	CurrentHourCount int       `json:"currentHourCount"`
	Average24hCount  float64   `json:"average24hCount"`
	Threshold        float64   `json:"threshold"`
}

// AnomalyPatch carries the fields of an explicit anomaly update; nil fields
// are left untouched.
type AnomalyPatch struct {
	Type             *string    `json:"type"`
	ProjectID        *string    `json:"projectId"`
	DetectedAt       *time.Time `json:"detectedAt"`
	CurrentHourCount *int       `json:"currentHourCount"`
	Average24hCount  *float64   `json:"average24hCount"`
	Threshold        *float64   `json:"threshold"`
}

func (p AnomalyPatch) Apply(a Anomaly) Anomaly {
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.ProjectID != nil {
		a.ProjectID = *p.ProjectID
	}
	if p.DetectedAt != nil {
		a.DetectedAt = *p.DetectedAt
	}
	if p.CurrentHourCount != nil {
		a.CurrentHourCount = *p.CurrentHourCount
	}
	if p.Average24hCount != nil {
		a.Average24hCount = *p.Average24hCount
	}
	if p.Threshold != nil {
		a.Threshold = *p.Threshold
	}
	return a
}

// LogFilter selects log records. Zero-valued fields do not constrain the
// query; Since is inclusive and Until exclusive.
type LogFilter struct {
	Type        string
	Level       string
	ProjectID   string
	Fingerprint string
	Since       time.Time
	Until       time.Time
}

type LogOrder string

const (
	OrderTimestampAsc  LogOrder = "timestamp_asc"
	OrderTimestampDesc LogOrder = "timestamp_desc"
	OrderSeverityDesc  LogOrder = "severity_desc"
)

// Event is a tracked product event or metric sample. Value is required for
// metrics and optional otherwise.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Name       string            `json:"name"`
	Properties map[string]any    `json:"properties,omitempty"`
	Value      *float64          `json:"value,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	TraceID    string            `json:"traceId,omitempty"`
	SessionID  string            `json:"sessionId,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

type EventFilter struct {
	Type      string
	TraceID   string
	SessionID string
	Since     time.Time
	Until     time.Time
}

type ErrorGroup struct {
	Fingerprint     string    `json:"fingerprint"`
	Count           int       `json:"count"`
	FirstOccurrence time.Time `json:"firstOccurrence"`
	LastOccurrence  time.Time `json:"lastOccurrence"`
}

type HourlyCount struct {
	Hour  time.Time `json:"hour"`
	Count int       `json:"count"`
}
