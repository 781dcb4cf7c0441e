package bus

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectLogIngest carries JSON log records for the engine. Outbound subjects
// are owned by their publishers: alerting.FiredSubject and anomaly.EventSubject.
const SubjectLogIngest = "logs.ingest"

func connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

type Publisher struct {
	Conn *nats.Conn
}

func NewPublisher(url, name string) (*Publisher, error) {
	conn, err := connect(url, name)
	if err != nil {
		return nil, err
	}
	return &Publisher{Conn: conn}, nil
}

func (p *Publisher) Close() {
	if p.Conn != nil {
		p.Conn.Drain()
		p.Conn.Close()
	}
}

func (p *Publisher) Publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.Conn.Publish(subject, data)
}

type Subscriber struct {
	Conn *nats.Conn
}

func NewSubscriber(url, name string) (*Subscriber, error) {
	conn, err := connect(url, name)
	if err != nil {
		return nil, err
	}
	return &Subscriber{Conn: conn}, nil
}

func (s *Subscriber) Close() {
	if s.Conn != nil {
		s.Conn.Drain()
		s.Conn.Close()
	}
}

// Subscribe delivers raw message bodies. A non-empty queue group spreads
// messages across engine instances instead of fanning out to each.
func (s *Subscriber) Subscribe(subject, queue string, handler func(data []byte)) (*nats.Subscription, error) {
	cb := func(msg *nats.Msg) {
		handler(msg.Data)
	}
	if queue != "" {
		return s.Conn.QueueSubscribe(subject, queue, cb)
	}
	return s.Conn.Subscribe(subject, cb)
}
