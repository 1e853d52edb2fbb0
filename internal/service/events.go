package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Event subjects published after successful writes.
const (
	SubjectYearRolledOver     = "records.years.rolled_over"
	SubjectMarksImported      = "records.marks.imported"
	SubjectMonitoringImported = "records.monitoring.imported"
	SubjectStudentsImported   = "records.students.imported"
)

// DomainEvent is the envelope published for every subject.
type DomainEvent struct {
	Subject    string      `json:"subject"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       interface{} `json:"data"`
}

// EventPublisher announces completed imports and rollovers to other services.
// Publishing is best effort and never fails the originating request.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data interface{})
}

type natsEventPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
	now    func() time.Time
}

// NewEventPublisher publishes through NATS, or discards events when conn is nil.
func NewEventPublisher(conn *nats.Conn, logger zerolog.Logger) EventPublisher {
	if conn == nil {
		return noopEventPublisher{}
	}
	return &natsEventPublisher{
		conn:   conn,
		logger: logger.With().Str("component", "event_publisher").Logger(),
		now:    time.Now,
	}
}

func (p *natsEventPublisher) Publish(ctx context.Context, subject string, data interface{}) {
	payload, err := encodeEvent(subject, p.now(), data)
	if err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to encode event")
		return
	}

	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
	}
}

func encodeEvent(subject string, at time.Time, data interface{}) ([]byte, error) {
	return json.Marshal(DomainEvent{Subject: subject, OccurredAt: at.UTC(), Data: data})
}

type noopEventPublisher struct{}

func (noopEventPublisher) Publish(context.Context, string, interface{}) {}
