package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"doc-extractor/internal/metrics"
)

// NewNATS constructs a publisher on top of an established NATS connection.
func NewNATS(log *slog.Logger, nc *nats.Conn) Publisher {
	return &natsPublisher{log: log, nc: nc}
}

type natsPublisher struct {
	log *slog.Logger
	nc  *nats.Conn
}

func (p *natsPublisher) Publish(_ context.Context, ev Event) error {
	body, err := encode(ev)
	if err != nil {
		return err
	}
	err = p.nc.Publish(string(ev.Subject), body)
	metrics.EventsPublished.WithLabelValues(string(ev.Subject), metrics.Outcome(err)).Inc()
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Subject, err)
	}
	p.log.Debug("event published", "subject", ev.Subject, "document_id", ev.DocumentID)
	return nil
}

// Close flushes pending messages before closing the connection.
func (p *natsPublisher) Close() error {
	if err := p.nc.FlushTimeout(2 * time.Second); err != nil {
		p.log.Warn("failed to flush NATS before close", "err", err)
	}
	p.nc.Close()
	return nil
}

func encode(ev Event) ([]byte, error) {
	if ev.Subject == "" {
		return nil, errSubjectRequired
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	return json.Marshal(ev)
}
