package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"doc-extractor/internal/retry"
)

// Subject enumerates document lifecycle notifications.
type Subject string

const (
	SubjectDocumentProcessed Subject = "documents.processed"
	SubjectDocumentDeleted   Subject = "documents.deleted"
)

// Event is published after the document store and index have been updated.
type Event struct {
	ID               uuid.UUID `json:"id"`
	Subject          Subject   `json:"subject"`
	DocumentID       uuid.UUID `json:"documentId"`
	OriginalFilename string    `json:"originalFilename,omitempty"`
	IndexEntries     int       `json:"indexEntries"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// Publisher exposes a minimal contract to announce document changes.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

var errSubjectRequired = errors.New("event subject required")

// PublishWithRetry attempts to publish with retries and capped exponential backoff.
func PublishWithRetry(ctx context.Context, p Publisher, ev Event, attempts int, base time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if err := p.Publish(ctx, ev); err == nil {
			return nil
		} else if attempt == attempts-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry.CappedBackoff(attempt, base, 5*time.Second)):
		}
	}
	return nil
}
