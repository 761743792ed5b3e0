package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"doc-extractor/internal/kv"
)

// ProcessingMethod records which backend produced a document's key-value pairs.
type ProcessingMethod string

const (
	MethodGoogleVision ProcessingMethod = "google-vision"
	MethodTesseract    ProcessingMethod = "tesseract"
	MethodOpenAI       ProcessingMethod = "openai"
	MethodCompatible   ProcessingMethod = "openai-compatible"
	MethodMock         ProcessingMethod = "mock"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var ErrNotFound = errors.New("not found")

type DocumentMetadata struct {
	FileSize         int64     `json:"fileSize"`
	MimeType         string    `json:"mimeType"`
	ProcessingTimeMs int64     `json:"processingTime"`
	ExtractedAt      time.Time `json:"extractedAt"`
	TextSource       string    `json:"textSource,omitempty"`
	Warnings         []string  `json:"warnings,omitempty"`
}

type Document struct {
	ID               uuid.UUID        `json:"id"`
	Filename         string           `json:"filename"`
	OriginalFilename string           `json:"originalFilename"`
	KeyValuePairs    []kv.KeyValue    `json:"keyValuePairs"`
	Confidence       float64          `json:"confidence"`
	ExtractedText    string           `json:"extractedText,omitempty"`
	ProcessingMethod ProcessingMethod `json:"processingMethod"`
	Metadata         DocumentMetadata `json:"metadata"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// IndexEntry is one denormalized (document, key, value) fact.
type IndexEntry struct {
	ID               uuid.UUID    `json:"id"`
	DocumentID       uuid.UUID    `json:"documentId"`
	Filename         string       `json:"filename"`
	OriginalFilename string       `json:"originalFilename"`
	Key              string       `json:"key"`
	NormalizedKey    string       `json:"normalizedKey"`
	Value            kv.Value     `json:"value"`
	ValueType        kv.ValueType `json:"valueType"`
	ExtractedAt      time.Time    `json:"extractedAt"`
}

type KeyStat struct {
	Key              string    `json:"key"`
	Count            int       `json:"count"`
	UniqueValueCount int       `json:"uniqueValueCount"`
	LastSeen         time.Time `json:"lastSeen"`
}

type MessageMetadata struct {
	Query            string  `json:"query,omitempty"`
	Type             string  `json:"type,omitempty"`
	Confidence       float64 `json:"confidence,omitempty"`
	ProcessingTimeMs int64   `json:"processingTime,omitempty"`
	MatchedDocuments int     `json:"matchedDocuments,omitempty"`
}

type Message struct {
	ID        uuid.UUID        `json:"id"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

type ChatSession struct {
	SessionID string    `json:"sessionId"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DocumentStore persists canonical documents.
type DocumentStore interface {
	// InsertDocument assigns the document an ID (and CreatedAt) and stores it.
	InsertDocument(ctx context.Context, doc Document) (Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (Document, error)
	// ListRecent returns documents newest first. When full is false the
	// extracted text is left out.
	ListRecent(ctx context.Context, limit int, full bool) ([]Document, error)
	// DeleteDocument returns the deleted document or ErrNotFound.
	DeleteDocument(ctx context.Context, id uuid.UUID) (Document, error)
	SearchByFilename(ctx context.Context, pattern string, limit int) ([]Document, error)
}

// IndexEntryStore persists the key-value index.
type IndexEntryStore interface {
	InsertEntries(ctx context.Context, entries []IndexEntry) (int, error)
	DeleteEntriesByDocument(ctx context.Context, docID uuid.UUID) (int, error)
	// FindEntriesByKey matches the raw key exactly, newest first.
	FindEntriesByKey(ctx context.Context, key string, limit int) ([]IndexEntry, error)
	// FindEntriesByNormalizedKey matches entries whose normalized key contains fragment, newest first.
	FindEntriesByNormalizedKey(ctx context.Context, fragment string, limit int) ([]IndexEntry, error)
	KeyStats(ctx context.Context, limit int) ([]KeyStat, error)
}

// ChatStore persists chat transcripts.
type ChatStore interface {
	// AppendMessages creates the session on first use and appends in order.
	AppendMessages(ctx context.Context, sessionID string, msgs []Message) error
	GetSession(ctx context.Context, sessionID string) (ChatSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Store bundles every persistence contract; Postgres and Memory implement all of them.
type Store interface {
	DocumentStore
	IndexEntryStore
	ChatStore
	Close() error
}

// UnmarshalJSON restores the Value through its persisted discriminant.
func (e *IndexEntry) UnmarshalJSON(data []byte) error {
	type alias IndexEntry
	aux := struct {
		*alias
		Value json.RawMessage `json:"value"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Value) == 0 || string(aux.Value) == "null" {
		e.Value = nil
		return nil
	}
	v, err := kv.Decode(e.ValueType, aux.Value)
	if err != nil {
		return err
	}
	e.Value = v
	return nil
}
