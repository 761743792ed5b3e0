package llm

import (
	"context"
	"errors"
	"time"

	"doc-extractor/internal/kv"
)

// Provider tags reported by Client.Method.
const (
	MethodOpenAI     = "openai"
	MethodCompatible = "openai-compatible"
	MethodMock       = "mock"
)

var (
	// ErrMalformedModelOutput means the response held no parseable JSON array of pairs.
	ErrMalformedModelOutput = errors.New("malformed model output")
	// ErrProviderUnavailable means a provider was built without the credentials it needs.
	ErrProviderUnavailable = errors.New("llm provider unavailable")
)

// Client is the key-value extraction and chat capability set. Exactly one
// implementation is chosen at startup.
type Client interface {
	ExtractPairs(ctx context.Context, text string) ([]kv.KeyValue, error)
	ChatAnswer(ctx context.Context, query string, docs []DocumentContext) (string, error)
	Method() string
}

// DocumentContext is the trimmed view of a document handed to ChatAnswer.
type DocumentContext struct {
	ID            string
	Filename      string
	KeyValuePairs []kv.KeyValue
	ExtractedText string
	CreatedAt     time.Time
}
