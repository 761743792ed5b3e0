package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"doc-extractor/internal/llm"
	"doc-extractor/internal/metrics"
	"doc-extractor/internal/store"
)

const (
	contextDocuments = 20
	maxExcerptRunes  = 1000
)

// Response types.
const (
	TypeNoDocuments = "no_documents"
	TypeAIResponse  = "ai_response"
	TypeError       = "error"
)

const (
	answeredConfidence = 0.9
	failedConfidence   = 0.1

	noDocumentsMessage = "I don't have any documents to search through yet. Upload a document first and then ask me about it."
)

type Metadata struct {
	MatchedDocuments int   `json:"matchedDocuments"`
	ProcessingTimeMs int64 `json:"processingTime"`
}

type Response struct {
	Content    string   `json:"content"`
	Confidence float64  `json:"confidence"`
	Type       string   `json:"type"`
	Metadata   Metadata `json:"metadata"`
}

// Orchestrator answers questions about the most recent documents.
type Orchestrator struct {
	docs   store.DocumentStore
	client llm.Client
	log    *slog.Logger
}

func NewOrchestrator(docs store.DocumentStore, client llm.Client, log *slog.Logger) *Orchestrator {
	return &Orchestrator{docs: docs, client: client, log: log}
}

// Answer never returns an error: failures degrade to a TypeError response
// that carries the underlying message.
func (o *Orchestrator) Answer(ctx context.Context, query string) Response {
	start := time.Now()
	resp := o.answer(ctx, query)
	resp.Metadata.ProcessingTimeMs = time.Since(start).Milliseconds()
	metrics.ChatResponses.WithLabelValues(resp.Type).Inc()
	return resp
}

func (o *Orchestrator) answer(ctx context.Context, query string) Response {
	docs, err := o.docs.ListRecent(ctx, contextDocuments, true)
	if err != nil {
		o.log.Error("failed to load chat context", "err", err)
		return failure(err, 0)
	}
	if len(docs) == 0 {
		return Response{Content: noDocumentsMessage, Confidence: answeredConfidence, Type: TypeNoDocuments}
	}

	answer, err := o.client.ChatAnswer(ctx, query, summarize(docs))
	if err != nil {
		o.log.Warn("chat answer failed", "provider", o.client.Method(), "err", err)
		return failure(err, len(docs))
	}
	return Response{
		Content:    answer,
		Confidence: answeredConfidence,
		Type:       TypeAIResponse,
		Metadata:   Metadata{MatchedDocuments: len(docs)},
	}
}

func failure(err error, matched int) Response {
	return Response{
		Content:    fmt.Sprintf("I'm sorry, I encountered an error while processing your question: %s", err),
		Confidence: failedConfidence,
		Type:       TypeError,
		Metadata:   Metadata{MatchedDocuments: matched},
	}
}

func summarize(docs []store.Document) []llm.DocumentContext {
	out := make([]llm.DocumentContext, 0, len(docs))
	for _, d := range docs {
		name := d.OriginalFilename
		if name == "" {
			name = d.Filename
		}
		out = append(out, llm.DocumentContext{
			ID:            d.ID.String(),
			Filename:      name,
			KeyValuePairs: d.KeyValuePairs,
			ExtractedText: truncate(d.ExtractedText, maxExcerptRunes),
			CreatedAt:     d.CreatedAt,
		})
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// NewSessionID returns an opaque id of the form session_<unix millis>_<random>.
func NewSessionID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), suffix)
}
