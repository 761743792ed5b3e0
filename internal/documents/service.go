package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"doc-extractor/internal/blob"
	"doc-extractor/internal/events"
	"doc-extractor/internal/extract"
	"doc-extractor/internal/index"
	"doc-extractor/internal/kv"
	"doc-extractor/internal/llm"
	"doc-extractor/internal/metrics"
	"doc-extractor/internal/store"
)

const (
	DefaultListLimit   = 50
	DefaultSearchLimit = 50

	// extractedConfidence is reported for every successful upload; no real score is computed.
	extractedConfidence = 0.85

	publishAttempts = 3
	publishBackoff  = 200 * time.Millisecond
)

// Extractor turns a stored file into text.
type Extractor interface {
	ExtractText(ctx context.Context, path, mimeType string) (extract.Result, error)
}

// Upload is one file handed to Process.
type Upload struct {
	OriginalFilename string
	MimeType         string
	Body             io.Reader
}

// Processed is the summary returned after a successful upload.
type Processed struct {
	ID               uuid.UUID     `json:"id"`
	KeyValuePairs    []kv.KeyValue `json:"keyValuePairs"`
	Confidence       float64       `json:"confidence"`
	OriginalFilename string        `json:"originalFilename"`
	ProcessingTimeMs int64         `json:"processingTimeMs"`
}

// Service sequences storage, text extraction, key-value extraction, persistence
// and indexing for uploaded documents.
type Service struct {
	blobs     *blob.Store
	extractor Extractor
	llm       llm.Client
	docs      store.DocumentStore
	index     *index.Engine
	events    events.Publisher
	log       *slog.Logger
}

func NewService(blobs *blob.Store, extractor Extractor, client llm.Client, docs store.DocumentStore, idx *index.Engine, pub events.Publisher, log *slog.Logger) *Service {
	if pub == nil {
		pub = events.NewNoop()
	}
	return &Service{
		blobs:     blobs,
		extractor: extractor,
		llm:       client,
		docs:      docs,
		index:     idx,
		events:    pub,
		log:       log,
	}
}

// processingMethod names the OCR engine when OCR produced the text, and the
// model variant that produced the pairs otherwise.
func processingMethod(text extract.Result, llmMethod string) store.ProcessingMethod {
	switch engine := text.OCREngine(); engine {
	case extract.ProviderGoogleVision:
		return store.MethodGoogleVision
	case extract.ProviderTesseract:
		return store.MethodTesseract
	}
	return store.ProcessingMethod(llmMethod)
}

// Process stores the upload, extracts its pairs, persists the document and
// indexes it. The stored blob is removed on every exit path. Extraction
// failures are *extract.ExtractionError values.
//
// The document is persisted before indexing and the two steps are not atomic:
// an indexing failure leaves the document without entries and returns the error.
func (s *Service) Process(ctx context.Context, up Upload) (Processed, error) {
	start := time.Now()
	res, err := s.process(ctx, up, start)
	step := "none"
	if err != nil {
		step = string(extract.StepOf(err))
		if step == "" {
			step = "persist"
		}
	}
	metrics.DocumentsProcessed.WithLabelValues(metrics.Outcome(err), step).Inc()
	metrics.ProcessingDuration.WithLabelValues(up.MimeType).Observe(time.Since(start).Seconds())
	return res, err
}

func (s *Service) process(ctx context.Context, up Upload, start time.Time) (Processed, error) {
	name, size, err := s.blobs.Save(ctx, up.OriginalFilename, up.Body)
	if err != nil {
		return Processed{}, fmt.Errorf("store upload: %w", err)
	}
	defer func() {
		if err := s.blobs.Delete(context.WithoutCancel(ctx), name); err != nil {
			s.log.Warn("failed to remove uploaded file", "file", name, "err", err)
		}
	}()

	text, err := s.extractor.ExtractText(ctx, s.blobs.Path(name), up.MimeType)
	if err != nil {
		s.log.Warn("text extraction failed", "file", up.OriginalFilename, "step", extract.StepOf(err), "err", err)
		return Processed{}, err
	}

	pairs, err := s.llm.ExtractPairs(ctx, text.Text)
	if err != nil {
		return Processed{}, modelError(err)
	}
	if pairs == nil {
		pairs = []kv.KeyValue{}
	}

	now := time.Now().UTC()
	doc, err := s.docs.InsertDocument(ctx, store.Document{
		Filename:         name,
		OriginalFilename: up.OriginalFilename,
		KeyValuePairs:    pairs,
		Confidence:       extractedConfidence,
		ExtractedText:    text.Text,
		ProcessingMethod: processingMethod(text, s.llm.Method()),
		Metadata: store.DocumentMetadata{
			FileSize:         size,
			MimeType:         up.MimeType,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			ExtractedAt:      now,
			TextSource:       text.Source,
			Warnings:         text.Warnings,
		},
	})
	if err != nil {
		return Processed{}, fmt.Errorf("save document: %w", err)
	}

	n, err := s.index.Index(ctx, doc.ID, doc.Filename, doc.OriginalFilename, pairs, now)
	if err != nil {
		s.log.Error("document saved but indexing failed", "document_id", doc.ID, "err", err)
		return Processed{}, err
	}
	s.log.Info("document processed",
		"document_id", doc.ID,
		"file", doc.OriginalFilename,
		"source", text.Source,
		"pairs", len(pairs),
		"index_entries", n,
		"method", doc.ProcessingMethod,
	)

	s.publish(ctx, events.Event{
		Subject:          events.SubjectDocumentProcessed,
		DocumentID:       doc.ID,
		OriginalFilename: doc.OriginalFilename,
		IndexEntries:     n,
	})

	return Processed{
		ID:               doc.ID,
		KeyValuePairs:    pairs,
		Confidence:       doc.Confidence,
		OriginalFilename: doc.OriginalFilename,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func modelError(err error) error {
	if errors.Is(err, llm.ErrMalformedModelOutput) {
		return extract.NewError(extract.KindMalformedModelOutput, extract.StepKeyValueExtraction,
			"the model response did not contain key-value pairs", err)
	}
	return extract.NewError(extract.KindProviderUnavailable, extract.StepKeyValueExtraction,
		"key-value extraction failed", err)
}

func (s *Service) ListRecent(ctx context.Context, limit int) ([]store.Document, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	docs, err := s.docs.ListRecent(ctx, limit, false)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if docs == nil {
		docs = []store.Document{}
	}
	return docs, nil
}

// Get returns store.ErrNotFound for unknown ids.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (store.Document, error) {
	doc, err := s.docs.GetDocument(ctx, id)
	if err != nil {
		return store.Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

// Delete removes the document and then its index entries, returning how many
// entries were removed.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (int, error) {
	doc, err := s.docs.DeleteDocument(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("delete document %s: %w", id, err)
	}
	n, err := s.index.RemoveByDocument(ctx, id)
	if err != nil {
		return 0, err
	}
	s.log.Info("document deleted", "document_id", id, "index_entries", n)
	s.publish(ctx, events.Event{
		Subject:          events.SubjectDocumentDeleted,
		DocumentID:       id,
		OriginalFilename: doc.OriginalFilename,
		IndexEntries:     n,
	})
	return n, nil
}

func (s *Service) SearchByFilename(ctx context.Context, query string) ([]store.Document, error) {
	docs, err := s.docs.SearchByFilename(ctx, query, DefaultSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search documents by filename: %w", err)
	}
	if docs == nil {
		docs = []store.Document{}
	}
	return docs, nil
}

// publish is best effort; the document change has already been committed.
func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := events.PublishWithRetry(ctx, s.events, ev, publishAttempts, publishBackoff); err != nil {
		s.log.Warn("failed to publish document event", "subject", ev.Subject, "document_id", ev.DocumentID, "err", err)
	}
}
