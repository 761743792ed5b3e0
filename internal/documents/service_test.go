package documents

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"doc-extractor/internal/blob"
	"doc-extractor/internal/cache"
	"doc-extractor/internal/events"
	"doc-extractor/internal/extract"
	"doc-extractor/internal/extract/extracttest"
	"doc-extractor/internal/index"
	"doc-extractor/internal/kv"
	"doc-extractor/internal/llm"
	"doc-extractor/internal/store"
)

type textLayer string

func (t textLayer) Parse([]byte) (string, int, error) { return string(t), 1, nil }

type noRunner struct{}

func (noRunner) Run(context.Context, string, ...string) ([]byte, []byte, error) {
	return nil, nil, errors.New("not installed")
}

func (noRunner) LookPath(string) (string, error) { return "", errors.New("not installed") }

type fixture struct {
	svc    *Service
	fs     afero.Fs
	store  *store.MemoryStore
	index  *index.Engine
	events *events.MockPublisher
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, layer string, client llm.Client) fixture {
	t.Helper()
	return newFixtureWith(t, extract.Config{Parser: textLayer(layer)}, nil, client)
}

func newFixtureWith(t *testing.T, cfg extract.Config, providers []extract.OCRProvider, client llm.Client) fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	blobs, err := blob.New(fs, "/uploads")
	require.NoError(t, err)

	pipeline := extract.NewPipeline(cfg, fs, providers, noRunner{}, testLogger())
	st := store.NewMemory()
	idx := index.NewEngine(st, cache.NewNoOpCache(), 0, testLogger())
	pub := new(events.MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	return fixture{
		svc:    NewService(blobs, pipeline, client, st, idx, pub, testLogger()),
		fs:     fs,
		store:  st,
		index:  idx,
		events: pub,
	}
}

func pdfUpload(name string) Upload {
	return Upload{OriginalFilename: name, MimeType: "application/pdf", Body: strings.NewReader("%PDF-1.4\nfake")}
}

func assertNoBlobs(t *testing.T, fs afero.Fs) {
	t.Helper()
	entries, err := afero.ReadDir(fs, "/uploads")
	require.NoError(t, err)
	assert.Empty(t, entries, "uploaded blobs must be removed")
}

func TestProcessSearchDeleteEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "Name: John Doe\nEmail: john@example.com", llm.NewStubClient())

	res, err := f.svc.Process(ctx, pdfUpload("contact.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []kv.KeyValue{
		{Key: "Name", Value: "John Doe"},
		{Key: "Email", Value: "john@example.com"},
	}, res.KeyValuePairs)
	assert.Equal(t, 0.85, res.Confidence)
	assert.Equal(t, "contact.pdf", res.OriginalFilename)
	assertNoBlobs(t, f.fs)

	doc, err := f.svc.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, store.MethodMock, doc.ProcessingMethod)
	assert.Equal(t, extract.SourcePDFText, doc.Metadata.TextSource)
	assert.Equal(t, "application/pdf", doc.Metadata.MimeType)
	assert.Equal(t, int64(13), doc.Metadata.FileSize)

	partial, err := f.index.SearchPartial(ctx, "email", 0)
	require.NoError(t, err)
	require.Len(t, partial.Results, 1)
	assert.Equal(t, res.ID, partial.Results[0].DocumentID)
	assert.Equal(t, "Email", partial.Results[0].Matches[0].Key)

	removed, err := f.svc.Delete(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	partial, err = f.index.SearchPartial(ctx, "email", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, partial.TotalMatches)

	_, err = f.svc.Get(ctx, res.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	f.events.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(ev events.Event) bool {
		return ev.Subject == events.SubjectDocumentProcessed && ev.DocumentID == res.ID && ev.IndexEntries == 2
	}))
	f.events.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(ev events.Event) bool {
		return ev.Subject == events.SubjectDocumentDeleted && ev.DocumentID == res.ID
	}))
}

func TestProcessScannedPDFWithoutFallback(t *testing.T) {
	f := newFixture(t, "   ", llm.NewStubClient())

	_, err := f.svc.Process(context.Background(), pdfUpload("scan.pdf"))
	require.Error(t, err)
	assert.Equal(t, extract.KindScannedPDFUnsupported, extract.KindOf(err))
	assert.Equal(t, extract.StepPDFOCRFallback, extract.StepOf(err))
	assert.NotEmpty(t, extract.RemediationOf(err))
	assertNoBlobs(t, f.fs)

	docs, err := f.svc.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestProcessUnsupportedType(t *testing.T) {
	f := newFixture(t, "", llm.NewStubClient())

	_, err := f.svc.Process(context.Background(), Upload{OriginalFilename: "a.gif", MimeType: "image/gif", Body: strings.NewReader("GIF89a")})
	require.Error(t, err)
	assert.Equal(t, extract.KindUnsupportedType, extract.KindOf(err))
	assert.Equal(t, extract.StepFileTypeCheck, extract.StepOf(err))
	assertNoBlobs(t, f.fs)
}

func TestProcessModelFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind extract.Kind
	}{
		{"malformed output", llm.ErrMalformedModelOutput, extract.KindMalformedModelOutput},
		{"provider error", errors.New("openai: 401 unauthorized"), extract.KindProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(llm.MockClient)
			client.On("ExtractPairs", mock.Anything, mock.Anything).Return(nil, tt.err)
			f := newFixture(t, "Invoice Number: 12345 issued to ACME", client)

			_, err := f.svc.Process(context.Background(), pdfUpload("invoice.pdf"))
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, extract.KindOf(err))
			assert.Equal(t, extract.StepKeyValueExtraction, extract.StepOf(err))
			assert.ErrorIs(t, err, tt.err)
			assertNoBlobs(t, f.fs)
		})
	}
}

func TestProcessIndexesAfterPersist(t *testing.T) {
	ctx := context.Background()
	client := new(llm.MockClient)
	client.On("Method").Return(llm.MethodOpenAI)
	client.On("ExtractPairs", mock.Anything, mock.Anything).Return([]kv.KeyValue{
		{Key: "Total", Value: 12.5},
		{Key: "Notes", Value: nil},
		{Key: "Memo", Value: ""},
	}, nil)
	f := newFixture(t, "Receipt total 12.50 paid with card", client)

	res, err := f.svc.Process(ctx, pdfUpload("receipt.pdf"))
	require.NoError(t, err)
	assert.Len(t, res.KeyValuePairs, 3, "empty values are kept on the document")

	doc, err := f.svc.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, store.MethodOpenAI, doc.ProcessingMethod)

	exact, err := f.index.SearchExact(ctx, "Total", 0)
	require.NoError(t, err)
	require.Equal(t, 1, exact.TotalResults)
	assert.Equal(t, kv.Number(12.5), exact.Results[0].Value)

	notes, err := f.index.SearchExact(ctx, "Notes", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, notes.TotalResults)
}

func TestDeleteUnknownDocument(t *testing.T) {
	f := newFixture(t, "", llm.NewStubClient())
	_, err := f.svc.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
	f.events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestListAndSearchByFilename(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "Name: John Doe\nEmail: john@example.com", llm.NewStubClient())

	_, err := f.svc.Process(ctx, pdfUpload("Invoice-2024.pdf"))
	require.NoError(t, err)
	_, err = f.svc.Process(ctx, pdfUpload("contract.pdf"))
	require.NoError(t, err)

	docs, err := f.svc.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "contract.pdf", docs[0].OriginalFilename)
	assert.Empty(t, docs[0].ExtractedText, "list uses the reduced projection")

	found, err := f.svc.SearchByFilename(ctx, "invoice")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Invoice-2024.pdf", found[0].OriginalFilename)
}

func TestPublishFailureDoesNotFailUpload(t *testing.T) {
	fs := afero.NewMemMapFs()
	blobs, err := blob.New(fs, "/uploads")
	require.NoError(t, err)
	st := store.NewMemory()
	pub := new(events.MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("nats: no servers available"))

	svc := NewService(blobs,
		extract.NewPipeline(extract.Config{Parser: textLayer("Name: John Doe\nEmail: john@example.com")}, fs, nil, noRunner{}, testLogger()),
		llm.NewStubClient(), st, index.NewEngine(st, nil, 0, testLogger()), pub, testLogger())

	_, err = svc.Process(context.Background(), pdfUpload("a.pdf"))
	require.NoError(t, err)
	pub.AssertNumberOfCalls(t, "Publish", publishAttempts)
}

type ocrEngine struct {
	name string
	text string
}

func (o ocrEngine) Name() string                                      { return o.name }
func (o ocrEngine) Step() extract.Step                                { return extract.StepLocalOCR }
func (o ocrEngine) Available() bool                                   { return true }
func (o ocrEngine) Recognize(context.Context, string) (string, error) { return o.text, nil }

func TestProcessRealPDFTextLayer(t *testing.T) {
	ctx := context.Background()
	f := newFixtureWith(t, extract.Config{}, nil, llm.NewStubClient())

	body := extracttest.PDF("Name: John Doe", "Email: john@example.com")
	res, err := f.svc.Process(ctx, Upload{OriginalFilename: "contact.pdf", MimeType: "application/pdf", Body: strings.NewReader(string(body))})
	require.NoError(t, err)
	assert.Equal(t, []kv.KeyValue{
		{Key: "Name", Value: "John Doe"},
		{Key: "Email", Value: "john@example.com"},
	}, res.KeyValuePairs)

	partial, err := f.index.SearchPartial(ctx, "email", 0)
	require.NoError(t, err)
	require.Equal(t, 1, partial.TotalMatches)
	assert.Equal(t, kv.String("john@example.com"), partial.Results[0].Matches[0].Value)
}

func TestProcessingMethodTracksTextBackend(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		upload Upload
		engine string
		want   store.ProcessingMethod
	}{
		{
			name:   "image text from tesseract",
			upload: Upload{OriginalFilename: "id.png", MimeType: "image/png", Body: strings.NewReader("png")},
			engine: extract.ProviderTesseract,
			want:   store.MethodTesseract,
		},
		{
			name:   "image text from cloud ocr",
			upload: Upload{OriginalFilename: "id.jpg", MimeType: "image/jpeg", Body: strings.NewReader("jpg")},
			engine: extract.ProviderGoogleVision,
			want:   store.MethodGoogleVision,
		},
		{
			name:   "pdf text layer keeps the model variant",
			upload: pdfUpload("contact.pdf"),
			engine: extract.ProviderTesseract,
			want:   store.MethodMock,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ocr := ocrEngine{name: tt.engine, text: "Name: John Doe"}
			f := newFixtureWith(t, extract.Config{Parser: textLayer("Name: John Doe\nEmail: john@example.com")},
				[]extract.OCRProvider{ocr}, llm.NewStubClient())

			res, err := f.svc.Process(ctx, tt.upload)
			require.NoError(t, err)
			doc, err := f.svc.Get(ctx, res.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.ProcessingMethod)
		})
	}
}
