package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-extractor/internal/extract"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind extract.Kind
		want int
	}{
		{extract.KindUnsupportedType, http.StatusBadRequest},
		{extract.KindInvalidFormat, http.StatusBadRequest},
		{extract.KindScannedPDFUnsupported, http.StatusUnprocessableEntity},
		{extract.KindProviderUnavailable, http.StatusBadGateway},
		{extract.KindMalformedModelOutput, http.StatusBadGateway},
		{extract.KindCompleteFailure, http.StatusInternalServerError},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusForKind(tt.kind); got != tt.want {
			t.Errorf("StatusForKind(%q) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func decodeFailure(t *testing.T, w *httptest.ResponseRecorder) ExtractionFailure {
	t.Helper()
	var body ExtractionFailure
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestFailExtraction(t *testing.T) {
	err := &extract.ExtractionError{
		Kind:        extract.KindScannedPDFUnsupported,
		Step:        extract.StepPDFOCRFallback,
		Message:     "scanned or image-only PDFs are not supported",
		Remediation: "convert to images",
		Err:         errors.New("xref table broken"),
	}

	t.Run("development exposes details", func(t *testing.T) {
		w := httptest.NewRecorder()
		FailExtraction(testLogger(), w, err, false)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := decodeFailure(t, w)
		assert.Equal(t, "pdf-ocr-fallback", body.ProcessingStep)
		assert.Equal(t, "convert to images", body.Remediation)
		require.NotNil(t, body.Details)
		assert.Equal(t, "ScannedPdfUnsupported", body.Details.Kind)
		assert.Contains(t, body.Details.Error, "xref table broken")
	})

	t.Run("production hides details", func(t *testing.T) {
		w := httptest.NewRecorder()
		FailExtraction(testLogger(), w, err, true)
		body := decodeFailure(t, w)
		assert.Equal(t, "scanned or image-only PDFs are not supported", body.Error)
		assert.Equal(t, "pdf-ocr-fallback", body.ProcessingStep)
		assert.Nil(t, body.Details)
		assert.NotContains(t, w.Body.String(), "xref")
	})

	t.Run("plain errors are internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		FailExtraction(testLogger(), w, errors.New("save document: connection refused"), true)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decodeFailure(t, w)
		assert.Equal(t, "failed to process document", body.Error)
		assert.Empty(t, body.ProcessingStep)
		assert.Nil(t, body.Details)
	})

	t.Run("development includes the stack", func(t *testing.T) {
		w := httptest.NewRecorder()
		FailExtraction(testLogger(), w, extract.NewError(extract.KindInvalidFormat, extract.StepFileTypeCheck, "missing %PDF header", nil), false)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeFailure(t, w)
		require.NotNil(t, body.Details)
		assert.Contains(t, body.Details.Stack, "extract.NewError")
		assert.Contains(t, body.Details.Stack, "TestFailExtraction")

		w = httptest.NewRecorder()
		FailExtraction(testLogger(), w, errors.New("save document: connection refused"), false)
		body = decodeFailure(t, w)
		require.NotNil(t, body.Details)
		assert.NotEmpty(t, body.Details.Stack)
	})

	t.Run("production hides the stack", func(t *testing.T) {
		w := httptest.NewRecorder()
		FailExtraction(testLogger(), w, extract.NewError(extract.KindInvalidFormat, extract.StepFileTypeCheck, "missing %PDF header", nil), true)
		assert.NotContains(t, w.Body.String(), "goroutine")
	})
}

func TestFailWritesJSON(t *testing.T) {
	w := httptest.NewRecorder()
	Fail(testLogger(), w, "invalid document id", errors.New("bad uuid"), http.StatusBadRequest)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"invalid document id"}`, w.Body.String())

	w = httptest.NewRecorder()
	Fail(testLogger(), w, "boom", nil, 0)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestValidationError(t *testing.T) {
	type request struct {
		Query string `validate:"required,max=10"`
	}

	w := httptest.NewRecorder()
	ValidationError(testLogger(), w, Validator.Struct(request{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request: query is required"}`, w.Body.String())

	w = httptest.NewRecorder()
	ValidationError(testLogger(), w, Validator.Struct(request{Query: "far too long for this"}))
	assert.JSONEq(t, `{"error":"invalid request: query must be at most 10"}`, w.Body.String())
}

func TestRecovererReturnsJSON(t *testing.T) {
	h := Recoverer(testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil map write")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, w.Body.String())
}

func TestRouterServesHealth(t *testing.T) {
	r := NewRouter(testLogger())
	r.Get("/healthz", HealthHandler(testLogger()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
