package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/documents/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.CollectAndCount(HTTPRequestDuration)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/abc", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(HTTPRequestDuration), before)

	lint, err := testutil.CollectAndLint(HTTPRequestDuration)
	require.NoError(t, err)
	assert.Empty(t, lint)
}

func TestHandlerExposesCollectors(t *testing.T) {
	Init()
	ChatResponses.WithLabelValues("no_documents").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "doc_extractor_chat_responses_total"))
}

func TestCounterIncrements(t *testing.T) {
	c := IndexEntries.WithLabelValues("inserted")
	before := testutil.ToFloat64(c)
	c.Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(c))
}
