package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DocumentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doc_extractor_documents_processed_total",
			Help: "Uploaded documents by outcome and failing processing step",
		},
		[]string{"status", "step"},
	)

	ProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "doc_extractor_processing_duration_seconds",
			Help:    "End-to-end document processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"mime_type"},
	)

	OCRAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doc_extractor_ocr_attempts_total",
			Help: "OCR provider attempts by outcome",
		},
		[]string{"provider", "outcome"},
	)

	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doc_extractor_llm_requests_total",
			Help: "Key-value gateway calls by provider, operation and outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)

	IndexEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doc_extractor_index_entries_total",
			Help: "Index entries inserted or removed",
		},
		[]string{"op"},
	)

	Searches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doc_extractor_key_searches_total",
			Help: "Key searches by mode",
		},
		[]string{"mode"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doc_extractor_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doc_extractor_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	ChatResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doc_extractor_chat_responses_total",
			Help: "Chat answers by response type",
		},
		[]string{"type"},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doc_extractor_events_published_total",
			Help: "Document lifecycle events by subject and outcome",
		},
		[]string{"subject", "outcome"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "doc_extractor_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

var initOnce sync.Once

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(DocumentsProcessed)
		prometheus.MustRegister(ProcessingDuration)
		prometheus.MustRegister(OCRAttempts)
		prometheus.MustRegister(LLMRequests)
		prometheus.MustRegister(IndexEntries)
		prometheus.MustRegister(Searches)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(ChatResponses)
		prometheus.MustRegister(EventsPublished)
		prometheus.MustRegister(HTTPRequestDuration)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Outcome maps an error to the "ok"/"error" label used across counters.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Middleware records request durations labelled by the matched chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
