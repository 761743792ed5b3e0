package httputil

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"doc-extractor/internal/extract"
)

// ExtractionFailure is the body returned when an upload cannot be processed.
type ExtractionFailure struct {
	Error          string          `json:"error"`
	ProcessingStep string          `json:"processingStep,omitempty"`
	Remediation    string          `json:"remediation,omitempty"`
	Details        *FailureDetails `json:"details,omitempty"`
}

type FailureDetails struct {
	Error          string `json:"error"`
	Kind           string `json:"kind,omitempty"`
	ProcessingStep string `json:"processingStep,omitempty"`
	Stack          string `json:"stack,omitempty"`
}

// StatusForKind maps an extraction failure kind to an HTTP status.
func StatusForKind(kind extract.Kind) int {
	switch kind {
	case extract.KindUnsupportedType, extract.KindInvalidFormat:
		return http.StatusBadRequest
	case extract.KindScannedPDFUnsupported:
		return http.StatusUnprocessableEntity
	case extract.KindProviderUnavailable, extract.KindMalformedModelOutput:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FailExtraction writes a processing failure. Internals are only exposed
// through the details block when production is false.
func FailExtraction(log *slog.Logger, w http.ResponseWriter, err error, production bool) {
	var ee *extract.ExtractionError
	if !errors.As(err, &ee) {
		body := ExtractionFailure{Error: "failed to process document"}
		if !production {
			body.Details = &FailureDetails{Error: err.Error(), Stack: string(debug.Stack())}
		}
		log.Error("document processing failed", "err", err)
		WriteJSON(w, http.StatusInternalServerError, body)
		return
	}

	status := StatusForKind(ee.Kind)
	body := ExtractionFailure{
		Error:          ee.Message,
		ProcessingStep: string(ee.Step),
		Remediation:    ee.Remediation,
	}
	if !production {
		body.Details = &FailureDetails{
			Error:          err.Error(),
			Kind:           string(ee.Kind),
			ProcessingStep: string(ee.Step),
			Stack:          ee.Stack,
		}
	}
	if status >= http.StatusInternalServerError {
		log.Error("document processing failed", "kind", ee.Kind, "step", ee.Step, "err", err)
	} else {
		log.Warn("document rejected", "kind", ee.Kind, "step", ee.Step, "err", err)
	}
	WriteJSON(w, status, body)
}
