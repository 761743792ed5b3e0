package extract

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Kind classifies an extraction failure.
type Kind string

const (
	KindUnsupportedType       Kind = "UnsupportedType"
	KindInvalidFormat         Kind = "InvalidFormat"
	KindScannedPDFUnsupported Kind = "ScannedPdfUnsupported"
	KindProviderUnavailable   Kind = "ProviderUnavailable"
	KindMalformedModelOutput  Kind = "MalformedModelOutput"
	KindCompleteFailure       Kind = "CompleteFailure"
)

// Step names the pipeline stage that failed. Callers pick user-facing guidance from it.
type Step string

const (
	StepFileTypeCheck   Step = "file-type-check"
	StepPDFParse        Step = "pdf-parse"
	StepPDFOCRFallback  Step = "pdf-ocr-fallback"
	StepImagePreprocess Step = "image-preprocess"
	StepCloudOCR        Step = "cloud-ocr"
	StepLocalOCR        Step = "local-ocr"
	StepCompleteFailure Step = "complete-failure"
	// StepKeyValueExtraction tags failures of the model call that follows text extraction.
	StepKeyValueExtraction Step = "key-value-extraction"
)

const scannedPDFRemediation = "This PDF has no extractable text layer. Convert the pages to PNG or JPEG images and upload those, " +
	"or enable PDF_OCR_ENABLED with poppler-utils (pdftoppm) installed."

type ExtractionError struct {
	Kind        Kind
	Step        Step
	Message     string
	Remediation string
	Err         error
	// Stack is the goroutine stack where the error was raised. Only shown
	// outside production.
	Stack string
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// NewError builds an ExtractionError and records the caller's stack.
func NewError(kind Kind, step Step, msg string, err error) *ExtractionError {
	return &ExtractionError{Kind: kind, Step: step, Message: msg, Err: err, Stack: string(debug.Stack())}
}

func newError(kind Kind, step Step, msg string, err error) *ExtractionError {
	return NewError(kind, step, msg, err)
}

// KindOf returns the Kind of the first ExtractionError in err's chain, or "".
func KindOf(err error) Kind {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}

// StepOf returns the Step of the first ExtractionError in err's chain, or "".
func StepOf(err error) Step {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Step
	}
	return ""
}

// RemediationOf returns the remediation text of the first ExtractionError in err's chain.
func RemediationOf(err error) string {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Remediation
	}
	return ""
}
