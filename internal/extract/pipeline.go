package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"doc-extractor/internal/metrics"
)

// Text sources recorded on Result.Source besides the OCR provider names.
const (
	SourcePDFText = "pdf-text"
	SourcePDFOCR  = "pdf-ocr"
)

type Config struct {
	PDFOCREnabled bool
	Pdftoppm      string // binary name or absolute path; if empty -> "pdftoppm"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit
	// Parser defaults to NativePDFParser.
	Parser PDFParser
}

type Result struct {
	Text     string
	Source   string
	Pages    int
	Warnings []string
}

// OCREngine returns the OCR provider that produced the text, or "" for a
// native PDF text layer.
func (r Result) OCREngine() string {
	if r.Source == SourcePDFText {
		return ""
	}
	return strings.TrimPrefix(r.Source, SourcePDFOCR+":")
}

// Pipeline turns an uploaded file into plain text.
type Pipeline struct {
	cfg       Config
	fs        afero.Fs
	providers []OCRProvider
	runner    Runner
	log       *slog.Logger
}

// NewPipeline builds a pipeline whose image chain tries providers in order.
func NewPipeline(cfg Config, fs afero.Fs, providers []OCRProvider, runner Runner, log *slog.Logger) *Pipeline {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Parser == nil {
		cfg.Parser = NativePDFParser{}
	}
	return &Pipeline{cfg: cfg, fs: fs, providers: providers, runner: runner, log: log}
}

type fileKind int

const (
	fileUnknown fileKind = iota
	filePDF
	fileImage
)

// classify accepts full MIME types and their bare subtype.
func classify(mimeType string) fileKind {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	mt = strings.TrimPrefix(mt, "application/")
	mt = strings.TrimPrefix(mt, "image/")
	switch mt {
	case "pdf":
		return filePDF
	case "jpeg", "jpg", "png":
		return fileImage
	default:
		return fileUnknown
	}
}

// SupportedType reports whether ExtractText accepts mimeType.
func SupportedType(mimeType string) bool {
	return classify(mimeType) != fileUnknown
}

func (p *Pipeline) ExtractText(ctx context.Context, path, mimeType string) (Result, error) {
	switch classify(mimeType) {
	case filePDF:
		return p.extractPDF(ctx, path)
	case fileImage:
		text, source, warns, err := p.recognizeImage(ctx, path)
		if err != nil {
			return Result{Warnings: warns}, err
		}
		return Result{Text: text, Source: source, Pages: 1, Warnings: warns}, nil
	default:
		return Result{}, newError(KindUnsupportedType, StepFileTypeCheck,
			fmt.Sprintf("unsupported file type %q (accepted: pdf, jpeg, jpg, png)", mimeType), nil)
	}
}

func (p *Pipeline) extractPDF(ctx context.Context, path string) (Result, error) {
	content, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return Result{}, newError(KindCompleteFailure, StepPDFParse, "failed to read PDF", err)
	}
	if !hasPDFMagic(content) {
		return Result{}, newError(KindInvalidFormat, StepFileTypeCheck, "file is not a valid PDF (missing %PDF header)", nil)
	}

	text, pages, parseErr := p.cfg.Parser.Parse(content)
	if parseErr == nil && IsMeaningfulText(text) {
		return Result{Text: text, Source: SourcePDFText, Pages: pages}, nil
	}

	reason := "no meaningful text layer"
	if parseErr != nil {
		reason = "pdf parse failed"
		p.log.Warn("pdf parse failed, trying ocr fallback", "path", path, "err", parseErr)
	} else {
		p.log.Info("pdf text layer not meaningful, trying ocr fallback", "path", path, "chars", len(text))
	}

	res, err := p.pdfOCR(ctx, path)
	if err != nil {
		var ee *ExtractionError
		if errors.As(err, &ee) && parseErr != nil && ee.Err == nil {
			ee.Err = parseErr
		}
		return res, err
	}
	res.Warnings = append([]string{reason}, res.Warnings...)
	return res, nil
}

// pdfOCR rasterizes the PDF with pdftoppm and runs each page through the image chain.
func (p *Pipeline) pdfOCR(ctx context.Context, path string) (Result, error) {
	unsupported := func(msg string, err error) (Result, error) {
		ee := newError(KindScannedPDFUnsupported, StepPDFOCRFallback, msg, err)
		ee.Remediation = scannedPDFRemediation
		return Result{}, ee
	}
	if !p.cfg.PDFOCREnabled {
		return unsupported("scanned or image-only PDFs are not supported", nil)
	}
	if _, err := p.runner.LookPath(p.cfg.Pdftoppm); err != nil {
		return unsupported("scanned PDF detected but pdftoppm is not installed", err)
	}

	tmpDir, err := afero.TempDir(p.fs, "", "pdf-ocr-")
	if err != nil {
		return Result{}, newError(KindCompleteFailure, StepPDFOCRFallback, "failed to create rasterization dir", err)
	}
	defer func() {
		if err := p.fs.RemoveAll(tmpDir); err != nil {
			p.log.Warn("failed to remove temp dir", "dir", tmpDir, "err", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := p.runner.Run(ctx, p.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", p.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return Result{Warnings: nonEmpty(string(errb))},
			newError(KindCompleteFailure, StepPDFOCRFallback, "pdftoppm failed", err)
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := afero.Glob(p.fs, prefix+"-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return Result{}, newError(KindCompleteFailure, StepPDFOCRFallback, "pdftoppm produced no images", nil)
	}

	var (
		b      strings.Builder
		warns  []string
		source string
		errs   []error
	)
	if p.cfg.MaxPages > 0 && len(matches) > p.cfg.MaxPages {
		warns = append(warns, fmt.Sprintf("only the first %d of %d pages were recognized", p.cfg.MaxPages, len(matches)))
		matches = matches[:p.cfg.MaxPages]
	}
	for i, img := range matches {
		txt, src, w, err := p.recognizeImage(ctx, img)
		warns = append(warns, w...)
		if err != nil {
			warns = append(warns, fmt.Sprintf("page %d: %v", i+1, err))
			errs = append(errs, err)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(txt)
		if source == "" {
			source = src
		}
	}
	if b.Len() == 0 {
		return Result{Warnings: warns},
			newError(KindCompleteFailure, StepPDFOCRFallback, "ocr produced no text for any page", firstErr(errs))
	}
	return Result{Text: b.String(), Source: SourcePDFOCR + ":" + source, Pages: len(matches), Warnings: warns}, nil
}

// recognizeImage walks the provider chain until one returns non-empty text.
// Each tier's failure is recorded under the provider's own step; the error
// returned when every tier fails carries all of them.
func (p *Pipeline) recognizeImage(ctx context.Context, path string) (text, source string, warnings []string, err error) {
	var failures []string
	fail := func(prov OCRProvider, reason string) {
		msg := fmt.Sprintf("%s (%s): %s", prov.Name(), prov.Step(), reason)
		warnings = append(warnings, msg)
		failures = append(failures, msg)
	}
	for _, prov := range p.providers {
		name := prov.Name()
		if !prov.Available() {
			p.log.Debug("ocr provider unavailable, skipping", "provider", name, "step", prov.Step())
			metrics.OCRAttempts.WithLabelValues(name, "unavailable").Inc()
			fail(prov, "not configured")
			continue
		}

		txt, rerr := prov.Recognize(ctx, path)
		if rerr == nil && strings.TrimSpace(txt) == "" {
			rerr = errors.New("no text detected")
		}
		if rerr != nil {
			p.log.Warn("ocr provider failed", "provider", name, "step", tierStep(prov, rerr), "err", rerr)
			metrics.OCRAttempts.WithLabelValues(name, "error").Inc()
			fail(prov, rerr.Error())
			continue
		}

		metrics.OCRAttempts.WithLabelValues(name, "ok").Inc()
		return txt, name, warnings, nil
	}

	msg := "all OCR providers failed"
	if len(failures) > 0 {
		msg += ": " + strings.Join(failures, "; ")
	} else {
		msg += ": no providers configured"
	}
	return "", "", warnings, newError(KindCompleteFailure, StepCompleteFailure, msg, nil)
}

// tierStep prefers the step carried by the provider's own error, such as
// image-preprocess raised inside the local engine.
func tierStep(prov OCRProvider, err error) Step {
	if step := StepOf(err); step != "" {
		return step
	}
	return prov.Step()
}

func firstErr(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}

func nonEmpty(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return []string{s}
}
