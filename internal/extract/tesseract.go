package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

const ProviderTesseract = "tesseract"

type TesseractConfig struct {
	Binary      string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "eng"
	TargetWidth int    // resize width in pixels before recognition
}

// TesseractProvider is the local OCR tier. Images are preprocessed into a
// temporary PNG before `tesseract <img> stdout -l <lang>` is invoked.
type TesseractProvider struct {
	cfg    TesseractConfig
	fs     afero.Fs
	runner Runner
}

func NewTesseractProvider(cfg TesseractConfig, fs afero.Fs, runner Runner) *TesseractProvider {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.TargetWidth <= 0 {
		cfg.TargetWidth = defaultTargetWidth
	}
	return &TesseractProvider{cfg: cfg, fs: fs, runner: runner}
}

func (p *TesseractProvider) Name() string { return ProviderTesseract }
func (p *TesseractProvider) Step() Step   { return StepLocalOCR }

func (p *TesseractProvider) Available() bool {
	_, err := p.runner.LookPath(p.cfg.Binary)
	return err == nil
}

var reBoxNoise = regexp.MustCompile(`[\x{2500}-\x{257F}\x{2580}-\x{259F}]+`)

func (p *TesseractProvider) Recognize(ctx context.Context, imagePath string) (string, error) {
	prepared, cleanup, err := preprocessImage(p.fs, imagePath, p.cfg.TargetWidth)
	if err != nil {
		return "", newError(KindCompleteFailure, StepImagePreprocess, "image preprocessing failed", err)
	}
	defer cleanup()

	out, errb, err := p.runner.Run(ctx, p.cfg.Binary, prepared, "stdout", "-l", p.cfg.Lang)
	if err != nil {
		msg := strings.TrimSpace(string(errb))
		if msg != "" {
			return "", fmt.Errorf("tesseract: %w: %s", err, truncate(msg, 512))
		}
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return reBoxNoise.ReplaceAllString(string(out), ""), nil
}
