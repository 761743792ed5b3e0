package extract

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

const ProviderGoogleVision = "google-vision"

type VisionConfig struct {
	APIKey          string
	CredentialsFile string
	// Options are appended after the credential options (endpoint overrides, HTTP clients).
	Options []option.ClientOption
}

func (c VisionConfig) configured() bool {
	return c.APIKey != "" || c.CredentialsFile != "" || len(c.Options) > 0
}

// VisionProvider runs Google Cloud Vision DOCUMENT_TEXT_DETECTION.
type VisionProvider struct {
	fs  afero.Fs
	svc *vision.Service
}

// NewVisionProvider returns an unavailable provider when no credentials are configured.
func NewVisionProvider(ctx context.Context, fs afero.Fs, cfg VisionConfig) (*VisionProvider, error) {
	p := &VisionProvider{fs: fs}
	if !cfg.configured() {
		return p, nil
	}
	var opts []option.ClientOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	} else if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, cfg.Options...)

	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	p.svc = svc
	return p, nil
}

func (p *VisionProvider) Name() string    { return ProviderGoogleVision }
func (p *VisionProvider) Step() Step      { return StepCloudOCR }
func (p *VisionProvider) Available() bool { return p != nil && p.svc != nil }

func (p *VisionProvider) Recognize(ctx context.Context, imagePath string) (string, error) {
	if !p.Available() {
		return "", newError(KindProviderUnavailable, StepCloudOCR, "google vision is not configured", nil)
	}
	content, err := afero.ReadFile(p.fs, imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(content)},
			Features: []*vision.Feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
		}},
	}
	resp, err := p.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("vision annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", errors.New("vision annotate: empty response")
	}
	r := resp.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		return "", fmt.Errorf("vision annotate: %s", r.Error.Message)
	}
	if r.FullTextAnnotation != nil {
		return r.FullTextAnnotation.Text, nil
	}
	if len(r.TextAnnotations) > 0 {
		return r.TextAnnotations[0].Description, nil
	}
	return "", nil
}
