package extract

import "context"

// OCRProvider is one tier of the image OCR chain.
type OCRProvider interface {
	Name() string
	// Step tags failures raised by this provider.
	Step() Step
	// Available reports whether the provider is configured and can be invoked.
	Available() bool
	Recognize(ctx context.Context, imagePath string) (string, error)
}
