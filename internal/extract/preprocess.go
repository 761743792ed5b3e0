package extract

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
)

const defaultTargetWidth = 2000

// preprocessImage prepares an image for local OCR and writes the result to a
// temporary PNG. The caller must invoke cleanup on every path.
func preprocessImage(fs afero.Fs, path string, targetWidth int) (out string, cleanup func(), err error) {
	if targetWidth <= 0 {
		targetWidth = defaultTargetWidth
	}
	f, err := fs.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open image: %w", err)
	}
	src, err := imaging.Decode(f, imaging.AutoOrientation(true))
	f.Close()
	if err != nil {
		return "", nil, fmt.Errorf("decode image: %w", err)
	}

	img := imaging.Grayscale(src)
	img = stretchContrast(img)
	img = imaging.Sharpen(img, 1.0)
	img = imaging.Resize(img, targetWidth, 0, imaging.Lanczos)

	tmp, err := afero.TempFile(fs, "", "ocr-*.png")
	if err != nil {
		return "", nil, fmt.Errorf("create temp image: %w", err)
	}
	name := tmp.Name()
	cleanup = func() { _ = fs.Remove(name) }

	if err := imaging.Encode(tmp, img, imaging.PNG); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("encode temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp image: %w", err)
	}
	return name, cleanup, nil
}

// stretchContrast maps the darkest gray level to black and the brightest to white.
func stretchContrast(img *image.NRGBA) *image.NRGBA {
	lo, hi := uint8(255), uint8(0)
	for i := 0; i+3 < len(img.Pix); i += 4 {
		v := img.Pix[i]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo {
		return img
	}
	scale := 255.0 / float64(hi-lo)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		stretch := func(v uint8) uint8 {
			if v <= lo {
				return 0
			}
			return uint8(float64(v-lo)*scale + 0.5)
		}
		return color.NRGBA{R: stretch(c.R), G: stretch(c.G), B: stretch(c.B), A: c.A}
	})
}
