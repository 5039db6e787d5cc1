// Package ocr prepares card photos for text recognition.
package ocr

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// ErrInvalidImage is returned for payloads that do not decode as an image.
var ErrInvalidImage = errors.New("invalid image data")

// Options tunes Preprocess. The zero value is not useful; start from DefaultOptions.
type Options struct {
	// MinHeight is the height below which the image is upscaled 2x.
	MinHeight int
	// MaxHeight caps the output height so huge photos stay cheap to OCR.
	MaxHeight int
	Sharpen   float64
	Contrast  float64
	// Threshold binarizes the image when non-zero. Card art with dark
	// backgrounds reads better without it.
	Threshold uint8
}

// DefaultOptions are tuned for phone photos of a single card.
func DefaultOptions() Options {
	return Options{
		MinHeight: 1200,
		MaxHeight: 3000,
		Sharpen:   1.0,
		Contrast:  40,
	}
}

// Preprocess decodes data, applies EXIF orientation, converts to grayscale,
// rescales, sharpens and boosts contrast, and returns a PNG.
func Preprocess(data []byte, opts Options) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	out := Enhance(img, opts)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode preprocessed image: %w", err)
	}
	return buf.Bytes(), nil
}

// Enhance is the in-memory part of Preprocess.
func Enhance(img image.Image, opts Options) *image.NRGBA {
	out := imaging.Grayscale(img)

	height := out.Bounds().Dy()
	switch {
	case opts.MinHeight > 0 && height < opts.MinHeight:
		target := height * 2
		if opts.MaxHeight > 0 && target > opts.MaxHeight {
			target = opts.MaxHeight
		}
		out = imaging.Resize(out, 0, target, imaging.Lanczos)
	case opts.MaxHeight > 0 && height > opts.MaxHeight:
		out = imaging.Resize(out, 0, opts.MaxHeight, imaging.Lanczos)
	}

	if opts.Sharpen > 0 {
		out = imaging.Sharpen(out, opts.Sharpen)
	}
	if opts.Contrast != 0 {
		out = imaging.AdjustContrast(out, opts.Contrast)
	}
	if opts.Threshold > 0 {
		threshold := opts.Threshold
		out = imaging.AdjustFunc(out, func(c color.NRGBA) color.NRGBA {
			// grayscale, so red is the brightness
			if c.R > threshold {
				return color.NRGBA{R: 255, G: 255, B: 255, A: c.A}
			}
			return color.NRGBA{A: c.A}
		})
	}
	return out
}

// DecodeBase64Image decodes a base64 payload, with or without a data URL prefix.
func DecodeBase64Image(payload string) ([]byte, error) {
	if idx := strings.Index(payload, ","); idx != -1 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrInvalidImage, err)
	}
	return data, nil
}
