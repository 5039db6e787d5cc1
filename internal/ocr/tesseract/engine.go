// Package tesseract runs card text recognition through libtesseract.
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"

	"github.com/codyseavey/tcg-scan/internal/ocr"
)

// ProviderName is recorded on every OCR run this engine serves.
const ProviderName = "tesseract"

// Engine extracts text from card images. A gosseract client is not safe for
// concurrent use, so each call gets its own.
type Engine struct {
	language   string
	preprocess ocr.Options
	logger     *zap.Logger
}

// NewEngine creates an engine for language, e.g. "eng".
func NewEngine(language string, logger *zap.Logger) *Engine {
	if language == "" {
		language = "eng"
	}
	return &Engine{
		language:   language,
		preprocess: ocr.DefaultOptions(),
		logger:     logger.Named("tesseract"),
	}
}

// Available reports whether libtesseract loads with the configured language.
func (e *Engine) Available() bool {
	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if err := client.SetLanguage(e.language); err != nil {
		e.logger.Warn("tesseract language unavailable", zap.String("language", e.language), zap.Error(err))
		return false
	}
	version := client.Version()
	e.logger.Info("tesseract available", zap.String("version", version), zap.String("language", e.language))
	return version != ""
}

// ExtractText preprocesses image and returns the recognized text. Errors are
// terminal for the request; nothing is retried here.
func (e *Engine) ExtractText(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	processed, err := ocr.Preprocess(image, e.preprocess)
	if err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if err := client.SetLanguage(e.language); err != nil {
		return "", fmt.Errorf("failed to set tesseract language %q: %w", e.language, err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
		return "", fmt.Errorf("failed to set tesseract variable: %w", err)
	}
	if err := client.SetImageFromBytes(processed); err != nil {
		return "", fmt.Errorf("failed to load image into tesseract: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract recognition failed: %w", err)
	}

	e.logger.Debug("ocr completed", zap.Int("image_bytes", len(image)), zap.Int("text_length", len(text)))
	return text, nil
}
