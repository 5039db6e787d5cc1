package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/codyseavey/tcg-scan/internal/metrics"
	"github.com/codyseavey/tcg-scan/internal/models"
)

// maxErrorMessageLength bounds the error text stored and returned per run.
const maxErrorMessageLength = 800

var (
	// ErrEmptyImage is returned when an identify-image request carries no bytes.
	ErrEmptyImage = errors.New("empty image")
	// ErrOCRUnavailable is returned when no OCR engine is configured.
	ErrOCRUnavailable = errors.New("ocr engine unavailable")
)

// TextExtractor is the OCR engine. Failure is terminal for a request.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// RunRecorder appends the outcome of an identification. result is nil only
// when the run failed before any text was obtained.
type RunRecorder interface {
	Record(ctx context.Context, run *models.OCRRun, result *models.OCRResult) error
}

// Identification is everything one pipeline run produced, including the
// partial state left behind by a failed run.
type Identification struct {
	RunID             string              `json:"run_id,omitempty"`
	Status            models.OCRRunStatus `json:"status"`
	ElapsedMS         int64               `json:"elapsed_ms"`
	ErrorMessage      string              `json:"error_message,omitempty"`
	Filename          string              `json:"filename,omitempty"`
	ImageSHA256       string              `json:"image_sha256,omitempty"`
	Text              string              `json:"text"`
	CachedText        bool                `json:"cached_text"`
	Tokens            ExtractedTokens     `json:"tokens"`
	CollectorNorm     string              `json:"collector_number_norm,omitempty"`
	PromoNorm         string              `json:"promo_number_norm,omitempty"`
	Strategy          MatchStrategy       `json:"match_strategy"`
	MatchCount        int                 `json:"match_count"`
	NameFilterApplied bool                `json:"name_filter_applied"`
	Summary           VariantSummary      `json:"summary"`
}

// IdentifierOptions wires the optional collaborators of a CardIdentifier.
type IdentifierOptions struct {
	OCR       TextExtractor // nil disables IdentifyImage
	Provider  string        // recorded on each run, e.g. "tesseract"
	Recorder  RunRecorder   // nil disables run persistence
	CacheSize int           // OCR text cache entries; 0 disables the cache
}

// CardIdentifier runs OCR text through extraction, resolution and
// disambiguation. It holds no per-request state and is safe for concurrent use.
type CardIdentifier struct {
	extractor *TokenExtractor
	resolver  *CandidateResolver
	ocr       TextExtractor
	provider  string
	recorder  RunRecorder
	textCache *lru.Cache[string, string] // image sha256 -> OCR text
	logger    *zap.Logger
	now       func() time.Time
}

// NewCardIdentifier creates a card identifier
func NewCardIdentifier(extractor *TokenExtractor, catalog CatalogReader, opts IdentifierOptions, logger *zap.Logger) (*CardIdentifier, error) {
	ci := &CardIdentifier{
		extractor: extractor,
		resolver:  NewCandidateResolver(catalog),
		ocr:       opts.OCR,
		provider:  opts.Provider,
		recorder:  opts.Recorder,
		logger:    logger.Named("identifier"),
		now:       time.Now,
	}
	if ci.provider == "" {
		ci.provider = "unknown"
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, string](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create OCR text cache: %w", err)
		}
		ci.textCache = cache
	}
	return ci, nil
}

// OCRAvailable reports whether IdentifyImage can run.
func (ci *CardIdentifier) OCRAvailable() bool {
	return ci.ocr != nil
}

// VocabularyVersion is the version of the vocabulary driving extraction.
func (ci *CardIdentifier) VocabularyVersion() int {
	return ci.extractor.VocabularyVersion()
}

// IdentifyText runs the pipeline on already-extracted text. The only error is
// a catalog failure, returned together with the partial Identification.
func (ci *CardIdentifier) IdentifyText(ctx context.Context, text string) (*Identification, error) {
	start := ci.now()
	id := newIdentification()
	err := ci.identify(ctx, text, id)
	ci.finish(id, start, err)
	return id, err
}

// IdentifyImage runs OCR on image, then the text pipeline, then records the run.
// Collaborator failures come back as an error alongside the partial
// Identification; recording failures are only logged.
func (ci *CardIdentifier) IdentifyImage(ctx context.Context, filename string, image []byte) (*Identification, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	if ci.ocr == nil {
		return nil, ErrOCRUnavailable
	}

	start := ci.now()
	id := newIdentification()
	id.Filename = filename
	sum := sha256.Sum256(image)
	id.ImageSHA256 = hex.EncodeToString(sum[:])

	err := ci.identifyImage(ctx, image, id)
	ci.finish(id, start, err)

	metrics.OCRRequestsTotal.WithLabelValues(string(id.Status)).Inc()
	metrics.OCRProcessingDuration.Observe(float64(id.ElapsedMS) / 1000)

	if ci.recorder != nil {
		// a cancelled request still leaves its run behind
		ci.record(context.WithoutCancel(ctx), id, len(image))
	}
	return id, err
}

func newIdentification() *Identification {
	return &Identification{
		Status:   models.OCRRunSuccess,
		Strategy: StrategyNone,
		Summary:  VariantSummary{Options: []VariantOption{}},
	}
}

func (ci *CardIdentifier) identifyImage(ctx context.Context, image []byte, id *Identification) error {
	text, cached, err := ci.extractText(ctx, id.ImageSHA256, image)
	if err != nil {
		return fmt.Errorf("ocr failed: %w", err)
	}
	id.CachedText = cached
	return ci.identify(ctx, text, id)
}

func (ci *CardIdentifier) extractText(ctx context.Context, fingerprint string, image []byte) (string, bool, error) {
	if ci.textCache != nil {
		if text, ok := ci.textCache.Get(fingerprint); ok {
			metrics.OCRTextCacheHits.Inc()
			return text, true, nil
		}
		metrics.OCRTextCacheMisses.Inc()
	}

	text, err := ci.ocr.ExtractText(ctx, image)
	if err != nil {
		return "", false, err
	}
	if ci.textCache != nil {
		ci.textCache.Add(fingerprint, text)
	}
	return text, false, nil
}

// identify fills id step by step so a failure leaves earlier fields intact.
func (ci *CardIdentifier) identify(ctx context.Context, text string, id *Identification) error {
	id.Text = text
	id.Tokens = ci.extractor.Extract(text)
	if id.Tokens.CollectorRaw != "" {
		id.CollectorNorm = NormalizeNumber(id.Tokens.CollectorRaw, NumberKindSlash)
	}
	if id.Tokens.PromoRaw != "" {
		id.PromoNorm = NormalizeNumber(id.Tokens.PromoRaw, NumberKindPromo)
	}

	strategy, rows, err := ci.resolver.Resolve(ctx, id.CollectorNorm, id.PromoNorm)
	id.Strategy = strategy
	metrics.IdentificationStrategyTotal.WithLabelValues(string(strategy)).Inc()
	if err != nil {
		return fmt.Errorf("failed to resolve candidates: %w", err)
	}

	rows, applied := FilterByName(rows, id.Tokens.Name)
	id.NameFilterApplied = applied
	id.MatchCount = len(rows)
	metrics.NameFilterTotal.WithLabelValues(strconv.FormatBool(applied)).Inc()

	id.Summary = Summarize(rows)
	metrics.IdentificationCandidates.Observe(float64(len(id.Summary.Options)))
	return nil
}

func (ci *CardIdentifier) finish(id *Identification, start time.Time, err error) {
	id.ElapsedMS = ci.now().Sub(start).Milliseconds()
	if err != nil {
		id.Status = models.OCRRunError
		id.ErrorMessage = truncateMessage(err.Error(), maxErrorMessageLength)
	}
}

func (ci *CardIdentifier) record(ctx context.Context, id *Identification, imageBytes int) {
	run := &models.OCRRun{
		CreatedAt:    ci.now().UTC(),
		Provider:     ci.provider,
		Filename:     id.Filename,
		ImageSHA256:  id.ImageSHA256,
		ImageBytes:   imageBytes,
		Status:       id.Status,
		ElapsedMS:    id.ElapsedMS,
		ErrorMessage: id.ErrorMessage,
	}

	var result *models.OCRResult
	if id.Status == models.OCRRunSuccess || id.Text != "" {
		result = &models.OCRResult{
			FullText:            id.Text,
			CollectorNumberRaw:  id.Tokens.CollectorRaw,
			CollectorNumberNorm: id.CollectorNorm,
			PromoNumberRaw:      id.Tokens.PromoRaw,
			PromoNumberNorm:     id.PromoNorm,
			PokemonName:         id.Tokens.Name,
			MatchStrategy:       string(id.Strategy),
			MatchCount:          id.MatchCount,
			NameFilterApplied:   id.NameFilterApplied,
			VariantProductCount: id.Summary.DistinctProductCount,
			VariantSubtypeCount: id.Summary.DistinctSubtypeCount,
			VocabularyVersion:   ci.extractor.VocabularyVersion(),
		}
	}

	if err := ci.recorder.Record(ctx, run, result); err != nil {
		ci.logger.Warn("failed to record OCR run",
			zap.String("filename", id.Filename),
			zap.Error(err))
		return
	}
	id.RunID = run.RunID
}

func truncateMessage(msg string, limit int) string {
	r := []rune(msg)
	if len(r) <= limit {
		return msg
	}
	return string(r[:limit]) + "..."
}
