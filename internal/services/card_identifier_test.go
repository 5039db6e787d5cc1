package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codyseavey/tcg-scan/internal/models"
	"github.com/codyseavey/tcg-scan/internal/vocabulary"
)

type fakeOCR struct {
	text  string
	err   error
	calls atomic.Int32
}

func (f *fakeOCR) ExtractText(context.Context, []byte) (string, error) {
	f.calls.Add(1)
	return f.text, f.err
}

type failingRecorder struct{ calls int }

func (r *failingRecorder) Record(context.Context, *models.OCRRun, *models.OCRResult) error {
	r.calls++
	return errors.New("disk full")
}

// steppingClock advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func newTestIdentifier(t *testing.T, catalog CatalogReader, opts IdentifierOptions) *CardIdentifier {
	t.Helper()
	ci, err := NewCardIdentifier(NewTokenExtractor(vocabulary.Default()), catalog, opts, zap.NewNop())
	require.NoError(t, err)
	ci.now = steppingClock(5 * time.Millisecond)
	return ci
}

const umbreonText = `Umbreon VMAX
HP 310
Dark Signal
Max Darkness 160
weakness resistance retreat
095/203
SWSH 07`

func seedUmbreonCatalog(t *testing.T) *CatalogStore {
	db := newTestDB(t)
	seedCard(t, db, 501, 2848, "Umbreon VMAX", "095/203")
	seedCard(t, db, 502, 2701, "Umbreon VMAX (Alternate Art)", "095/203")
	seedCard(t, db, 503, 2701, "Kingdra", "095/203")
	seedPrice(t, db, 501, models.SubTypeHolofoil, 12.40)
	seedPrice(t, db, 502, models.SubTypeHolofoil, 310.00)
	seedPrice(t, db, 503, models.SubTypeNormal, 0.25)
	return NewCatalogStore(db)
}

func TestIdentifyTextEndToEnd(t *testing.T) {
	ci := newTestIdentifier(t, seedUmbreonCatalog(t), IdentifierOptions{})

	result, err := ci.IdentifyText(context.Background(), umbreonText)
	require.NoError(t, err)

	assert.Equal(t, models.OCRRunSuccess, result.Status)
	assert.Equal(t, "095/203", result.Tokens.CollectorRaw)
	assert.Equal(t, "95/203", result.CollectorNorm)
	assert.Equal(t, "SWSH07", result.PromoNorm)
	assert.Equal(t, StrategyCollectorNumber, result.Strategy, "collector number always wins over a promo code")
	assert.Equal(t, "Umbreon", result.Tokens.Name)
	assert.True(t, result.NameFilterApplied)
	assert.Equal(t, 2, result.MatchCount)

	require.Len(t, result.Summary.Options, 2)
	assert.Equal(t, 502, result.Summary.Options[0].ProductID, "ordered by set first")
	assert.Equal(t, 501, result.Summary.Options[1].ProductID)
	for _, opt := range result.Summary.Options {
		assert.Contains(t, opt.ProductName, "Umbreon")
	}
	assert.True(t, result.Summary.HasVariations)
	assert.Equal(t, 2, result.Summary.DistinctProductCount)
	assert.Equal(t, 1, result.Summary.DistinctSubtypeCount)
	assert.Equal(t, "Umbreon VMAX | Holofoil | $12.40 | group_id=2848 | product_id=501", result.Summary.Options[1].Label)
	assert.Positive(t, result.ElapsedMS)

	again, err := ci.IdentifyText(context.Background(), umbreonText)
	require.NoError(t, err)
	assert.Equal(t, result.Summary, again.Summary)
}

func TestIdentifyTextWithoutIdentifiers(t *testing.T) {
	catalog := &fakeCatalog{}
	ci := newTestIdentifier(t, catalog, IdentifierOptions{})

	result, err := ci.IdentifyText(context.Background(), "Snorlax\nsome unreadable smudge")
	require.NoError(t, err)
	assert.Equal(t, models.OCRRunSuccess, result.Status)
	assert.Equal(t, StrategyNone, result.Strategy)
	assert.Empty(t, result.Summary.Options)
	assert.Equal(t, "Snorlax", result.Tokens.Name)
	assert.Empty(t, catalog.calls)
}

func TestIdentifyTextKeepsPartialStateOnStoreFailure(t *testing.T) {
	storeErr := errors.New("no such table: cards")
	ci := newTestIdentifier(t, &fakeCatalog{err: storeErr}, IdentifierOptions{})

	result, err := ci.IdentifyText(context.Background(), umbreonText)
	require.ErrorIs(t, err, storeErr)
	require.NotNil(t, result)
	assert.Equal(t, models.OCRRunError, result.Status)
	assert.Equal(t, umbreonText, result.Text)
	assert.Equal(t, "95/203", result.CollectorNorm)
	assert.Equal(t, StrategyCollectorNumber, result.Strategy)
	assert.Contains(t, result.ErrorMessage, "no such table")
	assert.Positive(t, result.ElapsedMS)
}

func TestIdentifyImageRequiresEngineAndBytes(t *testing.T) {
	ci := newTestIdentifier(t, &fakeCatalog{}, IdentifierOptions{})
	assert.False(t, ci.OCRAvailable())

	_, err := ci.IdentifyImage(context.Background(), "card.jpg", []byte{1})
	assert.ErrorIs(t, err, ErrOCRUnavailable)

	ci = newTestIdentifier(t, &fakeCatalog{}, IdentifierOptions{OCR: &fakeOCR{}})
	_, err = ci.IdentifyImage(context.Background(), "card.jpg", nil)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestIdentifyImageOCRFailure(t *testing.T) {
	ocrErr := errors.New("tesseract: " + strings.Repeat("x", 1000))
	db := newTestDB(t)
	recorder := NewOCRRunRecorder(db)
	ci := newTestIdentifier(t, NewCatalogStore(db), IdentifierOptions{
		OCR:      &fakeOCR{err: ocrErr},
		Provider: "fake",
		Recorder: recorder,
	})

	result, err := ci.IdentifyImage(context.Background(), "card.jpg", []byte("image"))
	require.ErrorIs(t, err, ocrErr)
	assert.Equal(t, models.OCRRunError, result.Status)
	assert.Positive(t, result.ElapsedMS)
	assert.Len(t, []rune(result.ErrorMessage), maxErrorMessageLength+3)
	assert.True(t, strings.HasSuffix(result.ErrorMessage, "..."))
	assert.NotEmpty(t, result.RunID)

	runs, err := recorder.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.OCRRunError, runs[0].Status)
	assert.Equal(t, "fake", runs[0].Provider)
	assert.Nil(t, runs[0].Result, "no text, no result row")
}

func TestIdentifyImageRecordsRun(t *testing.T) {
	db := newTestDB(t)
	seedCard(t, db, 501, 2848, "Umbreon VMAX", "095/203")
	recorder := NewOCRRunRecorder(db)
	ci := newTestIdentifier(t, NewCatalogStore(db), IdentifierOptions{
		OCR:      &fakeOCR{text: umbreonText},
		Provider: "fake",
		Recorder: recorder,
	})

	result, err := ci.IdentifyImage(context.Background(), "umbreon.png", []byte("png-bytes"))
	require.NoError(t, err)
	require.NotEmpty(t, result.RunID)
	assert.Len(t, result.ImageSHA256, 64)

	runs, err := recorder.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, result.RunID, run.RunID)
	assert.Equal(t, "umbreon.png", run.Filename)
	assert.Equal(t, len("png-bytes"), run.ImageBytes)
	require.NotNil(t, run.Result)
	assert.Equal(t, "95/203", run.Result.CollectorNumberNorm)
	assert.Equal(t, string(StrategyCollectorNumber), run.Result.MatchStrategy)
	assert.Equal(t, 1, run.Result.MatchCount)
	assert.Equal(t, 1, run.Result.VocabularyVersion)
}

func TestIdentifyImageRecorderFailureDoesNotAffectResult(t *testing.T) {
	recorder := &failingRecorder{}
	ci := newTestIdentifier(t, seedUmbreonCatalog(t), IdentifierOptions{
		OCR:      &fakeOCR{text: umbreonText},
		Recorder: recorder,
	})

	result, err := ci.IdentifyImage(context.Background(), "card.jpg", []byte("image"))
	require.NoError(t, err)
	assert.Equal(t, 1, recorder.calls)
	assert.Equal(t, models.OCRRunSuccess, result.Status)
	assert.Empty(t, result.RunID)
	assert.Len(t, result.Summary.Options, 2)
}

func TestIdentifyImageCachesText(t *testing.T) {
	engine := &fakeOCR{text: umbreonText}
	ci := newTestIdentifier(t, seedUmbreonCatalog(t), IdentifierOptions{OCR: engine, CacheSize: 4})

	first, err := ci.IdentifyImage(context.Background(), "a.jpg", []byte("same"))
	require.NoError(t, err)
	second, err := ci.IdentifyImage(context.Background(), "b.jpg", []byte("same"))
	require.NoError(t, err)
	_, err = ci.IdentifyImage(context.Background(), "c.jpg", []byte("other"))
	require.NoError(t, err)

	assert.False(t, first.CachedText)
	assert.True(t, second.CachedText)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, int32(2), engine.calls.Load())
}

func TestIdentifyImageRecordsCancelledRun(t *testing.T) {
	db := newTestDB(t)
	recorder := NewOCRRunRecorder(db)
	ci := newTestIdentifier(t, NewCatalogStore(db), IdentifierOptions{
		OCR:      &fakeOCR{err: context.Canceled},
		Recorder: recorder,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := ci.IdentifyImage(ctx, "card.jpg", []byte("image"))
	require.ErrorIs(t, err, context.Canceled)
	assert.NotEmpty(t, result.RunID)

	runs, err := recorder.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.OCRRunError, runs[0].Status)
	assert.Contains(t, runs[0].ErrorMessage, "context canceled")
}

func TestIdentifyImageRecordsEmptyText(t *testing.T) {
	db := newTestDB(t)
	recorder := NewOCRRunRecorder(db)
	ci := newTestIdentifier(t, NewCatalogStore(db), IdentifierOptions{
		OCR:      &fakeOCR{text: ""},
		Recorder: recorder,
	})

	result, err := ci.IdentifyImage(context.Background(), "blank.png", []byte("blank"))
	require.NoError(t, err)
	assert.Equal(t, models.OCRRunSuccess, result.Status)

	runs, err := recorder.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.NotNil(t, runs[0].Result, "successful runs always carry a result row")
	assert.Empty(t, runs[0].Result.FullText)
	assert.Equal(t, string(StrategyNone), runs[0].Result.MatchStrategy)
	assert.Zero(t, runs[0].Result.MatchCount)
}
