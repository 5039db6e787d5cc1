package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/codyseavey/tcg-scan/internal/database"
	"github.com/codyseavey/tcg-scan/internal/models"
)

// newTestDB opens a migrated in-memory database private to the test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func seedCard(t *testing.T, db *gorm.DB, productID, groupID int, name, number string) {
	t.Helper()
	card := models.Card{
		ProductID:           productID,
		GroupID:             groupID,
		ProductName:         name,
		CleanName:           CleanName(name),
		CollectorNumberRaw:  number,
		CollectorNumberNorm: NormalizeNumber(number, NumberKindSlash),
		ExtNumberRaw:        number,
		ExtNumberNorm:       NormalizeNumber(number, NumberKindPromo),
		ProductType:         models.ProductTypeSingle,
		UpdatedAt:           time.Now().UTC(),
	}
	require.NoError(t, db.Omit("Prices").Create(&card).Error)
}

func seedPrice(t *testing.T, db *gorm.DB, productID int, subType models.SubType, price float64) {
	t.Helper()
	row := models.LatestPrice{
		ProductID:   productID,
		SubType:     subType,
		MarketPrice: &price,
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, db.Create(&row).Error)
}

// fakeCatalog is an in-memory CatalogReader that records which lookup ran.
type fakeCatalog struct {
	byCollector map[string][]CandidateRow
	byPromo     map[string][]CandidateRow
	err         error
	calls       []string
}

func (f *fakeCatalog) FindByCollectorNumber(_ context.Context, collectorNorm string) ([]CandidateRow, error) {
	f.calls = append(f.calls, "collector:"+collectorNorm)
	if f.err != nil {
		return nil, f.err
	}
	return f.byCollector[collectorNorm], nil
}

func (f *fakeCatalog) FindByPromoNumber(_ context.Context, promoNorm string) ([]CandidateRow, error) {
	f.calls = append(f.calls, "promo:"+promoNorm)
	if f.err != nil {
		return nil, f.err
	}
	return f.byPromo[promoNorm], nil
}

func (f *fakeCatalog) LatestPrice(context.Context, int, models.SubType) (*models.LatestPrice, error) {
	return nil, f.err
}

func priceOf(v float64) *float64 { return &v }
