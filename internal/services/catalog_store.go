package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/codyseavey/tcg-scan/internal/models"
)

// CandidateRow is one (card, sub-type) row from a catalog lookup. A card with
// no priced sub-type yields a single row with an empty SubType and no price.
type CandidateRow struct {
	ProductID           int            `json:"product_id"`
	GroupID             int            `json:"group_id"`
	ProductName         string         `json:"product_name"`
	CollectorNumberRaw  string         `json:"collector_number_raw"`
	CollectorNumberNorm string         `json:"collector_number_norm"`
	ExtNumberRaw        string         `json:"ext_number_raw"`
	ExtNumberNorm       string         `json:"ext_number_norm"`
	SubType             models.SubType `json:"sub_type"`
	MarketPrice         *float64       `json:"market_price"`
	PriceUpdatedAt      *time.Time     `json:"updated_at"`
}

// CatalogReader is the read-only view of the catalog the identification
// pipeline depends on. Lookups are exact matches on normalized key columns.
type CatalogReader interface {
	FindByCollectorNumber(ctx context.Context, collectorNorm string) ([]CandidateRow, error)
	FindByPromoNumber(ctx context.Context, promoNorm string) ([]CandidateRow, error)
	LatestPrice(ctx context.Context, productID int, subType models.SubType) (*models.LatestPrice, error)
}

// CatalogStore implements CatalogReader on the sqlite catalog.
type CatalogStore struct {
	db *gorm.DB
}

// NewCatalogStore creates a catalog store
func NewCatalogStore(db *gorm.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// candidateRecord mirrors the join's nullable price columns.
type candidateRecord struct {
	ProductID           int
	GroupID             int
	ProductName         string
	CollectorNumberRaw  *string
	CollectorNumberNorm *string
	ExtNumberRaw        *string
	ExtNumberNorm       *string
	SubType             *string
	MarketPrice         *float64
	UpdatedAt           *time.Time
}

// Cards without prices still surface through the LEFT JOIN. Ordering is
// fixed here so output never depends on storage order.
const candidateQuery = `
	SELECT
	  c.product_id,
	  c.group_id,
	  c.product_name,
	  c.collector_number_raw,
	  c.collector_number_norm,
	  c.ext_number_raw,
	  c.ext_number_norm,
	  p.sub_type,
	  p.market_price,
	  p.updated_at
	FROM cards c
	LEFT JOIN prices_latest p ON p.product_id = c.product_id
	WHERE c.%s = ?
	ORDER BY c.group_id, c.product_name, p.sub_type IS NULL, p.sub_type, c.product_id`

// FindByCollectorNumber returns rows whose collector_number_norm equals collectorNorm.
func (s *CatalogStore) FindByCollectorNumber(ctx context.Context, collectorNorm string) ([]CandidateRow, error) {
	return s.findCandidates(ctx, "collector_number_norm", collectorNorm)
}

// FindByPromoNumber returns rows whose ext_number_norm equals promoNorm.
func (s *CatalogStore) FindByPromoNumber(ctx context.Context, promoNorm string) ([]CandidateRow, error) {
	return s.findCandidates(ctx, "ext_number_norm", promoNorm)
}

// column is always one of the two constants above, never caller input.
func (s *CatalogStore) findCandidates(ctx context.Context, column, key string) ([]CandidateRow, error) {
	var records []candidateRecord
	err := s.db.WithContext(ctx).
		Raw(fmt.Sprintf(candidateQuery, column), key).
		Scan(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query cards by %s: %w", column, err)
	}

	rows := make([]CandidateRow, 0, len(records))
	for _, r := range records {
		row := CandidateRow{
			ProductID:           r.ProductID,
			GroupID:             r.GroupID,
			ProductName:         r.ProductName,
			CollectorNumberRaw:  deref(r.CollectorNumberRaw),
			CollectorNumberNorm: deref(r.CollectorNumberNorm),
			ExtNumberRaw:        deref(r.ExtNumberRaw),
			ExtNumberNorm:       deref(r.ExtNumberNorm),
			MarketPrice:         r.MarketPrice,
			PriceUpdatedAt:      r.UpdatedAt,
		}
		if r.SubType != nil {
			row.SubType = models.SubType(*r.SubType)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LatestPrice returns the price row for (productID, subType), or nil if none exists.
func (s *CatalogStore) LatestPrice(ctx context.Context, productID int, subType models.SubType) (*models.LatestPrice, error) {
	var price models.LatestPrice
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND sub_type = ?", productID, models.NormalizeSubType(string(subType))).
		First(&price).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price for product %d: %w", productID, err)
	}
	return &price, nil
}

// GetCard returns a card with its latest prices, or nil if it does not exist.
func (s *CatalogStore) GetCard(ctx context.Context, productID int) (*models.Card, error) {
	var card models.Card
	err := s.db.WithContext(ctx).
		Preload("Prices", func(db *gorm.DB) *gorm.DB { return db.Order("sub_type") }).
		First(&card, "product_id = ?", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch card %d: %w", productID, err)
	}
	return &card, nil
}

// CountCards returns the number of cards in the catalog.
func (s *CatalogStore) CountCards(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Card{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return count, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
