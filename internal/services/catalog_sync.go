package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/tcg-scan/internal/metrics"
	"github.com/codyseavey/tcg-scan/internal/models"
)

const upsertBatchSize = 200

// ErrSyncInProgress is returned when a sync is started while another runs.
var ErrSyncInProgress = errors.New("catalog sync already in progress")

var cleanNameDropRegex = regexp.MustCompile(`[^a-z0-9\s\-'/]`)

// CleanName derives the matching name stored in cards.clean_name: accents
// folded, lower-cased, restricted to [a-z0-9 -'/] with whitespace collapsed.
func CleanName(name string) string {
	s := strings.ToLower(foldAccents(strings.TrimSpace(name)))
	s = cleanNameDropRegex.ReplaceAllString(s, "")
	return strings.TrimSpace(spaceRunRegex.ReplaceAllString(s, " "))
}

// CatalogSource is the upstream the catalog is synced from.
type CatalogSource interface {
	GetGroups(ctx context.Context) ([]TCGCSVGroup, error)
	GetProducts(ctx context.Context, groupID int) ([]TCGCSVProduct, error)
	GetPrices(ctx context.Context, groupID int) ([]TCGCSVPrice, error)
}

// SyncOptions selects what a sync run covers.
type SyncOptions struct {
	OnlyGroupID  int  `json:"only_group_id,omitempty"`
	SkipGroups   bool `json:"skip_groups,omitempty"`
	SkipProducts bool `json:"skip_products,omitempty"`
	SkipPrices   bool `json:"skip_prices,omitempty"`
}

// SyncResult contains the results of a catalog sync
type SyncResult struct {
	GroupsUpserted  int           `json:"groups_upserted"`
	GroupsProcessed int           `json:"groups_processed"`
	ProductsFetched int           `json:"products_fetched"`
	SinglesKept     int           `json:"singles_kept"`
	PricesUpserted  int           `json:"prices_upserted"`
	PricesSkipped   int           `json:"prices_skipped"`
	Errors          []string      `json:"errors,omitempty"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
}

func (r *SyncResult) merge(other *SyncResult) {
	if other == nil {
		return
	}
	r.GroupsUpserted += other.GroupsUpserted
	r.GroupsProcessed += other.GroupsProcessed
	r.ProductsFetched += other.ProductsFetched
	r.SinglesKept += other.SinglesKept
	r.PricesUpserted += other.PricesUpserted
	r.PricesSkipped += other.PricesSkipped
	r.Errors = append(r.Errors, other.Errors...)
}

// SyncStatus is what the status endpoint reports.
type SyncStatus struct {
	Running    bool        `json:"running"`
	LastResult *SyncResult `json:"last_result,omitempty"`
	CardCount  int64       `json:"card_count"`
}

// CatalogSync writes card_sets, cards and prices_latest from tcgcsv. It is
// the only writer of those tables.
type CatalogSync struct {
	source CatalogSource
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time

	mu         sync.Mutex
	running    bool
	lastResult *SyncResult
}

// NewCatalogSync creates a new catalog sync service
func NewCatalogSync(source CatalogSource, db *gorm.DB, logger *zap.Logger) *CatalogSync {
	return &CatalogSync{
		source: source,
		db:     db,
		logger: logger.Named("catalog_sync"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// IsRunning returns whether a sync is currently in progress
func (s *CatalogSync) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status reports the running flag, the last completed result and the card count.
func (s *CatalogSync) Status(ctx context.Context) (SyncStatus, error) {
	s.mu.Lock()
	status := SyncStatus{Running: s.running, LastResult: s.lastResult}
	s.mu.Unlock()

	if err := s.db.WithContext(ctx).Model(&models.Card{}).Count(&status.CardCount).Error; err != nil {
		return status, fmt.Errorf("failed to count cards: %w", err)
	}
	return status, nil
}

// Run syncs groups, then products, then latest prices. Per-group upstream
// failures are collected in the result and do not stop the run; database
// failures and cancellation do.
func (s *CatalogSync) Run(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	s.running = true
	s.mu.Unlock()

	result := &SyncResult{StartedAt: s.now()}
	defer func() {
		result.Duration = s.now().Sub(result.StartedAt)
		metrics.CatalogSyncDuration.Observe(result.Duration.Seconds())
		s.mu.Lock()
		s.running = false
		s.lastResult = result
		s.mu.Unlock()
	}()

	s.logger.Info("catalog sync started",
		zap.Int("only_group_id", opts.OnlyGroupID),
		zap.Bool("skip_groups", opts.SkipGroups),
		zap.Bool("skip_products", opts.SkipProducts),
		zap.Bool("skip_prices", opts.SkipPrices))

	if !opts.SkipGroups {
		n, err := s.SyncGroups(ctx)
		result.GroupsUpserted = n
		if err != nil {
			return result, err
		}
	}

	if !opts.SkipProducts {
		res, err := s.SyncProducts(ctx, opts.OnlyGroupID)
		result.merge(res)
		if err != nil {
			return result, err
		}
	}

	if !opts.SkipPrices {
		res, err := s.RefreshLatestPrices(ctx, opts.OnlyGroupID)
		result.merge(res)
		if err != nil {
			return result, err
		}
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Card{}).Count(&count).Error; err == nil {
		metrics.CardDatabaseSize.Set(float64(count))
	}

	s.logger.Info("catalog sync finished",
		zap.Int("groups_upserted", result.GroupsUpserted),
		zap.Int("groups_processed", result.GroupsProcessed),
		zap.Int("singles_kept", result.SinglesKept),
		zap.Int("prices_upserted", result.PricesUpserted),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

// SyncGroups upserts every upstream group into card_sets.
func (s *CatalogSync) SyncGroups(ctx context.Context) (int, error) {
	groups, err := s.source.GetGroups(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch groups: %w", err)
	}

	now := s.now()
	sets := make([]models.CardSet, 0, len(groups))
	for _, g := range groups {
		if g.GroupID == 0 {
			continue
		}
		sets = append(sets, models.CardSet{
			GroupID:      g.GroupID,
			Name:         g.Name,
			Abbreviation: g.Abbreviation,
			PublishedOn:  g.PublishedOn,
			UpdatedAt:    now,
		})
	}
	if len(sets) == 0 {
		return 0, nil
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "abbreviation", "published_on", "updated_at"}),
		}).
		CreateInBatches(sets, upsertBatchSize).Error
	if err != nil {
		return 0, fmt.Errorf("failed to upsert card sets: %w", err)
	}

	metrics.CatalogSyncRowsTotal.WithLabelValues("groups").Add(float64(len(sets)))
	s.logger.Info("synced groups", zap.Int("count", len(sets)))
	return len(sets), nil
}

// SyncProducts upserts the singles of every known group, or only
// onlyGroupID when it is non-zero. A product is a single when its extended
// data carries a non-empty "Number".
func (s *CatalogSync) SyncProducts(ctx context.Context, onlyGroupID int) (*SyncResult, error) {
	result := &SyncResult{}

	groupIDs, err := s.setGroupIDs(ctx, onlyGroupID)
	if err != nil {
		return result, err
	}

	for i, gid := range groupIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		products, err := s.source.GetProducts(ctx, gid)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			s.logger.Warn("failed to fetch products", zap.Int("group_id", gid), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("group %d products: %v", gid, err))
			continue
		}
		result.GroupsProcessed++
		result.ProductsFetched += len(products)

		cards := s.singlesFromProducts(gid, products)
		if len(cards) > 0 {
			if err := s.upsertCards(ctx, cards); err != nil {
				return result, err
			}
		}
		result.SinglesKept += len(cards)
		metrics.CatalogSyncRowsTotal.WithLabelValues("products").Add(float64(len(cards)))

		s.logger.Debug("synced products",
			zap.Int("group_id", gid),
			zap.Int("progress", i+1),
			zap.Int("total", len(groupIDs)),
			zap.Int("fetched", len(products)),
			zap.Int("kept_singles", len(cards)))
	}

	s.logger.Info("synced products",
		zap.Int("groups", result.GroupsProcessed),
		zap.Int("fetched", result.ProductsFetched),
		zap.Int("kept_singles", result.SinglesKept))
	return result, nil
}

// singlesFromProducts computes both normalized number columns with the same
// normalizer the identifier uses at lookup time.
func (s *CatalogSync) singlesFromProducts(groupID int, products []TCGCSVProduct) []models.Card {
	now := s.now()
	cards := make([]models.Card, 0, len(products))
	for i := range products {
		p := &products[i]
		number := p.Attribute("Number")
		if number == "" || p.ProductID == 0 {
			continue
		}
		cards = append(cards, models.Card{
			ProductID:           p.ProductID,
			GroupID:             groupID,
			ProductName:         p.Name,
			CleanName:           CleanName(p.Name),
			CollectorNumberRaw:  number,
			CollectorNumberNorm: NormalizeNumber(number, NumberKindSlash),
			ExtNumberRaw:        number,
			ExtNumberNorm:       NormalizeNumber(number, NumberKindPromo),
			Rarity:              p.Attribute("Rarity"),
			ImageURL:            p.ImageURL,
			TCGPlayerURL:        p.URL,
			ProductType:         models.ProductTypeSingle,
			UpdatedAt:           now,
		})
	}
	return cards
}

func (s *CatalogSync) upsertCards(ctx context.Context, cards []models.Card) error {
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"group_id", "product_name", "clean_name",
				"collector_number_raw", "collector_number_norm",
				"ext_number_raw", "ext_number_norm",
				"rarity", "image_url", "tcgplayer_url", "product_type", "updated_at",
			}),
		}).
		CreateInBatches(cards, upsertBatchSize).Error
	if err != nil {
		return fmt.Errorf("failed to upsert cards: %w", err)
	}
	return nil
}

// RefreshLatestPrices replaces prices_latest rows for every group present in
// cards. Rows without a market price and rows for unknown products are skipped.
func (s *CatalogSync) RefreshLatestPrices(ctx context.Context, onlyGroupID int) (*SyncResult, error) {
	result := &SyncResult{}

	groupIDs, err := s.cardGroupIDs(ctx, onlyGroupID)
	if err != nil {
		return result, err
	}

	for _, gid := range groupIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		known, err := s.productIDs(ctx, gid)
		if err != nil {
			return result, err
		}

		prices, err := s.source.GetPrices(ctx, gid)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			s.logger.Warn("failed to fetch prices", zap.Int("group_id", gid), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("group %d prices: %v", gid, err))
			continue
		}
		result.GroupsProcessed++

		now := s.now()
		rows := make([]models.LatestPrice, 0, len(prices))
		for _, p := range prices {
			if _, ok := known[p.ProductID]; !ok || p.MarketPrice == nil {
				result.PricesSkipped++
				continue
			}
			price := *p.MarketPrice
			rows = append(rows, models.LatestPrice{
				ProductID:   p.ProductID,
				SubType:     models.NormalizeSubType(p.SubTypeName),
				MarketPrice: &price,
				UpdatedAt:   now,
			})
		}
		if len(rows) == 0 {
			continue
		}

		err = s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "product_id"}, {Name: "sub_type"}},
				DoUpdates: clause.AssignmentColumns([]string{"market_price", "updated_at"}),
			}).
			CreateInBatches(rows, upsertBatchSize).Error
		if err != nil {
			return result, fmt.Errorf("failed to upsert latest prices for group %d: %w", gid, err)
		}
		result.PricesUpserted += len(rows)
		metrics.CatalogSyncRowsTotal.WithLabelValues("prices").Add(float64(len(rows)))
	}

	s.logger.Info("refreshed latest prices",
		zap.Int("groups", result.GroupsProcessed),
		zap.Int("upserted", result.PricesUpserted),
		zap.Int("skipped", result.PricesSkipped))
	return result, nil
}

// setGroupIDs lists card_sets oldest first.
func (s *CatalogSync) setGroupIDs(ctx context.Context, onlyGroupID int) ([]int, error) {
	q := s.db.WithContext(ctx).Model(&models.CardSet{}).Order("published_on, group_id")
	return s.pluckGroupIDs(q, onlyGroupID)
}

// cardGroupIDs lists the groups that have at least one card.
func (s *CatalogSync) cardGroupIDs(ctx context.Context, onlyGroupID int) ([]int, error) {
	q := s.db.WithContext(ctx).Model(&models.Card{}).Distinct("group_id").Order("group_id")
	return s.pluckGroupIDs(q, onlyGroupID)
}

func (s *CatalogSync) pluckGroupIDs(q *gorm.DB, onlyGroupID int) ([]int, error) {
	if onlyGroupID != 0 {
		q = q.Where("group_id = ?", onlyGroupID)
	}
	var ids []int
	if err := q.Pluck("group_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list group ids: %w", err)
	}
	return ids, nil
}

func (s *CatalogSync) productIDs(ctx context.Context, groupID int) (map[int]struct{}, error) {
	var ids []int
	err := s.db.WithContext(ctx).
		Model(&models.Card{}).
		Where("group_id = ?", groupID).
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list products for group %d: %w", groupID, err)
	}
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}
