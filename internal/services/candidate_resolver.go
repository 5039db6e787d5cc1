package services

import (
	"context"
)

// MatchStrategy names which identifier the candidate lookup used.
type MatchStrategy string

const (
	StrategyCollectorNumber MatchStrategy = "collector_number"
	StrategyPromoNumber     MatchStrategy = "promo_number"
	StrategyNone            MatchStrategy = "none"
)

// CandidateResolver picks one lookup strategy and queries the catalog with it.
type CandidateResolver struct {
	catalog CatalogReader
}

// NewCandidateResolver creates a resolver over catalog
func NewCandidateResolver(catalog CatalogReader) *CandidateResolver {
	return &CandidateResolver{catalog: catalog}
}

// Resolve queries by collector number when one is present and by promo code
// otherwise; the two are never merged or cross-checked. Promo codes collide
// across small sets more often than collector numbers do. With neither key it
// returns StrategyNone and no rows. The only error is a catalog failure.
func (r *CandidateResolver) Resolve(ctx context.Context, collectorNorm, promoNorm string) (MatchStrategy, []CandidateRow, error) {
	switch {
	case collectorNorm != "":
		rows, err := r.catalog.FindByCollectorNumber(ctx, collectorNorm)
		return StrategyCollectorNumber, rows, err
	case promoNorm != "":
		rows, err := r.catalog.FindByPromoNumber(ctx, promoNorm)
		return StrategyPromoNumber, rows, err
	default:
		return StrategyNone, nil, nil
	}
}
