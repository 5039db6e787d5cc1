package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/codyseavey/tcg-scan/internal/models"
)

// VariantOption is one selectable (product, sub-type) pair.
type VariantOption struct {
	Key            string         `json:"key"`
	Label          string         `json:"label"`
	ProductID      int            `json:"product_id"`
	GroupID        int            `json:"group_id"`
	ProductName    string         `json:"product_name"`
	SubType        models.SubType `json:"sub_type"`
	MarketPrice    *float64       `json:"market_price"`
	PriceUpdatedAt *time.Time     `json:"updated_at,omitempty"`
}

// VariantSummary describes the candidate set after de-duplication.
type VariantSummary struct {
	HasVariations        bool            `json:"has_variations"`
	DistinctProductCount int             `json:"variant_product_count"`
	DistinctSubtypeCount int             `json:"variant_subtype_count"`
	Options              []VariantOption `json:"options"`
}

// FilterByName keeps rows whose product name contains name, ignoring case and
// accents. If that would leave nothing, the input comes back unfiltered with
// applied=false: an empty result is worse than an ambiguous one because the
// user can still pick manually.
func FilterByName(rows []CandidateRow, name string) ([]CandidateRow, bool) {
	needle := foldAccents(strings.ToLower(strings.TrimSpace(name)))
	if needle == "" || len(rows) == 0 {
		return rows, false
	}

	filtered := make([]CandidateRow, 0, len(rows))
	for _, row := range rows {
		if strings.Contains(foldAccents(strings.ToLower(row.ProductName)), needle) {
			filtered = append(filtered, row)
		}
	}
	if len(filtered) == 0 {
		return rows, false
	}
	return filtered, true
}

// Summarize collapses rows into options keyed by (product id, sub-type) and
// ordered by set, name, sub-type (missing last) and product id.
func Summarize(rows []CandidateRow) VariantSummary {
	summary := VariantSummary{Options: []VariantOption{}}
	if len(rows) == 0 {
		return summary
	}

	sorted := make([]CandidateRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return lessCandidate(sorted[i], sorted[j])
	})

	seen := make(map[string]struct{}, len(sorted))
	products := make(map[int]struct{})
	subTypes := make(map[models.SubType]struct{})
	for _, row := range sorted {
		key := OptionKey(row.ProductID, row.SubType)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		products[row.ProductID] = struct{}{}
		if row.SubType != "" {
			subTypes[row.SubType] = struct{}{}
		}
		summary.Options = append(summary.Options, VariantOption{
			Key:            key,
			Label:          OptionLabel(row),
			ProductID:      row.ProductID,
			GroupID:        row.GroupID,
			ProductName:    row.ProductName,
			SubType:        row.SubType,
			MarketPrice:    row.MarketPrice,
			PriceUpdatedAt: row.PriceUpdatedAt,
		})
	}

	summary.DistinctProductCount = len(products)
	summary.DistinctSubtypeCount = len(subTypes)
	summary.HasVariations = summary.DistinctProductCount > 1 || summary.DistinctSubtypeCount > 1
	return summary
}

func lessCandidate(a, b CandidateRow) bool {
	if a.GroupID != b.GroupID {
		return a.GroupID < b.GroupID
	}
	if a.ProductName != b.ProductName {
		return a.ProductName < b.ProductName
	}
	if (a.SubType == "") != (b.SubType == "") {
		return b.SubType == ""
	}
	if a.SubType != b.SubType {
		return a.SubType < b.SubType
	}
	return a.ProductID < b.ProductID
}

// OptionKey is the stable selection key for a (product, sub-type) pair.
func OptionKey(productID int, subType models.SubType) string {
	return fmt.Sprintf("%d:%s", productID, subType)
}

// OptionLabel renders the human-readable option text.
func OptionLabel(row CandidateRow) string {
	price := "N/A"
	if row.MarketPrice != nil {
		price = fmt.Sprintf("$%.2f", *row.MarketPrice)
	}
	return fmt.Sprintf("%s | %s | %s | group_id=%d | product_id=%d",
		row.ProductName, row.SubType, price, row.GroupID, row.ProductID)
}

// SelectOption finds the option with key.
func SelectOption(summary VariantSummary, key string) (VariantOption, bool) {
	for _, opt := range summary.Options {
		if opt.Key == key {
			return opt, true
		}
	}
	return VariantOption{}, false
}
