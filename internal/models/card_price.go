package models

import (
	"strings"
	"time"
)

// SubType is a priced finish of a product, as named by TCGPlayer.
type SubType string

const (
	SubTypeNormal            SubType = "Normal"
	SubTypeHolofoil          SubType = "Holofoil"
	SubTypeReverseHolofoil   SubType = "Reverse Holofoil"
	SubType1stEditionHolo    SubType = "1st Edition Holofoil"
	SubType1stEditionNormal  SubType = "1st Edition Normal"
	SubTypeUnlimitedHolofoil SubType = "Unlimited Holofoil"
	SubTypeUnknown           SubType = "Unknown"
)

// AllSubTypes returns the sub-types TCGPlayer is known to report for Pokemon singles.
func AllSubTypes() []SubType {
	return []SubType{
		SubTypeNormal,
		SubTypeHolofoil,
		SubTypeReverseHolofoil,
		SubType1stEditionHolo,
		SubType1stEditionNormal,
		SubTypeUnlimitedHolofoil,
	}
}

// IsFoilVariant returns true for holographic finishes.
// 1st Edition Normal is a print run, not a foil.
func (s SubType) IsFoilVariant() bool {
	return strings.Contains(string(s), "Holofoil")
}

// NormalizeSubType maps an upstream subTypeName onto a SubType.
// Known names are matched case-insensitively; unknown non-empty names pass
// through trimmed so new finishes are not lost; empty becomes Unknown.
func NormalizeSubType(name string) SubType {
	name = strings.TrimSpace(name)
	if name == "" {
		return SubTypeUnknown
	}
	for _, s := range AllSubTypes() {
		if strings.EqualFold(name, string(s)) {
			return s
		}
	}
	if strings.EqualFold(name, string(SubTypeUnknown)) {
		return SubTypeUnknown
	}
	return SubType(name)
}

// LatestPrice is the most recent market price for one (product, sub-type)
// pair. Refresh overwrites in place, so there is at most one row per pair.
type LatestPrice struct {
	ProductID   int       `json:"product_id" gorm:"primaryKey;autoIncrement:false"`
	SubType     SubType   `json:"sub_type" gorm:"primaryKey"`
	MarketPrice *float64  `json:"market_price"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (LatestPrice) TableName() string { return "prices_latest" }
