package models

import (
	"time"
)

// CardSet is a TCGPlayer group: one printed set or promo series.
type CardSet struct {
	GroupID      int       `json:"group_id" gorm:"primaryKey;autoIncrement:false"`
	Name         string    `json:"name" gorm:"not null"`
	Abbreviation string    `json:"abbreviation"`
	PublishedOn  string    `json:"published_on"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (CardSet) TableName() string { return "card_sets" }

// Card is one physical print of one card. ProductID is the TCGPlayer product id.
// CleanName and the *Norm columns are derived at ingestion and must be computed
// with the same functions the identification pipeline uses at lookup time.
type Card struct {
	ProductID           int       `json:"product_id" gorm:"primaryKey;autoIncrement:false"`
	GroupID             int       `json:"group_id" gorm:"not null;index"`
	ProductName         string    `json:"product_name" gorm:"not null"`
	CleanName           string    `json:"clean_name"`
	CollectorNumberRaw  string    `json:"collector_number_raw"`
	CollectorNumberNorm string    `json:"collector_number_norm" gorm:"index"`
	ExtNumberRaw        string    `json:"ext_number_raw"`
	ExtNumberNorm       string    `json:"ext_number_norm" gorm:"index"`
	Rarity              string    `json:"rarity"`
	ImageURL            string    `json:"image_url"`
	TCGPlayerURL        string    `json:"tcgplayer_url" gorm:"column:tcgplayer_url"`
	ProductType         string    `json:"product_type"`
	UpdatedAt           time.Time `json:"updated_at"`

	Prices []LatestPrice `json:"prices,omitempty" gorm:"foreignKey:ProductID;references:ProductID"`
}

func (Card) TableName() string { return "cards" }

// ProductTypeSingle marks products that carry a card number.
const ProductTypeSingle = "single"

// MarketPrice returns the latest market price for subType, if one is known.
func (c *Card) MarketPrice(subType SubType) (float64, bool) {
	subType = NormalizeSubType(string(subType))
	for _, p := range c.Prices {
		if p.SubType == subType && p.MarketPrice != nil {
			return *p.MarketPrice, true
		}
	}
	return 0, false
}
