package models

import (
	"time"
)

// OCRRunStatus is the terminal state of one identification request.
type OCRRunStatus string

const (
	OCRRunSuccess OCRRunStatus = "success"
	OCRRunError   OCRRunStatus = "error"
)

// OCRRun is the append-only record of one image submitted for identification.
type OCRRun struct {
	RunID        string       `json:"run_id" gorm:"primaryKey"`
	CreatedAt    time.Time    `json:"created_at" gorm:"index"`
	Provider     string       `json:"provider" gorm:"not null"`
	Filename     string       `json:"filename"`
	ImageSHA256  string       `json:"image_sha256" gorm:"column:image_sha256;not null"`
	ImageBytes   int          `json:"image_bytes"`
	Status       OCRRunStatus `json:"status" gorm:"not null"`
	ElapsedMS    int64        `json:"elapsed_ms" gorm:"column:elapsed_ms"`
	ErrorMessage string       `json:"error_message,omitempty"`

	Result *OCRResult `json:"result,omitempty" gorm:"foreignKey:RunID;references:RunID"`
}

func (OCRRun) TableName() string { return "ocr_runs" }

// OCRResult holds what the pipeline extracted for a successful run.
type OCRResult struct {
	RunID               string `json:"run_id" gorm:"primaryKey"`
	FullText            string `json:"full_text"`
	CollectorNumberRaw  string `json:"collector_number_raw,omitempty"`
	CollectorNumberNorm string `json:"collector_number_norm,omitempty" gorm:"index"`
	PromoNumberRaw      string `json:"promo_number_raw,omitempty"`
	PromoNumberNorm     string `json:"promo_number_norm,omitempty" gorm:"index"`
	PokemonName         string `json:"pokemon_name,omitempty"`
	MatchStrategy       string `json:"match_strategy"`
	MatchCount          int    `json:"match_count"`
	NameFilterApplied   bool   `json:"name_filter_applied"`
	VariantProductCount int    `json:"variant_product_count"`
	VariantSubtypeCount int    `json:"variant_subtype_count"`
	VocabularyVersion   int    `json:"vocabulary_version"`
}

func (OCRResult) TableName() string { return "ocr_results" }
