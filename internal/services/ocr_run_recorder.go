package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codyseavey/tcg-scan/internal/models"
)

// OCRRunRecorder appends identification runs to ocr_runs/ocr_results.
type OCRRunRecorder struct {
	db *gorm.DB
}

// NewOCRRunRecorder creates a run recorder
func NewOCRRunRecorder(db *gorm.DB) *OCRRunRecorder {
	return &OCRRunRecorder{db: db}
}

// Record inserts run and, when present, result in one transaction. A run
// without a RunID is assigned a fresh UUID.
func (r *OCRRunRecorder) Record(ctx context.Context, run *models.OCRRun, result *models.OCRResult) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Result").Create(run).Error; err != nil {
			return fmt.Errorf("failed to insert OCR run: %w", err)
		}
		if result == nil {
			return nil
		}
		result.RunID = run.RunID
		if err := tx.Create(result).Error; err != nil {
			return fmt.Errorf("failed to insert OCR result: %w", err)
		}
		return nil
	})
}

// Recent returns the newest runs with their results, newest first.
func (r *OCRRunRecorder) Recent(ctx context.Context, limit int) ([]models.OCRRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var runs []models.OCRRun
	err := r.db.WithContext(ctx).
		Preload("Result").
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list OCR runs: %w", err)
	}
	return runs, nil
}
