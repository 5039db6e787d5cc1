// Package metrics provides Prometheus metrics for the card scanner.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tcg_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// OCR Metrics
	OCRRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_ocr_requests_total",
			Help: "Total number of OCR identification requests",
		},
		[]string{"result"}, // "success" or "error"
	)

	OCRProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tcg_ocr_processing_duration_seconds",
			Help:    "Time taken to process OCR requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
	)

	OCRTextCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_ocr_text_cache_hits_total",
			Help: "OCR text cache hit count",
		},
	)

	OCRTextCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_ocr_text_cache_misses_total",
			Help: "OCR text cache miss count",
		},
	)

	// Identification Metrics
	IdentificationStrategyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_identification_strategy_total",
			Help: "Identification lookups by strategy",
		},
		[]string{"strategy"}, // "collector_number", "promo_number", "none"
	)

	IdentificationCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tcg_identification_candidates",
			Help:    "Number of selectable options returned per identification",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 25, 50},
		},
	)

	NameFilterTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_name_filter_total",
			Help: "Name filter outcomes",
		},
		[]string{"applied"}, // "true" or "false"
	)

	// Card Database Metrics
	CardDatabaseSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tcg_card_database_size",
			Help: "Number of cards in the catalog",
		},
	)

	// Catalog Sync Metrics
	CatalogSyncRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_catalog_sync_rows_total",
			Help: "Rows upserted by catalog sync",
		},
		[]string{"kind"}, // "groups", "products", "prices"
	)

	CatalogSyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tcg_catalog_sync_duration_seconds",
			Help:    "Time taken by a full catalog sync",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// tcgcsv API Metrics
	TCGCSVRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_tcgcsv_requests_total",
			Help: "Total number of tcgcsv API requests made",
		},
		[]string{"endpoint", "result"},
	)
)
