package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codyseavey/tcg-scan/internal/api"
	"github.com/codyseavey/tcg-scan/internal/config"
	"github.com/codyseavey/tcg-scan/internal/database"
	"github.com/codyseavey/tcg-scan/internal/logging"
	"github.com/codyseavey/tcg-scan/internal/metrics"
	"github.com/codyseavey/tcg-scan/internal/ocr/tesseract"
	"github.com/codyseavey/tcg-scan/internal/services"
	"github.com/codyseavey/tcg-scan/internal/vocabulary"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to optional YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.IsLocal())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.IsLocal() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}()

	vocab, err := vocabulary.Load(cfg.VocabularyPath)
	if err != nil {
		logger.Fatal("failed to load vocabulary", zap.Error(err))
	}
	logger.Info("vocabulary loaded",
		zap.Int("version", vocab.Version),
		zap.Int("promo_prefixes", len(vocab.PromoPrefixes)))

	catalog := services.NewCatalogStore(db)

	opts := services.IdentifierOptions{CacheSize: cfg.OCR.CacheSize}
	if cfg.OCR.Enabled {
		engine := tesseract.NewEngine(cfg.OCR.Language, logger)
		if engine.Available() {
			opts.OCR = engine
			opts.Provider = tesseract.ProviderName
		} else {
			logger.Warn("OCR engine unavailable, image identification disabled")
		}
	}
	var runs *services.OCRRunRecorder
	if cfg.OCR.PersistRuns {
		runs = services.NewOCRRunRecorder(db)
		opts.Recorder = runs
	}

	identifier, err := services.NewCardIdentifier(services.NewTokenExtractor(vocab), catalog, opts, logger)
	if err != nil {
		logger.Fatal("failed to create card identifier", zap.Error(err))
	}

	client := services.NewTCGCSVClient(services.TCGCSVOptions{
		BaseURL:    cfg.TCGCSV.BaseURL,
		CategoryID: cfg.TCGCSV.CategoryID,
		Throttle:   cfg.TCGCSV.Throttle,
		Retries:    cfg.TCGCSV.Retries,
		Timeout:    cfg.TCGCSV.Timeout,
	}, logger)
	catalogSync := services.NewCatalogSync(client, db, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if count, err := catalog.CountCards(ctx); err == nil {
		metrics.CardDatabaseSize.Set(float64(count))
		logger.Info("catalog loaded", zap.Int64("cards", count))
	}

	if cfg.Catalog.SyncOnStartup {
		go func() {
			// Wait a bit for the server to be ready
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			logger.Info("starting catalog sync on startup")
			if _, err := catalogSync.Run(ctx, services.SyncOptions{}); err != nil {
				logger.Error("startup catalog sync failed", zap.Error(err))
			}
		}()
	}

	router := api.SetupRouter(ctx, api.Dependencies{
		Identifier:     identifier,
		Catalog:        catalog,
		Runs:           runs,
		Sync:           catalogSync,
		AllowedOrigins: cfg.AllowedOrigins(),
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Stop background syncs
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
