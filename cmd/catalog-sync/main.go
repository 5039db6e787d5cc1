// Command catalog-sync loads card sets, singles and latest market prices
// from tcgcsv.com into the local catalog.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/codyseavey/tcg-scan/internal/config"
	"github.com/codyseavey/tcg-scan/internal/database"
	"github.com/codyseavey/tcg-scan/internal/logging"
	"github.com/codyseavey/tcg-scan/internal/services"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to optional YAML config")
	onlyGroupID := flag.Int("only-group-id", 0, "limit products and prices to one group id")
	skipGroups := flag.Bool("skip-groups", false, "do not refresh card sets")
	skipProducts := flag.Bool("skip-products", false, "do not refresh cards")
	skipPrices := flag.Bool("skip-prices", false, "do not refresh latest prices")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.IsLocal())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, services.SyncOptions{
		OnlyGroupID:  *onlyGroupID,
		SkipGroups:   *skipGroups,
		SkipProducts: *skipProducts,
		SkipPrices:   *skipPrices,
	}, logger)
	stop()

	if err != nil {
		logger.Error("catalog sync failed", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run owns the database handle so it is closed before main exits.
func run(ctx context.Context, cfg *config.Config, opts services.SyncOptions, logger *zap.Logger) error {
	db, err := database.Open(cfg.DBPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}()

	client := services.NewTCGCSVClient(services.TCGCSVOptions{
		BaseURL:    cfg.TCGCSV.BaseURL,
		CategoryID: cfg.TCGCSV.CategoryID,
		Throttle:   cfg.TCGCSV.Throttle,
		Retries:    cfg.TCGCSV.Retries,
		Timeout:    cfg.TCGCSV.Timeout,
	}, logger)

	result, err := services.NewCatalogSync(client, db, logger).Run(ctx, opts)
	if err != nil {
		return err
	}

	for _, msg := range result.Errors {
		logger.Warn("group skipped", zap.String("reason", msg))
	}
	logger.Info("catalog sync done",
		zap.Int("groups_upserted", result.GroupsUpserted),
		zap.Int("products_fetched", result.ProductsFetched),
		zap.Int("singles_kept", result.SinglesKept),
		zap.Int("prices_upserted", result.PricesUpserted),
		zap.Int("prices_skipped", result.PricesSkipped),
		zap.Duration("duration", result.Duration))
	return nil
}
