package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"route-pricing/internal/app"
	"route-pricing/internal/config"
	"route-pricing/internal/repository"
	"route-pricing/internal/services"
	"route-pricing/pkg/database"
	"route-pricing/pkg/logging"
	"route-pricing/pkg/metrics"
)

func main() {
	dataDir := flag.String("data-dir", "./orders_export", "Directory containing tab-separated order exports (*.tsv)")
	batchSize := flag.Int("batch-size", 1000, "Number of orders inserted per transaction")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "route-pricing-ingester")

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting historical order import", logging.Fields{
		"version":    app.Version,
		"data_dir":   *dataDir,
		"batch_size": *batchSize,
	})

	metricsCollector := metrics.NewCollector("route_pricing_ingester")

	db, err := database.NewPostgresDB(app.DatabaseConfig(cfg), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	importRepo := repository.NewOrderImportRepository(db, logger, metricsCollector)
	importService := services.NewImportService(importRepo, logger, metricsCollector)

	result, err := importService.ImportDirectory(ctx, *dataDir, *batchSize)
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Import failed", logging.Fields{
			"error": err.Error(),
		}, err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("IMPORT COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total Files:        %d\n", result.TotalFiles)
	fmt.Printf("Total Records:      %d\n", result.TotalRecords)
	fmt.Printf("Successful Records: %d\n", result.SuccessfulRecords)
	fmt.Printf("Failed Records:     %d\n", result.FailedRecords)
	fmt.Printf("Duration:           %v\n", result.Duration)
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Printf("Records/Second:     %.2f\n", float64(result.SuccessfulRecords)/secs)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i == 10 {
				fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
				break
			}
			fmt.Printf("  - %s\n", errMsg)
		}
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Import completed", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
	})
}
