// Package app wires configuration into the pricing components shared by the
// server and the command line tools.
package app

import (
	"context"
	"fmt"
	"os"

	"route-pricing/internal/aggregate"
	"route-pricing/internal/config"
	"route-pricing/internal/matcher"
	"route-pricing/internal/refdata"
	"route-pricing/internal/repository"
	"route-pricing/internal/routing"
	"route-pricing/internal/services"
	"route-pricing/pkg/database"
	"route-pricing/pkg/logging"
	"route-pricing/pkg/metrics"
)

// Version is reported in logs
const Version = "1.0.0"

// NewLogger builds the process logger from the logging section
func NewLogger(cfg *config.Config, service string) *logging.StructuredLogger {
	logger := logging.NewStructuredLogger(service, Version, logging.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.Format == "console" {
		logger.SetConsole(os.Stderr, true)
	}
	return logger
}

// DatabaseConfig maps the database section onto the connection settings
func DatabaseConfig(cfg *config.Config) *database.Config {
	return &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		QueryTimeout:    cfg.Database.QueryTimeout,
	}
}

// PricingOptions maps the pricing and matching sections onto service options
func PricingOptions(cfg *config.Config) services.PricingOptions {
	return services.PricingOptions{
		Workers:         cfg.Pricing.Workers,
		RequestTimeout:  cfg.Pricing.RequestTimeout,
		ExchangeWindows: cfg.Pricing.ExchangeWindows,
		OrderWindows:    cfg.Pricing.OrderWindows,
		Aggregation: aggregate.Options{
			OutlierThreshold: cfg.Pricing.OutlierThreshold,
			OutlierCap:       cfg.Pricing.OutlierCap,
			TopCarriers:      cfg.Pricing.TopCarriers,
		},
		MatchingEnabled: cfg.Matching.Enabled,
		Matching: matcher.Options{
			ToleranceKm: cfg.Matching.ToleranceKm,
			ExactKm:     cfg.Matching.ExactKm,
			HighKm:      cfg.Matching.HighKm,
		},
	}
}

// OrderFilter maps the historical order business rules
func OrderFilter(cfg *config.Config) repository.OrderFilter {
	return repository.OrderFilter{
		CompletedStatus:  cfg.Pricing.CompletedStatus,
		MinDistanceKm:    cfg.Pricing.MinDistanceKm,
		Categories:       cfg.Pricing.Categories,
		ExcludedClientID: cfg.Pricing.ExcludedClientID,
	}
}

// RefDataPaths maps the reference table locations
func RefDataPaths(cfg *config.Config) refdata.Paths {
	return refdata.Paths{
		PostalRegions: cfg.RefData.PostalRegionsPath,
		Crosswalk:     cfg.RefData.CrosswalkPath,
		Coordinates:   cfg.RefData.CoordinatesPath,
	}
}

// Pricing holds the assembled pricing stack
type Pricing struct {
	DB      *database.PostgresDB
	RefData *refdata.Store
	Service *services.PricingService
}

// Close releases the database pool
func (p *Pricing) Close() error {
	return p.DB.Close()
}

// NewPricing connects to the database, loads reference data and builds the
// pricing service
func NewPricing(ctx context.Context, cfg *config.Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*Pricing, error) {
	store, err := refdata.NewStore(RefDataPaths(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}
	RecordRefData(ctx, store.Current(), logger, metricsCollector)

	db, err := database.NewPostgresDB(DatabaseConfig(cfg), logger, metricsCollector)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	var provider routing.RouteProvider
	if cfg.Routing.Enabled && cfg.Routing.APIKey != "" {
		provider = routing.NewClient(cfg.Routing.BaseURL, cfg.Routing.APIKey, cfg.Routing.Timeout)
	}
	estimator := routing.NewEstimator(provider, cfg.Routing.RoadFactor, logger, metricsCollector)

	repo := repository.NewPricingRepository(db, OrderFilter(cfg), logger, metricsCollector)
	service := services.NewPricingService(repo, store, estimator, PricingOptions(cfg), logger, metricsCollector)

	return &Pricing{DB: db, RefData: store, Service: service}, nil
}

// RecordRefData logs and exports the size of each reference table
func RecordRefData(ctx context.Context, snap *refdata.Snapshot, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) {
	stats := snap.Stats()
	for table, entries := range stats {
		metricsCollector.UpdateRefData(table, entries)
	}
	logger.Info(ctx, "[REFDATA] Reference data loaded", logging.Fields{
		"tables":    stats,
		"loaded_at": snap.LoadedAt(),
	})
}
