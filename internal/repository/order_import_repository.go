package repository

import (
	"context"
	"fmt"
	"time"

	"route-pricing/internal/models"
	"route-pricing/pkg/database"
	"route-pricing/pkg/logging"
	"route-pricing/pkg/metrics"
)

// OrderImportRepository writes completed orders into historical_orders
type OrderImportRepository interface {
	// InsertOrdersBatch upserts orders by order_id in a single transaction
	InsertOrdersBatch(ctx context.Context, orders []*models.OrderRecord) error
}

type orderImportRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewOrderImportRepository creates a new order import repository
func NewOrderImportRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) OrderImportRepository {
	return &orderImportRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

const upsertOrderQuery = `
	INSERT INTO public.historical_orders (
		order_id, order_date, start_postal_code, end_postal_code,
		price_per_km, distance_km, freight_amount,
		carrier_id, cargo_category, status, client_id, imported_at
	)
	VALUES (
		:order_id, :order_date, :start_postal_code, :end_postal_code,
		:price_per_km, :distance_km, :freight_amount,
		:carrier_id, :cargo_category, :status, :client_id, :imported_at
	)
	ON CONFLICT (order_id) DO UPDATE SET
		order_date = EXCLUDED.order_date,
		start_postal_code = EXCLUDED.start_postal_code,
		end_postal_code = EXCLUDED.end_postal_code,
		price_per_km = EXCLUDED.price_per_km,
		distance_km = EXCLUDED.distance_km,
		freight_amount = EXCLUDED.freight_amount,
		carrier_id = EXCLUDED.carrier_id,
		cargo_category = EXCLUDED.cargo_category,
		status = EXCLUDED.status,
		client_id = EXCLUDED.client_id,
		imported_at = EXCLUDED.imported_at
`

func (r *orderImportRepository) InsertOrdersBatch(ctx context.Context, orders []*models.OrderRecord) error {
	if len(orders) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		r.metrics.ImportBatchSize.Observe(float64(len(orders)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"count":       len(orders),
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, upsertOrderQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, order := range orders {
		if _, err := stmt.ExecContext(ctx, order); err != nil {
			return wrapQueryError(models.SourceOrders, "insert", fmt.Errorf("order %s: %w", order.OrderID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.ImportRecordsTotal.Add(float64(len(orders)))

	return nil
}
