package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"route-pricing/internal/models"
	"route-pricing/pkg/database"
	"route-pricing/pkg/logging"
	"route-pricing/pkg/metrics"
)

// PricingRepository reads pricing observations for any source described by a SourceSpec
type PricingRepository interface {
	// FetchObservations returns the rows of one route dated within the window, oldest first
	FetchObservations(ctx context.Context, spec models.SourceSpec, route models.RouteKey, windowDays int) ([]models.Observation, error)

	// ListRoutes returns the distinct routes with qualifying rows in the window
	ListRoutes(ctx context.Context, spec models.SourceSpec, windowDays int) ([]models.RouteKey, error)

	// LatestObservationDate returns the newest date stored for a source
	LatestObservationDate(ctx context.Context, spec models.SourceSpec) (time.Time, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// OrderFilter holds the business rules a historical order must meet to count
type OrderFilter struct {
	CompletedStatus  string
	MinDistanceKm    float64
	Categories       []string
	ExcludedClientID string
}

// pricingRepository implements PricingRepository
type pricingRepository struct {
	db      *database.PostgresDB
	filter  OrderFilter
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewPricingRepository creates a new pricing repository
func NewPricingRepository(db *database.PostgresDB, filter OrderFilter, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) PricingRepository {
	return &pricingRepository{
		db:      db,
		filter:  filter,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// FetchObservations runs one query per source and route
func (r *pricingRepository) FetchObservations(ctx context.Context, spec models.SourceSpec, route models.RouteKey, windowDays int) ([]models.Observation, error) {
	query, args := BuildObservationQuery(spec, r.filter, route, windowDays)
	queryType := "fetch_" + string(spec.Source)

	var observations []models.Observation
	err := r.db.QueryRows(ctx, queryType, query, func(rows *sqlx.Rows) error {
		for rows.Next() {
			dest := newRowDest(spec)
			if err := rows.Scan(dest.targets()...); err != nil {
				return fmt.Errorf("scan %s row: %w", spec.Source, err)
			}
			observations = append(observations, dest.observation(spec))
		}
		return nil
	}, args...)
	if err != nil {
		return nil, wrapQueryError(spec.Source, "fetch observations", err)
	}

	r.logger.Debug(ctx, "[REPO_FETCH] Observations loaded", logging.Fields{
		"source":      spec.Source,
		"route":       route.String(),
		"window_days": windowDays,
		"rows":        len(observations),
	})

	return observations, nil
}

// ListRoutes returns candidate routes for fuzzy matching
func (r *pricingRepository) ListRoutes(ctx context.Context, spec models.SourceSpec, windowDays int) ([]models.RouteKey, error) {
	query, args := BuildRoutesQuery(spec, r.filter, windowDays)

	var routes []models.RouteKey
	if err := r.db.SelectContext(ctx, "list_routes_"+string(spec.Source), &routes, query, args...); err != nil {
		return nil, wrapQueryError(spec.Source, "list routes", err)
	}

	return routes, nil
}

// LatestObservationDate reports data freshness for a source
func (r *pricingRepository) LatestObservationDate(ctx context.Context, spec models.SourceSpec) (time.Time, error) {
	query := fmt.Sprintf("SELECT MAX(%s) FROM %s", spec.DateColumn, spec.Table)

	var latest sql.NullTime
	if err := r.db.GetContext(ctx, "latest_"+string(spec.Source), &latest, query); err != nil {
		return time.Time{}, wrapQueryError(spec.Source, "latest observation date", err)
	}
	if !latest.Valid {
		return time.Time{}, &NotFoundError{Resource: "observations", ID: string(spec.Source)}
	}

	return latest.Time, nil
}

// HealthCheck performs a repository health check
func (r *pricingRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// BuildObservationQuery builds the parameterized row query for a source.
// $1 and $2 are the route endpoints, $3 the window in days; business
// filters for historical orders follow.
func BuildObservationQuery(spec models.SourceSpec, filter OrderFilter, route models.RouteKey, windowDays int) (string, []interface{}) {
	columns := []string{
		spec.StartColumn + "::text",
		spec.EndColumn + "::text",
		spec.DateColumn,
		orOne(spec.TotalColumn),
	}
	for _, f := range spec.Fields {
		columns = append(columns, f.PriceColumn, orOne(f.WeightColumn), orNull(f.MedianColumn))
	}
	if spec.SplitsByCategory() {
		columns = append(columns,
			orNull(spec.CarrierColumn)+"::text",
			spec.CategoryColumn,
			orNull(spec.AmountColumn),
			orNull(spec.DistanceColumn),
		)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s\nFROM %s\nWHERE %s = $1\n  AND %s = $2\n  AND %s >= CURRENT_DATE - CAST($3 AS INTEGER)",
		strings.Join(columns, ", "), spec.Table, spec.StartColumn, spec.EndColumn, spec.DateColumn)

	args := []interface{}{route.Start, route.End, windowDays}
	args = appendOrderFilters(&b, spec, filter, args)

	fmt.Fprintf(&b, "\nORDER BY %s", spec.DateColumn)
	return b.String(), args
}

// BuildRoutesQuery builds the distinct route query used for candidate discovery
func BuildRoutesQuery(spec models.SourceSpec, filter OrderFilter, windowDays int) (string, []interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT DISTINCT %s::text AS start_code, %s::text AS end_code\nFROM %s\nWHERE %s >= CURRENT_DATE - CAST($1 AS INTEGER)",
		spec.StartColumn, spec.EndColumn, spec.Table, spec.DateColumn)

	args := []interface{}{windowDays}
	args = appendOrderFilters(&b, spec, filter, args)

	b.WriteString("\nORDER BY start_code, end_code")
	return b.String(), args
}

func appendOrderFilters(b *strings.Builder, spec models.SourceSpec, filter OrderFilter, args []interface{}) []interface{} {
	if !spec.SplitsByCategory() {
		return args
	}

	if filter.CompletedStatus != "" && spec.StatusColumn != "" {
		args = append(args, filter.CompletedStatus)
		fmt.Fprintf(b, "\n  AND %s = $%d", spec.StatusColumn, len(args))
	}
	if filter.MinDistanceKm > 0 && spec.DistanceColumn != "" {
		args = append(args, filter.MinDistanceKm)
		fmt.Fprintf(b, "\n  AND %s >= $%d", spec.DistanceColumn, len(args))
	}
	if len(filter.Categories) > 0 {
		args = append(args, pq.Array(filter.Categories))
		fmt.Fprintf(b, "\n  AND %s = ANY($%d)", spec.CategoryColumn, len(args))
	}
	if filter.ExcludedClientID != "" && spec.ClientColumn != "" {
		args = append(args, filter.ExcludedClientID)
		fmt.Fprintf(b, "\n  AND (%s IS NULL OR %s::text <> $%d)", spec.ClientColumn, spec.ClientColumn, len(args))
	}
	return args
}

func orOne(column string) string {
	if column == "" {
		return "1"
	}
	return column
}

func orNull(column string) string {
	if column == "" {
		return "NULL"
	}
	return column
}

// rowDest holds scan targets in BuildObservationQuery column order
type rowDest struct {
	start, end string
	date       time.Time
	total      sql.NullInt64
	prices     []sql.NullFloat64
	weights    []sql.NullInt64
	medians    []sql.NullFloat64
	carrier    sql.NullString
	category   sql.NullString
	amount     sql.NullFloat64
	distance   sql.NullFloat64
	split      bool
}

func newRowDest(spec models.SourceSpec) *rowDest {
	n := len(spec.Fields)
	return &rowDest{
		prices:  make([]sql.NullFloat64, n),
		weights: make([]sql.NullInt64, n),
		medians: make([]sql.NullFloat64, n),
		split:   spec.SplitsByCategory(),
	}
}

func (d *rowDest) targets() []interface{} {
	t := []interface{}{&d.start, &d.end, &d.date, &d.total}
	for i := range d.prices {
		t = append(t, &d.prices[i], &d.weights[i], &d.medians[i])
	}
	if d.split {
		t = append(t, &d.carrier, &d.category, &d.amount, &d.distance)
	}
	return t
}

func (d *rowDest) observation(spec models.SourceSpec) models.Observation {
	obs := models.Observation{
		Route:  models.RouteKey{Start: d.start, End: d.end},
		Date:   d.date,
		Fields: make(map[string]models.FieldValue, len(spec.Fields)),
		Count:  d.total.Int64,
	}
	for i, f := range spec.Fields {
		obs.Fields[f.Name] = models.FieldValue{
			Price:  nullFloat(d.prices[i]),
			Weight: d.weights[i].Int64,
			Median: nullFloat(d.medians[i]),
		}
	}
	if spec.SplitsByCategory() {
		obs.CarrierID = d.carrier.String
		obs.Category = d.category.String
		obs.Amount = nullFloat(d.amount)
		obs.DistanceKm = nullFloat(d.distance)
	}
	return obs
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func wrapQueryError(source models.Source, op string, err error) error {
	if database.IsUnavailable(err) {
		return &UnavailableError{Source: string(source), Op: op, Err: err}
	}
	return fmt.Errorf("%s %s: %w", source, op, err)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}

// UnavailableError means the store could not serve the query in time.
// Callers may retry.
type UnavailableError struct {
	Source string
	Op     string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s %s: store unavailable: %v", e.Source, e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func (e *UnavailableError) IsTransient() bool {
	return true
}

// IsUnavailable reports whether err carries an UnavailableError
func IsUnavailable(err error) bool {
	var u *UnavailableError
	return errors.As(err, &u)
}
