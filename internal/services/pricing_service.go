package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"route-pricing/internal/aggregate"
	"route-pricing/internal/matcher"
	"route-pricing/internal/models"
	"route-pricing/internal/refdata"
	"route-pricing/internal/repository"
	"route-pricing/internal/routing"
	"route-pricing/pkg/logging"
	"route-pricing/pkg/metrics"
)

// Response constants
const (
	Currency = "EUR"
	Unit     = "EUR/km"
)

// PricingOptions configures the orchestrator
type PricingOptions struct {
	Workers         int
	RequestTimeout  time.Duration
	ExchangeWindows []int
	OrderWindows    []int
	Aggregation     aggregate.Options
	MatchingEnabled bool
	Matching        matcher.Options
}

// DefaultPricingOptions returns the production defaults
func DefaultPricingOptions() PricingOptions {
	return PricingOptions{
		Workers:         3,
		RequestTimeout:  10 * time.Second,
		ExchangeWindows: []int{7, 30, 90},
		OrderWindows:    []int{30, 90, 180},
		Aggregation:     aggregate.DefaultOptions(),
		MatchingEnabled: true,
		Matching:        matcher.DefaultOptions(),
	}
}

// QuoteRequest is an already validated origin/destination pair
type QuoteRequest struct {
	StartPostalCode string
	EndPostalCode   string
	// Sources restricts the quote; empty means all sources
	Sources []models.Source
	// SkipDistance leaves out road distance enrichment
	SkipDistance bool
}

// PricingService assembles quotes from all pricing sources
type PricingService struct {
	repo        repository.PricingRepository
	refdata     *refdata.Store
	estimator   *routing.Estimator
	opts        PricingOptions
	aggregators map[models.Source]*aggregate.Aggregator
	logger      *logging.StructuredLogger
	metrics     *metrics.Collector
	now         func() time.Time
}

// NewPricingService creates a new pricing service. estimator may be nil.
func NewPricingService(
	repo repository.PricingRepository,
	store *refdata.Store,
	estimator *routing.Estimator,
	opts PricingOptions,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *PricingService {
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	return &PricingService{
		repo:      repo,
		refdata:   store,
		estimator: estimator,
		opts:      opts,
		aggregators: map[models.Source]*aggregate.Aggregator{
			models.SourceExchangeA: aggregate.New(models.ExchangeASpec(opts.ExchangeWindows), opts.Aggregation),
			models.SourceExchangeB: aggregate.New(models.ExchangeBSpec(opts.ExchangeWindows), opts.Aggregation),
			models.SourceOrders:    aggregate.New(models.OrdersSpec(opts.OrderWindows), opts.Aggregation),
		},
		logger:  logger,
		metrics: metricsCollector,
		now:     time.Now,
	}
}

// Quote resolves the postal codes, aggregates every requested source in
// parallel and folds the results. All sources absent yields a *NoDataError.
func (s *PricingService) Quote(ctx context.Context, req QuoteRequest) (*models.Quote, error) {
	timer := s.metrics.NewTimer(s.metrics.QuoteDuration)
	defer timer.ObserveDuration()

	if err := models.ValidatePostalCode("start_postal_code", req.StartPostalCode); err != nil {
		return nil, err
	}
	if err := models.ValidatePostalCode("end_postal_code", req.EndPostalCode); err != nil {
		return nil, err
	}

	snap := s.refdata.Current()
	startID, okStart := snap.RegionID(req.StartPostalCode)
	endID, okEnd := snap.RegionID(req.EndPostalCode)
	if !okStart || !okEnd {
		err := &RouteNotFoundError{
			StartPostalCode: req.StartPostalCode,
			EndPostalCode:   req.EndPostalCode,
			UnknownStart:    !okStart,
			UnknownEnd:      !okEnd,
		}
		s.logger.Info(ctx, "[QUOTE] Postal code not mapped to a region", logging.Fields{
			"start_postal_code": req.StartPostalCode,
			"end_postal_code":   req.EndPostalCode,
			"unknown_start":     !okStart,
			"unknown_end":       !okEnd,
		})
		return nil, err
	}

	routes := map[models.Source]models.RouteKey{
		models.SourceExchangeA: {Start: strconv.Itoa(snap.ExchangeAID(startID)), End: strconv.Itoa(snap.ExchangeAID(endID))},
		models.SourceExchangeB: {Start: strconv.Itoa(startID), End: strconv.Itoa(endID)},
		models.SourceOrders:    {Start: models.NormalizeRegionCode(req.StartPostalCode), End: models.NormalizeRegionCode(req.EndPostalCode)},
	}

	requested := requestedSources(req.Sources)
	reports := s.collect(ctx, snap, requested, routes)

	quote := &models.Quote{
		StartPostalCode: req.StartPostalCode,
		EndPostalCode:   req.EndPostalCode,
		StartRegionID:   startID,
		EndRegionID:     endID,
		Route:           routes[models.SourceOrders],
		Pricing:         make(map[models.Source]map[string]*models.Aggregate),
		Absent:          make(map[models.Source]map[string]models.AbsenceReason),
		DataSources:     make(map[models.Source]bool, len(models.AllSources)),
		Currency:        Currency,
		Unit:            Unit,
		GeneratedAt:     s.now().UTC(),
	}

	anyPresent := false
	for _, source := range models.AllSources {
		report, ok := reports[source]
		if !ok {
			report = models.AbsentReport(source, routes[source], s.aggregators[source].Spec().Windows, models.ReasonSkipped)
		}
		if s.fold(quote, report) {
			anyPresent = true
		}
	}

	if !anyPresent {
		s.logger.Info(ctx, "[QUOTE] No source has pricing data", logging.Fields{
			"route":  quote.Route.String(),
			"absent": quote.Absent,
		})
		return nil, &NoDataError{Route: quote.Route, Absent: quote.Absent}
	}

	if !req.SkipDistance && s.estimator != nil {
		// Coordinates are keyed at region level, e.g. PL50 for PL50123
		from, okFrom := snap.Locate(quote.Route.Start)
		to, okTo := snap.Locate(quote.Route.End)
		if okFrom && okTo {
			quote.Distance = s.estimator.Distance(ctx, from, to)
		}
	}

	s.logger.Info(ctx, "[QUOTE] Quote assembled", logging.Fields{
		"route":        quote.Route.String(),
		"data_sources": quote.DataSources,
		"route_match":  quote.RouteMatch != nil,
	})

	return quote, nil
}

// fold merges one source report into the quote and reports its presence
func (s *PricingService) fold(quote *models.Quote, report models.SourceReport) bool {
	source := report.Source
	present := report.Present()
	quote.DataSources[source] = present

	if report.Match != nil && present {
		quote.RouteMatch = report.Match
	}

	for window, outcome := range report.Windows {
		key := models.WindowKey(window)
		if outcome.IsPresent() {
			if quote.Pricing[source] == nil {
				quote.Pricing[source] = make(map[string]*models.Aggregate)
			}
			quote.Pricing[source][key] = outcome.Aggregate
			continue
		}
		if quote.Absent[source] == nil {
			quote.Absent[source] = make(map[string]models.AbsenceReason)
		}
		quote.Absent[source][key] = outcome.Reason
		if outcome.Reason != models.ReasonSkipped {
			s.metrics.RecordSourceAbsent(string(source), string(outcome.Reason))
		}
	}

	return present
}

type sourceResult struct {
	source models.Source
	report models.SourceReport
}

// collect runs the sources on a bounded pool under the request budget.
// Sources still running when the budget expires are reported as timed out.
func (s *PricingService) collect(ctx context.Context, snap *refdata.Snapshot, sources []models.Source, routes map[models.Source]models.RouteKey) map[models.Source]models.SourceReport {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	results := make(chan sourceResult, len(sources))

	go func() {
		var g errgroup.Group
		g.SetLimit(s.opts.Workers)
		for _, source := range sources {
			source := source
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				results <- sourceResult{source: source, report: s.runSource(ctx, snap, source, routes[source])}
				return nil
			})
		}
		g.Wait()
	}()

	reports := make(map[models.Source]models.SourceReport, len(sources))
	for len(reports) < len(sources) {
		select {
		case r := <-results:
			reports[r.source] = r.report
		case <-ctx.Done():
			for _, source := range sources {
				if _, done := reports[source]; done {
					continue
				}
				s.logger.Warn(ctx, "[QUOTE] Source did not finish within the request budget", logging.Fields{
					"source":     source,
					"route":      routes[source].String(),
					"timeout_ms": s.opts.RequestTimeout.Milliseconds(),
				})
				reports[source] = models.AbsentReport(source, routes[source], s.aggregators[source].Spec().Windows, models.ReasonTimeout)
			}
		}
	}
	return reports
}

// runSource fetches and aggregates one source. Failures become absent windows.
func (s *PricingService) runSource(ctx context.Context, snap *refdata.Snapshot, source models.Source, route models.RouteKey) (report models.SourceReport) {
	agg := s.aggregators[source]
	spec := agg.Spec()

	timer := s.metrics.NewTimer(s.metrics.AggregationDuration.WithLabelValues(string(source)))
	defer timer.ObserveDuration()

	defer func() {
		if p := recover(); p != nil {
			s.logger.Error(ctx, "[AGG] Source aggregation panicked", logging.Fields{
				"source": source,
				"route":  route.String(),
			}, fmt.Errorf("panic: %v", p))
			report = models.AbsentReport(source, route, spec.Windows, models.ReasonInternal)
		}
	}()

	r := &resolver{
		repo:    s.repo,
		spec:    spec,
		logger:  s.logger,
		onMatch: s.metrics.RecordRouteMatch,
	}
	if source == models.SourceOrders && s.opts.MatchingEnabled {
		r.matcher = matcher.New(snap, s.opts.Matching)
	}

	var res resolution
	if r.matcher != nil {
		res = r.resolve(ctx, route)
	} else {
		res = r.exact(ctx, resolution{state: resolvingExact, requested: route, route: route})
	}

	if res.err != nil {
		s.logger.Error(ctx, "[AGG] Source query failed", logging.Fields{
			"source": source,
			"route":  route.String(),
			"reason": res.reason,
		}, res.err)
	}
	if res.state != resolved {
		report = models.AbsentReport(source, route, spec.Windows, res.reason)
		report.Match = res.match
		return report
	}

	report = agg.Report(res.route, res.rows, s.now())
	report.Match = res.match

	if largest, ok := report.Windows[spec.MaxWindow()]; ok {
		s.metrics.RecordOutliers(string(source), largest.Excluded)
	}

	s.logger.Debug(ctx, "[AGG] Source aggregated", logging.Fields{
		"source":  source,
		"route":   res.route.String(),
		"rows":    len(res.rows),
		"present": report.Present(),
	})
	return report
}

// Freshness returns the newest observation date per source; sources whose
// lookup fails are left out
func (s *PricingService) Freshness(ctx context.Context) map[models.Source]time.Time {
	out := make(map[models.Source]time.Time, len(s.aggregators))
	for _, source := range models.AllSources {
		latest, err := s.repo.LatestObservationDate(ctx, s.aggregators[source].Spec())
		if err != nil {
			s.logger.Warn(ctx, "[HEALTH] Could not read source freshness", logging.Fields{
				"source": source,
				"error":  err.Error(),
			})
			continue
		}
		out[source] = latest
	}
	return out
}

// HealthCheck checks the backing store
func (s *PricingService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}

func requestedSources(sources []models.Source) []models.Source {
	if len(sources) == 0 {
		return models.AllSources
	}
	seen := make(map[models.Source]bool, len(sources))
	var out []models.Source
	for _, known := range models.AllSources {
		for _, s := range sources {
			if s == known && !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
