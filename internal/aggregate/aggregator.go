// Package aggregate turns raw pricing observations into per-window statistics.
// One Aggregator serves every source; sources differ only by their SourceSpec.
package aggregate

import (
	"sort"
	"time"

	"route-pricing/internal/models"
)

// Options tunes outlier exclusion and carrier ranking
type Options struct {
	OutlierThreshold float64
	OutlierCap       int
	TopCarriers      int
}

// DefaultOptions returns the production defaults
func DefaultOptions() Options {
	return Options{
		OutlierThreshold: DefaultOutlierThreshold,
		OutlierCap:       DefaultOutlierCap,
		TopCarriers:      DefaultTopCarriers,
	}
}

// Aggregator computes window aggregates for one source
type Aggregator struct {
	spec   models.SourceSpec
	opts   Options
	filter OutlierFilter
}

// New creates an aggregator for a source description
func New(spec models.SourceSpec, opts Options) *Aggregator {
	return &Aggregator{
		spec: spec,
		opts: opts,
		filter: OutlierFilter{
			Threshold: opts.OutlierThreshold,
			Cap:       opts.OutlierCap,
			Fields:    spec.FieldNames(),
		},
	}
}

// Spec returns the source description the aggregator was built for
func (a *Aggregator) Spec() models.SourceSpec {
	return a.spec
}

// Report aggregates every configured window from one fetch of the largest window
func (a *Aggregator) Report(route models.RouteKey, rows []models.Observation, now time.Time) models.SourceReport {
	report := models.SourceReport{
		Source:  a.spec.Source,
		Route:   route,
		Windows: make(map[int]models.Outcome, len(a.spec.Windows)),
	}
	for _, w := range a.spec.Windows {
		report.Windows[w] = a.Aggregate(route, w, WithinWindow(rows, w, now))
	}
	return report
}

// Aggregate summarizes the rows of one route and window. Rows must already be
// restricted to the window.
func (a *Aggregator) Aggregate(route models.RouteKey, windowDays int, rows []models.Observation) models.Outcome {
	if a.spec.SplitsByCategory() {
		return a.aggregateByCategory(route, windowDays, rows)
	}
	return a.aggregate(route, windowDays, "", rows)
}

func (a *Aggregator) aggregate(route models.RouteKey, windowDays int, category string, rows []models.Observation) models.Outcome {
	if len(rows) == 0 {
		return models.Absent(models.ReasonNoRows)
	}

	clean, outliers := a.filter.Partition(rows)
	diagnostics := a.filter.Diagnostics(outliers)

	if len(clean) == 0 {
		out := models.Absent(models.ReasonAllOutliers)
		out.Outliers = diagnostics
		out.Excluded = len(outliers)
		return out
	}

	agg := &models.Aggregate{
		Source:           a.spec.Source,
		Route:            route,
		WindowDays:       windowDays,
		Category:         category,
		AvgPricePerKm:    make(map[string]*float64, len(a.spec.Fields)),
		OffersByField:    make(map[string]int64, len(a.spec.Fields)),
		TotalCount:       TotalCount(clean),
		DaysWithData:     DistinctDays(clean),
		ExcludedOutliers: len(outliers),
		Outliers:         diagnostics,
	}

	switch a.spec.Median {
	case models.MedianOfDailyMedians:
		agg.MedianOfDailyMedians = make(map[string]*float64)
	case models.MedianExactPercentile:
		agg.MedianExact = make(map[string]*float64)
	}

	for _, f := range a.spec.Fields {
		agg.AvgPricePerKm[f.Name] = WeightedAverage(clean, f.Name)
		agg.OffersByField[f.Name] = WeightSum(clean, f.Name)

		switch a.spec.Median {
		case models.MedianOfDailyMedians:
			if f.MedianColumn != "" {
				agg.MedianOfDailyMedians[f.Name] = MeanOfMedians(clean, f.Name)
			}
		case models.MedianExactPercentile:
			agg.MedianExact[f.Name] = ExactMedian(clean, f.Name)
		}
	}

	if a.spec.CarrierColumn != "" && len(a.spec.Fields) > 0 {
		agg.TopCarriers = TopCarriers(clean, a.spec.Fields[0].Name, a.opts.TopCarriers)
	}

	if !agg.HasPrice() {
		out := models.Absent(models.ReasonNullPrices)
		out.Outliers = diagnostics
		out.Excluded = len(outliers)
		return out
	}
	return models.Present(agg)
}

// aggregateByCategory computes independent sub-aggregates per cargo category.
// The window is present when any category is present.
func (a *Aggregator) aggregateByCategory(route models.RouteKey, windowDays int, rows []models.Observation) models.Outcome {
	if len(rows) == 0 {
		return models.Absent(models.ReasonNoRows)
	}

	byCategory := make(map[string][]models.Observation)
	for _, row := range rows {
		byCategory[row.Category] = append(byCategory[row.Category], row)
	}

	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	container := &models.Aggregate{
		Source:     a.spec.Source,
		Route:      route,
		WindowDays: windowDays,
		Categories: make(map[string]*models.Aggregate, len(categories)),
	}

	var (
		allOutliers   []models.OutlierRow
		excluded      int
		sawNullPrices bool
	)
	for _, c := range categories {
		out := a.aggregate(route, windowDays, c, byCategory[c])
		allOutliers = append(allOutliers, out.Outliers...)
		excluded += out.Excluded
		if !out.IsPresent() {
			container.AbsentCategories = append(container.AbsentCategories, c)
			sawNullPrices = sawNullPrices || out.Reason == models.ReasonNullPrices
			continue
		}
		sub := out.Aggregate
		container.Categories[c] = sub
		container.TotalCount += sub.TotalCount
		container.ExcludedOutliers += sub.ExcludedOutliers
	}
	clean, _ := a.filter.Partition(rows)
	container.DaysWithData = DistinctDays(clean)

	if len(container.Categories) == 0 {
		reason := models.ReasonAllOutliers
		if sawNullPrices {
			reason = models.ReasonNullPrices
		}
		out := models.Absent(reason)
		out.Outliers = a.capOutliers(allOutliers)
		out.Excluded = excluded
		return out
	}

	container.Outliers = a.capOutliers(allOutliers)
	out := models.Present(container)
	out.Excluded = excluded
	return out
}

func (a *Aggregator) capOutliers(rows []models.OutlierRow) []models.OutlierRow {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Severity > rows[j].Severity
	})
	if a.opts.OutlierCap <= 0 {
		return nil
	}
	if len(rows) > a.opts.OutlierCap {
		rows = rows[:a.opts.OutlierCap]
	}
	return rows
}
