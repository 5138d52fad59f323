package models

import (
	"time"
)

// Source identifies one of the independent pricing data origins
type Source string

const (
	// SourceExchangeA is the TimoCom spot exchange (per vehicle class prices)
	SourceExchangeA Source = "timocom"
	// SourceExchangeB is the Trans.eu spot exchange (lorry prices)
	SourceExchangeB Source = "transeu"
	// SourceOrders is the company's own completed-order history
	SourceOrders Source = "orders"
)

// AllSources lists sources in the order they are reported
var AllSources = []Source{SourceExchangeA, SourceExchangeB, SourceOrders}

// RouteKey is an ordered (start, end) pair of region codes.
// A route and its reverse are distinct keys.
type RouteKey struct {
	Start string `json:"start" db:"start_code"`
	End   string `json:"end" db:"end_code"`
}

// String renders the key as "start->end"
func (k RouteKey) String() string {
	return k.Start + "->" + k.End
}

// FieldValue holds one price column of an observation together with its weight.
// NULL prices are nil pointers.
type FieldValue struct {
	Price  *float64
	Weight int64
	Median *float64
}

// Observation is one historical priced movement read from storage.
// Exchange rows are daily pre-aggregates; order rows are single orders.
type Observation struct {
	Route      RouteKey
	Date       time.Time
	Fields     map[string]FieldValue
	Count      int64
	CarrierID  string
	Category   string
	Amount     *float64
	DistanceKm *float64
}

// Price returns the price of a field, nil when the field is absent or NULL
func (o Observation) Price(field string) *float64 {
	fv, ok := o.Fields[field]
	if !ok {
		return nil
	}
	return fv.Price
}

// Coordinate is a latitude/longitude pair in decimal degrees
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// OutlierRow describes an observation excluded from aggregation
type OutlierRow struct {
	Date      time.Time `json:"date"`
	Route     RouteKey  `json:"route"`
	Field     string    `json:"field"`
	Severity  float64   `json:"price_per_km"`
	CarrierID string    `json:"carrier_id,omitempty"`
}

// CarrierStats summarizes one carrier's clean orders in a category
type CarrierStats struct {
	CarrierID          string   `json:"carrier_id"`
	Orders             int64    `json:"orders"`
	WeightedPricePerKm *float64 `json:"weighted_price_per_km"`
	MeanPricePerKm     *float64 `json:"mean_price_per_km"`
	TotalAmount        float64  `json:"total_amount"`
	AvgAmount          *float64 `json:"avg_amount"`
}

// Aggregate is the per (route, source, window[, category]) summary.
// Computed per request, never stored.
type Aggregate struct {
	Source     Source   `json:"source"`
	Route      RouteKey `json:"route"`
	WindowDays int      `json:"window_days"`
	Category   string   `json:"category,omitempty"`

	AvgPricePerKm map[string]*float64 `json:"avg_price_per_km,omitempty"`
	// MedianOfDailyMedians averages medians that were pre-aggregated upstream.
	// It is not a population median.
	MedianOfDailyMedians map[string]*float64 `json:"median_of_daily_medians,omitempty"`
	// MedianExact is the continuous 50th percentile over clean rows.
	MedianExact map[string]*float64 `json:"median_exact,omitempty"`

	OffersByField map[string]int64 `json:"offers_by_field,omitempty"`
	TotalCount    int64            `json:"total_count"`
	DaysWithData  int              `json:"days_with_data"`

	ExcludedOutliers int          `json:"excluded_outliers"`
	Outliers         []OutlierRow `json:"outliers,omitempty"`

	TopCarriers []CarrierStats `json:"top_carriers,omitempty"`

	// Categories holds the per cargo category sub-aggregates (historical orders)
	Categories       map[string]*Aggregate `json:"categories,omitempty"`
	AbsentCategories []string              `json:"absent_categories,omitempty"`
}

// HasPrice reports whether at least one weighted price is non-null,
// looking into category sub-aggregates as well
func (a *Aggregate) HasPrice() bool {
	if a == nil {
		return false
	}
	for _, p := range a.AvgPricePerKm {
		if p != nil {
			return true
		}
	}
	for _, sub := range a.Categories {
		if sub.HasPrice() {
			return true
		}
	}
	return false
}

// Accuracy is the confidence tier of a fuzzy route substitution
type Accuracy string

const (
	AccuracyExact  Accuracy = "exact"
	AccuracyHigh   Accuracy = "high"
	AccuracyMedium Accuracy = "medium"
	AccuracyLow    Accuracy = "low"
)

// MatchResult is the outcome of the route matcher
type MatchResult struct {
	Requested        RouteKey `json:"requested"`
	Matched          RouteKey `json:"matched"`
	StartDeviationKm float64  `json:"start_deviation_km"`
	EndDeviationKm   float64  `json:"end_deviation_km"`
	Accuracy         Accuracy `json:"accuracy"`
}

// RouteDistance is the optional distance enrichment of a quote
type RouteDistance struct {
	Km              float64  `json:"distance_km"`
	Method          string   `json:"method"`
	StraightLineKm  *float64 `json:"haversine_distance_km,omitempty"`
	RoadFactor      *float64 `json:"road_factor,omitempty"`
	DurationSeconds *int64   `json:"duration_seconds,omitempty"`
}

// Quote is the assembled answer for one origin/destination request
type Quote struct {
	StartPostalCode string   `json:"start_postal_code"`
	EndPostalCode   string   `json:"end_postal_code"`
	StartRegionID   int      `json:"start_region_id"`
	EndRegionID     int      `json:"end_region_id"`
	Route           RouteKey `json:"route"`

	Pricing     map[Source]map[string]*Aggregate    `json:"pricing"`
	Absent      map[Source]map[string]AbsenceReason `json:"absent,omitempty"`
	DataSources map[Source]bool                     `json:"data_sources"`
	RouteMatch  *MatchResult                        `json:"route_match,omitempty"`
	Distance    *RouteDistance                      `json:"distance,omitempty"`
	Currency    string                              `json:"currency"`
	Unit        string                              `json:"unit"`
	GeneratedAt time.Time                           `json:"generated_at"`
}
