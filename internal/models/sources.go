package models

// MedianMode selects which median statistic a source produces
type MedianMode int

const (
	// MedianOfDailyMedians averages an upstream median column
	MedianOfDailyMedians MedianMode = iota
	// MedianExactPercentile computes PERCENTILE_CONT(0.5) over clean prices
	MedianExactPercentile
)

// PriceField maps one tracked price onto its storage columns.
// An empty WeightColumn weighs every row as one observation,
// an empty MedianColumn means the source stores no median for the field.
type PriceField struct {
	Name         string
	PriceColumn  string
	WeightColumn string
	MedianColumn string
}

// SourceSpec is the table-driven description of a pricing source.
// All three sources share one aggregation path and differ only here.
type SourceSpec struct {
	Source      Source
	Table       string
	StartColumn string
	EndColumn   string
	DateColumn  string
	TotalColumn string
	Fields      []PriceField
	Median      MedianMode
	Windows     []int

	// Historical orders only
	CarrierColumn  string
	CategoryColumn string
	AmountColumn   string
	DistanceColumn string
	StatusColumn   string
	ClientColumn   string
}

// FieldNames returns the tracked price field names in declaration order
func (s SourceSpec) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// MaxWindow returns the largest configured lookback window in days
func (s SourceSpec) MaxWindow() int {
	maxDays := 0
	for _, w := range s.Windows {
		if w > maxDays {
			maxDays = w
		}
	}
	return maxDays
}

// SplitsByCategory reports whether results are computed per cargo category
func (s SourceSpec) SplitsByCategory() bool {
	return s.CategoryColumn != ""
}

// Field names shared by the response and the aggregation code
const (
	FieldTrailer = "trailer"
	Field3_5t    = "3_5t"
	Field12t     = "12t"
	FieldLorry   = "lorry"
	FieldOrder   = "price_per_km"
)

// Cargo categories of the historical orders source
const (
	CategoryFullLoad    = "FTL"
	CategoryPartialLoad = "LTL"
)

// ExchangeASpec describes the TimoCom offers table
func ExchangeASpec(windows []int) SourceSpec {
	return SourceSpec{
		Source:      SourceExchangeA,
		Table:       "public.offers",
		StartColumn: "starting_id",
		EndColumn:   "destination_id",
		DateColumn:  "enlistment_date",
		TotalColumn: "number_of_offers_total",
		Fields: []PriceField{
			{Name: FieldTrailer, PriceColumn: "trailer_avg_price_per_km", WeightColumn: "number_of_offers_trailer", MedianColumn: "trailer_median_price_per_km"},
			{Name: Field3_5t, PriceColumn: "vehicle_up_to_3_5_t_avg_price_per_km", WeightColumn: "number_of_offers_vehicle_up_to_3_5_t"},
			{Name: Field12t, PriceColumn: "vehicle_up_to_12_t_avg_price_per_km", WeightColumn: "number_of_offers_vehicle_up_to_12_t"},
		},
		Median:  MedianOfDailyMedians,
		Windows: windows,
	}
}

// ExchangeBSpec describes the Trans.eu offers table
func ExchangeBSpec(windows []int) SourceSpec {
	return SourceSpec{
		Source:      SourceExchangeB,
		Table:       `public."OffersTransEU"`,
		StartColumn: "starting_id",
		EndColumn:   "destination_id",
		DateColumn:  "enlistment_date",
		TotalColumn: "number_of_offers",
		Fields: []PriceField{
			{Name: FieldLorry, PriceColumn: "lorry_avg_price_per_km", WeightColumn: "number_of_offers", MedianColumn: "lorry_median_price_per_km"},
		},
		Median:  MedianOfDailyMedians,
		Windows: windows,
	}
}

// OrdersSpec describes the completed orders history table
func OrdersSpec(windows []int) SourceSpec {
	return SourceSpec{
		Source:      SourceOrders,
		Table:       "public.historical_orders",
		StartColumn: "start_postal_code",
		EndColumn:   "end_postal_code",
		DateColumn:  "order_date",
		Fields: []PriceField{
			{Name: FieldOrder, PriceColumn: "price_per_km"},
		},
		Median:         MedianExactPercentile,
		Windows:        windows,
		CarrierColumn:  "carrier_id",
		CategoryColumn: "cargo_category",
		AmountColumn:   "freight_amount",
		DistanceColumn: "distance_km",
		StatusColumn:   "status",
		ClientColumn:   "client_id",
	}
}
