package aggregate

import (
	"math"
	"testing"
	"time"

	"route-pricing/internal/models"
)

var testRoute = models.RouteKey{Start: "PL50", End: "DE10"}

func f64(v float64) *float64 { return &v }

func day(d int) time.Time {
	return time.Date(2026, time.October, d, 0, 0, 0, 0, time.UTC)
}

func lorryRow(d int, price float64, weight int64, median *float64) models.Observation {
	return models.Observation{
		Route: testRoute,
		Date:  day(d),
		Fields: map[string]models.FieldValue{
			models.FieldLorry: {Price: f64(price), Weight: weight, Median: median},
		},
		Count: weight,
	}
}

func orderRow(d int, price float64, carrier, category string, distance float64) models.Observation {
	return models.Observation{
		Route: testRoute,
		Date:  day(d),
		Fields: map[string]models.FieldValue{
			models.FieldOrder: {Price: f64(price), Weight: 1},
		},
		Count:      1,
		CarrierID:  carrier,
		Category:   category,
		Amount:     f64(price * distance),
		DistanceKm: f64(distance),
	}
}

func approx(got *float64, want float64) bool {
	return got != nil && math.Abs(*got-want) < 1e-4
}

func TestWeightedAverageUniformWeightsIsMean(t *testing.T) {
	rows := []models.Observation{
		lorryRow(1, 1.0, 3, nil),
		lorryRow(2, 2.0, 3, nil),
		lorryRow(3, 4.5, 3, nil),
	}

	got := WeightedAverage(rows, models.FieldLorry)
	mean := Mean(rows, models.FieldLorry)
	if !approx(got, 2.5) {
		t.Errorf("WeightedAverage() = %v, want %v", got, 2.5)
	}
	if !approx(mean, *got) {
		t.Errorf("Mean() = %v, want %v", mean, *got)
	}
}

func TestWeightedAverage(t *testing.T) {
	tests := []struct {
		name string
		rows []models.Observation
		want *float64
	}{
		{
			name: "weighted",
			rows: []models.Observation{lorryRow(1, 1.0, 1, nil), lorryRow(2, 2.0, 3, nil)},
			want: f64(1.75),
		},
		{
			name: "all zero weights is null",
			rows: []models.Observation{lorryRow(1, 1.0, 0, nil), lorryRow(2, 2.0, 0, nil)},
			want: nil,
		},
		{
			name: "null prices ignored",
			rows: []models.Observation{
				lorryRow(1, 1.2, 2, nil),
				{Date: day(2), Fields: map[string]models.FieldValue{models.FieldLorry: {Weight: 10}}},
			},
			want: f64(1.2),
		},
		{
			name: "no rows",
			rows: nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeightedAverage(tt.rows, models.FieldLorry)
			if tt.want == nil {
				if got != nil {
					t.Errorf("WeightedAverage() = %v, want nil", *got)
				}
				return
			}
			if !approx(got, *tt.want) {
				t.Errorf("WeightedAverage() = %v, want %v", got, *tt.want)
			}
		})
	}
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		values []float64
		p      float64
		want   float64
	}{
		{[]float64{3, 1, 2}, 0.5, 2},
		{[]float64{1, 2, 3, 4}, 0.5, 2.5},
		{[]float64{5}, 0.5, 5},
		{[]float64{1, 2, 3, 4, 5}, 0.25, 2},
		{[]float64{10, 20}, 0.9, 19},
	}

	for _, tt := range tests {
		got := Percentile(tt.values, tt.p)
		if !approx(got, tt.want) {
			t.Errorf("Percentile(%v, %v) = %v, want %v", tt.values, tt.p, got, tt.want)
		}
	}

	if got := Percentile(nil, 0.5); got != nil {
		t.Errorf("Percentile(nil) = %v, want nil", *got)
	}
}

func TestMeanOfMedians(t *testing.T) {
	rows := []models.Observation{
		lorryRow(1, 1.0, 1, f64(0.9)),
		lorryRow(2, 1.0, 1, f64(1.3)),
		lorryRow(3, 1.0, 1, nil),
	}
	if got := MeanOfMedians(rows, models.FieldLorry); !approx(got, 1.1) {
		t.Errorf("MeanOfMedians() = %v, want %v", got, 1.1)
	}
}

func TestWithinWindow(t *testing.T) {
	now := time.Date(2026, time.October, 18, 15, 30, 0, 0, time.UTC)
	rows := []models.Observation{
		lorryRow(18, 1, 1, nil),
		lorryRow(11, 1, 1, nil),
		lorryRow(10, 1, 1, nil),
	}

	if got := len(WithinWindow(rows, 7, now)); got != 2 {
		t.Errorf("len(WithinWindow(7)) = %v, want %v", got, 2)
	}
	if got := len(WithinWindow(rows, 30, now)); got != 3 {
		t.Errorf("len(WithinWindow(30)) = %v, want %v", got, 3)
	}
}

func TestWithinWindowLocalClockBehindUTC(t *testing.T) {
	// 10:00 on Oct 18 in UTC-5 is 15:00 UTC; the store's CURRENT_DATE is Oct 18
	now := time.Date(2026, time.October, 18, 10, 0, 0, 0, time.FixedZone("UTC-5", -5*3600))
	rows := []models.Observation{
		lorryRow(11, 1, 1, nil),
		lorryRow(10, 1, 1, nil),
	}

	kept := WithinWindow(rows, 7, now)
	if len(kept) != 1 {
		t.Fatalf("len(WithinWindow(7)) = %v, want %v", len(kept), 1)
	}
	if !kept[0].Date.Equal(day(11)) {
		t.Errorf("kept date = %v, want %v", kept[0].Date, day(11))
	}
}

func TestOutlierFilterPartition(t *testing.T) {
	filter := OutlierFilter{Threshold: 10, Cap: 2, Fields: []string{models.FieldLorry}}
	rows := []models.Observation{
		lorryRow(1, 1.1, 1, nil),
		lorryRow(2, 12.0, 1, nil),
		lorryRow(3, 10.0, 1, nil),
		lorryRow(4, 40.0, 1, nil),
		lorryRow(5, 15.0, 1, nil),
	}

	clean, outliers := filter.Partition(rows)
	if len(clean) != 2 {
		t.Errorf("len(clean) = %v, want %v", len(clean), 2)
	}
	if len(outliers) != 3 {
		t.Errorf("len(outliers) = %v, want %v", len(outliers), 3)
	}

	diag := filter.Diagnostics(outliers)
	if len(diag) != 2 {
		t.Fatalf("len(Diagnostics()) = %v, want %v", len(diag), 2)
	}
	if diag[0].Severity != 40.0 || diag[1].Severity != 15.0 {
		t.Errorf("Diagnostics() severities = [%v %v], want [40 15]", diag[0].Severity, diag[1].Severity)
	}

	again, none := filter.Partition(clean)
	if len(again) != len(clean) || len(none) != 0 {
		t.Errorf("filtering a clean set changed it: %d clean, %d outliers", len(again), len(none))
	}
	for i := range clean {
		if again[i].Date != clean[i].Date {
			t.Errorf("row %d reordered after refiltering", i)
		}
	}
}

func TestOutlierFilterAnyField(t *testing.T) {
	filter := OutlierFilter{Threshold: 10, Cap: 5, Fields: []string{models.FieldTrailer, models.Field12t}}
	row := models.Observation{
		Date: day(1),
		Fields: map[string]models.FieldValue{
			models.FieldTrailer: {Price: f64(1.0), Weight: 1},
			models.Field12t:     {Price: f64(11.0), Weight: 1},
		},
	}

	_, outliers := filter.Partition([]models.Observation{row})
	if len(outliers) != 1 {
		t.Fatalf("len(outliers) = %v, want %v", len(outliers), 1)
	}
	if diag := filter.Diagnostics(outliers); diag[0].Field != models.Field12t {
		t.Errorf("Field = %v, want %v", diag[0].Field, models.Field12t)
	}
}

func TestAggregateExchange(t *testing.T) {
	agg := New(models.ExchangeBSpec([]int{7, 30}), DefaultOptions())
	rows := []models.Observation{
		lorryRow(1, 1.0, 2, f64(1.0)),
		lorryRow(2, 2.0, 2, f64(2.0)),
		lorryRow(2, 50.0, 9, f64(50.0)),
	}

	out := agg.Aggregate(testRoute, 30, rows)
	if !out.IsPresent() {
		t.Fatalf("Aggregate() = %v, want present", out)
	}

	a := out.Aggregate
	if !approx(a.AvgPricePerKm[models.FieldLorry], 1.5) {
		t.Errorf("AvgPricePerKm = %v, want %v", a.AvgPricePerKm[models.FieldLorry], 1.5)
	}
	if !approx(a.MedianOfDailyMedians[models.FieldLorry], 1.5) {
		t.Errorf("MedianOfDailyMedians = %v, want %v", a.MedianOfDailyMedians[models.FieldLorry], 1.5)
	}
	if a.MedianExact != nil {
		t.Error("exchange aggregate should not carry an exact median")
	}
	if a.TotalCount != 4 {
		t.Errorf("TotalCount = %v, want %v", a.TotalCount, 4)
	}
	if a.DaysWithData != 2 {
		t.Errorf("DaysWithData = %v, want %v", a.DaysWithData, 2)
	}
	if a.ExcludedOutliers != 1 || len(out.Outliers) != 1 {
		t.Errorf("ExcludedOutliers = %v (%d diagnostics), want 1", a.ExcludedOutliers, len(out.Outliers))
	}
}

func TestAggregateAbsence(t *testing.T) {
	agg := New(models.ExchangeBSpec([]int{30}), DefaultOptions())

	tests := []struct {
		name string
		rows []models.Observation
		want models.AbsenceReason
	}{
		{name: "no rows", rows: nil, want: models.ReasonNoRows},
		{
			name: "all outliers",
			rows: []models.Observation{lorryRow(1, 11, 1, nil), lorryRow(2, 25, 3, nil)},
			want: models.ReasonAllOutliers,
		},
		{
			name: "only zero weights",
			rows: []models.Observation{lorryRow(1, 1.2, 0, nil)},
			want: models.ReasonNullPrices,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := agg.Aggregate(testRoute, 30, tt.rows)
			if out.IsPresent() {
				t.Fatalf("Aggregate() = %v, want absent", out)
			}
			if out.Reason != tt.want {
				t.Errorf("Reason = %v, want %v", out.Reason, tt.want)
			}
		})
	}

	out := agg.Aggregate(testRoute, 30, []models.Observation{lorryRow(1, 11, 1, nil)})
	if len(out.Outliers) != 1 {
		t.Errorf("absent outcome dropped outlier diagnostics: %d rows", len(out.Outliers))
	}
}

func TestAggregateExcludedCountIsUncapped(t *testing.T) {
	agg := New(models.ExchangeBSpec([]int{30}), DefaultOptions())

	var rows []models.Observation
	for d := 1; d <= 20; d++ {
		rows = append(rows, lorryRow(d, 11+float64(d), 1, nil))
	}

	out := agg.Aggregate(testRoute, 30, rows)
	if out.IsPresent() {
		t.Fatalf("Aggregate() = %v, want absent", out)
	}
	if len(out.Outliers) != DefaultOutlierCap {
		t.Errorf("len(Outliers) = %v, want %v", len(out.Outliers), DefaultOutlierCap)
	}
	if out.Excluded != 20 {
		t.Errorf("Excluded = %v, want %v", out.Excluded, 20)
	}

	rows = append(rows, lorryRow(21, 1.2, 4, nil))
	out = agg.Aggregate(testRoute, 30, rows)
	if !out.IsPresent() {
		t.Fatalf("Aggregate() = %v, want present", out)
	}
	if out.Excluded != 20 || out.Aggregate.ExcludedOutliers != 20 {
		t.Errorf("Excluded = %v/%v, want 20", out.Excluded, out.Aggregate.ExcludedOutliers)
	}
}

func TestAggregateOrdersByCategory(t *testing.T) {
	agg := New(models.OrdersSpec([]int{30}), DefaultOptions())
	rows := []models.Observation{
		orderRow(1, 1.0, "c1", models.CategoryFullLoad, 100),
		orderRow(2, 2.0, "c2", models.CategoryFullLoad, 300),
		orderRow(3, 3.0, "c2", models.CategoryFullLoad, 100),
		orderRow(3, 30.0, "c3", models.CategoryPartialLoad, 100),
	}

	out := agg.Aggregate(testRoute, 30, rows)
	if !out.IsPresent() {
		t.Fatalf("Aggregate() = %v, want present", out)
	}

	ftl := out.Aggregate.Categories[models.CategoryFullLoad]
	if ftl == nil {
		t.Fatal("missing FTL sub-aggregate")
	}
	if !approx(ftl.MedianExact[models.FieldOrder], 2.0) {
		t.Errorf("MedianExact = %v, want %v", ftl.MedianExact[models.FieldOrder], 2.0)
	}
	if !approx(ftl.AvgPricePerKm[models.FieldOrder], 2.0) {
		t.Errorf("AvgPricePerKm = %v, want %v", ftl.AvgPricePerKm[models.FieldOrder], 2.0)
	}
	if ftl.MedianOfDailyMedians != nil {
		t.Error("orders aggregate should not carry a median of daily medians")
	}
	if len(ftl.TopCarriers) != 2 || ftl.TopCarriers[0].CarrierID != "c2" {
		t.Errorf("TopCarriers = %+v, want c2 first", ftl.TopCarriers)
	}
	if got := ftl.TopCarriers[0].WeightedPricePerKm; !approx(got, 2.25) {
		t.Errorf("WeightedPricePerKm = %v, want %v", got, 2.25)
	}

	if _, ok := out.Aggregate.Categories[models.CategoryPartialLoad]; ok {
		t.Error("LTL made only of outliers should be absent")
	}
	if len(out.Aggregate.AbsentCategories) != 1 || out.Aggregate.AbsentCategories[0] != models.CategoryPartialLoad {
		t.Errorf("AbsentCategories = %v, want [LTL]", out.Aggregate.AbsentCategories)
	}
	if out.Aggregate.ExcludedOutliers != 0 {
		t.Errorf("ExcludedOutliers = %v, want 0 across present categories", out.Aggregate.ExcludedOutliers)
	}
	if len(out.Outliers) != 1 {
		t.Errorf("len(Outliers) = %v, want %v", len(out.Outliers), 1)
	}
	if out.Excluded != 1 {
		t.Errorf("Excluded = %v, want %v including absent categories", out.Excluded, 1)
	}
}

func TestTopCarriersTieBreak(t *testing.T) {
	rows := []models.Observation{
		orderRow(1, 1.0, "zeta", models.CategoryFullLoad, 100),
		orderRow(2, 1.0, "zeta", models.CategoryFullLoad, 100),
		orderRow(1, 1.0, "beta", models.CategoryFullLoad, 100),
		orderRow(2, 1.0, "beta", models.CategoryFullLoad, 100),
		orderRow(1, 1.0, "alpha", models.CategoryFullLoad, 100),
		orderRow(2, 1.0, "alpha", models.CategoryFullLoad, 100),
		orderRow(3, 1.0, "omega", models.CategoryFullLoad, 100),
		orderRow(3, 1.0, "delta", models.CategoryFullLoad, 100),
		orderRow(3, 1.0, "", models.CategoryFullLoad, 100),
	}

	got := TopCarriers(rows, models.FieldOrder, 4)
	want := []string{"alpha", "beta", "zeta", "delta"}
	if len(got) != len(want) {
		t.Fatalf("len(TopCarriers()) = %v, want %v", len(got), len(want))
	}
	for i, id := range want {
		if got[i].CarrierID != id {
			t.Errorf("TopCarriers()[%d] = %v, want %v", i, got[i].CarrierID, id)
		}
	}
	if got[0].Orders != 2 || !approx(got[0].AvgAmount, 100) || got[0].TotalAmount != 200 {
		t.Errorf("alpha stats = %+v", got[0])
	}
}

func TestReportSlicesWindows(t *testing.T) {
	agg := New(models.ExchangeBSpec([]int{7, 30}), DefaultOptions())
	now := time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC)
	rows := []models.Observation{
		lorryRow(1, 1.0, 1, nil),
	}

	report := agg.Report(testRoute, rows, now)
	if report.Windows[7].IsPresent() {
		t.Error("7d window should be absent for a row 17 days old")
	}
	if report.Windows[7].Reason != models.ReasonNoRows {
		t.Errorf("7d Reason = %v, want %v", report.Windows[7].Reason, models.ReasonNoRows)
	}
	if !report.Windows[30].IsPresent() {
		t.Error("30d window should be present")
	}
	if !report.Present() {
		t.Error("report should be present")
	}
}
