package matcher

import (
	"testing"

	"route-pricing/internal/models"
)

// lineLocator places codes on a flat line so deviations are exact kilometres
type lineLocator map[string]float64

func (l lineLocator) Locate(code string) (models.Coordinate, bool) {
	x, ok := l[code]
	return models.Coordinate{Lon: x}, ok
}

func lineDistance(a, b models.Coordinate) float64 {
	d := a.Lon - b.Lon
	if d < 0 {
		return -d
	}
	return d
}

func newLineMatcher(points map[string]float64) *Matcher {
	return New(lineLocator(points), DefaultOptions()).WithDistance(lineDistance)
}

func TestClassify(t *testing.T) {
	m := New(lineLocator{}, DefaultOptions())
	tests := []struct {
		startDev, endDev float64
		want             models.Accuracy
	}{
		{0.5, 0.5, models.AccuracyExact},
		{0.5, 1.0, models.AccuracyHigh},
		{40, 45, models.AccuracyHigh},
		{50, 10, models.AccuracyMedium},
		{80, 90, models.AccuracyMedium},
		{100, 100, models.AccuracyMedium},
		{20, 150, models.AccuracyLow},
		{20, 100.5, models.AccuracyLow},
	}

	for _, tt := range tests {
		if got := m.Classify(tt.startDev, tt.endDev); got != tt.want {
			t.Errorf("Classify(%v, %v) = %v, want %v", tt.startDev, tt.endDev, got, tt.want)
		}
	}
}

func TestMatchToleranceBoundary(t *testing.T) {
	points := map[string]float64{
		"REQ_S": 0, "REQ_E": 1000,
		"AT_S": 100, "AT_E": 1000,
		"OUT_S": 101, "OUT_E": 1000,
	}
	m := newLineMatcher(points)
	requested := models.RouteKey{Start: "REQ_S", End: "REQ_E"}

	res, ok := m.Match(requested, []models.RouteKey{{Start: "AT_S", End: "AT_E"}})
	if !ok {
		t.Fatal("candidate exactly at tolerance should match")
	}
	if res.StartDeviationKm != 100 {
		t.Errorf("StartDeviationKm = %v, want %v", res.StartDeviationKm, 100)
	}

	if _, ok := m.Match(requested, []models.RouteKey{{Start: "OUT_S", End: "OUT_E"}}); ok {
		t.Error("candidate one km beyond tolerance should not match")
	}
}

func TestMatchPrefersEndWithinTolerance(t *testing.T) {
	points := map[string]float64{
		"REQ_S": 0, "REQ_E": 500,
		"A_S": 1, "A_E": 700,
		"B_S": 60, "B_E": 530,
	}
	m := newLineMatcher(points)

	res, ok := m.Match(models.RouteKey{Start: "REQ_S", End: "REQ_E"}, []models.RouteKey{
		{Start: "A_S", End: "A_E"},
		{Start: "B_S", End: "B_E"},
	})
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Matched.Start != "B_S" {
		t.Errorf("Matched = %v, want B_S->B_E", res.Matched)
	}
	if res.Accuracy != models.AccuracyMedium {
		t.Errorf("Accuracy = %v, want %v", res.Accuracy, models.AccuracyMedium)
	}
}

func TestMatchTieBreakOnEndDeviation(t *testing.T) {
	points := map[string]float64{
		"REQ_S": 0, "REQ_E": 500,
		"A_S": 20, "A_E": 470,
		"B_S": 20, "B_E": 510,
		"C_S": 40, "C_E": 490,
	}
	m := newLineMatcher(points)

	res, ok := m.Match(models.RouteKey{Start: "REQ_S", End: "REQ_E"}, []models.RouteKey{
		{Start: "A_S", End: "A_E"},
		{Start: "C_S", End: "C_E"},
		{Start: "B_S", End: "B_E"},
	})
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Matched.Start != "B_S" {
		t.Errorf("Matched = %v, want B_S->B_E", res.Matched)
	}
	if res.EndDeviationKm != 10 {
		t.Errorf("EndDeviationKm = %v, want %v", res.EndDeviationKm, 10)
	}
	if res.Accuracy != models.AccuracyHigh {
		t.Errorf("Accuracy = %v, want %v", res.Accuracy, models.AccuracyHigh)
	}
}

func TestMatchLowFallback(t *testing.T) {
	points := map[string]float64{
		"REQ_S": 0, "REQ_E": 500,
		"A_S": 30, "A_E": 900,
		"B_S": 10, "B_E": 800,
		"C_S": 150, "C_E": 500,
	}
	m := newLineMatcher(points)

	res, ok := m.Match(models.RouteKey{Start: "REQ_S", End: "REQ_E"}, []models.RouteKey{
		{Start: "A_S", End: "A_E"},
		{Start: "B_S", End: "B_E"},
		{Start: "C_S", End: "C_E"},
	})
	if !ok {
		t.Fatal("expected a low accuracy match")
	}
	if res.Matched.Start != "B_S" {
		t.Errorf("Matched = %v, want B_S->B_E", res.Matched)
	}
	if res.Accuracy != models.AccuracyLow {
		t.Errorf("Accuracy = %v, want %v", res.Accuracy, models.AccuracyLow)
	}
}

func TestMatchNoMatch(t *testing.T) {
	points := map[string]float64{
		"REQ_S": 0, "REQ_E": 500,
		"FAR_S": 300, "FAR_E": 500,
	}
	m := newLineMatcher(points)

	tests := []struct {
		name       string
		requested  models.RouteKey
		candidates []models.RouteKey
	}{
		{
			name:       "unknown requested start",
			requested:  models.RouteKey{Start: "NOPE", End: "REQ_E"},
			candidates: []models.RouteKey{{Start: "FAR_S", End: "FAR_E"}},
		},
		{
			name:       "empty candidate set",
			requested:  models.RouteKey{Start: "REQ_S", End: "REQ_E"},
			candidates: nil,
		},
		{
			name:       "start beyond tolerance",
			requested:  models.RouteKey{Start: "REQ_S", End: "REQ_E"},
			candidates: []models.RouteKey{{Start: "FAR_S", End: "FAR_E"}},
		},
		{
			name:       "candidate without coordinates",
			requested:  models.RouteKey{Start: "REQ_S", End: "REQ_E"},
			candidates: []models.RouteKey{{Start: "REQ_S", End: "GHOST"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res, ok := m.Match(tt.requested, tt.candidates); ok {
				t.Errorf("Match() = %+v, want no match", res)
			}
		})
	}
}

func TestMatchHaversineHighAccuracy(t *testing.T) {
	// Two points roughly 30 km from Warsaw and Krakow
	points := map[string]models.Coordinate{
		"PL00": {Lat: 52.2297, Lon: 21.0122},
		"PL30": {Lat: 50.0647, Lon: 19.9450},
		"PL05": {Lat: 52.2297, Lon: 21.4522},
		"PL32": {Lat: 50.0647, Lon: 20.3650},
	}
	m := New(coordLocator(points), DefaultOptions())

	res, ok := m.Match(models.RouteKey{Start: "PL00", End: "PL30"}, []models.RouteKey{{Start: "PL05", End: "PL32"}})
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Accuracy != models.AccuracyHigh {
		t.Errorf("Accuracy = %v, want %v", res.Accuracy, models.AccuracyHigh)
	}
	if res.StartDeviationKm < 25 || res.StartDeviationKm > 35 {
		t.Errorf("StartDeviationKm = %v, want about 30", res.StartDeviationKm)
	}
	if res.EndDeviationKm < 25 || res.EndDeviationKm > 35 {
		t.Errorf("EndDeviationKm = %v, want about 30", res.EndDeviationKm)
	}
}

type coordLocator map[string]models.Coordinate

func (l coordLocator) Locate(code string) (models.Coordinate, bool) {
	c, ok := l[code]
	return c, ok
}
