package geo

import (
	"math"
	"testing"

	"route-pricing/internal/models"
)

var (
	warsaw = models.Coordinate{Lat: 52.2297, Lon: 21.0122}
	krakow = models.Coordinate{Lat: 50.0647, Lon: 19.9450}
	berlin = models.Coordinate{Lat: 52.5200, Lon: 13.4050}
)

func TestDistanceKm(t *testing.T) {
	tests := []struct {
		name    string
		a, b    models.Coordinate
		want    float64
		epsilon float64
	}{
		{name: "Warsaw to Krakow", a: warsaw, b: krakow, want: 252.0, epsilon: 2.0},
		{name: "Warsaw to Berlin", a: warsaw, b: berlin, want: 517.0, epsilon: 3.0},
		{name: "same point", a: berlin, b: berlin, want: 0, epsilon: 1e-9},
		{name: "one degree of latitude", a: models.Coordinate{Lat: 0, Lon: 0}, b: models.Coordinate{Lat: 1, Lon: 0}, want: 111.19, epsilon: 0.01},
		{name: "antipodal points", a: models.Coordinate{Lat: 0, Lon: 0}, b: models.Coordinate{Lat: 0, Lon: 180}, want: math.Pi * EarthRadiusKm, epsilon: 1e-6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.epsilon {
				t.Errorf("DistanceKm() = %v, want %v ± %v", got, tt.want, tt.epsilon)
			}
		})
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	points := []models.Coordinate{warsaw, krakow, berlin, {Lat: -33.86, Lon: 151.21}, {Lat: 40.71, Lon: -74.0}}
	for _, a := range points {
		if d := DistanceKm(a, a); d != 0 {
			t.Errorf("DistanceKm(%v, %v) = %v, want 0", a, a, d)
		}
		for _, b := range points {
			if diff := math.Abs(DistanceKm(a, b) - DistanceKm(b, a)); diff > 1e-6 {
				t.Errorf("DistanceKm not symmetric for %v, %v: diff %v", a, b, diff)
			}
		}
	}
}

func TestGeocoderLocate(t *testing.T) {
	g := NewGeocoder(map[string]models.Coordinate{
		"PL50":    {Lat: 51.1, Lon: 17.03},
		"PL502":   {Lat: 51.2, Lon: 17.1},
		"PL00":    warsaw,
		"DE10":    berlin,
		"garbage": {Lat: 1, Lon: 1},
	})

	if g.Len() != 4 {
		t.Fatalf("Len() = %v, want %v", g.Len(), 4)
	}

	tests := []struct {
		name   string
		code   string
		want   models.Coordinate
		wantOK bool
	}{
		{name: "exact match", code: "PL50", want: models.Coordinate{Lat: 51.1, Lon: 17.03}, wantOK: true},
		{name: "exact match after cleaning", code: "de-10", want: berlin, wantOK: true},
		{name: "prefix match", code: "PL0", want: warsaw, wantOK: true},
		{name: "prefix match picks first stored code", code: "PL5", want: models.Coordinate{Lat: 51.1, Lon: 17.03}, wantOK: true},
		{name: "digits only uses default country", code: "00", want: warsaw, wantOK: true},
		{name: "unknown local code", code: "PL99", wantOK: false},
		{name: "longer than any stored code", code: "PL50999", wantOK: false},
		{name: "unknown country", code: "FR75", wantOK: false},
		{name: "unparseable", code: "??", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := g.Locate(tt.code)
			if ok != tt.wantOK {
				t.Fatalf("Locate(%q) ok = %v, want %v", tt.code, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Locate(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}
