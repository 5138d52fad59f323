// Package geo resolves postal codes to coordinates and measures
// great-circle distances between them.
package geo

import (
	"math"

	"route-pricing/internal/models"
)

// EarthRadiusKm is the mean Earth radius used by the spherical approximation
const EarthRadiusKm = 6371.0

// DistanceKm returns the haversine great-circle distance between two coordinates.
// It is symmetric and DistanceKm(a, a) == 0.
func DistanceKm(a, b models.Coordinate) float64 {
	phi1 := a.Lat * math.Pi / 180.0
	phi2 := b.Lat * math.Pi / 180.0
	dPhi := (b.Lat - a.Lat) * math.Pi / 180.0
	dLambda := (b.Lon - a.Lon) * math.Pi / 180.0

	sinDPhi := math.Sin(dPhi / 2)
	sinDLambda := math.Sin(dLambda / 2)
	h := sinDPhi*sinDPhi + math.Cos(phi1)*math.Cos(phi2)*sinDLambda*sinDLambda

	// rounding can push h marginally outside [0, 1] for antipodal points
	if h < 0 {
		h = 0
	}
	if h > 1 {
		h = 1
	}

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
