package routing

import (
	"context"
	"math"

	"route-pricing/internal/geo"
	"route-pricing/internal/models"
	"route-pricing/pkg/logging"
	"route-pricing/pkg/metrics"
)

// Distance methods reported with a quote
const (
	MethodProvider  = "aws"
	MethodHaversine = "haversine_fallback"
)

// DefaultRoadFactor inflates straight-line distance to approximate road distance
const DefaultRoadFactor = 1.3

// RouteProvider returns road routes; *Client implements it
type RouteProvider interface {
	TruckRoute(ctx context.Context, from, to models.Coordinate) (*RoadRoute, error)
}

// Estimator answers road distances and never fails
type Estimator struct {
	provider   RouteProvider
	roadFactor float64
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// NewEstimator creates an estimator; a nil provider always uses the fallback
func NewEstimator(provider RouteProvider, roadFactor float64, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Estimator {
	if roadFactor < 1 {
		roadFactor = DefaultRoadFactor
	}
	return &Estimator{
		provider:   provider,
		roadFactor: roadFactor,
		logger:     logger,
		metrics:    metricsCollector,
	}
}

// Distance returns the provider's road distance, or haversine times the
// road factor when the provider is missing or fails
func (e *Estimator) Distance(ctx context.Context, from, to models.Coordinate) *models.RouteDistance {
	if e.provider != nil {
		route, err := e.provider.TruckRoute(ctx, from, to)
		if err == nil {
			e.metrics.RecordRoadDistance(MethodProvider)
			duration := route.DurationSeconds
			return &models.RouteDistance{
				Km:              route.DistanceKm,
				Method:          MethodProvider,
				DurationSeconds: &duration,
			}
		}
		e.logger.Warn(ctx, "[ROUTING] Road distance unavailable, using straight-line estimate", logging.Fields{
			"error": err.Error(),
		})
	}

	e.metrics.RecordRoadDistance(MethodHaversine)
	straight := round2(geo.DistanceKm(from, to))
	factor := e.roadFactor
	return &models.RouteDistance{
		Km:             round2(straight * factor),
		Method:         MethodHaversine,
		StraightLineKm: &straight,
		RoadFactor:     &factor,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
