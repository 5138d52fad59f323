// Package matcher finds the nearest historical route when a requested route
// has no history of its own.
package matcher

import (
	"sort"

	"route-pricing/internal/geo"
	"route-pricing/internal/models"
)

// Defaults for the deviation thresholds, in kilometres
const (
	DefaultToleranceKm = 100.0
	DefaultExactKm     = 1.0
	DefaultHighKm      = 50.0
)

// Options holds the matching thresholds
type Options struct {
	ToleranceKm float64
	ExactKm     float64
	HighKm      float64
}

// DefaultOptions returns the production thresholds
func DefaultOptions() Options {
	return Options{
		ToleranceKm: DefaultToleranceKm,
		ExactKm:     DefaultExactKm,
		HighKm:      DefaultHighKm,
	}
}

// Locator resolves a region code to a coordinate
type Locator interface {
	Locate(code string) (models.Coordinate, bool)
}

// DistanceFunc computes the distance in km between two coordinates
type DistanceFunc func(a, b models.Coordinate) float64

// Matcher selects substitute routes by endpoint proximity
type Matcher struct {
	locator  Locator
	opts     Options
	distance DistanceFunc
}

// New creates a matcher measuring great-circle distances
func New(locator Locator, opts Options) *Matcher {
	return &Matcher{
		locator:  locator,
		opts:     opts,
		distance: geo.DistanceKm,
	}
}

// WithDistance replaces the distance function
func (m *Matcher) WithDistance(fn DistanceFunc) *Matcher {
	m.distance = fn
	return m
}

type scored struct {
	route    models.RouteKey
	startDev float64
	endDev   float64
}

func (s scored) less(o scored) bool {
	if s.startDev+s.endDev != o.startDev+o.endDev {
		return s.startDev+s.endDev < o.startDev+o.endDev
	}
	if s.endDev != o.endDev {
		return s.endDev < o.endDev
	}
	return s.route.String() < o.route.String()
}

func (s scored) lessLow(o scored) bool {
	if s.startDev != o.startDev {
		return s.startDev < o.startDev
	}
	if s.endDev != o.endDev {
		return s.endDev < o.endDev
	}
	return s.route.String() < o.route.String()
}

// Match picks the best candidate for the requested route.
// Candidates whose start lies beyond the tolerance, or whose endpoints
// cannot be located, are skipped. ok is false when nothing qualifies.
func (m *Matcher) Match(requested models.RouteKey, candidates []models.RouteKey) (*models.MatchResult, bool) {
	start, ok := m.locator.Locate(requested.Start)
	if !ok {
		return nil, false
	}
	end, ok := m.locator.Locate(requested.End)
	if !ok {
		return nil, false
	}

	var within, low []scored
	for _, c := range candidates {
		cStart, ok := m.locator.Locate(c.Start)
		if !ok {
			continue
		}
		cEnd, ok := m.locator.Locate(c.End)
		if !ok {
			continue
		}

		s := scored{
			route:    c,
			startDev: m.distance(start, cStart),
			endDev:   m.distance(end, cEnd),
		}
		if s.startDev > m.opts.ToleranceKm {
			continue
		}
		if s.endDev <= m.opts.ToleranceKm {
			within = append(within, s)
		} else {
			low = append(low, s)
		}
	}

	var best scored
	switch {
	case len(within) > 0:
		sort.Slice(within, func(i, j int) bool { return within[i].less(within[j]) })
		best = within[0]
	case len(low) > 0:
		sort.Slice(low, func(i, j int) bool { return low[i].lessLow(low[j]) })
		best = low[0]
	default:
		return nil, false
	}

	return &models.MatchResult{
		Requested:        requested,
		Matched:          best.route,
		StartDeviationKm: round2(best.startDev),
		EndDeviationKm:   round2(best.endDev),
		Accuracy:         m.Classify(best.startDev, best.endDev),
	}, true
}

// Classify assigns the accuracy tier for a pair of deviations.
// Callers only classify candidates whose start is within tolerance.
func (m *Matcher) Classify(startDev, endDev float64) models.Accuracy {
	switch {
	case startDev < m.opts.ExactKm && endDev < m.opts.ExactKm:
		return models.AccuracyExact
	case startDev < m.opts.HighKm && endDev < m.opts.HighKm:
		return models.AccuracyHigh
	case startDev <= m.opts.ToleranceKm && endDev <= m.opts.ToleranceKm:
		return models.AccuracyMedium
	default:
		return models.AccuracyLow
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
