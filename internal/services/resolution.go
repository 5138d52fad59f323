package services

import (
	"context"
	"errors"

	"route-pricing/internal/matcher"
	"route-pricing/internal/models"
	"route-pricing/internal/repository"
	"route-pricing/pkg/logging"
)

// resolutionState tracks historical order route resolution:
// resolvingExact -> resolvingFuzzy -> resolved | unresolved
type resolutionState int

const (
	resolvingExact resolutionState = iota
	resolvingFuzzy
	resolved
	unresolved
)

func (s resolutionState) String() string {
	switch s {
	case resolvingExact:
		return "resolving_exact"
	case resolvingFuzzy:
		return "resolving_fuzzy"
	case resolved:
		return "resolved"
	default:
		return "unresolved"
	}
}

// resolution is the outcome of resolving one requested route
type resolution struct {
	state     resolutionState
	requested models.RouteKey
	route     models.RouteKey
	rows      []models.Observation
	match     *models.MatchResult
	reason    models.AbsenceReason
	err       error
}

// resolver runs the two-phase lookup. Each phase is a method so tests can
// drive them one at a time.
type resolver struct {
	repo    repository.PricingRepository
	spec    models.SourceSpec
	matcher *matcher.Matcher // nil disables the fuzzy phase
	logger  *logging.StructuredLogger
	onMatch func(accuracy string)
}

func (r *resolver) resolve(ctx context.Context, requested models.RouteKey) resolution {
	res := resolution{state: resolvingExact, requested: requested, route: requested}
	for {
		switch res.state {
		case resolvingExact:
			res = r.exact(ctx, res)
		case resolvingFuzzy:
			res = r.fuzzy(ctx, res)
		default:
			return res
		}
	}
}

// exact fetches the requested route; zero rows moves on to fuzzy matching
func (r *resolver) exact(ctx context.Context, res resolution) resolution {
	rows, err := r.repo.FetchObservations(ctx, r.spec, res.requested, r.spec.MaxWindow())
	if err != nil {
		return fail(res, err)
	}
	if len(rows) > 0 {
		res.rows = rows
		res.state = resolved
		return res
	}
	if r.matcher == nil {
		res.state = unresolved
		res.reason = models.ReasonNoRows
		return res
	}
	res.state = resolvingFuzzy
	return res
}

// fuzzy substitutes the nearest route that has history
func (r *resolver) fuzzy(ctx context.Context, res resolution) resolution {
	candidates, err := r.repo.ListRoutes(ctx, r.spec, r.spec.MaxWindow())
	if err != nil {
		return fail(res, err)
	}

	filtered := candidates[:0:0]
	for _, c := range candidates {
		if c != res.requested {
			filtered = append(filtered, c)
		}
	}

	match, ok := r.matcher.Match(res.requested, filtered)
	if !ok {
		r.recordMatch("none")
		r.logger.Debug(ctx, "[MATCH] No substitute route within tolerance", logging.Fields{
			"route":      res.requested.String(),
			"candidates": len(filtered),
		})
		res.state = unresolved
		res.reason = models.ReasonNoMatch
		return res
	}
	r.recordMatch(string(match.Accuracy))

	rows, err := r.repo.FetchObservations(ctx, r.spec, match.Matched, r.spec.MaxWindow())
	if err != nil {
		return fail(res, err)
	}

	r.logger.Info(ctx, "[MATCH] Substitute route selected", logging.Fields{
		"route":              res.requested.String(),
		"matched_route":      match.Matched.String(),
		"accuracy":           match.Accuracy,
		"start_deviation_km": match.StartDeviationKm,
		"end_deviation_km":   match.EndDeviationKm,
	})

	res.route = match.Matched
	res.match = match
	res.rows = rows
	if len(rows) == 0 {
		res.state = unresolved
		res.reason = models.ReasonNoRows
		return res
	}
	res.state = resolved
	return res
}

func (r *resolver) recordMatch(accuracy string) {
	if r.onMatch != nil {
		r.onMatch(accuracy)
	}
}

func fail(res resolution, err error) resolution {
	res.state = unresolved
	res.err = err
	res.reason = absenceReason(err)
	return res
}

// absenceReason classifies a source failure
func absenceReason(err error) models.AbsenceReason {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.ReasonTimeout
	case repository.IsUnavailable(err):
		return models.ReasonUnavailable
	default:
		return models.ReasonInternal
	}
}
