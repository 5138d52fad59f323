package services

import (
	"errors"
	"fmt"

	"route-pricing/internal/models"
)

var (
	// ErrRouteNotFound means a postal code has no known region
	ErrRouteNotFound = errors.New("route not found")

	// ErrNoPricingData means every source was absent for the route
	ErrNoPricingData = errors.New("no pricing data")
)

// RouteNotFoundError names the postal codes that could not be resolved
type RouteNotFoundError struct {
	StartPostalCode string
	EndPostalCode   string
	UnknownStart    bool
	UnknownEnd      bool
}

func (e *RouteNotFoundError) Error() string {
	switch {
	case e.UnknownStart && e.UnknownEnd:
		return fmt.Sprintf("unknown postal codes: %s, %s", e.StartPostalCode, e.EndPostalCode)
	case e.UnknownStart:
		return fmt.Sprintf("unknown postal code: %s", e.StartPostalCode)
	default:
		return fmt.Sprintf("unknown postal code: %s", e.EndPostalCode)
	}
}

func (e *RouteNotFoundError) Is(target error) bool {
	return target == ErrRouteNotFound
}

// IsTransient returns false as unknown codes stay unknown until reference data changes
func (e *RouteNotFoundError) IsTransient() bool {
	return false
}

// NoDataError carries why each source was absent
type NoDataError struct {
	Route  models.RouteKey
	Absent map[models.Source]map[string]models.AbsenceReason
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no pricing data for route %s", e.Route)
}

func (e *NoDataError) Is(target error) bool {
	return target == ErrNoPricingData
}

// IsTransient reports whether retrying could help: true when any source was
// absent because the store was unavailable or the request ran out of time
func (e *NoDataError) IsTransient() bool {
	for _, windows := range e.Absent {
		for _, reason := range windows {
			if reason == models.ReasonUnavailable || reason == models.ReasonTimeout {
				return true
			}
		}
	}
	return false
}
