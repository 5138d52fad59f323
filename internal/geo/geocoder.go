package geo

import (
	"sort"
	"strings"

	"route-pricing/internal/models"
)

// Geocoder resolves postal codes against an in-memory coordinate table.
// It is immutable after construction and safe for concurrent readers.
type Geocoder struct {
	exact     map[string]models.Coordinate
	byCountry map[string][]string // sorted local codes per country
}

// NewGeocoder indexes a table keyed by postal code (e.g. "PL50").
// Keys that do not parse as postal codes are skipped.
func NewGeocoder(table map[string]models.Coordinate) *Geocoder {
	g := &Geocoder{
		exact:     make(map[string]models.Coordinate, len(table)),
		byCountry: make(map[string][]string),
	}

	for code, coord := range table {
		country, local, ok := models.SplitPostalCode(code)
		if !ok {
			continue
		}
		key := country + local
		if _, dup := g.exact[key]; dup {
			continue
		}
		g.exact[key] = coord
		g.byCountry[country] = append(g.byCountry[country], local)
	}

	for country := range g.byCountry {
		sort.Strings(g.byCountry[country])
	}

	return g
}

// Len returns the number of indexed codes
func (g *Geocoder) Len() int {
	return len(g.exact)
}

// Locate resolves a postal code: exact match first, then the first stored
// code of the same country whose local part starts with the requested one.
// The boolean is false when neither level matches.
func (g *Geocoder) Locate(code string) (models.Coordinate, bool) {
	country, local, ok := models.SplitPostalCode(code)
	if !ok {
		return models.Coordinate{}, false
	}

	if coord, found := g.exact[country+local]; found {
		return coord, true
	}

	locals := g.byCountry[country]
	i := sort.SearchStrings(locals, local)
	if i < len(locals) && strings.HasPrefix(locals[i], local) {
		return g.exact[country+locals[i]], true
	}

	return models.Coordinate{}, false
}
