package aggregate

import (
	"sort"

	"route-pricing/internal/models"
)

// DefaultOutlierThreshold is the per-km price above which an observation is implausible
const DefaultOutlierThreshold = 10.0

// DefaultOutlierCap bounds the number of outlier rows kept for diagnostics
const DefaultOutlierCap = 5

// OutlierFilter classifies observations by a fixed per-unit price ceiling.
// A row is an outlier when any tracked price field exceeds Threshold.
type OutlierFilter struct {
	Threshold float64
	Cap       int
	Fields    []string
}

// Partition splits rows into clean and outlier sets, preserving input order.
// Filtering an already clean set returns it unchanged.
func (f OutlierFilter) Partition(rows []models.Observation) (clean, outliers []models.Observation) {
	clean = make([]models.Observation, 0, len(rows))
	for _, row := range rows {
		if _, _, bad := f.severity(row); bad {
			outliers = append(outliers, row)
			continue
		}
		clean = append(clean, row)
	}
	return clean, outliers
}

// Diagnostics returns up to Cap outlier rows ordered by descending severity
func (f OutlierFilter) Diagnostics(outliers []models.Observation) []models.OutlierRow {
	if len(outliers) == 0 || f.Cap <= 0 {
		return nil
	}

	diag := make([]models.OutlierRow, 0, len(outliers))
	for _, row := range outliers {
		field, price, _ := f.severity(row)
		diag = append(diag, models.OutlierRow{
			Date:      row.Date,
			Route:     row.Route,
			Field:     field,
			Severity:  price,
			CarrierID: row.CarrierID,
		})
	}

	sort.SliceStable(diag, func(i, j int) bool {
		if diag[i].Severity != diag[j].Severity {
			return diag[i].Severity > diag[j].Severity
		}
		return diag[i].Date.Before(diag[j].Date)
	})

	if len(diag) > f.Cap {
		diag = diag[:f.Cap]
	}
	return diag
}

// severity returns the highest price field exceeding the threshold
func (f OutlierFilter) severity(row models.Observation) (string, float64, bool) {
	var (
		worstField string
		worstPrice float64
		found      bool
	)
	for _, name := range f.Fields {
		p := row.Price(name)
		if p == nil || *p <= f.Threshold {
			continue
		}
		if !found || *p > worstPrice {
			worstField, worstPrice, found = name, *p, true
		}
	}
	return worstField, worstPrice, found
}
