package aggregate

import (
	"math"
	"sort"
	"time"

	"route-pricing/internal/models"
)

// WeightedAverage computes Σ(price·weight)/Σ(weight) over rows with a non-null price.
// It returns nil when the weight sum is zero.
func WeightedAverage(rows []models.Observation, field string) *float64 {
	var sum, weights float64
	for _, row := range rows {
		fv, ok := row.Fields[field]
		if !ok || fv.Price == nil || fv.Weight <= 0 {
			continue
		}
		sum += *fv.Price * float64(fv.Weight)
		weights += float64(fv.Weight)
	}
	if weights == 0 {
		return nil
	}
	return round4(sum / weights)
}

// Mean returns the arithmetic mean of the non-null prices of a field
func Mean(rows []models.Observation, field string) *float64 {
	var sum float64
	n := 0
	for _, row := range rows {
		if p := row.Price(field); p != nil {
			sum += *p
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return round4(sum / float64(n))
}

// MeanOfMedians averages an upstream median column.
// This approximates, and is not, the population median.
func MeanOfMedians(rows []models.Observation, field string) *float64 {
	var sum float64
	n := 0
	for _, row := range rows {
		fv, ok := row.Fields[field]
		if !ok || fv.Median == nil {
			continue
		}
		sum += *fv.Median
		n++
	}
	if n == 0 {
		return nil
	}
	return round4(sum / float64(n))
}

// ExactMedian is PERCENTILE_CONT(0.5) over the non-null prices of a field
func ExactMedian(rows []models.Observation, field string) *float64 {
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		if p := row.Price(field); p != nil {
			values = append(values, *p)
		}
	}
	return Percentile(values, 0.5)
}

// Percentile computes a continuous percentile with linear interpolation
// between closest ranks, matching PostgreSQL's PERCENTILE_CONT.
func Percentile(values []float64, p float64) *float64 {
	if len(values) == 0 || p < 0 || p > 1 {
		return nil
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	v := sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
	return round4(v)
}

// WeightSum sums the weights of a field over rows with a non-null price
func WeightSum(rows []models.Observation, field string) int64 {
	var total int64
	for _, row := range rows {
		if fv, ok := row.Fields[field]; ok && fv.Price != nil {
			total += fv.Weight
		}
	}
	return total
}

// TotalCount sums the underlying offer/order counts
func TotalCount(rows []models.Observation) int64 {
	var total int64
	for _, row := range rows {
		total += row.Count
	}
	return total
}

// DistinctDays counts the distinct calendar dates with data
func DistinctDays(rows []models.Observation) int {
	days := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		days[row.Date.Format("2006-01-02")] = struct{}{}
	}
	return len(days)
}

// WithinWindow keeps rows dated on or after today minus windowDays,
// mirroring "date >= CURRENT_DATE - window". The store returns dates at UTC
// midnight, so the cutoff is taken in UTC as well.
func WithinWindow(rows []models.Observation, windowDays int, now time.Time) []models.Observation {
	y, m, d := now.UTC().Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -windowDays)

	kept := make([]models.Observation, 0, len(rows))
	for _, row := range rows {
		if !row.Date.Before(cutoff) {
			kept = append(kept, row)
		}
	}
	return kept
}

// round4 rounds like ROUND(x, 4) so results stay stable across platforms
func round4(v float64) *float64 {
	r := math.Round(v*10000) / 10000
	return &r
}
