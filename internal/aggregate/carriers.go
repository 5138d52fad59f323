package aggregate

import (
	"sort"

	"route-pricing/internal/models"
)

// DefaultTopCarriers is the number of carriers reported per cargo category
const DefaultTopCarriers = 4

// TopCarriers ranks carriers by clean order count descending, ties broken by
// carrier id ascending. Rows without a carrier id are not ranked.
//
// The weighted price is weighted by order distance so long hauls count for
// more than short ones; the mean price is unweighted.
func TopCarriers(rows []models.Observation, field string, n int) []models.CarrierStats {
	if n <= 0 {
		return nil
	}

	byCarrier := make(map[string][]models.Observation)
	for _, row := range rows {
		if row.CarrierID == "" {
			continue
		}
		byCarrier[row.CarrierID] = append(byCarrier[row.CarrierID], row)
	}

	stats := make([]models.CarrierStats, 0, len(byCarrier))
	for id, carrierRows := range byCarrier {
		stats = append(stats, carrierStats(id, carrierRows, field))
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Orders != stats[j].Orders {
			return stats[i].Orders > stats[j].Orders
		}
		return stats[i].CarrierID < stats[j].CarrierID
	})

	if len(stats) > n {
		stats = stats[:n]
	}
	return stats
}

func carrierStats(id string, rows []models.Observation, field string) models.CarrierStats {
	cs := models.CarrierStats{
		CarrierID:      id,
		Orders:         int64(len(rows)),
		MeanPricePerKm: Mean(rows, field),
	}

	var priceDistance, distance float64
	amounts := 0
	for _, row := range rows {
		if p := row.Price(field); p != nil && row.DistanceKm != nil && *row.DistanceKm > 0 {
			priceDistance += *p * *row.DistanceKm
			distance += *row.DistanceKm
		}
		if row.Amount != nil {
			cs.TotalAmount += *row.Amount
			amounts++
		}
	}

	if distance > 0 {
		cs.WeightedPricePerKm = round4(priceDistance / distance)
	}
	if amounts > 0 {
		cs.AvgAmount = round4(cs.TotalAmount / float64(amounts))
	}
	cs.TotalAmount = *round4(cs.TotalAmount)
	return cs
}
