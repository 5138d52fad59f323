package models

import (
	"time"
)

// OrderStatusCompleted is the status of orders that count toward pricing
const OrderStatusCompleted = "completed"

// OrderRecord is one completed-order row as stored in historical_orders.
// Postal codes are kept at region level so they compare with normalized requests.
type OrderRecord struct {
	OrderID         string    `db:"order_id"`
	OrderDate       time.Time `db:"order_date"`
	StartPostalCode string    `db:"start_postal_code"`
	EndPostalCode   string    `db:"end_postal_code"`
	PricePerKm      *float64  `db:"price_per_km"`
	DistanceKm      *float64  `db:"distance_km"`
	FreightAmount   *float64  `db:"freight_amount"`
	CarrierID       *string   `db:"carrier_id"`
	CargoCategory   string    `db:"cargo_category"`
	Status          string    `db:"status"`
	ClientID        *string   `db:"client_id"`
	ImportedAt      time.Time `db:"imported_at"`
}
