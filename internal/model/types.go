// Package model defines domain types used by the inventory core.
package model

import "time"

// MovementType classifies a ledger mutation in the audit trail.
type MovementType string

const (
	MovementPurchase   MovementType = "purchase"
	MovementSale       MovementType = "sale"
	MovementAdjustment MovementType = "adjustment"
	MovementReturn     MovementType = "return"
	MovementDamage     MovementType = "damage"
	MovementTransfer   MovementType = "transfer"
	MovementCorrection MovementType = "correction"
)

// ReservationStatus is the lifecycle state of a stock reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationReleased  ReservationStatus = "released"
	ReservationExpired   ReservationStatus = "expired"
)

// InventoryStatus is the authoritative quantity record for one product.
// Available stock is derived and never persisted.
type InventoryStatus struct {
	ProductID         string    `json:"product_id"`
	StoreID           string    `json:"store_id"`
	CurrentStock      int64     `json:"current_stock"`
	ReservedStock     int64     `json:"reserved_stock"`
	LowStockThreshold int64     `json:"low_stock_threshold"`
	LastUpdated       time.Time `json:"last_updated"`
}

// Available returns the stock that can still be reserved.
func (s InventoryStatus) Available() int64 {
	return s.CurrentStock - s.ReservedStock
}

// LowStock reports whether available stock sits at or below the effective
// threshold: the product's own override when set, else storeDefault.
func (s InventoryStatus) LowStock(storeDefault int64) bool {
	threshold := s.LowStockThreshold
	if threshold == 0 {
		threshold = storeDefault
	}
	return s.Available() <= threshold
}

// StockReservation is a time-boxed hold against available stock.
type StockReservation struct {
	ReservationID  string            `json:"reservation_id"`
	ProductID      string            `json:"product_id"`
	Quantity       int64             `json:"quantity"`
	CustomerID     string            `json:"customer_id"`
	OrderReference string            `json:"order_reference,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	ExpiresAt      time.Time         `json:"expires_at"`
	Status         ReservationStatus `json:"status"`
}

// InventoryMovement is one immutable audit row per ledger mutation.
type InventoryMovement struct {
	MovementID       string       `json:"movement_id"`
	ProductID        string       `json:"product_id"`
	Type             MovementType `json:"type"`
	PreviousQuantity int64        `json:"previous_quantity"`
	QuantityChanged  int64        `json:"quantity_changed"`
	NewQuantity      int64        `json:"new_quantity"`
	Reason           string       `json:"reason"`
	UpdatedBy        string       `json:"updated_by"`
	UpdatedAt        time.Time    `json:"updated_at"`
	Reference        string       `json:"reference,omitempty"`
}

// AlertPreferences is the per-store notification configuration.
type AlertPreferences struct {
	StoreID                  string    `json:"store_id"`
	EnableLowStockAlerts     bool      `json:"enable_low_stock_alerts"`
	EnableOutOfStockAlerts   bool      `json:"enable_out_of_stock_alerts"`
	EnableRestockAlerts      bool      `json:"enable_restock_alerts"`
	DefaultLowStockThreshold int64     `json:"default_low_stock_threshold"`
	DeadStockDays            int       `json:"dead_stock_days"`
	AlertEmail               string    `json:"alert_email"`
	DailySummary             bool      `json:"daily_summary"`
	WeeklySummary            bool      `json:"weekly_summary"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}
