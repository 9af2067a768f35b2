// Package validation provides read-side availability checks and alert
// predicates against the stock ledger.
package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vendora/inventory-core/internal/model"
	"github.com/vendora/inventory-core/internal/store"
)

// PrefsSource resolves a store's alert preferences, typically the cached
// preference layer.
type PrefsSource interface {
	Get(ctx context.Context, storeID string) (model.AlertPreferences, error)
}

// OrderHistory answers non-authoritative diagnostic queries against recent
// orders. It plays no part in reservation correctness.
type OrderHistory interface {
	RecentlyOrdered(ctx context.Context, productID string, since time.Time) (bool, error)
}

// Engine evaluates availability and alert conditions. It never mutates the
// ledger; callers racing a check against a reserve are expected, correctness
// is enforced at the reserve itself.
type Engine struct {
	store   store.Store
	prefs   PrefsSource
	history OrderHistory
	log     *zap.Logger
}

// NewEngine constructs an Engine. history may be nil.
func NewEngine(st store.Store, prefs PrefsSource, history OrderHistory, log *zap.Logger) *Engine {
	return &Engine{store: st, prefs: prefs, history: history, log: log}
}

// AvailabilityRequest is one product line in a pre-flight check.
type AvailabilityRequest struct {
	ProductID         string `json:"product_id"`
	RequestedQuantity int64  `json:"requested_quantity"`
}

// AvailabilityResult reports whether one requested line can be satisfied.
type AvailabilityResult struct {
	ProductID   string `json:"product_id"`
	Available   int64  `json:"available"`
	IsAvailable bool   `json:"is_available"`
	Message     string `json:"message,omitempty"`
}

// ValidateAvailability checks each requested line against derived
// availability without reserving anything.
func (e *Engine) ValidateAvailability(ctx context.Context, items []AvailabilityRequest) ([]AvailabilityResult, error) {
	results := make([]AvailabilityResult, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := AvailabilityResult{ProductID: item.ProductID}
		if item.RequestedQuantity <= 0 {
			res.Message = "requested quantity must be positive"
			results = append(results, res)
			continue
		}
		st, _, err := e.store.GetStatus(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				res.Message = "product not found"
				results = append(results, res)
				continue
			}
			return nil, err
		}
		res.Available = st.Available()
		res.IsAvailable = res.Available >= item.RequestedQuantity
		if !res.IsAvailable {
			res.Message = fmt.Sprintf("requested %d, available %d", item.RequestedQuantity, res.Available)
		}
		results = append(results, res)
	}
	return results, nil
}

// ShouldTriggerLowStockAlert reports whether a product's availability sits
// at or below its effective threshold: the product's own override when set,
// else the owning store's default.
func (e *Engine) ShouldTriggerLowStockAlert(ctx context.Context, productID string) (bool, error) {
	st, _, err := e.store.GetStatus(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, fmt.Errorf("%w: %s", model.ErrProductNotFound, productID)
		}
		return false, err
	}
	var storeDefault int64
	if st.LowStockThreshold == 0 {
		prefs, err := e.prefs.Get(ctx, st.StoreID)
		if err != nil {
			return false, err
		}
		storeDefault = prefs.DefaultLowStockThreshold
	}
	return st.LowStock(storeDefault), nil
}

// CanDelete reports whether a product has no live holds and may be removed
// from the catalog. The check queries the reservation store directly. When
// an order-history collaborator is wired, a product that still appears in
// recent orders is flagged too; that lookup is best-effort and its failure
// only logs.
func (e *Engine) CanDelete(ctx context.Context, productID string) (bool, error) {
	pending, err := e.store.CountPendingByProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	if pending > 0 {
		return false, nil
	}
	if e.history != nil {
		ordered, err := e.history.RecentlyOrdered(ctx, productID, time.Now().AddDate(0, 0, -30))
		if err != nil {
			e.log.Warn("order_history_lookup_failed",
				zap.String("product_id", productID),
				zap.Error(err),
			)
			return true, nil
		}
		if ordered {
			return false, nil
		}
	}
	return true, nil
}
