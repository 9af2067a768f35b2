// Package ledger maintains the authoritative per-product stock record and
// its append-only movement log.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vendora/inventory-core/internal/model"
	"github.com/vendora/inventory-core/internal/store"
)

// Ledger applies audited stock mutations through the versioned store.
type Ledger struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

// New constructs a Ledger.
func New(st store.Store, log *zap.Logger) *Ledger {
	return &Ledger{store: st, log: log, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// UpdateResult reports the outcome of a successful stock write.
type UpdateResult struct {
	ProductID        string `json:"product_id"`
	PreviousQuantity int64  `json:"previous_quantity"`
	NewQuantity      int64  `json:"new_quantity"`
	MovementID       string `json:"movement_id"`
}

// UpdateStock sets a product's current stock to newQuantity and appends one
// movement, committed atomically. It performs a single read-compute-write
// attempt: a version conflict is returned as ErrConcurrencyConflict and the
// caller owns the retry, so the movement stays exactly-once per attempt.
func (l *Ledger) UpdateStock(ctx context.Context, productID string, newQuantity int64, typ model.MovementType, reason, actor, reference string) (UpdateResult, error) {
	if newQuantity < 0 {
		return UpdateResult{}, fmt.Errorf("%w: new quantity %d is negative", model.ErrInvalidQuantity, newQuantity)
	}

	st, version, err := l.store.GetStatus(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return UpdateResult{}, fmt.Errorf("%w: %s", model.ErrProductNotFound, productID)
		}
		return UpdateResult{}, err
	}
	if newQuantity < st.ReservedStock {
		return UpdateResult{}, fmt.Errorf("%w: new quantity %d below reserved stock %d", model.ErrInvalidQuantity, newQuantity, st.ReservedStock)
	}

	now := l.now().UTC()
	mv := model.InventoryMovement{
		MovementID:       uuid.NewString(),
		ProductID:        productID,
		Type:             typ,
		PreviousQuantity: st.CurrentStock,
		QuantityChanged:  newQuantity - st.CurrentStock,
		NewQuantity:      newQuantity,
		Reason:           reason,
		UpdatedBy:        actor,
		UpdatedAt:        now,
		Reference:        reference,
	}
	prev := st.CurrentStock
	st.CurrentStock = newQuantity
	st.LastUpdated = now

	if err := l.store.UpdateStatusWithMovement(ctx, st, version, mv); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return UpdateResult{}, fmt.Errorf("%w: product %s", model.ErrConcurrencyConflict, productID)
		}
		return UpdateResult{}, err
	}

	l.log.Info("stock_updated",
		zap.String("product_id", productID),
		zap.String("movement_type", string(typ)),
		zap.Int64("previous_quantity", prev),
		zap.Int64("new_quantity", newQuantity),
		zap.String("updated_by", actor),
	)
	return UpdateResult{
		ProductID:        productID,
		PreviousQuantity: prev,
		NewQuantity:      newQuantity,
		MovementID:       mv.MovementID,
	}, nil
}

// InitializeProduct creates the ledger row for a new product along with an
// opening purchase movement.
func (l *Ledger) InitializeProduct(ctx context.Context, productID, storeID string, quantity, lowStockThreshold int64) (model.InventoryStatus, error) {
	if quantity < 0 {
		return model.InventoryStatus{}, fmt.Errorf("%w: initial quantity %d is negative", model.ErrInvalidQuantity, quantity)
	}
	now := l.now().UTC()
	st := model.InventoryStatus{
		ProductID:         productID,
		StoreID:           storeID,
		CurrentStock:      quantity,
		ReservedStock:     0,
		LowStockThreshold: lowStockThreshold,
		LastUpdated:       now,
	}
	if err := l.store.CreateStatus(ctx, st); err != nil {
		if errors.Is(err, store.ErrExists) {
			return model.InventoryStatus{}, fmt.Errorf("%w: %s", model.ErrProductExists, productID)
		}
		return model.InventoryStatus{}, err
	}
	mv := model.InventoryMovement{
		MovementID:       uuid.NewString(),
		ProductID:        productID,
		Type:             model.MovementPurchase,
		PreviousQuantity: 0,
		QuantityChanged:  quantity,
		NewQuantity:      quantity,
		Reason:           "initial stock",
		UpdatedBy:        "system",
		UpdatedAt:        now,
	}
	if err := l.store.AppendMovement(ctx, mv); err != nil {
		return model.InventoryStatus{}, err
	}
	l.log.Info("product_initialized",
		zap.String("product_id", productID),
		zap.String("store_id", storeID),
		zap.Int64("quantity", quantity),
	)
	return st, nil
}

// Status returns the quantity record for a product.
func (l *Ledger) Status(ctx context.Context, productID string) (model.InventoryStatus, error) {
	st, _, err := l.store.GetStatus(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return model.InventoryStatus{}, fmt.Errorf("%w: %s", model.ErrProductNotFound, productID)
	}
	return st, err
}

// Movements returns the newest audit rows for a product, up to limit.
func (l *Ledger) Movements(ctx context.Context, productID string, limit int) ([]model.InventoryMovement, error) {
	return l.store.MovementsByProduct(ctx, productID, limit)
}
