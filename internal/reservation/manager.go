// Package reservation implements time-boxed stock holds against the ledger.
//
// A reservation moves Pending -> Confirmed | Released | Expired and never
// re-enters Pending. All stock mutations go through the store's versioned
// compare-and-swap, so two reservations racing for the last unit cannot both
// succeed.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vendora/inventory-core/internal/config"
	"github.com/vendora/inventory-core/internal/model"
	"github.com/vendora/inventory-core/internal/store"
)

// Manager owns the reservation lifecycle.
type Manager struct {
	store      store.Store
	log        *zap.Logger
	attempts   int
	backoff    time.Duration
	defaultTTL time.Duration
	now        func() time.Time
}

// NewManager constructs a Manager with the given config and store.
func NewManager(cfg config.Config, st store.Store, log *zap.Logger) *Manager {
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Manager{
		store:      st,
		log:        log,
		attempts:   attempts,
		backoff:    cfg.RetryBackoff,
		defaultTTL: cfg.ReservationTTL,
		now:        time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Reserve places a hold of qty units on a product. The hold expires at
// now + ttl; a non-positive ttl uses the configured default.
func (m *Manager) Reserve(ctx context.Context, productID string, qty int64, customerID, orderRef string, ttl time.Duration) (model.StockReservation, error) {
	if qty <= 0 {
		return model.StockReservation{}, fmt.Errorf("%w: reservation quantity %d", model.ErrInvalidQuantity, qty)
	}
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	for attempt := 0; ; attempt++ {
		st, version, err := m.store.GetStatus(ctx, productID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return model.StockReservation{}, fmt.Errorf("%w: %s", model.ErrProductNotFound, productID)
			}
			return model.StockReservation{}, err
		}
		if st.Available() < qty {
			return model.StockReservation{}, fmt.Errorf("%w: requested %d, available %d", model.ErrInsufficientStock, qty, st.Available())
		}

		now := m.now().UTC()
		r := model.StockReservation{
			ReservationID:  uuid.NewString(),
			ProductID:      productID,
			Quantity:       qty,
			CustomerID:     customerID,
			OrderReference: orderRef,
			CreatedAt:      now,
			ExpiresAt:      now.Add(ttl),
			Status:         model.ReservationPending,
		}
		st.ReservedStock += qty
		st.LastUpdated = now

		// One commit covers the stock hold and the reservation row. A
		// failure here leaves both untouched.
		err = m.store.CreateReservationWithStatus(ctx, r, st, version)
		if err == nil {
			m.log.Info("stock_reserved",
				zap.String("reservation_id", r.ReservationID),
				zap.String("product_id", productID),
				zap.Int64("quantity", qty),
				zap.Time("expires_at", r.ExpiresAt),
			)
			return r, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return model.StockReservation{}, err
		}
		if attempt == m.attempts-1 {
			return model.StockReservation{}, fmt.Errorf("%w: product %s", model.ErrConcurrencyConflict, productID)
		}
		select {
		case <-ctx.Done():
			return model.StockReservation{}, ctx.Err()
		case <-time.After(m.backoff):
		}
	}
}

// Release cancels a pending reservation and returns its units to the
// available pool. Releasing a non-pending reservation is a no-op returning
// false.
func (m *Manager) Release(ctx context.Context, reservationID, reason string) (bool, error) {
	_, ok, err := m.settle(ctx, reservationID, model.ReservationReleased, "", m.returnMutation(reason))
	if err != nil || !ok {
		return false, err
	}
	m.log.Info("reservation_released",
		zap.String("reservation_id", reservationID),
		zap.String("reason", reason),
	)
	return true, nil
}

// Confirm converts a pending hold into a sale: both reserved and current
// stock drop by the reserved quantity and one sale movement is appended.
// Confirming a non-pending reservation is an invalid transition.
func (m *Manager) Confirm(ctx context.Context, reservationID, orderID string) (bool, error) {
	_, ok, err := m.settle(ctx, reservationID, model.ReservationConfirmed, orderID, func(r model.StockReservation, st *model.InventoryStatus) model.InventoryMovement {
		st.ReservedStock -= r.Quantity
		st.CurrentStock -= r.Quantity
		return model.InventoryMovement{
			MovementID:       uuid.NewString(),
			ProductID:        r.ProductID,
			Type:             model.MovementSale,
			PreviousQuantity: st.CurrentStock + r.Quantity,
			QuantityChanged:  -r.Quantity,
			NewQuantity:      st.CurrentStock,
			Reason:           "reservation confirmed",
			UpdatedBy:        r.CustomerID,
			UpdatedAt:        m.now().UTC(),
			Reference:        orderID,
		}
	})
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("%w: reservation %s is not pending", model.ErrInvalidStateTransition, reservationID)
	}
	m.log.Info("reservation_confirmed",
		zap.String("reservation_id", reservationID),
		zap.String("order_id", orderID),
	)
	return true, nil
}

// CleanupExpired expires every pending reservation whose ExpiresAt lies at
// least window in the past and returns the units to the available pool.
// Safe to run concurrently with itself and with Release/Confirm: the
// pending-only transition makes double-processing a no-op.
func (m *Manager) CleanupExpired(ctx context.Context, window time.Duration) (int, error) {
	cutoff := m.now().UTC().Add(-window)
	expired, err := m.store.ListExpiredPending(ctx, cutoff, 0)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, r := range expired {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		// A failed settle leaves the reservation pending, so the next
		// sweep picks it up again.
		_, ok, err := m.settle(ctx, r.ReservationID, model.ReservationExpired, "", m.returnMutation("expired"))
		if err != nil {
			m.log.Warn("expire_failed",
				zap.String("reservation_id", r.ReservationID),
				zap.Error(err),
			)
			continue
		}
		if !ok {
			continue
		}
		count++
	}
	if count > 0 {
		m.log.Info("expired_reservations_cleaned", zap.Int("count", count))
	}
	return count, nil
}

// Get returns a reservation by id.
func (m *Manager) Get(ctx context.Context, reservationID string) (model.StockReservation, error) {
	r, _, err := m.store.GetReservation(ctx, reservationID)
	if errors.Is(err, store.ErrNotFound) {
		return model.StockReservation{}, fmt.Errorf("%w: %s", model.ErrReservationNotFound, reservationID)
	}
	return r, err
}

// settle moves a pending reservation into target and commits the paired
// stock mutation and its movement as one atomic store write: the reservation
// can never go terminal without the stock side landing, and a failed commit
// leaves it pending and retriable. It returns the reservation as written,
// whether this call won the transition, and any error. Losing the race to
// another transition reports ok=false, not an error.
func (m *Manager) settle(ctx context.Context, reservationID string, target model.ReservationStatus, orderRef string, mutate func(model.StockReservation, *model.InventoryStatus) model.InventoryMovement) (model.StockReservation, bool, error) {
	for attempt := 0; ; attempt++ {
		r, rVersion, err := m.store.GetReservation(ctx, reservationID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return model.StockReservation{}, false, fmt.Errorf("%w: %s", model.ErrReservationNotFound, reservationID)
			}
			return model.StockReservation{}, false, err
		}
		if r.Status != model.ReservationPending {
			return r, false, nil
		}
		st, stVersion, err := m.store.GetStatus(ctx, r.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return model.StockReservation{}, false, fmt.Errorf("%w: %s", model.ErrProductNotFound, r.ProductID)
			}
			return model.StockReservation{}, false, err
		}

		r.Status = target
		if orderRef != "" {
			r.OrderReference = orderRef
		}
		mv := mutate(r, &st)
		st.LastUpdated = m.now().UTC()

		err = m.store.UpdateReservationWithStatus(ctx, r, rVersion, st, stVersion, mv)
		if err == nil {
			return r, true, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return model.StockReservation{}, false, err
		}
		if attempt == m.attempts-1 {
			return model.StockReservation{}, false, fmt.Errorf("%w: reservation %s", model.ErrConcurrencyConflict, reservationID)
		}
		select {
		case <-ctx.Done():
			return model.StockReservation{}, false, ctx.Err()
		case <-time.After(m.backoff):
		}
	}
}

// returnMutation gives a reservation's units back to the available pool and
// records a zero-delta adjustment movement so the audit trail carries the
// release or expiry reason.
func (m *Manager) returnMutation(reason string) func(model.StockReservation, *model.InventoryStatus) model.InventoryMovement {
	return func(r model.StockReservation, st *model.InventoryStatus) model.InventoryMovement {
		st.ReservedStock -= r.Quantity
		return model.InventoryMovement{
			MovementID:       uuid.NewString(),
			ProductID:        r.ProductID,
			Type:             model.MovementAdjustment,
			PreviousQuantity: st.CurrentStock,
			QuantityChanged:  0,
			NewQuantity:      st.CurrentStock,
			Reason:           reason,
			UpdatedBy:        "system",
			UpdatedAt:        m.now().UTC(),
			Reference:        r.ReservationID,
		}
	}
}
