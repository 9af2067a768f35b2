// Package store defines the versioned persistence contract for the
// inventory core and provides in-memory and Postgres implementations.
//
// Every mutable entity is stamped with an opaque version on read; writes
// supply the version they read and fail with ErrVersionConflict when a
// concurrent writer got there first. Movements are append-only.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/vendora/inventory-core/internal/model"
)

var (
	// ErrNotFound reports that the requested entity has no row.
	ErrNotFound = errors.New("store: not found")
	// ErrVersionConflict reports a stale conditional write.
	ErrVersionConflict = errors.New("store: version conflict")
	// ErrExists reports a create for an entity that is already present.
	ErrExists = errors.New("store: already exists")
)

// Store is the durable persistence contract.
type Store interface {
	// GetStatus returns the product's quantity record with its version.
	GetStatus(ctx context.Context, productID string) (model.InventoryStatus, uint64, error)
	// CreateStatus inserts a new ledger row at version 1.
	CreateStatus(ctx context.Context, st model.InventoryStatus) error
	// UpdateStatus replaces the row iff the stored version matches.
	UpdateStatus(ctx context.Context, st model.InventoryStatus, version uint64) error
	// UpdateStatusWithMovement commits a status write and one movement
	// append as a single atomic unit.
	UpdateStatusWithMovement(ctx context.Context, st model.InventoryStatus, version uint64, mv model.InventoryMovement) error
	// ListStatuses returns all quantity records owned by a store.
	ListStatuses(ctx context.Context, storeID string) ([]model.InventoryStatus, error)

	// AppendMovement writes one audit row outside of a status commit.
	AppendMovement(ctx context.Context, mv model.InventoryMovement) error
	// MovementsByProduct returns the newest movements first, up to limit.
	MovementsByProduct(ctx context.Context, productID string, limit int) ([]model.InventoryMovement, error)

	GetReservation(ctx context.Context, id string) (model.StockReservation, uint64, error)
	CreateReservation(ctx context.Context, r model.StockReservation) error
	UpdateReservation(ctx context.Context, r model.StockReservation, version uint64) error
	// CreateReservationWithStatus inserts a reservation and commits the
	// paired status write as a single atomic unit, so a failed insert can
	// never leave reserved stock raised without a reservation row.
	CreateReservationWithStatus(ctx context.Context, r model.StockReservation, st model.InventoryStatus, version uint64) error
	// UpdateReservationWithStatus commits a conditional reservation write,
	// a conditional status write, and one movement append atomically. Both
	// versions must match or nothing is written.
	UpdateReservationWithStatus(ctx context.Context, r model.StockReservation, rVersion uint64, st model.InventoryStatus, stVersion uint64, mv model.InventoryMovement) error
	// ListExpiredPending returns pending reservations with ExpiresAt at or
	// before cutoff.
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]model.StockReservation, error)
	// CountPendingByProduct counts live holds against a product.
	CountPendingByProduct(ctx context.Context, productID string) (int, error)

	GetPreferences(ctx context.Context, storeID string) (model.AlertPreferences, uint64, error)
	// PutPreferences creates when version is zero, otherwise performs a
	// conditional update.
	PutPreferences(ctx context.Context, p model.AlertPreferences, version uint64) error
	// ListPreferenceStoreIDs returns every store with stored preferences.
	ListPreferenceStoreIDs(ctx context.Context) ([]string, error)
}
