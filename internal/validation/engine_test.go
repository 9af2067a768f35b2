package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vendora/inventory-core/internal/alerts"
	"github.com/vendora/inventory-core/internal/model"
	"github.com/vendora/inventory-core/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	prefs := alerts.NewPrefsCache(mem, zap.NewNop())
	return NewEngine(mem, prefs, nil, zap.NewNop()), mem
}

func seedStatus(t *testing.T, mem *store.Memory, productID string, current, reserved, threshold int64) {
	t.Helper()
	err := mem.CreateStatus(context.Background(), model.InventoryStatus{
		ProductID:         productID,
		StoreID:           "s1",
		CurrentStock:      current,
		ReservedStock:     reserved,
		LowStockThreshold: threshold,
	})
	require.NoError(t, err)
}

func TestValidateAvailability(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()
	seedStatus(t, mem, "p1", 10, 4, 0)

	results, err := e.ValidateAvailability(ctx, []AvailabilityRequest{
		{ProductID: "p1", RequestedQuantity: 6},
		{ProductID: "p1", RequestedQuantity: 7},
		{ProductID: "missing", RequestedQuantity: 1},
		{ProductID: "p1", RequestedQuantity: 0},
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	require.True(t, results[0].IsAvailable)
	require.Equal(t, int64(6), results[0].Available)

	require.False(t, results[1].IsAvailable)
	require.Contains(t, results[1].Message, "available 6")

	require.False(t, results[2].IsAvailable)
	require.Equal(t, "product not found", results[2].Message)

	require.False(t, results[3].IsAvailable)
	require.Contains(t, results[3].Message, "positive")
}

func TestShouldTriggerLowStockAlertProductOverride(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()
	seedStatus(t, mem, "p1", 10, 7, 2)

	// available 3, override threshold 2
	low, err := e.ShouldTriggerLowStockAlert(ctx, "p1")
	require.NoError(t, err)
	require.False(t, low)

	st, ver, _ := mem.GetStatus(ctx, "p1")
	st.ReservedStock = 8
	require.NoError(t, mem.UpdateStatus(ctx, st, ver))

	low, err = e.ShouldTriggerLowStockAlert(ctx, "p1")
	require.NoError(t, err)
	require.True(t, low)
}

func TestShouldTriggerLowStockAlertStoreDefault(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()
	// no product override: the hard-coded store default of 10 applies
	seedStatus(t, mem, "p1", 10, 0, 0)

	low, err := e.ShouldTriggerLowStockAlert(ctx, "p1")
	require.NoError(t, err)
	require.True(t, low)

	st, ver, _ := mem.GetStatus(ctx, "p1")
	st.CurrentStock = 11
	require.NoError(t, mem.UpdateStatus(ctx, st, ver))

	low, err = e.ShouldTriggerLowStockAlert(ctx, "p1")
	require.NoError(t, err)
	require.False(t, low)

	_, err = e.ShouldTriggerLowStockAlert(ctx, "missing")
	require.ErrorIs(t, err, model.ErrProductNotFound)
}

type fakeHistory struct {
	ordered bool
	err     error
}

func (f *fakeHistory) RecentlyOrdered(context.Context, string, time.Time) (bool, error) {
	return f.ordered, f.err
}

func TestCanDeleteChecksReservationsDirectly(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()
	seedStatus(t, mem, "p1", 10, 1, 0)

	require.NoError(t, mem.CreateReservation(ctx, model.StockReservation{
		ReservationID: "r1",
		ProductID:     "p1",
		Quantity:      1,
		Status:        model.ReservationPending,
		ExpiresAt:     time.Now().Add(time.Minute),
	}))

	ok, err := e.CanDelete(ctx, "p1")
	require.NoError(t, err)
	require.False(t, ok)

	r, ver, _ := mem.GetReservation(ctx, "r1")
	r.Status = model.ReservationReleased
	require.NoError(t, mem.UpdateReservation(ctx, r, ver))

	ok, err = e.CanDelete(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCanDeleteOrderHistoryIsBestEffort(t *testing.T) {
	mem := store.NewMemory()
	prefs := alerts.NewPrefsCache(mem, zap.NewNop())
	seedStatus(t, mem, "p1", 10, 0, 0)

	hist := &fakeHistory{ordered: true}
	e := NewEngine(mem, prefs, hist, zap.NewNop())
	ok, err := e.CanDelete(context.Background(), "p1")
	require.NoError(t, err)
	require.False(t, ok)

	// a failing history lookup never blocks the caller
	hist.err = errors.New("history unavailable")
	ok, err = e.CanDelete(context.Background(), "p1")
	require.NoError(t, err)
	require.True(t, ok)
}
