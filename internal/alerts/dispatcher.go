package alerts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vendora/inventory-core/internal/model"
	"github.com/vendora/inventory-core/internal/store"
)

// Dispatcher composes and hands off stock alerts. Delivery is best-effort:
// a notifier failure is logged and reported as false, never returned as an
// error, so alerting can never fail the stock operation that triggered it.
type Dispatcher struct {
	store    store.Store
	prefs    *PrefsCache
	notifier Notifier
	log      *zap.Logger
	from     string
	now      func() time.Time
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(st store.Store, prefs *PrefsCache, notifier Notifier, log *zap.Logger, from string) *Dispatcher {
	return &Dispatcher{store: st, prefs: prefs, notifier: notifier, log: log, from: from, now: time.Now}
}

// SendLowStockAlert notifies a store that one product sits at or below its
// threshold. Returns false when alerting is disabled or delivery failed.
func (d *Dispatcher) SendLowStockAlert(ctx context.Context, st model.InventoryStatus) bool {
	prefs, err := d.prefs.Get(ctx, st.StoreID)
	if err != nil {
		d.log.Warn("alert_prefs_unavailable", zap.String("store_id", st.StoreID), zap.Error(err))
		return false
	}
	if !prefs.EnableLowStockAlerts {
		return false
	}
	n := Notification{
		Kind:      KindLowStock,
		StoreID:   st.StoreID,
		Recipient: prefs.AlertEmail,
		Subject:   fmt.Sprintf("Low stock: %s", st.ProductID),
		Body: fmt.Sprintf("Product %s has %d units available (current %d, reserved %d).",
			st.ProductID, st.Available(), st.CurrentStock, st.ReservedStock),
		SentAt: d.now().UTC(),
	}
	return d.deliver(ctx, n)
}

// SendOutOfStockNotification notifies a store that a product has no
// available units left.
func (d *Dispatcher) SendOutOfStockNotification(ctx context.Context, st model.InventoryStatus) bool {
	prefs, err := d.prefs.Get(ctx, st.StoreID)
	if err != nil {
		d.log.Warn("alert_prefs_unavailable", zap.String("store_id", st.StoreID), zap.Error(err))
		return false
	}
	if !prefs.EnableOutOfStockAlerts {
		return false
	}
	n := Notification{
		Kind:      KindOutOfStock,
		StoreID:   st.StoreID,
		Recipient: prefs.AlertEmail,
		Subject:   fmt.Sprintf("Out of stock: %s", st.ProductID),
		Body:      fmt.Sprintf("Product %s has no available units.", st.ProductID),
		SentAt:    d.now().UTC(),
	}
	return d.deliver(ctx, n)
}

// SendRestockRecommendation suggests a reorder quantity for a product.
func (d *Dispatcher) SendRestockRecommendation(ctx context.Context, st model.InventoryStatus, recommended int64) bool {
	prefs, err := d.prefs.Get(ctx, st.StoreID)
	if err != nil {
		d.log.Warn("alert_prefs_unavailable", zap.String("store_id", st.StoreID), zap.Error(err))
		return false
	}
	if !prefs.EnableRestockAlerts {
		return false
	}
	n := Notification{
		Kind:      KindRestock,
		StoreID:   st.StoreID,
		Recipient: prefs.AlertEmail,
		Subject:   fmt.Sprintf("Restock recommendation: %s", st.ProductID),
		Body:      fmt.Sprintf("Product %s is down to %d available units; recommended reorder quantity is %d.", st.ProductID, st.Available(), recommended),
		SentAt:    d.now().UTC(),
	}
	return d.deliver(ctx, n)
}

// SendBulkLowStockAlerts groups the given statuses by store and dispatches
// one consolidated notification per store, all stores concurrently. Returns
// the number of stores successfully notified.
func (d *Dispatcher) SendBulkLowStockAlerts(ctx context.Context, statuses []model.InventoryStatus) int {
	byStore := make(map[string][]model.InventoryStatus)
	for _, st := range statuses {
		byStore[st.StoreID] = append(byStore[st.StoreID], st)
	}

	var sent atomic.Int64
	var wg sync.WaitGroup
	for storeID, group := range byStore {
		wg.Add(1)
		go func(storeID string, group []model.InventoryStatus) {
			defer wg.Done()
			if d.sendConsolidated(ctx, storeID, group) {
				sent.Add(1)
			}
		}(storeID, group)
	}
	wg.Wait()
	return int(sent.Load())
}

func (d *Dispatcher) sendConsolidated(ctx context.Context, storeID string, group []model.InventoryStatus) bool {
	prefs, err := d.prefs.Get(ctx, storeID)
	if err != nil {
		d.log.Warn("alert_prefs_unavailable", zap.String("store_id", storeID), zap.Error(err))
		return false
	}
	if !prefs.EnableLowStockAlerts {
		return false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d product(s) are low on stock:\n", len(group))
	for _, st := range group {
		fmt.Fprintf(&b, "- %s: %d available (current %d, reserved %d)\n",
			st.ProductID, st.Available(), st.CurrentStock, st.ReservedStock)
	}
	n := Notification{
		Kind:      KindLowStock,
		StoreID:   storeID,
		Recipient: prefs.AlertEmail,
		Subject:   fmt.Sprintf("Low stock summary: %d product(s)", len(group)),
		Body:      b.String(),
		SentAt:    d.now().UTC(),
	}
	return d.deliver(ctx, n)
}

// ProcessPendingAlerts walks every store with configured preferences,
// batches low-stock products into one consolidated alert per store, and
// emits individual out-of-stock notifications. The returned count is the
// number of notifications successfully sent; an error means the scan itself
// failed, distinguishing "error occurred" from "zero found".
func (d *Dispatcher) ProcessPendingAlerts(ctx context.Context) (int, error) {
	storeIDs, err := d.store.ListPreferenceStoreIDs(ctx)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, storeID := range storeIDs {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		prefs, err := d.prefs.Get(ctx, storeID)
		if err != nil {
			d.log.Warn("alert_prefs_unavailable", zap.String("store_id", storeID), zap.Error(err))
			continue
		}
		statuses, err := d.store.ListStatuses(ctx, storeID)
		if err != nil {
			return sent, err
		}

		var low []model.InventoryStatus
		for _, st := range statuses {
			avail := st.Available()
			if avail <= 0 {
				if d.SendOutOfStockNotification(ctx, st) {
					sent++
				}
				continue
			}
			if st.LowStock(prefs.DefaultLowStockThreshold) {
				low = append(low, st)
			}
		}
		if len(low) > 0 && d.sendConsolidated(ctx, storeID, low) {
			sent++
		}
	}
	return sent, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) bool {
	n.From = d.from
	if err := d.notifier.Send(ctx, n); err != nil {
		d.log.Warn("notification_send_failed",
			zap.String("kind", string(n.Kind)),
			zap.String("store_id", n.StoreID),
			zap.Error(err),
		)
		return false
	}
	return true
}
