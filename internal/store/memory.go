package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vendora/inventory-core/internal/model"
)

type statusState struct {
	st      model.InventoryStatus
	version uint64
}

type reservationState struct {
	r       model.StockReservation
	version uint64
}

type prefsState struct {
	p       model.AlertPreferences
	version uint64
}

// Memory is the in-process Store used by tests and local runs.
type Memory struct {
	mu           sync.RWMutex
	statuses     map[string]statusState
	reservations map[string]reservationState
	prefs        map[string]prefsState
	movements    []model.InventoryMovement
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		statuses:     make(map[string]statusState),
		reservations: make(map[string]reservationState),
		prefs:        make(map[string]prefsState),
	}
}

func (m *Memory) GetStatus(ctx context.Context, productID string) (model.InventoryStatus, uint64, error) {
	if err := ctx.Err(); err != nil {
		return model.InventoryStatus{}, 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.statuses[productID]
	if !ok {
		return model.InventoryStatus{}, 0, ErrNotFound
	}
	return st.st, st.version, nil
}

func (m *Memory) CreateStatus(ctx context.Context, st model.InventoryStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statuses[st.ProductID]; ok {
		return ErrExists
	}
	m.statuses[st.ProductID] = statusState{st: st, version: 1}
	return nil
}

func (m *Memory) UpdateStatus(ctx context.Context, st model.InventoryStatus, version uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateStatusLocked(st, version)
}

func (m *Memory) UpdateStatusWithMovement(ctx context.Context, st model.InventoryStatus, version uint64, mv model.InventoryMovement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.updateStatusLocked(st, version); err != nil {
		return err
	}
	m.appendMovementLocked(mv)
	return nil
}

func (m *Memory) updateStatusLocked(st model.InventoryStatus, version uint64) error {
	cur, ok := m.statuses[st.ProductID]
	if !ok {
		return ErrNotFound
	}
	if cur.version != version {
		return ErrVersionConflict
	}
	m.statuses[st.ProductID] = statusState{st: st, version: version + 1}
	return nil
}

func (m *Memory) ListStatuses(ctx context.Context, storeID string) ([]model.InventoryStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.InventoryStatus
	for _, st := range m.statuses {
		if st.st.StoreID == storeID {
			out = append(out, st.st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (m *Memory) AppendMovement(ctx context.Context, mv model.InventoryMovement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendMovementLocked(mv)
	return nil
}

func (m *Memory) appendMovementLocked(mv model.InventoryMovement) {
	m.movements = append(m.movements, mv)
}

func (m *Memory) MovementsByProduct(ctx context.Context, productID string, limit int) ([]model.InventoryMovement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.InventoryMovement
	for i := len(m.movements) - 1; i >= 0; i-- {
		if m.movements[i].ProductID != productID {
			continue
		}
		out = append(out, m.movements[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) GetReservation(ctx context.Context, id string) (model.StockReservation, uint64, error) {
	if err := ctx.Err(); err != nil {
		return model.StockReservation{}, 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs, ok := m.reservations[id]
	if !ok {
		return model.StockReservation{}, 0, ErrNotFound
	}
	return rs.r, rs.version, nil
}

func (m *Memory) CreateReservation(ctx context.Context, r model.StockReservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reservations[r.ReservationID]; ok {
		return ErrExists
	}
	m.reservations[r.ReservationID] = reservationState{r: r, version: 1}
	return nil
}

func (m *Memory) UpdateReservation(ctx context.Context, r model.StockReservation, version uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.reservations[r.ReservationID]
	if !ok {
		return ErrNotFound
	}
	if cur.version != version {
		return ErrVersionConflict
	}
	m.reservations[r.ReservationID] = reservationState{r: r, version: version + 1}
	return nil
}

func (m *Memory) CreateReservationWithStatus(ctx context.Context, r model.StockReservation, st model.InventoryStatus, version uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reservations[r.ReservationID]; ok {
		return ErrExists
	}
	if err := m.updateStatusLocked(st, version); err != nil {
		return err
	}
	m.reservations[r.ReservationID] = reservationState{r: r, version: 1}
	return nil
}

func (m *Memory) UpdateReservationWithStatus(ctx context.Context, r model.StockReservation, rVersion uint64, st model.InventoryStatus, stVersion uint64, mv model.InventoryMovement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.reservations[r.ReservationID]
	if !ok {
		return ErrNotFound
	}
	if cur.version != rVersion {
		return ErrVersionConflict
	}
	if err := m.updateStatusLocked(st, stVersion); err != nil {
		return err
	}
	m.reservations[r.ReservationID] = reservationState{r: r, version: rVersion + 1}
	m.appendMovementLocked(mv)
	return nil
}

func (m *Memory) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]model.StockReservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.StockReservation
	for _, rs := range m.reservations {
		if rs.r.Status != model.ReservationPending {
			continue
		}
		if rs.r.ExpiresAt.After(cutoff) {
			continue
		}
		out = append(out, rs.r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (m *Memory) CountPendingByProduct(ctx context.Context, productID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rs := range m.reservations {
		if rs.r.ProductID == productID && rs.r.Status == model.ReservationPending {
			n++
		}
	}
	return n, nil
}

func (m *Memory) GetPreferences(ctx context.Context, storeID string) (model.AlertPreferences, uint64, error) {
	if err := ctx.Err(); err != nil {
		return model.AlertPreferences{}, 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ps, ok := m.prefs[storeID]
	if !ok {
		return model.AlertPreferences{}, 0, ErrNotFound
	}
	return ps.p, ps.version, nil
}

func (m *Memory) PutPreferences(ctx context.Context, p model.AlertPreferences, version uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.prefs[p.StoreID]
	if version == 0 {
		if ok {
			return ErrExists
		}
		m.prefs[p.StoreID] = prefsState{p: p, version: 1}
		return nil
	}
	if !ok {
		return ErrNotFound
	}
	if cur.version != version {
		return ErrVersionConflict
	}
	m.prefs[p.StoreID] = prefsState{p: p, version: version + 1}
	return nil
}

func (m *Memory) ListPreferenceStoreIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.prefs))
	for id := range m.prefs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
