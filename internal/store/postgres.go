package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendora/inventory-core/internal/model"
)

// Postgres is the pgx-backed Store. Conditional writes are plain UPDATEs
// guarded by the version column; a zero rows-affected result on an existing
// row is a version conflict.
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres builds a pooled connection from a DSN and pings it.
func ConnectPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 50
	cfg.MinConns = 5

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() { p.pool.Close() }

// InitializeSchema creates the tables and indexes if they do not exist.
func (p *Postgres) InitializeSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS inventory_statuses (
		product_id          TEXT PRIMARY KEY,
		store_id            TEXT NOT NULL,
		current_stock       BIGINT NOT NULL,
		reserved_stock      BIGINT NOT NULL DEFAULT 0,
		low_stock_threshold BIGINT NOT NULL DEFAULT 0,
		last_updated        TIMESTAMPTZ NOT NULL,
		version             BIGINT NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS inventory_movements (
		movement_id       TEXT PRIMARY KEY,
		product_id        TEXT NOT NULL,
		movement_type     TEXT NOT NULL,
		previous_quantity BIGINT NOT NULL,
		quantity_changed  BIGINT NOT NULL,
		new_quantity      BIGINT NOT NULL,
		reason            TEXT NOT NULL DEFAULT '',
		updated_by        TEXT NOT NULL DEFAULT '',
		updated_at        TIMESTAMPTZ NOT NULL,
		reference         TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS stock_reservations (
		reservation_id  TEXT PRIMARY KEY,
		product_id      TEXT NOT NULL,
		quantity        BIGINT NOT NULL,
		customer_id     TEXT NOT NULL,
		order_reference TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL,
		expires_at      TIMESTAMPTZ NOT NULL,
		status          TEXT NOT NULL,
		version         BIGINT NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS alert_preferences (
		store_id                    TEXT PRIMARY KEY,
		enable_low_stock_alerts     BOOLEAN NOT NULL,
		enable_out_of_stock_alerts  BOOLEAN NOT NULL,
		enable_restock_alerts       BOOLEAN NOT NULL,
		default_low_stock_threshold BIGINT NOT NULL,
		dead_stock_days             INT NOT NULL,
		alert_email                 TEXT NOT NULL DEFAULT '',
		daily_summary               BOOLEAN NOT NULL DEFAULT FALSE,
		weekly_summary              BOOLEAN NOT NULL DEFAULT FALSE,
		created_at                  TIMESTAMPTZ NOT NULL,
		updated_at                  TIMESTAMPTZ NOT NULL,
		version                     BIGINT NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_statuses_store ON inventory_statuses(store_id);
	CREATE INDEX IF NOT EXISTS idx_movements_product ON inventory_movements(product_id, updated_at DESC);
	CREATE INDEX IF NOT EXISTS idx_reservations_expiry ON stock_reservations(status, expires_at);
	CREATE INDEX IF NOT EXISTS idx_reservations_product ON stock_reservations(product_id, status);
	`
	_, err := p.pool.Exec(ctx, schema)
	return err
}

func (p *Postgres) GetStatus(ctx context.Context, productID string) (model.InventoryStatus, uint64, error) {
	var st model.InventoryStatus
	var version uint64
	err := p.pool.QueryRow(ctx, `
		SELECT product_id, store_id, current_stock, reserved_stock, low_stock_threshold, last_updated, version
		FROM inventory_statuses WHERE product_id = $1`, productID,
	).Scan(&st.ProductID, &st.StoreID, &st.CurrentStock, &st.ReservedStock, &st.LowStockThreshold, &st.LastUpdated, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.InventoryStatus{}, 0, ErrNotFound
	}
	if err != nil {
		return model.InventoryStatus{}, 0, err
	}
	return st, version, nil
}

func (p *Postgres) CreateStatus(ctx context.Context, st model.InventoryStatus) error {
	ct, err := p.pool.Exec(ctx, `
		INSERT INTO inventory_statuses (product_id, store_id, current_stock, reserved_stock, low_stock_threshold, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (product_id) DO NOTHING`,
		st.ProductID, st.StoreID, st.CurrentStock, st.ReservedStock, st.LowStockThreshold, st.LastUpdated)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrExists
	}
	return nil
}

func (p *Postgres) UpdateStatus(ctx context.Context, st model.InventoryStatus, version uint64) error {
	ct, err := p.pool.Exec(ctx, updateStatusSQL,
		st.ProductID, st.CurrentStock, st.ReservedStock, st.LowStockThreshold, st.LastUpdated, version)
	if err != nil {
		return err
	}
	return p.checkConditional(ctx, ct.RowsAffected(), "SELECT 1 FROM inventory_statuses WHERE product_id = $1", st.ProductID)
}

const updateStatusSQL = `
	UPDATE inventory_statuses
	SET current_stock = $2, reserved_stock = $3, low_stock_threshold = $4, last_updated = $5, version = version + 1
	WHERE product_id = $1 AND version = $6`

const insertMovementSQL = `
	INSERT INTO inventory_movements
		(movement_id, product_id, movement_type, previous_quantity, quantity_changed, new_quantity, reason, updated_by, updated_at, reference)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

func (p *Postgres) UpdateStatusWithMovement(ctx context.Context, st model.InventoryStatus, version uint64, mv model.InventoryMovement) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, updateStatusSQL,
		st.ProductID, st.CurrentStock, st.ReservedStock, st.LowStockThreshold, st.LastUpdated, version)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return p.conditionalError(ctx, "SELECT 1 FROM inventory_statuses WHERE product_id = $1", st.ProductID)
	}
	if _, err := tx.Exec(ctx, insertMovementSQL,
		mv.MovementID, mv.ProductID, string(mv.Type), mv.PreviousQuantity, mv.QuantityChanged, mv.NewQuantity,
		mv.Reason, mv.UpdatedBy, mv.UpdatedAt, mv.Reference); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) ListStatuses(ctx context.Context, storeID string) ([]model.InventoryStatus, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT product_id, store_id, current_stock, reserved_stock, low_stock_threshold, last_updated
		FROM inventory_statuses WHERE store_id = $1 ORDER BY product_id`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.InventoryStatus
	for rows.Next() {
		var st model.InventoryStatus
		if err := rows.Scan(&st.ProductID, &st.StoreID, &st.CurrentStock, &st.ReservedStock, &st.LowStockThreshold, &st.LastUpdated); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (p *Postgres) AppendMovement(ctx context.Context, mv model.InventoryMovement) error {
	_, err := p.pool.Exec(ctx, insertMovementSQL,
		mv.MovementID, mv.ProductID, string(mv.Type), mv.PreviousQuantity, mv.QuantityChanged, mv.NewQuantity,
		mv.Reason, mv.UpdatedBy, mv.UpdatedAt, mv.Reference)
	return err
}

func (p *Postgres) MovementsByProduct(ctx context.Context, productID string, limit int) ([]model.InventoryMovement, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.pool.Query(ctx, `
		SELECT movement_id, product_id, movement_type, previous_quantity, quantity_changed, new_quantity, reason, updated_by, updated_at, reference
		FROM inventory_movements WHERE product_id = $1 ORDER BY updated_at DESC LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.InventoryMovement
	for rows.Next() {
		var mv model.InventoryMovement
		var typ string
		if err := rows.Scan(&mv.MovementID, &mv.ProductID, &typ, &mv.PreviousQuantity, &mv.QuantityChanged, &mv.NewQuantity, &mv.Reason, &mv.UpdatedBy, &mv.UpdatedAt, &mv.Reference); err != nil {
			return nil, err
		}
		mv.Type = model.MovementType(typ)
		out = append(out, mv)
	}
	return out, rows.Err()
}

func (p *Postgres) GetReservation(ctx context.Context, id string) (model.StockReservation, uint64, error) {
	var r model.StockReservation
	var status string
	var version uint64
	err := p.pool.QueryRow(ctx, `
		SELECT reservation_id, product_id, quantity, customer_id, order_reference, created_at, expires_at, status, version
		FROM stock_reservations WHERE reservation_id = $1`, id,
	).Scan(&r.ReservationID, &r.ProductID, &r.Quantity, &r.CustomerID, &r.OrderReference, &r.CreatedAt, &r.ExpiresAt, &status, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.StockReservation{}, 0, ErrNotFound
	}
	if err != nil {
		return model.StockReservation{}, 0, err
	}
	r.Status = model.ReservationStatus(status)
	return r, version, nil
}

const insertReservationSQL = `
	INSERT INTO stock_reservations (reservation_id, product_id, quantity, customer_id, order_reference, created_at, expires_at, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (reservation_id) DO NOTHING`

const updateReservationSQL = `
	UPDATE stock_reservations
	SET status = $2, order_reference = $3, expires_at = $4, version = version + 1
	WHERE reservation_id = $1 AND version = $5`

func (p *Postgres) CreateReservation(ctx context.Context, r model.StockReservation) error {
	ct, err := p.pool.Exec(ctx, insertReservationSQL,
		r.ReservationID, r.ProductID, r.Quantity, r.CustomerID, r.OrderReference, r.CreatedAt, r.ExpiresAt, string(r.Status))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrExists
	}
	return nil
}

func (p *Postgres) UpdateReservation(ctx context.Context, r model.StockReservation, version uint64) error {
	ct, err := p.pool.Exec(ctx, updateReservationSQL,
		r.ReservationID, string(r.Status), r.OrderReference, r.ExpiresAt, version)
	if err != nil {
		return err
	}
	return p.checkConditional(ctx, ct.RowsAffected(), "SELECT 1 FROM stock_reservations WHERE reservation_id = $1", r.ReservationID)
}

func (p *Postgres) CreateReservationWithStatus(ctx context.Context, r model.StockReservation, st model.InventoryStatus, version uint64) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, updateStatusSQL,
		st.ProductID, st.CurrentStock, st.ReservedStock, st.LowStockThreshold, st.LastUpdated, version)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return p.conditionalError(ctx, "SELECT 1 FROM inventory_statuses WHERE product_id = $1", st.ProductID)
	}
	ct, err = tx.Exec(ctx, insertReservationSQL,
		r.ReservationID, r.ProductID, r.Quantity, r.CustomerID, r.OrderReference, r.CreatedAt, r.ExpiresAt, string(r.Status))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrExists
	}
	return tx.Commit(ctx)
}

func (p *Postgres) UpdateReservationWithStatus(ctx context.Context, r model.StockReservation, rVersion uint64, st model.InventoryStatus, stVersion uint64, mv model.InventoryMovement) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, updateReservationSQL,
		r.ReservationID, string(r.Status), r.OrderReference, r.ExpiresAt, rVersion)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return p.conditionalError(ctx, "SELECT 1 FROM stock_reservations WHERE reservation_id = $1", r.ReservationID)
	}
	ct, err = tx.Exec(ctx, updateStatusSQL,
		st.ProductID, st.CurrentStock, st.ReservedStock, st.LowStockThreshold, st.LastUpdated, stVersion)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return p.conditionalError(ctx, "SELECT 1 FROM inventory_statuses WHERE product_id = $1", st.ProductID)
	}
	if _, err := tx.Exec(ctx, insertMovementSQL,
		mv.MovementID, mv.ProductID, string(mv.Type), mv.PreviousQuantity, mv.QuantityChanged, mv.NewQuantity,
		mv.Reason, mv.UpdatedBy, mv.UpdatedAt, mv.Reference); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]model.StockReservation, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := p.pool.Query(ctx, `
		SELECT reservation_id, product_id, quantity, customer_id, order_reference, created_at, expires_at, status
		FROM stock_reservations WHERE status = 'pending' AND expires_at <= $1
		ORDER BY expires_at LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.StockReservation
	for rows.Next() {
		var r model.StockReservation
		var status string
		if err := rows.Scan(&r.ReservationID, &r.ProductID, &r.Quantity, &r.CustomerID, &r.OrderReference, &r.CreatedAt, &r.ExpiresAt, &status); err != nil {
			return nil, err
		}
		r.Status = model.ReservationStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) CountPendingByProduct(ctx context.Context, productID string) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM stock_reservations WHERE product_id = $1 AND status = 'pending'`,
		productID).Scan(&n)
	return n, err
}

func (p *Postgres) GetPreferences(ctx context.Context, storeID string) (model.AlertPreferences, uint64, error) {
	var pr model.AlertPreferences
	var version uint64
	err := p.pool.QueryRow(ctx, `
		SELECT store_id, enable_low_stock_alerts, enable_out_of_stock_alerts, enable_restock_alerts,
		       default_low_stock_threshold, dead_stock_days, alert_email, daily_summary, weekly_summary,
		       created_at, updated_at, version
		FROM alert_preferences WHERE store_id = $1`, storeID,
	).Scan(&pr.StoreID, &pr.EnableLowStockAlerts, &pr.EnableOutOfStockAlerts, &pr.EnableRestockAlerts,
		&pr.DefaultLowStockThreshold, &pr.DeadStockDays, &pr.AlertEmail, &pr.DailySummary, &pr.WeeklySummary,
		&pr.CreatedAt, &pr.UpdatedAt, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AlertPreferences{}, 0, ErrNotFound
	}
	if err != nil {
		return model.AlertPreferences{}, 0, err
	}
	return pr, version, nil
}

func (p *Postgres) PutPreferences(ctx context.Context, pr model.AlertPreferences, version uint64) error {
	if version == 0 {
		ct, err := p.pool.Exec(ctx, `
			INSERT INTO alert_preferences
				(store_id, enable_low_stock_alerts, enable_out_of_stock_alerts, enable_restock_alerts,
				 default_low_stock_threshold, dead_stock_days, alert_email, daily_summary, weekly_summary, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (store_id) DO NOTHING`,
			pr.StoreID, pr.EnableLowStockAlerts, pr.EnableOutOfStockAlerts, pr.EnableRestockAlerts,
			pr.DefaultLowStockThreshold, pr.DeadStockDays, pr.AlertEmail, pr.DailySummary, pr.WeeklySummary,
			pr.CreatedAt, pr.UpdatedAt)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return ErrExists
		}
		return nil
	}
	ct, err := p.pool.Exec(ctx, `
		UPDATE alert_preferences
		SET enable_low_stock_alerts = $2, enable_out_of_stock_alerts = $3, enable_restock_alerts = $4,
		    default_low_stock_threshold = $5, dead_stock_days = $6, alert_email = $7,
		    daily_summary = $8, weekly_summary = $9, updated_at = $10, version = version + 1
		WHERE store_id = $1 AND version = $11`,
		pr.StoreID, pr.EnableLowStockAlerts, pr.EnableOutOfStockAlerts, pr.EnableRestockAlerts,
		pr.DefaultLowStockThreshold, pr.DeadStockDays, pr.AlertEmail, pr.DailySummary, pr.WeeklySummary,
		pr.UpdatedAt, version)
	if err != nil {
		return err
	}
	return p.checkConditional(ctx, ct.RowsAffected(), "SELECT 1 FROM alert_preferences WHERE store_id = $1", pr.StoreID)
}

func (p *Postgres) ListPreferenceStoreIDs(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT store_id FROM alert_preferences ORDER BY store_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// checkConditional maps a zero rows-affected conditional write to either a
// missing row or a version conflict.
func (p *Postgres) checkConditional(ctx context.Context, affected int64, existsSQL string, key string) error {
	if affected > 0 {
		return nil
	}
	return p.conditionalError(ctx, existsSQL, key)
}

func (p *Postgres) conditionalError(ctx context.Context, existsSQL string, key string) error {
	var one int
	err := p.pool.QueryRow(ctx, existsSQL, key).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrVersionConflict
}
