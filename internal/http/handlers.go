package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/vendora/inventory-core/internal/alerts"
	"github.com/vendora/inventory-core/internal/bulk"
	"github.com/vendora/inventory-core/internal/config"
	"github.com/vendora/inventory-core/internal/ledger"
	"github.com/vendora/inventory-core/internal/model"
	"github.com/vendora/inventory-core/internal/reservation"
	"github.com/vendora/inventory-core/internal/validation"
)

// App wires the core components into the HTTP handlers.
type App struct {
	Cfg          config.Config
	Ledger       *ledger.Ledger
	Reservations *reservation.Manager
	Validator    *validation.Engine
	Bulk         *bulk.Engine
	Dispatcher   *alerts.Dispatcher
	Prefs        *alerts.PrefsCache
}

// NewApp constructs the handler set.
func NewApp(cfg config.Config, l *ledger.Ledger, rm *reservation.Manager, v *validation.Engine, b *bulk.Engine, d *alerts.Dispatcher, p *alerts.PrefsCache) *App {
	return &App{Cfg: cfg, Ledger: l, Reservations: rm, Validator: v, Bulk: b, Dispatcher: d, Prefs: p}
}

func parseMovementType(s string) (model.MovementType, bool) {
	switch model.MovementType(s) {
	case model.MovementPurchase, model.MovementSale, model.MovementAdjustment,
		model.MovementReturn, model.MovementDamage, model.MovementTransfer,
		model.MovementCorrection:
		return model.MovementType(s), true
	}
	return "", false
}

type syncInventoryRequest struct {
	StoreID           string `json:"store_id"`
	Quantity          int64  `json:"quantity"`
	LowStockThreshold int64  `json:"low_stock_threshold"`
}

func (a *App) syncInventoryHandler(c *fiber.Ctx) error {
	productID := c.Params("productID")
	var req syncInventoryRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_json", err.Error())
	}
	if req.StoreID == "" {
		return writeError(c, fiber.StatusBadRequest, "validation_error", "store_id is required")
	}
	st, err := a.Ledger.InitializeProduct(c.Context(), productID, req.StoreID, req.Quantity, req.LowStockThreshold)
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(statusView(st))
}

func (a *App) getInventoryHandler(c *fiber.Ctx) error {
	st, err := a.Ledger.Status(c.Context(), c.Params("productID"))
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(statusView(st))
}

func statusView(st model.InventoryStatus) fiber.Map {
	return fiber.Map{
		"product_id":          st.ProductID,
		"store_id":            st.StoreID,
		"current_stock":       st.CurrentStock,
		"reserved_stock":      st.ReservedStock,
		"available_stock":     st.Available(),
		"low_stock_threshold": st.LowStockThreshold,
		"last_updated":        st.LastUpdated,
	}
}

func (a *App) getMovementsHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	movements, err := a.Ledger.Movements(c.Context(), c.Params("productID"), limit)
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(fiber.Map{"movements": movements, "count": len(movements)})
}

type updateStockRequest struct {
	Quantity  int64  `json:"quantity"`
	Type      string `json:"type"`
	Reason    string `json:"reason"`
	Actor     string `json:"actor"`
	Reference string `json:"reference"`
}

func (a *App) updateStockHandler(c *fiber.Ctx) error {
	productID := c.Params("productID")
	var req updateStockRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_json", err.Error())
	}
	typ, ok := parseMovementType(req.Type)
	if !ok {
		return writeError(c, fiber.StatusBadRequest, "validation_error", "unknown movement type "+req.Type)
	}
	var res ledger.UpdateResult
	err := ledger.Retry(c.Context(), a.Cfg.RetryAttempts, a.Cfg.RetryBackoff, func() error {
		var opErr error
		res, opErr = a.Ledger.UpdateStock(c.Context(), productID, req.Quantity, typ, req.Reason, req.Actor, req.Reference)
		return opErr
	})
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(res)
}

type bulkUpdateRequest struct {
	Items  []bulk.Item `json:"items"`
	Type   string      `json:"type"`
	Reason string      `json:"reason"`
	Actor  string      `json:"actor"`
}

func (a *App) bulkUpdateHandler(c *fiber.Ctx) error {
	var req bulkUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_json", err.Error())
	}
	if len(req.Items) == 0 {
		return writeError(c, fiber.StatusBadRequest, "validation_error", "items is empty")
	}
	typ, ok := parseMovementType(req.Type)
	if !ok {
		return writeError(c, fiber.StatusBadRequest, "validation_error", "unknown movement type "+req.Type)
	}
	res, err := a.Bulk.BulkUpdateStock(c.Context(), req.Items, typ, req.Reason, req.Actor)
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(res)
}

type validateRequest struct {
	Items []validation.AvailabilityRequest `json:"items"`
}

func (a *App) validateHandler(c *fiber.Ctx) error {
	var req validateRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_json", err.Error())
	}
	results, err := a.Validator.ValidateAvailability(c.Context(), req.Items)
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(fiber.Map{"results": results})
}

type reserveRequest struct {
	ProductID      string `json:"product_id"`
	Quantity       int64  `json:"quantity"`
	CustomerID     string `json:"customer_id"`
	OrderReference string `json:"order_reference"`
	TTLSeconds     int    `json:"ttl_seconds"`
}

func (a *App) reserveHandler(c *fiber.Ctx) error {
	var req reserveRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_json", err.Error())
	}
	if req.ProductID == "" {
		return writeError(c, fiber.StatusBadRequest, "validation_error", "product_id is required")
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	r, err := a.Reservations.Reserve(c.Context(), req.ProductID, req.Quantity, req.CustomerID, req.OrderReference, ttl)
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(r)
}

func (a *App) getReservationHandler(c *fiber.Ctx) error {
	r, err := a.Reservations.Get(c.Context(), c.Params("id"))
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(r)
}

type confirmRequest struct {
	OrderID string `json:"order_id"`
}

func (a *App) confirmReservationHandler(c *fiber.Ctx) error {
	var req confirmRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_json", err.Error())
	}
	ok, err := a.Reservations.Confirm(c.Context(), c.Params("id"), req.OrderID)
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(fiber.Map{"confirmed": ok})
}

type releaseRequest struct {
	Reason string `json:"reason"`
}

func (a *App) releaseReservationHandler(c *fiber.Ctx) error {
	var req releaseRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_json", err.Error())
	}
	ok, err := a.Reservations.Release(c.Context(), c.Params("id"), req.Reason)
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(fiber.Map{"released": ok})
}

func (a *App) cleanupReservationsHandler(c *fiber.Ctx) error {
	window := time.Duration(c.QueryInt("window_seconds", int(a.Cfg.ExpirationWindow.Seconds()))) * time.Second
	count, err := a.Reservations.CleanupExpired(c.Context(), window)
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(fiber.Map{"cleaned": count})
}

func (a *App) getPreferencesHandler(c *fiber.Ctx) error {
	prefs, err := a.Prefs.Get(c.Context(), c.Params("storeID"))
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(prefs)
}

func (a *App) putPreferencesHandler(c *fiber.Ctx) error {
	var prefs model.AlertPreferences
	if err := c.BodyParser(&prefs); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_json", err.Error())
	}
	prefs.StoreID = c.Params("storeID")
	if err := a.Prefs.Set(c.Context(), prefs); err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(prefs)
}

func (a *App) processAlertsHandler(c *fiber.Ctx) error {
	count, err := a.Dispatcher.ProcessPendingAlerts(c.Context())
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, "alert_processing_failed", err.Error())
	}
	return c.JSON(fiber.Map{"processed": count})
}

func (a *App) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
