package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/vendora/inventory-core/internal/http/openapi"
)

// NewRouter registers routes and middleware and returns the fiber app.
func NewRouter(app *App, log *zap.Logger) *fiber.App {
	f := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	})

	f.Use(recover.New())
	f.Use(WithRequestID())
	f.Use(WithLogging(log))

	f.Get("/healthz", app.healthHandler)
	f.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "application/yaml")
		return c.Send(openapi.YAML)
	})

	api := f.Group("/api/v1", limiter.New(limiter.Config{
		Max:        app.Cfg.RateLimitPerMin,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return writeError(c, fiber.StatusTooManyRequests, "rate_limit_exceeded", "")
		},
	}))

	api.Put("/inventory/:productID", app.syncInventoryHandler)
	api.Get("/inventory/:productID", app.getInventoryHandler)
	api.Get("/inventory/:productID/movements", app.getMovementsHandler)
	api.Post("/inventory/:productID/stock", app.updateStockHandler)
	api.Post("/inventory/bulk", app.bulkUpdateHandler)
	api.Post("/inventory/validate", app.validateHandler)

	api.Post("/reservations", app.reserveHandler)
	api.Get("/reservations/:id", app.getReservationHandler)
	api.Post("/reservations/:id/confirm", app.confirmReservationHandler)
	api.Post("/reservations/:id/release", app.releaseReservationHandler)
	api.Post("/reservations/cleanup", app.cleanupReservationsHandler)

	api.Get("/stores/:storeID/alert-preferences", app.getPreferencesHandler)
	api.Put("/stores/:storeID/alert-preferences", app.putPreferencesHandler)
	api.Post("/alerts/process", app.processAlertsHandler)

	return f
}
