// Package httpapi exposes the administrative HTTP surface of the service.
package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/vendora/inventory-core/internal/model"
)

// writeError renders the JSON error payload used across the API.
func writeError(c *fiber.Ctx, status int, message, details string) error {
	body := fiber.Map{"error": message}
	if details != "" {
		body["details"] = details
	}
	return c.Status(status).JSON(body)
}

// mapDomainError translates the domain error taxonomy to HTTP statuses.
// Concurrency conflicts map to 503 so callers know the request is retriable.
func mapDomainError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, model.ErrProductNotFound):
		return writeError(c, fiber.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, model.ErrReservationNotFound):
		return writeError(c, fiber.StatusNotFound, "reservation_not_found", err.Error())
	case errors.Is(err, model.ErrInvalidQuantity):
		return writeError(c, fiber.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, model.ErrInsufficientStock):
		return writeError(c, fiber.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, model.ErrInvalidStateTransition):
		return writeError(c, fiber.StatusConflict, "invalid_state_transition", err.Error())
	case errors.Is(err, model.ErrProductExists):
		return writeError(c, fiber.StatusConflict, "product_exists", err.Error())
	case errors.Is(err, model.ErrConcurrencyConflict):
		return writeError(c, fiber.StatusServiceUnavailable, "concurrency_conflict", "concurrent modification, retry the request")
	default:
		return writeError(c, fiber.StatusInternalServerError, "internal_error", "")
	}
}
