package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vendora/inventory-core/internal/alerts"
	"github.com/vendora/inventory-core/internal/bulk"
	"github.com/vendora/inventory-core/internal/config"
	"github.com/vendora/inventory-core/internal/ledger"
	"github.com/vendora/inventory-core/internal/reservation"
	"github.com/vendora/inventory-core/internal/store"
	"github.com/vendora/inventory-core/internal/validation"
)

func newTestServer(t *testing.T) *fiber.App {
	t.Helper()
	cfg := config.Config{
		RetryAttempts:   4,
		RetryBackoff:    time.Millisecond,
		ReservationTTL:  time.Minute,
		RateLimitPerMin: 10000,
	}
	log := zap.NewNop()
	mem := store.NewMemory()
	l := ledger.New(mem, log)
	rm := reservation.NewManager(cfg, mem, log)
	prefs := alerts.NewPrefsCache(mem, log)
	notifier := &alerts.LogNotifier{Log: log}
	d := alerts.NewDispatcher(mem, prefs, notifier, log, "alerts@test")
	v := validation.NewEngine(mem, prefs, nil, log)
	b := bulk.NewEngine(cfg, l, log)
	return NewRouter(NewApp(cfg, l, rm, v, b, d, prefs), log)
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp, out
}

func seedProduct(t *testing.T, app *fiber.App, productID string, qty int64) {
	t.Helper()
	resp, _ := doJSON(t, app, http.MethodPut, "/api/v1/inventory/"+productID, map[string]any{
		"store_id": "s1",
		"quantity": qty,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestSyncAndGetInventory(t *testing.T) {
	app := newTestServer(t)
	seedProduct(t, app, "p1", 10)

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/inventory/p1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(10), body["current_stock"])
	require.Equal(t, float64(10), body["available_stock"])
	require.Equal(t, "s1", body["store_id"])

	// re-creating an existing product conflicts
	resp, body = doJSON(t, app, http.MethodPut, "/api/v1/inventory/p1", map[string]any{
		"store_id": "s1", "quantity": 5,
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "product_exists", body["error"])
}

func TestGetInventoryNotFound(t *testing.T) {
	app := newTestServer(t)
	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/inventory/nope", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "product_not_found", body["error"])
}

func TestUpdateStock(t *testing.T) {
	app := newTestServer(t)
	seedProduct(t, app, "p1", 10)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/inventory/p1/stock", map[string]any{
		"quantity": 25, "type": "purchase", "reason": "restock", "actor": "alice",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(10), body["previous_quantity"])
	require.Equal(t, float64(25), body["new_quantity"])

	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/inventory/p1/stock", map[string]any{
		"quantity": 5, "type": "teleport",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body["details"], "teleport")

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/inventory/p1/stock", map[string]any{
		"quantity": -1, "type": "adjustment",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMovementsEndpoint(t *testing.T) {
	app := newTestServer(t)
	seedProduct(t, app, "p1", 10)
	for i := 0; i < 3; i++ {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/inventory/p1/stock", map[string]any{
			"quantity": 10 + i + 1, "type": "purchase",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/inventory/p1/movements?limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(2), body["count"])
	movements := body["movements"].([]any)
	newest := movements[0].(map[string]any)
	require.Equal(t, float64(13), newest["new_quantity"])
}

func TestBulkUpdateEndpoint(t *testing.T) {
	app := newTestServer(t)
	seedProduct(t, app, "p1", 10)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/inventory/bulk", map[string]any{
		"type": "adjustment",
		"items": []map[string]any{
			{"product_id": "p1", "quantity": 3},
			{"product_id": "ghost", "quantity": 1},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(2), body["total"])
	require.Equal(t, float64(1), body["succeeded"])
	require.Equal(t, float64(1), body["failed"])

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/inventory/bulk", map[string]any{
		"type": "adjustment", "items": []map[string]any{},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestValidateEndpoint(t *testing.T) {
	app := newTestServer(t)
	seedProduct(t, app, "p1", 10)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/inventory/validate", map[string]any{
		"items": []map[string]any{
			{"product_id": "p1", "requested_quantity": 4},
			{"product_id": "missing", "requested_quantity": 1},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := body["results"].([]any)
	require.Len(t, results, 2)
	require.True(t, results[0].(map[string]any)["is_available"].(bool))
	require.False(t, results[1].(map[string]any)["is_available"].(bool))
}

func TestReservationLifecycleOverHTTP(t *testing.T) {
	app := newTestServer(t)
	seedProduct(t, app, "p1", 5)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/reservations", map[string]any{
		"product_id": "p1", "quantity": 3, "customer_id": "cust-1", "ttl_seconds": 60,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "pending", body["status"])
	id := body["reservation_id"].(string)
	require.NotEmpty(t, id)

	// a second hold beyond the remaining stock conflicts
	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/reservations", map[string]any{
		"product_id": "p1", "quantity": 3, "customer_id": "cust-2",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "insufficient_stock", body["error"])

	resp, body = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/v1/reservations/%s/confirm", id), map[string]any{
		"order_id": "order-7",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, body["confirmed"].(bool))

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/reservations/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "confirmed", body["status"])

	// confirming a settled reservation is an invalid transition
	resp, body = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/v1/reservations/%s/confirm", id), map[string]any{
		"order_id": "order-8",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "invalid_state_transition", body["error"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/inventory/p1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(2), body["current_stock"])
	require.Equal(t, float64(0), body["reserved_stock"])
}

func TestReleaseAndCleanupEndpoints(t *testing.T) {
	app := newTestServer(t)
	seedProduct(t, app, "p1", 5)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/reservations", map[string]any{
		"product_id": "p1", "quantity": 2, "customer_id": "cust-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["reservation_id"].(string)

	resp, body = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/v1/reservations/%s/release", id), map[string]any{
		"reason": "changed mind",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, body["released"].(bool))

	// releasing again is a no-op, not an error
	resp, body = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/v1/reservations/%s/release", id), map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, body["released"].(bool))

	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/reservations/cleanup", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(0), body["cleaned"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/reservations/missing", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "reservation_not_found", body["error"])
}

func TestPreferencesEndpoints(t *testing.T) {
	app := newTestServer(t)

	// unconfigured stores read as defaults
	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/stores/s1/alert-preferences", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(10), body["default_low_stock_threshold"])

	resp, _ = doJSON(t, app, http.MethodPut, "/api/v1/stores/s1/alert-preferences", map[string]any{
		"enable_low_stock_alerts":     true,
		"default_low_stock_threshold": 33,
		"alert_email":                 "ops@example.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/stores/s1/alert-preferences", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(33), body["default_low_stock_threshold"])
	require.Equal(t, "ops@example.com", body["alert_email"])
}

func TestProcessAlertsEndpoint(t *testing.T) {
	app := newTestServer(t)
	seedProduct(t, app, "p1", 2)

	resp, _ := doJSON(t, app, http.MethodPut, "/api/v1/stores/s1/alert-preferences", map[string]any{
		"enable_low_stock_alerts":     true,
		"default_low_stock_threshold": 5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/alerts/process", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), body["processed"])
}

func TestHealthAndRequestID(t *testing.T) {
	app := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}
