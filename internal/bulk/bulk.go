// Package bulk applies batches of ledger mutations, isolating per-item
// failures so one bad line never aborts the batch.
package bulk

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vendora/inventory-core/internal/config"
	"github.com/vendora/inventory-core/internal/ledger"
	"github.com/vendora/inventory-core/internal/model"
)

// Item is one product quantity line in a batch.
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

// ItemError names a failed line and its cause.
type ItemError struct {
	ProductID string `json:"product_id"`
	Error     string `json:"error"`
}

// Result reports exact batch counts so callers can tell a fully applied
// batch from a partial one.
type Result struct {
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors,omitempty"`
}

// Engine runs batched stock updates through the ledger.
type Engine struct {
	ledger   *ledger.Ledger
	log      *zap.Logger
	attempts int
	backoff  time.Duration
}

// NewEngine constructs a bulk Engine.
func NewEngine(cfg config.Config, l *ledger.Ledger, log *zap.Logger) *Engine {
	return &Engine{ledger: l, log: log, attempts: cfg.RetryAttempts, backoff: cfg.RetryBackoff}
}

// BulkUpdateStock applies one UpdateStock per item, retrying individual
// conflicts up to the configured bound. Failures are collected per item.
func (e *Engine) BulkUpdateStock(ctx context.Context, items []Item, typ model.MovementType, reason, actor string) (Result, error) {
	res := Result{Total: len(items)}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		err := ledger.Retry(ctx, e.attempts, e.backoff, func() error {
			_, err := e.ledger.UpdateStock(ctx, item.ProductID, item.Quantity, typ, reason, actor, "")
			return err
		})
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, ItemError{ProductID: item.ProductID, Error: err.Error()})
			continue
		}
		res.Succeeded++
	}
	e.log.Info("bulk_update_applied",
		zap.Int("total", res.Total),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}
