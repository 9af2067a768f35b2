package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/vendora/inventory-core/internal/model"
)

// Retry runs op, retrying on ErrConcurrencyConflict up to attempts times
// with a fixed backoff between tries. Any other error, or context
// cancellation, stops the loop immediately. The last conflict error is
// returned when attempts are exhausted.
func Retry(ctx context.Context, attempts int, backoff time.Duration, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil || !errors.Is(err, model.ErrConcurrencyConflict) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
