package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout bounds fn to the given budget. fn receives a context that
// expires with the budget; if fn ignores cancellation and keeps running,
// the call still returns once the budget is spent and the goroutine is
// left to finish against the expired context. A zero or negative budget
// runs fn unbounded.
func WithTimeout(ctx context.Context, budget time.Duration, name string, fn func(ctx context.Context) error) error {
	if budget <= 0 {
		return fn(ctx)
	}
	bounded, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- fn(bounded) }()

	select {
	case err := <-errc:
		return err
	case <-bounded.Done():
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s cancelled: %w", name, err)
		}
		return fmt.Errorf("%s exceeded %v budget: %w", name, budget, context.DeadlineExceeded)
	}
}
