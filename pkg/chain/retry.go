package chain

import (
	"context"
	"time"

	"github.com/insdexer/indexer/pkg/util"
	"go.uber.org/zap"
)

// RetryBackoff is the fixed delay between RPC retry attempts. The chain is
// assumed to be reachable eventually; there is no exponential backoff or
// retry ceiling, since a sync worker with nothing else to do should just
// keep trying until the node comes back.
const RetryBackoff = time.Second

// WithRetry calls fn until it succeeds or ctx is cancelled, sleeping
// RetryBackoff between attempts and logging each failure.
func WithRetry[T any](ctx context.Context, log *zap.Logger, clock util.Clock, what string, fn func() (T, error)) (T, error) {
	for {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			var zero T
			return zero, ctx.Err()
		}
		log.Warn("chain call failed, retrying", zap.String("call", what), zap.Error(err))
		select {
		case <-clock.After(RetryBackoff):
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}
