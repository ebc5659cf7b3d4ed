package resolver

import (
	"context"

	"github.com/lexvault/lexvault/internal/events"
	"github.com/lexvault/lexvault/pkg/kafka"
)

// InvalidateHandler returns the Kafka handler for the invalidation
// topic. Every node runs one in its own consumer group so every node
// drops the keys; a malformed event is logged and committed rather than
// redelivered, since replaying it can never succeed.
func (r *Resolver) InvalidateHandler() kafka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		ev, err := kafka.DecodeJSON[events.CacheInvalidate](value)
		if err != nil {
			r.logger.Warn("skipping malformed invalidation event", "error", err)
			return nil
		}
		r.Invalidate(ctx, ev.Keys...)
		r.logger.Debug("invalidation applied", "origin", ev.Origin, "keys", len(ev.Keys))
		return nil
	}
}
