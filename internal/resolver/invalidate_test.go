package resolver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexvault/lexvault/internal/events"
)

func TestInvalidateHandlerDropsKeys(t *testing.T) {
	src := newFakeSource()
	r, _ := newTestResolver(t, src, cachedConfig(), fastResilience())
	ctx := context.Background()
	addr := src.doc.Address

	_, err := r.Meta(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, 1, src.count("meta"))

	payload, err := json.Marshal(events.CacheInvalidate{
		Keys:   []string{MetaKey(addr)},
		Origin: "other-node",
		At:     time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, r.InvalidateHandler()(ctx, nil, payload))

	_, err = r.Meta(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, 2, src.count("meta"), "invalidation must force a fresh store read")
}

func TestInvalidateHandlerSkipsMalformedEvent(t *testing.T) {
	src := newFakeSource()
	r, _ := newTestResolver(t, src, cachedConfig(), fastResilience())

	err := r.InvalidateHandler()(context.Background(), nil, []byte("{broken"))
	assert.NoError(t, err, "malformed events are skipped, not redelivered")
}
