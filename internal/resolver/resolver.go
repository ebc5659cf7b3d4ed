// Package resolver serves reads cache-first: Redis in front, the
// authoritative store behind a retry and circuit-breaker envelope, and
// single-flight collapse so one miss triggers one store read no matter
// how many connections ask at once. Only metadata is ever invalidated;
// documents, positions, and vocabulary entries are immutable once
// written and expire by TTL alone.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lexvault/lexvault/internal/store"
	"github.com/lexvault/lexvault/pkg/config"
	apperrors "github.com/lexvault/lexvault/pkg/errors"
	"github.com/lexvault/lexvault/pkg/metrics"
	pkgredis "github.com/lexvault/lexvault/pkg/redis"
	"github.com/lexvault/lexvault/pkg/resilience"
)

// negativeSentinel marks a cached not-found. It is not valid JSON for any
// cached payload, so it can never collide with a real entry.
const negativeSentinel = "\x00nf"

// Source is the authoritative read surface the resolver fronts.
type Source interface {
	GetDocument(ctx context.Context, addr store.DocumentAddress) (*store.Document, error)
	LoadPositions(ctx context.Context, addr store.DocumentAddress) (map[int64][]int, int, error)
	TokenBySurface(ctx context.Context, surface string) (*store.TokenInfo, error)
	Meta(ctx context.Context, addr store.DocumentAddress) (map[string]string, error)
}

// Resolver answers read queries, consulting Redis before the store.
type Resolver struct {
	source       Source
	cache        *pkgredis.Client
	cfg          config.CacheConfig
	retry        resilience.RetryConfig
	storeTimeout time.Duration
	breaker      *resilience.CircuitBreaker
	group        singleflight.Group
	metrics      *metrics.Metrics
	logger       *slog.Logger
	hits         atomic.Int64
	misses       atomic.Int64
}

// New creates a Resolver. cache may be nil, which disables caching and
// routes every read straight to the store; m may be nil in tests.
func New(source Source, cache *pkgredis.Client, cacheCfg config.CacheConfig, resCfg config.ResilienceConfig, m *metrics.Metrics) *Resolver {
	r := &Resolver{
		source:       source,
		cache:        cache,
		cfg:          cacheCfg,
		metrics:      m,
		storeTimeout: resCfg.StoreTimeout,
		retry: resilience.RetryConfig{
			MaxAttempts:  resCfg.MaxRetries,
			InitialDelay: resCfg.RetryBaseDelay,
			MaxDelay:     resCfg.RetryMaxDelay,
			RetryIf:      apperrors.Retryable,
		},
		logger: slog.Default().With("component", "resolver"),
	}
	r.breaker = resilience.NewCircuitBreaker("store", resilience.CircuitBreakerConfig{
		FailureThreshold: resCfg.BreakerThreshold,
		ResetTimeout:     resCfg.BreakerCooldown,
		OnStateChange: func(s resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues("store").Set(float64(s))
			}
		},
	})
	return r
}

// DocKey, PosKey, TokKey, and MetaKey name cache entries without the
// node-local prefix; invalidation events carry these bare forms.
func DocKey(addr store.DocumentAddress) string  { return "doc:" + addr.String() }
func PosKey(addr store.DocumentAddress) string  { return "pos:" + addr.String() }
func TokKey(surface string) string              { return "tok:" + surface }
func MetaKey(addr store.DocumentAddress) string { return "meta:" + addr.String() }

// Document returns one document record, cache-first.
func (r *Resolver) Document(ctx context.Context, addr store.DocumentAddress) (*store.Document, error) {
	return lookup(ctx, r, DocKey(addr), func(ctx context.Context) (*store.Document, error) {
		return r.source.GetDocument(ctx, addr)
	})
}

// positionsEntry is the cached form of a position table.
type positionsEntry struct {
	Positions  map[int64][]int `json:"positions"`
	TotalSlots int             `json:"total_slots"`
}

// Positions returns a document's decoded position table and slot width.
func (r *Resolver) Positions(ctx context.Context, addr store.DocumentAddress) (map[int64][]int, int, error) {
	entry, err := lookup(ctx, r, PosKey(addr), func(ctx context.Context) (positionsEntry, error) {
		positions, totalSlots, err := r.source.LoadPositions(ctx, addr)
		if err != nil {
			return positionsEntry{}, err
		}
		return positionsEntry{Positions: positions, TotalSlots: totalSlots}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	if entry.Positions == nil {
		entry.Positions = map[int64][]int{}
	}
	return entry.Positions, entry.TotalSlots, nil
}

// Token returns one vocabulary entry by surface, cache-first.
func (r *Resolver) Token(ctx context.Context, surface string) (*store.TokenInfo, error) {
	return lookup(ctx, r, TokKey(surface), func(ctx context.Context) (*store.TokenInfo, error) {
		return r.source.TokenBySurface(ctx, surface)
	})
}

// Meta returns a document's metadata, cache-first. Meta entries are the
// only mutable family and are dropped on update.
func (r *Resolver) Meta(ctx context.Context, addr store.DocumentAddress) (map[string]string, error) {
	meta, err := lookup(ctx, r, MetaKey(addr), func(ctx context.Context) (map[string]string, error) {
		return r.source.Meta(ctx, addr)
	})
	if err != nil {
		return nil, err
	}
	if meta == nil {
		meta = map[string]string{}
	}
	return meta, nil
}

// Invalidate drops the given bare keys from this node's cache. Used both
// on the local write path and by the invalidation consumer.
func (r *Resolver) Invalidate(ctx context.Context, keys ...string) {
	if r.cache == nil || !r.cfg.Enabled || len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.cfg.KeyPrefix + k
	}
	if err := r.cache.Del(ctx, full...); err != nil {
		r.logger.Error("cache invalidation failed", "keys", keys, "error", err)
		return
	}
	if r.metrics != nil {
		r.metrics.CacheInvalidationsTotal.Add(float64(len(keys)))
	}
	r.logger.Debug("cache invalidated", "keys", keys)
}

// Stats returns lifetime hit and miss counts.
func (r *Resolver) Stats() (hits, misses int64) {
	return r.hits.Load(), r.misses.Load()
}

// BreakerState exposes the store breaker state for the info operation.
func (r *Resolver) BreakerState() string {
	return r.breaker.GetState().String()
}

func (r *Resolver) cacheEnabled() bool {
	return r.cache != nil && r.cfg.Enabled
}

func (r *Resolver) markHit() {
	r.hits.Add(1)
	if r.metrics != nil {
		r.metrics.CacheHitsTotal.Inc()
	}
}

func (r *Resolver) markMiss() {
	r.misses.Add(1)
	if r.metrics != nil {
		r.metrics.CacheMissesTotal.Inc()
	}
}

// lookup implements the shared read path: cache probe, single-flight
// collapse, authoritative fetch, best-effort fill. A second cache probe
// inside the flight catches entries filled while this caller queued.
func lookup[T any](ctx context.Context, r *Resolver, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if !r.cacheEnabled() {
		return authoritative(ctx, r, load)
	}

	full := r.cfg.KeyPrefix + key
	v, ok, negative := cacheGet[T](ctx, r, full)
	switch {
	case ok:
		r.markHit()
		return v, nil
	case negative:
		r.markHit()
		return zero, apperrors.NotFoundf("%s (negative cache)", key)
	}
	r.markMiss()

	shared, err, _ := r.group.Do(full, func() (any, error) {
		v, ok, negative := cacheGet[T](ctx, r, full)
		switch {
		case ok:
			return v, nil
		case negative:
			return nil, apperrors.NotFoundf("%s (negative cache)", key)
		}

		val, err := authoritative(ctx, r, load)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) && r.cfg.NegativeTTL > 0 {
				r.cacheFill(ctx, full, []byte(negativeSentinel), r.cfg.NegativeTTL)
			}
			return nil, err
		}
		if data, err := json.Marshal(val); err != nil {
			r.logger.Error("cache marshal failed", "key", full, "error", err)
		} else {
			r.cacheFill(ctx, full, data, r.cfg.TTL)
		}
		return val, nil
	})
	if err != nil {
		return zero, err
	}
	return shared.(T), nil
}

// authoritative reads through the circuit breaker with retries, each
// attempt bounded by the store timeout. Connectivity failures and
// timeouts count against the breaker and earn another attempt;
// structural errors surface immediately.
func authoritative[T any](ctx context.Context, r *Resolver, load func(context.Context) (T, error)) (T, error) {
	var out T
	var structural error
	err := resilience.Retry(ctx, "store-read", r.retry, func() error {
		structural = nil
		return r.breaker.Execute(func() error {
			var v T
			err := resilience.WithTimeout(ctx, r.storeTimeout, "store read", func(ctx context.Context) error {
				got, err := load(ctx)
				if err != nil {
					return err
				}
				v = got
				return nil
			})
			switch {
			case err == nil:
				out = v
				return nil
			case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
				return apperrors.Storef("%v", err)
			case apperrors.Retryable(err):
				return err
			default:
				structural = err
				return nil
			}
		})
	})
	if err != nil {
		return out, err
	}
	if structural != nil {
		return out, structural
	}
	return out, nil
}

func cacheGet[T any](ctx context.Context, r *Resolver, fullKey string) (T, bool, bool) {
	var zero T
	data, err := r.cache.Get(ctx, fullKey)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			r.logger.Error("cache get failed", "key", fullKey, "error", err)
		}
		return zero, false, false
	}
	if data == negativeSentinel {
		return zero, false, true
	}
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		r.logger.Error("cache entry corrupt, ignoring", "key", fullKey, "error", err)
		return zero, false, false
	}
	return v, true, false
}

func (r *Resolver) cacheFill(ctx context.Context, fullKey string, data []byte, ttl time.Duration) {
	if err := r.cache.Set(ctx, fullKey, data, ttl); err != nil {
		r.logger.Error("cache fill failed", "key", fullKey, "error", err)
		return
	}
	if r.metrics != nil {
		r.metrics.CacheFillsTotal.Inc()
	}
}
