package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexvault/lexvault/internal/store"
	"github.com/lexvault/lexvault/pkg/config"
	apperrors "github.com/lexvault/lexvault/pkg/errors"
	pkgredis "github.com/lexvault/lexvault/pkg/redis"
	"github.com/lexvault/lexvault/pkg/resilience"
)

type fakeSource struct {
	mu         sync.Mutex
	calls      map[string]int
	delay      time.Duration
	err        error
	failures   int // fail this many calls, then succeed
	doc        *store.Document
	positions  map[int64][]int
	totalSlots int
	meta       map[string]string
}

func newFakeSource() *fakeSource {
	addr := store.DocumentAddress{Century: "19", Bucket: 3, Seq: 1}
	return &fakeSource{
		calls: make(map[string]int),
		doc: &store.Document{
			Address: addr, Name: "fable.txt", TotalSlots: 6,
			TokenCount: 6, UniqueTokens: 5, StarterCount: 1, BondCount: 5,
		},
		positions:  map[int64][]int{1: {0, 4}, 2: {1}},
		totalSlots: 6,
		meta:       map[string]string{"author": "aesop"},
	}
}

func (f *fakeSource) begin(method string) error {
	f.mu.Lock()
	f.calls[method]++
	err := f.err
	if f.failures > 0 {
		f.failures--
		err = apperrors.Storef("simulated outage")
	}
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return err
}

func (f *fakeSource) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeSource) GetDocument(ctx context.Context, addr store.DocumentAddress) (*store.Document, error) {
	if err := f.begin("doc"); err != nil {
		return nil, err
	}
	if f.doc == nil {
		return nil, apperrors.NotFoundf("document %s", addr)
	}
	return f.doc, nil
}

func (f *fakeSource) LoadPositions(ctx context.Context, addr store.DocumentAddress) (map[int64][]int, int, error) {
	if err := f.begin("pos"); err != nil {
		return nil, 0, err
	}
	return f.positions, f.totalSlots, nil
}

func (f *fakeSource) TokenBySurface(ctx context.Context, surface string) (*store.TokenInfo, error) {
	if err := f.begin("tok"); err != nil {
		return nil, err
	}
	return &store.TokenInfo{ID: 1, Surface: surface, Kind: "word"}, nil
}

func (f *fakeSource) Meta(ctx context.Context, addr store.DocumentAddress) (map[string]string, error) {
	if err := f.begin("meta"); err != nil {
		return nil, err
	}
	return f.meta, nil
}

func cachedConfig() config.CacheConfig {
	return config.CacheConfig{Enabled: true, KeyPrefix: "lv:", TTL: time.Minute}
}

func fastResilience() config.ResilienceConfig {
	return config.ResilienceConfig{
		MaxRetries:       1,
		RetryBaseDelay:   time.Millisecond,
		RetryMaxDelay:    5 * time.Millisecond,
		BreakerThreshold: 100,
		BreakerCooldown:  time.Minute,
	}
}

func newTestResolver(t *testing.T, src Source, cacheCfg config.CacheConfig, resCfg config.ResilienceConfig) (*Resolver, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client, err := pkgredis.NewClient(config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return New(src, client, cacheCfg, resCfg, nil), mr
}

func TestDocumentServedFromCacheOnSecondRead(t *testing.T) {
	src := newFakeSource()
	r, _ := newTestResolver(t, src, cachedConfig(), fastResilience())
	ctx := context.Background()
	addr := src.doc.Address

	first, err := r.Document(ctx, addr)
	require.NoError(t, err)
	second, err := r.Document(ctx, addr)
	require.NoError(t, err)

	assert.Equal(t, 1, src.count("doc"))
	assert.Equal(t, first.Name, second.Name)
	hits, misses := r.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestConcurrentMissesCollapseToOneRead(t *testing.T) {
	src := newFakeSource()
	src.delay = 50 * time.Millisecond
	r, _ := newTestResolver(t, src, cachedConfig(), fastResilience())
	addr := src.doc.Address

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			doc, err := r.Document(context.Background(), addr)
			assert.NoError(t, err)
			assert.Equal(t, "fable.txt", doc.Name)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, src.count("doc"))
}

func TestPositionsRoundTripThroughCache(t *testing.T) {
	src := newFakeSource()
	r, _ := newTestResolver(t, src, cachedConfig(), fastResilience())
	ctx := context.Background()
	addr := src.doc.Address

	positions, totalSlots, err := r.Positions(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, 6, totalSlots)
	assert.Equal(t, []int{0, 4}, positions[1])

	// Second read decodes the cached JSON; int64 keys must survive.
	cached, totalSlots, err := r.Positions(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, 6, totalSlots)
	assert.Equal(t, positions, cached)
	assert.Equal(t, 1, src.count("pos"))
}

func TestEmptyPositionTableIsNotAMiss(t *testing.T) {
	src := newFakeSource()
	src.positions = map[int64][]int{}
	src.totalSlots = 2
	r, _ := newTestResolver(t, src, cachedConfig(), fastResilience())
	ctx := context.Background()
	addr := src.doc.Address

	for i := 0; i < 2; i++ {
		positions, totalSlots, err := r.Positions(ctx, addr)
		require.NoError(t, err)
		assert.NotNil(t, positions)
		assert.Empty(t, positions)
		assert.Equal(t, 2, totalSlots)
	}
	assert.Equal(t, 1, src.count("pos"))
}

func TestNoNegativeCachingByDefault(t *testing.T) {
	src := newFakeSource()
	src.doc = nil
	r, _ := newTestResolver(t, src, cachedConfig(), fastResilience())
	ctx := context.Background()
	addr := store.DocumentAddress{Century: "19", Bucket: 0, Seq: 404}

	for i := 0; i < 2; i++ {
		_, err := r.Document(ctx, addr)
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	}
	assert.Equal(t, 2, src.count("doc"), "misses must reach the store when negative caching is off")
}

func TestNegativeCachingWhenConfigured(t *testing.T) {
	src := newFakeSource()
	src.doc = nil
	cfg := cachedConfig()
	cfg.NegativeTTL = 30 * time.Second
	r, _ := newTestResolver(t, src, cfg, fastResilience())
	ctx := context.Background()
	addr := store.DocumentAddress{Century: "19", Bucket: 0, Seq: 404}

	_, err := r.Document(ctx, addr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = r.Document(ctx, addr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, 1, src.count("doc"), "second miss should be answered by the tombstone")
}

func TestInvalidateDropsMetaEntry(t *testing.T) {
	src := newFakeSource()
	r, _ := newTestResolver(t, src, cachedConfig(), fastResilience())
	ctx := context.Background()
	addr := src.doc.Address

	meta, err := r.Meta(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "aesop", meta["author"])

	src.mu.Lock()
	src.meta = map[string]string{"author": "homer"}
	src.mu.Unlock()

	// Still cached.
	meta, err = r.Meta(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "aesop", meta["author"])
	assert.Equal(t, 1, src.count("meta"))

	r.Invalidate(ctx, MetaKey(addr))

	meta, err = r.Meta(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "homer", meta["author"])
	assert.Equal(t, 2, src.count("meta"))
}

func TestCorruptCacheEntryFallsThrough(t *testing.T) {
	src := newFakeSource()
	r, mr := newTestResolver(t, src, cachedConfig(), fastResilience())
	ctx := context.Background()
	addr := src.doc.Address

	require.NoError(t, mr.Set("lv:"+DocKey(addr), "{not json"))

	doc, err := r.Document(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "fable.txt", doc.Name)
	assert.Equal(t, 1, src.count("doc"))
}

func TestDisabledCacheAlwaysReadsStore(t *testing.T) {
	src := newFakeSource()
	cfg := cachedConfig()
	cfg.Enabled = false
	r, _ := newTestResolver(t, src, cfg, fastResilience())
	ctx := context.Background()
	addr := src.doc.Address

	for i := 0; i < 3; i++ {
		_, err := r.Document(ctx, addr)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, src.count("doc"))
}

func TestNilCacheClientReadsStore(t *testing.T) {
	src := newFakeSource()
	r := New(src, nil, cachedConfig(), fastResilience(), nil)

	doc, err := r.Document(context.Background(), src.doc.Address)
	require.NoError(t, err)
	assert.Equal(t, "fable.txt", doc.Name)
	assert.Equal(t, 1, src.count("doc"))
}

func TestStructuralErrorsAreNotRetried(t *testing.T) {
	src := newFakeSource()
	src.doc = nil
	resCfg := fastResilience()
	resCfg.MaxRetries = 5
	r := New(src, nil, config.CacheConfig{}, resCfg, nil)

	_, err := r.Document(context.Background(), store.DocumentAddress{Century: "19", Bucket: 0, Seq: 9})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, 1, src.count("doc"), "not-found must not burn retry attempts")
}

func TestStoreOutageIsRetried(t *testing.T) {
	src := newFakeSource()
	src.failures = 2
	resCfg := fastResilience()
	resCfg.MaxRetries = 3
	r := New(src, nil, config.CacheConfig{}, resCfg, nil)

	doc, err := r.Document(context.Background(), src.doc.Address)
	require.NoError(t, err)
	assert.Equal(t, "fable.txt", doc.Name)
	assert.Equal(t, 3, src.count("doc"))
}

func TestBreakerOpensAndShortCircuits(t *testing.T) {
	src := newFakeSource()
	src.err = apperrors.Storef("db down")
	resCfg := fastResilience()
	resCfg.MaxRetries = 1
	resCfg.BreakerThreshold = 2
	r := New(src, nil, config.CacheConfig{}, resCfg, nil)
	ctx := context.Background()
	addr := src.doc.Address

	for i := 0; i < 2; i++ {
		_, err := r.Document(ctx, addr)
		require.Error(t, err)
	}
	assert.Equal(t, "open", r.BreakerState())

	_, err := r.Document(ctx, addr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.Equal(t, 2, src.count("doc"), "open breaker must not touch the store")
}
