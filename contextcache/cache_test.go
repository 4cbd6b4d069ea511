package contextcache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/logging"
	"github.com/loomkit/loom/store"
)

var testKey = Key{ContentID: "demo", Variant: "static", ModelID: "gemini-2.5-pro"}

func bigPayload(prefix string) string {
	return prefix + strings.Repeat("x", DefaultMinPayloadSize)
}

func countingBuilder(payload string, err error) (func(ctx context.Context) (string, error), *int) {
	calls := 0
	return func(ctx context.Context) (string, error) {
		calls++
		if err != nil {
			return "", err
		}
		return payload, nil
	}, &calls
}

func TestGetOrCreateMissThenHit(t *testing.T) {
	c := New(store.NewInMemory())
	build, calls := countingBuilder(bigPayload("ctx "), nil)

	payload, hit, err := c.GetOrCreate(context.Background(), testKey, build)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, bigPayload("ctx "), payload)

	payload2, hit2, err := c.GetOrCreate(context.Background(), testKey, build)
	require.NoError(t, err)
	assert.True(t, hit2)
	assert.Equal(t, payload, payload2)
	assert.Equal(t, 1, *calls, "hit must not rebuild")
}

func TestSmallPayloadNotStored(t *testing.T) {
	c := New(store.NewInMemory())
	build, calls := countingBuilder("tiny", nil)

	payload, hit, err := c.GetOrCreate(context.Background(), testKey, build)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "tiny", payload)

	_, hit, err = c.GetOrCreate(context.Background(), testKey, build)
	require.NoError(t, err)
	assert.False(t, hit, "below-threshold payloads are never cached")
	assert.Equal(t, 2, *calls)
}

func TestBuilderFailureStoresNothing(t *testing.T) {
	c := New(store.NewInMemory())
	build, _ := countingBuilder("", errors.New("model unavailable"))

	_, _, err := c.GetOrCreate(context.Background(), testKey, build)
	require.Error(t, err)

	ok, calls := countingBuilder(bigPayload("ok "), nil)
	payload, hit, err := c.GetOrCreate(context.Background(), testKey, ok)
	require.NoError(t, err)
	assert.False(t, hit, "failed build leaves no entry behind")
	assert.Equal(t, bigPayload("ok "), payload)
	assert.Equal(t, 1, *calls)
}

func TestModelBinding(t *testing.T) {
	backing := store.NewInMemory()
	c := New(backing)
	build, _ := countingBuilder(bigPayload("bound "), nil)

	_, _, err := c.GetOrCreate(context.Background(), testKey, build)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", c.Binding(testKey))

	otherKey := testKey
	otherKey.ModelID = "gemini-2.5-flash"
	assert.Empty(t, c.Binding(otherKey), "different model is a different address")

	build2, calls := countingBuilder(bigPayload("other "), nil)
	_, hit, err := c.GetOrCreate(context.Background(), otherKey, build2)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, *calls)
}

func TestSchemaVersionBumpInvalidates(t *testing.T) {
	backing := store.NewInMemory()

	v1 := New(backing, func(o *Options) { o.SchemaVersion = "v1" })
	build, _ := countingBuilder(bigPayload("old "), nil)
	_, _, err := v1.GetOrCreate(context.Background(), testKey, build)
	require.NoError(t, err)

	v2 := New(backing, func(o *Options) { o.SchemaVersion = "v2" })
	build2, calls := countingBuilder(bigPayload("new "), nil)
	payload, hit, err := v2.GetOrCreate(context.Background(), testKey, build2)
	require.NoError(t, err)
	assert.False(t, hit, "version bump makes old entries unreachable")
	assert.Equal(t, bigPayload("new "), payload)
	assert.Equal(t, 1, *calls)
}

func TestPoisonedEntryEvictedAndRebuilt(t *testing.T) {
	backing := store.NewInMemory()
	c := New(backing)

	poisoned, _ := countingBuilder(bigPayload("System Error: upstream failed "), nil)
	_, _, err := c.GetOrCreate(context.Background(), testKey, poisoned)
	require.NoError(t, err)

	clean, calls := countingBuilder(bigPayload("healthy "), nil)
	payload, hit, err := c.GetOrCreate(context.Background(), testKey, clean)
	require.NoError(t, err)
	assert.False(t, hit, "poisoned entry must not be served")
	assert.Equal(t, bigPayload("healthy "), payload)
	assert.Equal(t, 1, *calls)
}

func TestCorruptEntryEvicted(t *testing.T) {
	backing := store.NewInMemory()
	c := New(backing)
	require.NoError(t, backing.Set(c.Address(testKey), []byte("{not json")))

	build, _ := countingBuilder(bigPayload("fresh "), nil)
	payload, hit, err := c.GetOrCreate(context.Background(), testKey, build)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, bigPayload("fresh "), payload)
}

// warnRecorder captures Warn messages for assertions.
type warnRecorder struct {
	logging.NoOpLogger
	mu    sync.Mutex
	warns []string
}

func (r *warnRecorder) Warn(msg string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warns = append(r.warns, msg)
}

// failingDeleteStore delegates everything but Delete, which always fails.
type failingDeleteStore struct {
	store.Store
	deleteErr error
}

func (s *failingDeleteStore) Delete(key string) error { return s.deleteErr }

func TestEvictionFailureLoggedAndMissServed(t *testing.T) {
	backing := store.NewInMemory()
	rec := &warnRecorder{}
	c := New(&failingDeleteStore{Store: backing, deleteErr: errors.New("readonly store")},
		func(o *Options) { o.Logger = rec })
	require.NoError(t, backing.Set(c.Address(testKey), []byte("not json")))

	build, calls := countingBuilder(bigPayload("fresh "), nil)
	payload, hit, err := c.GetOrCreate(context.Background(), testKey, build)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, bigPayload("fresh "), payload)
	assert.Equal(t, 1, *calls)
	assert.Contains(t, rec.warns, "context cache evict failed")
}

func TestInvalidate(t *testing.T) {
	c := New(store.NewInMemory())
	build, calls := countingBuilder(bigPayload("gone "), nil)

	_, _, err := c.GetOrCreate(context.Background(), testKey, build)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(testKey))

	_, hit, err := c.GetOrCreate(context.Background(), testKey, build)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, *calls)
}

func TestAddressComponents(t *testing.T) {
	c := New(store.NewInMemory())
	base := c.Address(testKey)

	variants := []Key{
		{ContentID: "other", Variant: testKey.Variant, ModelID: testKey.ModelID},
		{ContentID: testKey.ContentID, Variant: "other", ModelID: testKey.ModelID},
		{ContentID: testKey.ContentID, Variant: testKey.Variant, ModelID: "other"},
	}
	for _, k := range variants {
		assert.NotEqual(t, base, c.Address(k))
	}

	bumped := New(store.NewInMemory(), func(o *Options) { o.SchemaVersion = "v999" })
	assert.NotEqual(t, base, bumped.Address(testKey))
}

func TestConcurrentBuildsDeduplicated(t *testing.T) {
	c := New(store.NewInMemory())

	var mu sync.Mutex
	calls := 0
	gate := make(chan struct{})
	build := func(ctx context.Context) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-gate
		return bigPayload("shared "), nil
	}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload, _, err := c.GetOrCreate(context.Background(), testKey, build)
			assert.NoError(t, err)
			results[i] = payload
		}(i)
	}
	// Let the goroutines pile onto the in-flight build before releasing it.
	close(gate)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, calls, 2, "concurrent misses collapse into at most a straggler build")
	for _, r := range results {
		assert.Equal(t, bigPayload("shared "), r)
	}
}
