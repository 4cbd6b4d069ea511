package contextcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/loomkit/loom/logging"
	"github.com/loomkit/loom/store"
)

// SchemaVersion invalidates all cached context entries when bumped. It is a
// first-class component of every cache key; there is no other invalidation
// side channel.
const SchemaVersion = "v3"

// DefaultMinPayloadSize is the smallest payload worth caching. Below this,
// cache management costs more than regeneration.
const DefaultMinPayloadSize = 2048

// PoisonMarker is the prefix of error placeholder text that must never be
// served from cache. Builders that degrade to a placeholder instead of
// failing outright historically wrote strings carrying this marker.
const PoisonMarker = "System Error:"

// Key identifies a cached context payload. All fields participate in the
// composite key, so changing any of them is a miss, never a stale hit.
type Key struct {
	ContentID string // content pack / session content identifier
	Variant   string // active persona or other variant selector
	ModelID   string // target model the payload is bound to
}

// Entry is the stored representation of a cached payload.
type Entry struct {
	Payload       string    `json:"payload"`
	ModelID       string    `json:"model_id"`
	SchemaVersion string    `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
}

// Options configures a Cache.
type Options struct {
	// SchemaVersion overrides the package constant. Tests use this to
	// exercise version-bump invalidation against a shared backing store.
	SchemaVersion string

	// MinPayloadSize is the caching threshold in bytes.
	MinPayloadSize int

	// IsPoisoned detects stored payloads that are error placeholders; such
	// entries are evicted and rebuilt once instead of being served.
	IsPoisoned func(payload string) bool

	Logger logging.Logger
}

// Cache is a content-addressed store of large static context blocks layered
// over a byte Store. Concurrent GetOrCreate calls for the same missing key
// are deduplicated into a single in-flight build.
type Cache struct {
	backing store.Store
	group   singleflight.Group
	opts    Options
}

// New creates a Cache over the given backing store.
func New(backing store.Store, optFns ...func(o *Options)) *Cache {
	opts := Options{
		SchemaVersion:  SchemaVersion,
		MinPayloadSize: DefaultMinPayloadSize,
		IsPoisoned:     func(p string) bool { return strings.Contains(p, PoisonMarker) },
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Cache{backing: backing, opts: opts}
}

// Address returns the content hash the entry for key is stored under. The
// dispatcher uses it as the cache-binding reference attached to requests.
func (c *Cache) Address(key Key) string {
	composite := fmt.Sprintf("ctx_%s_%s_%s_%s", key.ContentID, key.Variant, c.opts.SchemaVersion, key.ModelID)
	sum := sha256.Sum256([]byte(composite))
	return hex.EncodeToString(sum[:])
}

// GetOrCreate returns the cached payload for key, building and storing it on
// a miss. The second return reports whether the payload came from cache.
// Builder failure stores nothing; the caller receives the error and must
// proceed without cached context.
func (c *Cache) GetOrCreate(ctx context.Context, key Key, build func(ctx context.Context) (string, error)) (string, bool, error) {
	addr := c.Address(key)

	if payload, ok := c.lookup(addr, key); ok {
		c.opts.Logger.Debug("context cache hit", "key", addr, "model", key.ModelID)
		return payload, true, nil
	}

	v, err, _ := c.group.Do(addr, func() (interface{}, error) {
		// A concurrent builder may have completed while this call waited.
		if payload, ok := c.lookup(addr, key); ok {
			return payload, nil
		}
		payload, err := build(ctx)
		if err != nil {
			return "", err
		}
		if len(payload) < c.opts.MinPayloadSize {
			c.opts.Logger.Debug("payload below caching threshold, not stored", "key", addr, "size", len(payload))
			return payload, nil
		}
		entry := Entry{
			Payload:       payload,
			ModelID:       key.ModelID,
			SchemaVersion: c.opts.SchemaVersion,
			CreatedAt:     time.Now().UTC(),
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			return "", fmt.Errorf("encode cache entry: %w", err)
		}
		if err := c.backing.Set(addr, raw); err != nil {
			// Storage failure is not a build failure; serve the payload.
			c.opts.Logger.Warn("context cache store failed", "key", addr, "error", err)
		}
		return payload, nil
	})
	if err != nil {
		return "", false, fmt.Errorf("build context %s: %w", addr, err)
	}
	return v.(string), false, nil
}

// Binding returns the model ID the stored entry for key is bound to, or ""
// when no entry exists. The dispatcher consults it before attaching a cache
// reference to a request.
func (c *Cache) Binding(key Key) string {
	raw, err := c.backing.Get(c.Address(key))
	if err != nil || raw == nil {
		return ""
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return ""
	}
	return entry.ModelID
}

// Invalidate removes the entry for key if present.
func (c *Cache) Invalidate(key Key) error {
	return c.backing.Delete(c.Address(key))
}

// lookup fetches and validates a stored entry. Corrupt, version-mismatched,
// binding-mismatched and poisoned entries are evicted and reported as a miss.
func (c *Cache) lookup(addr string, key Key) (string, bool) {
	raw, err := c.backing.Get(addr)
	if err != nil {
		c.opts.Logger.Warn("context cache read failed", "key", addr, "error", err)
		return "", false
	}
	if raw == nil {
		return "", false
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.evict(addr)
		return "", false
	}
	if entry.SchemaVersion != c.opts.SchemaVersion || entry.ModelID != key.ModelID {
		c.evict(addr)
		return "", false
	}
	if c.opts.IsPoisoned != nil && c.opts.IsPoisoned(entry.Payload) {
		c.opts.Logger.Warn("evicting poisoned cache entry", "key", addr)
		c.evict(addr)
		return "", false
	}
	return entry.Payload, true
}

// evict drops a stale entry. The entry is already treated as a miss, so a
// delete failure only costs a retried eviction on the next lookup.
func (c *Cache) evict(addr string) {
	if err := c.backing.Delete(addr); err != nil {
		c.opts.Logger.Warn("context cache evict failed", "key", addr, "error", err)
	}
}
