package verdictcache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gurnameh-99/fact-den/internal/domain"
	"github.com/gurnameh-99/fact-den/internal/ports"
)

const keyPrefix = "factden:verdicts:"

// Cache is the process-wide postId -> verdict map, scoped to the current
// caller identity. Verdicts are expensive to produce, so every put is
// persisted to the snapshot store; persistence is best-effort and a lost
// snapshot only costs one extra fetch per post.
type Cache struct {
	store   ports.SnapshotStore
	logger  *slog.Logger
	timeout time.Duration

	mu       sync.RWMutex
	scope    domain.Principal
	verdicts map[int64]domain.Verdict

	// persistWG lets tests wait for the async snapshot write.
	persistWG sync.WaitGroup
}

// New builds an empty cache scoped to the anonymous identity. Callers
// normally Reload right after construction.
func New(store ports.SnapshotStore, logger *slog.Logger) *Cache {
	return &Cache{
		store:    store,
		logger:   logger,
		timeout:  5 * time.Second,
		scope:    domain.Anonymous,
		verdicts: map[int64]domain.Verdict{},
	}
}

// Get is a pure lookup; no side effects, no network.
func (c *Cache) Get(postID int64) (domain.Verdict, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.verdicts[postID]
	return v, ok
}

// Put inserts or overwrites the verdict, then persists the full snapshot
// asynchronously. Write failures are logged, never returned: losing the
// cache degrades to one extra fetch, not a correctness failure.
func (c *Cache) Put(postID int64, verdict domain.Verdict) {
	c.mu.Lock()
	c.verdicts[postID] = verdict
	key := scopeKey(c.scope)
	data, err := json.Marshal(encodeSnapshot(c.verdicts))
	c.mu.Unlock()

	if err != nil {
		c.log().Error("marshal verdict snapshot", "error", err)
		return
	}

	c.persistWG.Add(1)
	go func() {
		defer c.persistWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.store.Save(ctx, key, data); err != nil {
			c.log().Error("persist verdict snapshot", "key", key, "error", err)
		}
	}()
}

// Reload discards in-memory state and re-reads the snapshot scoped to
// the given identity. An absent or corrupt snapshot yields an empty
// cache; Reload never fails the caller.
func (c *Cache) Reload(ctx context.Context, scope domain.Principal) {
	if scope == "" {
		scope = domain.Anonymous
	}

	fresh := map[int64]domain.Verdict{}
	data, err := c.store.Load(ctx, scopeKey(scope))
	switch {
	case err != nil:
		c.log().Warn("load verdict snapshot", "scope", string(scope), "error", err)
	case len(data) > 0:
		var raw map[string]domain.Verdict
		if err := json.Unmarshal(data, &raw); err != nil {
			c.log().Warn("corrupt verdict snapshot, starting empty", "scope", string(scope), "error", err)
		} else {
			fresh = decodeSnapshot(raw)
		}
	}

	c.mu.Lock()
	c.scope = scope
	c.verdicts = fresh
	c.mu.Unlock()
}

// Clear drops all in-memory entries without touching durable state.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.verdicts = map[int64]domain.Verdict{}
	c.mu.Unlock()
}

// Len reports the number of cached verdicts.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.verdicts)
}

// Flush blocks until outstanding snapshot writes finish.
func (c *Cache) Flush() {
	c.persistWG.Wait()
}

func (c *Cache) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

func scopeKey(scope domain.Principal) string {
	if scope.IsAnonymous() {
		return keyPrefix + string(domain.Anonymous)
	}
	return keyPrefix + string(scope)
}

// JSON object keys must be strings; the snapshot is a flat map of
// decimal post ids to verdicts.
func encodeSnapshot(src map[int64]domain.Verdict) map[string]domain.Verdict {
	out := make(map[string]domain.Verdict, len(src))
	for id, v := range src {
		out[strconv.FormatInt(id, 10)] = v
	}
	return out
}

func decodeSnapshot(src map[string]domain.Verdict) map[int64]domain.Verdict {
	out := make(map[int64]domain.Verdict, len(src))
	for key, v := range src {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		out[id] = v
	}
	return out
}
