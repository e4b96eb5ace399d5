package authorcache

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gurnameh-99/fact-den/internal/domain"
	"github.com/gurnameh-99/fact-den/internal/ports"
)

// Cache memoizes principal -> display identity for the session lifetime.
// Entries are never evicted; alias bindings only change via explicit
// profile edit, so staleness within a session is acceptable.
//
// Concurrent resolves for the same uncached principal coalesce into a
// single upstream fetch. A failed lookup caches the Anonymous default
// and is not retried until the cache is cleared.
type Cache struct {
	directory ports.AuthorDirectory
	logger    *slog.Logger

	mu      sync.Mutex
	entries map[domain.Principal]domain.AuthorInfo
	pending map[domain.Principal]*lookup
}

type lookup struct {
	done chan struct{}
	info domain.AuthorInfo
}

// New builds an empty cache over the given directory.
func New(directory ports.AuthorDirectory, logger *slog.Logger) *Cache {
	return &Cache{
		directory: directory,
		logger:    logger,
		entries:   map[domain.Principal]domain.AuthorInfo{},
		pending:   map[domain.Principal]*lookup{},
	}
}

// Resolve returns the display identity for principal, fetching it from
// the directory on first use.
func (c *Cache) Resolve(ctx context.Context, principal domain.Principal) domain.AuthorInfo {
	if principal.IsAnonymous() {
		return domain.AnonymousAuthor
	}

	c.mu.Lock()
	if info, ok := c.entries[principal]; ok {
		c.mu.Unlock()
		return info
	}
	if l, ok := c.pending[principal]; ok {
		c.mu.Unlock()
		select {
		case <-l.done:
			return l.info
		case <-ctx.Done():
			return domain.AnonymousAuthor
		}
	}

	l := &lookup{done: make(chan struct{})}
	c.pending[principal] = l
	c.mu.Unlock()

	l.info = c.fetch(ctx, principal)
	close(l.done)

	c.mu.Lock()
	c.entries[principal] = l.info
	delete(c.pending, principal)
	c.mu.Unlock()

	return l.info
}

// Clear drops every entry, including cached failure defaults. Called on
// identity change.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = map[domain.Principal]domain.AuthorInfo{}
	c.mu.Unlock()
}

// Len reports the number of memoized principals.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) fetch(ctx context.Context, principal domain.Principal) domain.AuthorInfo {
	info, err := c.directory.UserInfo(ctx, principal)
	if err != nil {
		c.log().Warn("author lookup failed, caching default", "principal", string(principal), "error", err)
		return domain.AnonymousAuthor
	}
	if info == nil {
		return domain.AnonymousAuthor
	}
	return *info
}

func (c *Cache) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}
