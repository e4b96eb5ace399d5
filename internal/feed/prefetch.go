package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gurnameh-99/fact-den/internal/domain"
	"github.com/gurnameh-99/fact-den/internal/verdictcache"
)

// VerdictFetcher is the slice of the ledger contract the prefetcher needs.
type VerdictFetcher interface {
	Verdict(ctx context.Context, postID int64) (*domain.Verdict, error)
}

// Prefetcher fills in verdicts for a freshly loaded feed in the
// background. Fetches run in fixed-size batches with an inter-batch
// delay; the upstream AI dependency is metered and offers no rate-limit
// signal, so the fixed gate is a conservative stand-in for backpressure.
//
// Prefetching is advisory: a failed fetch is logged and skipped, never
// aborting the batch or those after it.
type Prefetcher struct {
	fetcher   VerdictFetcher
	cache     *verdictcache.Cache
	store     *Store
	logger    *slog.Logger
	batchSize int
	delay     time.Duration

	// wait is swappable so tests do not sleep for real.
	wait func(ctx context.Context, d time.Duration)
}

// NewPrefetcher builds a scheduler with the given batching parameters.
func NewPrefetcher(fetcher VerdictFetcher, cache *verdictcache.Cache, store *Store, logger *slog.Logger, batchSize int, delay time.Duration) *Prefetcher {
	if batchSize <= 0 {
		batchSize = 3
	}
	if delay < 0 {
		delay = 0
	}
	return &Prefetcher{
		fetcher:   fetcher,
		cache:     cache,
		store:     store,
		logger:    logger,
		batchSize: batchSize,
		delay:     delay,
		wait:      sleepCtx,
	}
}

// Prefetch kicks off a background run over the given posts and returns
// immediately.
func (p *Prefetcher) Prefetch(ctx context.Context, posts []domain.Post) {
	go p.Run(ctx, posts)
}

// Run executes the batch schedule synchronously. Posts that already
// carry an embedded verdict are skipped; posts with a cache hit are
// patched from cache without a fetch.
func (p *Prefetcher) Run(ctx context.Context, posts []domain.Post) {
	pending := make([]domain.Post, 0, len(posts))
	for _, post := range posts {
		if post.AIVerdict != nil {
			continue
		}
		if cached, ok := p.cache.Get(post.ID); ok {
			p.store.ApplyVerdict(post.ID, cached)
			continue
		}
		pending = append(pending, post)
	}

	for start := 0; start < len(pending); start += p.batchSize {
		if ctx.Err() != nil {
			return
		}

		end := start + p.batchSize
		if end > len(pending) {
			end = len(pending)
		}

		var wg sync.WaitGroup
		for _, post := range pending[start:end] {
			wg.Add(1)
			go func(post domain.Post) {
				defer wg.Done()
				p.fetchOne(ctx, post.ID)
			}(post)
		}
		wg.Wait()

		if end < len(pending) {
			p.wait(ctx, p.delay)
		}
	}
}

func (p *Prefetcher) fetchOne(ctx context.Context, postID int64) {
	verdict, err := p.fetcher.Verdict(ctx, postID)
	if err != nil {
		p.log().Warn("prefetch verdict failed", "post", postID, "error", err)
		return
	}
	if verdict == nil {
		// No stored verdict yet; the reconciler will decide on expand.
		return
	}
	p.cache.Put(postID, *verdict)
	p.store.ApplyVerdict(postID, *verdict)
}

func (p *Prefetcher) log() *slog.Logger {
	if p.logger == nil {
		return slog.Default()
	}
	return p.logger
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
