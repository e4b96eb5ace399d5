package scheduler

import (
	"context"
	"time"

	"github.com/gurnameh-99/fact-den/internal/ports"
)

// TickerRefresher re-runs the feed sync job on a fixed interval. The job
// also runs once immediately so a freshly started gateway is warm.
type TickerRefresher struct {
	interval time.Duration
	stop     chan struct{}
}

var _ ports.FeedRefresher = (*TickerRefresher)(nil)

// NewTickerRefresher builds a refresher; interval <= 0 disables it.
func NewTickerRefresher(interval time.Duration) *TickerRefresher {
	return &TickerRefresher{interval: interval}
}

// Start begins ticking. Calling Start twice is a no-op.
func (t *TickerRefresher) Start(ctx context.Context, job func()) error {
	if job == nil || t.interval <= 0 {
		return nil
	}
	if t.stop != nil {
		return nil
	}

	t.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		job()
		for {
			select {
			case <-ticker.C:
				job()
			case <-ctx.Done():
				return
			case <-t.stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine.
func (t *TickerRefresher) Stop(_ context.Context) error {
	if t.stop == nil {
		return nil
	}
	close(t.stop)
	t.stop = nil
	return nil
}
