package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gurnameh-99/fact-den/internal/authorcache"
	"github.com/gurnameh-99/fact-den/internal/config"
	"github.com/gurnameh-99/fact-den/internal/domain"
	"github.com/gurnameh-99/fact-den/internal/events"
	"github.com/gurnameh-99/fact-den/internal/feed"
	"github.com/gurnameh-99/fact-den/internal/gateway"
	"github.com/gurnameh-99/fact-den/internal/infrastructure/enrich"
	"github.com/gurnameh-99/fact-den/internal/infrastructure/identity"
	"github.com/gurnameh-99/fact-den/internal/infrastructure/ledger"
	"github.com/gurnameh-99/fact-den/internal/infrastructure/llm"
	"github.com/gurnameh-99/fact-den/internal/infrastructure/scheduler"
	"github.com/gurnameh-99/fact-den/internal/infrastructure/storage"
	"github.com/gurnameh-99/fact-den/internal/logging"
	"github.com/gurnameh-99/fact-den/internal/verdictcache"
)

// Application wires configs to the feed core and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	feed      *feed.Service
	server    *gateway.Server
	refresher *scheduler.TickerRefresher
}

// New builds a runnable application instance.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	bus := events.NewBus()

	store, err := storage.NewRegistry().Open(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("open cache backend: %w", err)
	}

	verdicts := verdictcache.New(store, logging.Component(baseLogger, "verdictcache"))

	provider := identity.NewProvider(cfg.Identity, logging.Component(baseLogger, "identity"),
		func(principal domain.Principal) {
			bus.PublishAuth(events.AuthChanged{Principal: principal})
		})

	ledgerClient := ledger.NewClient(cfg.Ledger.BaseURL, cfg.Ledger.APIKey, cfg.Ledger.Timeout.Std(), provider.Token)
	authors := authorcache.New(ledgerClient, logging.Component(baseLogger, "authorcache"))
	source := llm.NewVerdictClient(cfg.AI, logging.Component(baseLogger, "llm"))

	postStore := feed.NewStore()
	prefetcher := feed.NewPrefetcher(ledgerClient, verdicts, postStore,
		logging.Component(baseLogger, "prefetch"), cfg.Prefetch.BatchSize, cfg.Prefetch.BatchDelay.Std())

	feedSvc := feed.NewService(feed.ServiceDeps{
		Ledger:         ledgerClient,
		Source:         source,
		Identity:       provider,
		VerdictCache:   verdicts,
		Authors:        authors,
		Bus:            bus,
		Logger:         logging.Component(baseLogger, "feed"),
		Prefetcher:     prefetcher,
		Store:          postStore,
		Titles:         enrich.NewTitleEnricher(nil),
		SampleFallback: cfg.Feed.SampleFallback,
	})

	// Seed the cache with the anonymous-scope snapshot until login.
	verdicts.Reload(ctx, domain.Anonymous)

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		feed:      feedSvc,
		server:    gateway.NewServer(feedSvc, provider, ledgerClient, cfg.Server.CORSOrigin),
		refresher: scheduler.NewTickerRefresher(cfg.Feed.RefreshInterval.Std()),
	}, nil
}

// Run syncs the feed once, starts the periodic refresher when one is
// configured, and serves the gateway until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.feed.Sync(ctx); err != nil {
		// The gateway still comes up; views surface the load failure and
		// the refresher retries.
		a.logger.Warn("initial feed sync failed", "error", err)
	}

	if err := a.refresher.Start(ctx, func() {
		if err := a.feed.Sync(ctx); err != nil {
			a.logger.Warn("feed refresh failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("start refresher: %w", err)
	}
	defer func() { _ = a.refresher.Stop(context.Background()) }()

	srv := &http.Server{Addr: a.cfg.Server.Addr, Handler: a.server.Handler()}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	a.logger.Info("gateway listening", "addr", a.cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve gateway: %w", err)
	}
	return nil
}
