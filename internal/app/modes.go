package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/attnmarkets/attnd/internal/domain"
	"github.com/attnmarkets/attnd/internal/index"
	"github.com/attnmarkets/attnd/internal/policy"
	"github.com/attnmarkets/attnd/internal/scheduler"
	"github.com/attnmarkets/attnd/internal/server"
	"github.com/attnmarkets/attnd/internal/server/handler"
	"github.com/attnmarkets/attnd/internal/server/ws"
	"github.com/attnmarkets/attnd/internal/service"
	"github.com/attnmarkets/attnd/internal/source"
)

// archiveInterval is the cadence of the resolved-event archive sweep, and
// archiveAge the minimum age before a resolved event is archived.
const (
	archiveInterval = 24 * time.Hour
	archiveAge      = 30 * 24 * time.Hour
)

// services bundles the domain services shared by the HTTP surface and the
// scheduler.
type services struct {
	events   *service.EventService
	trades   *service.TradeService
	history  *service.HistoryService
	comments *service.CommentService
	profiles *service.ProfileService
	engine   *index.Engine
}

// buildServices constructs the index engine, policy chain, and domain
// services from the wired dependencies.
func (a *App) buildServices(deps *Dependencies) *services {
	reg := source.NewRegistry(a.cfg.Index.HNFeedURL, a.logger)
	engine := index.NewEngine(reg, a.cfg.Index.FetchTimeout.Duration, a.logger)

	var (
		primary  domain.Policy
		holistic domain.HolisticEstimator
		images   domain.ImageGenerator
	)
	if a.cfg.Gemini.APIKey != "" {
		gem := policy.NewGemini(policy.GeminiConfig{
			APIKey:     a.cfg.Gemini.APIKey,
			Model:      a.cfg.Gemini.Model,
			ImageModel: a.cfg.Gemini.ImageModel,
			Timeout:    a.cfg.Gemini.Timeout.Duration,
		}, a.logger)
		primary = gem
		holistic = gem
		images = gem
	}
	chain := policy.NewChain(primary, a.cfg.Gemini.Timeout.Duration, a.logger)

	events := service.NewEventService(service.EventServiceDeps{
		Events:      deps.EventStore,
		Snapshots:   deps.SnapshotStore,
		Positions:   deps.PositionStore,
		Trades:      deps.TradeStore,
		Activity:    deps.ActivityCache,
		Bus:         deps.SignalBus,
		Engine:      engine,
		Policy:      chain,
		Holistic:    holistic,
		Images:      images,
		Blobs:       deps.BlobWriter,
		BlobRead:    deps.BlobReader,
		Notifier:    deps.Notifier,
		MinTraction: a.cfg.Index.MinTraction,
		Logger:      a.logger,
	})

	return &services{
		events:   events,
		trades:   service.NewTradeService(deps.EventStore, deps.TradeStore, deps.PositionStore, deps.SignalBus, a.logger),
		history:  service.NewHistoryService(deps.EventStore, deps.SnapshotStore, a.logger),
		comments: service.NewCommentService(deps.EventStore, deps.CommentStore, a.logger),
		profiles: service.NewProfileService(deps.ProfileStore, deps.TradeStore, a.logger),
		engine:   engine,
	}
}

// ServeMode runs the HTTP and WebSocket API without the periodic loops.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startHTTPServer(ctx, g, deps, svcs)

	return g.Wait()
}

// SchedulerMode runs only the periodic loops: index ticks, synthetic demo
// ticks, and the resolution sweep.
func (a *App) SchedulerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scheduler mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startScheduler(ctx, g, deps, svcs)

	return g.Wait()
}

// FullMode runs the API and the scheduler in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startHTTPServer(ctx, g, deps, svcs)
	a.startScheduler(ctx, g, deps, svcs)

	return g.Wait()
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		AdminToken:  a.cfg.Server.AdminToken,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, server.Handlers{
		Health:   handler.NewHealthHandler(a.logger),
		Events:   handler.NewEventHandler(svcs.events, a.logger),
		Trades:   handler.NewTradeHandler(svcs.trades, a.logger),
		Comments: handler.NewCommentHandler(svcs.comments, a.logger),
		History:  handler.NewHistoryHandler(svcs.history, a.logger),
		Profiles: handler.NewProfileHandler(svcs.profiles, a.logger),
	}, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startScheduler adds the periodic loop goroutines to the given errgroup,
// plus a daily archive sweep when blob storage is configured.
func (a *App) startScheduler(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	sched := scheduler.New(
		deps.EventStore,
		deps.SnapshotStore,
		deps.ActivityCache,
		deps.SignalBus,
		svcs.engine,
		svcs.events,
		scheduler.Config{
			IndexInterval:   a.cfg.Scheduler.IndexInterval.Duration,
			DemoInterval:    a.cfg.Scheduler.DemoInterval.Duration,
			ResolveInterval: a.cfg.Scheduler.ResolveInterval.Duration,
		},
		a.logger,
	)
	g.Go(func() error {
		return sched.Run(ctx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			ticker := time.NewTicker(archiveInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					n, err := deps.Archiver.ArchiveResolved(ctx, time.Now().UTC().Add(-archiveAge))
					if err != nil {
						a.logger.WarnContext(ctx, "archive sweep failed",
							slog.String("error", err.Error()),
						)
						continue
					}
					if n > 0 {
						a.logger.InfoContext(ctx, "archived resolved events", slog.Int64("count", n))
					}
				}
			}
		})
	}
}
