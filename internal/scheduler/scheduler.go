// Package scheduler runs the periodic loops that drive open events: the
// index tick, the synthetic demo tick, and the resolution tick. The loops are
// independent and non-synchronized; correctness rests on each tick being
// idempotent, not on mutual exclusion.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/attnmarkets/attnd/internal/domain"
	"github.com/attnmarkets/attnd/internal/index"
)

// Resolver resolves one expired open event. Implemented by
// service.EventService so the periodic tick and the force-resolve endpoint
// share one procedure.
type Resolver interface {
	ResolveExpired(ctx context.Context, e domain.Event) (domain.Event, error)
}

// Config holds the loop intervals.
type Config struct {
	IndexInterval   time.Duration
	DemoInterval    time.Duration
	ResolveInterval time.Duration
}

// Scheduler owns the three periodic loops.
type Scheduler struct {
	events    domain.EventStore
	snapshots domain.SnapshotStore
	activity  domain.ActivityCache
	bus       domain.SignalBus
	engine    *index.Engine
	resolver  Resolver
	cfg       Config
	logger    *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Scheduler.
func New(
	events domain.EventStore,
	snapshots domain.SnapshotStore,
	activity domain.ActivityCache,
	bus domain.SignalBus,
	engine *index.Engine,
	resolver Resolver,
	cfg Config,
	logger *slog.Logger,
) *Scheduler {
	if cfg.IndexInterval <= 0 {
		cfg.IndexInterval = time.Minute
	}
	if cfg.DemoInterval <= 0 {
		cfg.DemoInterval = 10 * time.Second
	}
	if cfg.ResolveInterval <= 0 {
		cfg.ResolveInterval = 30 * time.Second
	}
	return &Scheduler{
		events:    events,
		snapshots: snapshots,
		activity:  activity,
		bus:       bus,
		engine:    engine,
		resolver:  resolver,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "scheduler")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run performs the startup catch-up resolution sweep, then starts the three
// loops and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "scheduler starting",
		slog.Duration("index_interval", s.cfg.IndexInterval),
		slog.Duration("demo_interval", s.cfg.DemoInterval),
		slog.Duration("resolve_interval", s.cfg.ResolveInterval),
	)

	// Events that expired while the process was down are resolved before any
	// loop starts, so they never trade or tick again.
	if err := s.ResolveTick(ctx); err != nil {
		s.logger.ErrorContext(ctx, "startup resolution sweep failed",
			slog.String("error", err.Error()),
		)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.loop(ctx, s.cfg.IndexInterval, "index", s.IndexTick)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("index loop: %w", err)
	})
	g.Go(func() error {
		err := s.loop(ctx, s.cfg.DemoInterval, "demo", s.DemoTick)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("demo loop: %w", err)
	})
	g.Go(func() error {
		err := s.loop(ctx, s.cfg.ResolveInterval, "resolve", s.ResolveTick)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("resolve loop: %w", err)
	})

	err := g.Wait()
	if err != nil {
		s.logger.Error("scheduler stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("scheduler stopped cleanly")
	return nil
}

// loop runs tick on every interval until ctx is cancelled. A failing tick is
// logged and retried on the next interval, never fatal.
func (s *Scheduler) loop(ctx context.Context, interval time.Duration, name string, tick func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("loop stopped", slog.String("loop", name))
			return ctx.Err()
		case <-ticker.C:
			if err := tick(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "tick failed",
					slog.String("loop", name),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// IndexTick recomputes the index of every open non-demo event from fresh
// channel activity against the cached snapshot. A cache miss (first tick, or
// restart without rehydration) re-baselines the event at 100, which is
// documented behavior.
func (s *Scheduler) IndexTick(ctx context.Context) error {
	events, err := s.events.List(ctx, domain.EventFilter{Status: domain.StatusOpen})
	if err != nil {
		return fmt.Errorf("scheduler: index tick list: %w", err)
	}

	for _, e := range events {
		if e.Config.Demo {
			continue
		}
		if err := s.updateIndex(ctx, e); err != nil {
			// One event's failure never stops the sweep.
			s.logger.ErrorContext(ctx, "index update failed",
				slog.String("event_id", e.ID),
				slog.String("name", e.Name),
				slog.String("error", err.Error()),
			)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (s *Scheduler) updateIndex(ctx context.Context, e domain.Event) error {
	prev, ok, err := s.activity.Get(ctx, e.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "activity cache read failed, re-baselining",
			slog.String("event_id", e.ID),
			slog.String("error", err.Error()),
		)
		prev = nil
	} else if !ok {
		prev = nil
	}

	value, activity := s.engine.Compute(ctx, e.Config, prev)
	now := s.now()

	if err := s.events.UpdateIndex(ctx, e.ID, value); err != nil {
		return fmt.Errorf("update index: %w", err)
	}
	if err := s.snapshots.Append(ctx, e.ID, domain.IndexPoint{T: now, Value: value}); err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}

	ttl := 2 * e.WindowEnd.Sub(e.WindowStart)
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if err := s.activity.Set(ctx, e.ID, activity, ttl); err != nil {
		s.logger.WarnContext(ctx, "activity cache write failed",
			slog.String("event_id", e.ID),
			slog.String("error", err.Error()),
		)
	}

	s.publishIndex(ctx, e.ID, e.Name, value, now)
	return nil
}

// DemoTick advances every open demo event along its deterministic synthetic
// curve. No external signal, no dependency on trades.
func (s *Scheduler) DemoTick(ctx context.Context) error {
	events, err := s.events.List(ctx, domain.EventFilter{Status: domain.StatusOpen})
	if err != nil {
		return fmt.Errorf("scheduler: demo tick list: %w", err)
	}

	for _, e := range events {
		if !e.Config.Demo {
			continue
		}
		now := s.now()
		value := index.Synthetic(e.ID, e.WindowStart, now)

		if err := s.events.UpdateIndex(ctx, e.ID, value); err != nil {
			s.logger.ErrorContext(ctx, "demo index update failed",
				slog.String("event_id", e.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := s.snapshots.Append(ctx, e.ID, domain.IndexPoint{T: now, Value: value}); err != nil {
			s.logger.ErrorContext(ctx, "demo snapshot append failed",
				slog.String("event_id", e.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.publishIndex(ctx, e.ID, e.Name, value, now)
	}
	return nil
}

// ResolveTick resolves every open event whose window has elapsed. Also run
// once synchronously at startup as the catch-up sweep.
func (s *Scheduler) ResolveTick(ctx context.Context) error {
	events, err := s.events.List(ctx, domain.EventFilter{Status: domain.StatusOpen})
	if err != nil {
		return fmt.Errorf("scheduler: resolve tick list: %w", err)
	}

	now := s.now()
	for _, e := range events {
		if !e.Expired(now) {
			continue
		}
		if _, err := s.resolver.ResolveExpired(ctx, e); err != nil {
			s.logger.ErrorContext(ctx, "resolution failed",
				slog.String("event_id", e.ID),
				slog.String("name", e.Name),
				slog.String("error", err.Error()),
			)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (s *Scheduler) publishIndex(ctx context.Context, eventID, name string, value float64, t time.Time) {
	payload, err := json.Marshal(map[string]any{
		"type":     "index_update",
		"event_id": eventID,
		"name":     name,
		"index":    value,
		"t":        t,
	})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelIndexUpdates, payload); err != nil && ctx.Err() == nil {
		s.logger.WarnContext(ctx, "index publish failed",
			slog.String("event_id", eventID),
			slog.String("error", err.Error()),
		)
	}
}
