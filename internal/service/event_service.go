// Package service implements the application use cases on top of the domain
// stores, the index engine, and the policy collaborators.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/attnmarkets/attnd/internal/domain"
	"github.com/attnmarkets/attnd/internal/index"
	"github.com/attnmarkets/attnd/internal/pricing"
)

// demoWindow is the fixed window length for demo markets.
const demoWindow = 2 * time.Minute

// Policy is the never-failing decision surface consulted during the event
// lifecycle. *policy.Chain implements it; every method substitutes a fixed
// default when the backing collaborator is absent or failing.
type Policy interface {
	CheckReasonability(ctx context.Context, name, sourceURL, description string) domain.ReasonabilityResult
	SelectTools(ctx context.Context, name, sourceURL, description string, available []domain.Tool, windowMinutes int) domain.EventConfig
	DecideAccept(ctx context.Context, name string, indexValue float64, activity domain.Activity) domain.AcceptDecision
	Explain(ctx context.Context, name string, indexStart, indexEnd float64, history []domain.IndexPoint) string
	SuggestWindow(ctx context.Context, name, sourceURL, description string) int
	Headline(ctx context.Context, name, marketType, sourceURL, description string) domain.Headline
}

// Notifier announces lifecycle transitions to operators. Optional.
type Notifier interface {
	MarketOpened(ctx context.Context, e domain.Event) error
	MarketResolved(ctx context.Context, e domain.Event) error
}

// EventServiceDeps bundles the collaborators of EventService. Holistic,
// Images, Blobs, BlobReader, and Notifier may be nil.
type EventServiceDeps struct {
	Events    domain.EventStore
	Snapshots domain.SnapshotStore
	Positions domain.PositionStore
	Trades    domain.TradeStore
	Activity  domain.ActivityCache
	Bus       domain.SignalBus
	Engine    *index.Engine
	Policy    Policy
	Holistic  domain.HolisticEstimator
	Images    domain.ImageGenerator
	Blobs     domain.BlobWriter
	BlobRead  domain.BlobReader
	Notifier  Notifier
	// MinTraction is the aggregate sampled activity a non-demo proposal needs
	// when no holistic estimate is available.
	MinTraction float64
	Logger      *slog.Logger
}

// EventService owns the event lifecycle: proposal, acceptance, resolution,
// and deletion.
type EventService struct {
	events    domain.EventStore
	snapshots domain.SnapshotStore
	positions domain.PositionStore
	trades    domain.TradeStore
	activity  domain.ActivityCache
	bus       domain.SignalBus
	engine    *index.Engine
	policy    Policy
	holistic  domain.HolisticEstimator
	images    domain.ImageGenerator
	blobs     domain.BlobWriter
	blobRead  domain.BlobReader
	notifier  Notifier

	minTraction float64
	logger      *slog.Logger
}

// NewEventService creates an EventService.
func NewEventService(d EventServiceDeps) *EventService {
	return &EventService{
		events:      d.Events,
		snapshots:   d.Snapshots,
		positions:   d.Positions,
		trades:      d.Trades,
		activity:    d.Activity,
		bus:         d.Bus,
		engine:      d.Engine,
		policy:      d.Policy,
		holistic:    d.Holistic,
		images:      d.Images,
		blobs:       d.Blobs,
		blobRead:    d.BlobRead,
		notifier:    d.Notifier,
		minTraction: d.MinTraction,
		logger:      d.Logger.With(slog.String("component", "event_service")),
	}
}

// ProposeRequest is a topic submission.
type ProposeRequest struct {
	Name        string `json:"name"`
	SourceURL   string `json:"source_url"`
	Description string `json:"description"`
	// Period picks a window by name (1h/8h/24h/1w). Takes precedence over
	// MarketType when set.
	Period     string `json:"period"`
	MarketType string `json:"market_type"`
	Demo       bool   `json:"demo"`
}

// windowFor resolves the trading window length for a proposal.
func windowFor(req ProposeRequest) (time.Duration, string, error) {
	if req.Demo {
		return demoWindow, req.MarketType, nil
	}
	if req.Period != "" {
		minutes, err := domain.PeriodMinutes(req.Period)
		if err != nil {
			return 0, "", err
		}
		return time.Duration(minutes) * time.Minute, req.Period, nil
	}
	marketType := req.MarketType
	if marketType == "" {
		marketType = domain.DefaultMarketType
	}
	return time.Duration(domain.MarketTypeMinutes(marketType)) * time.Minute, marketType, nil
}

// Propose runs the full proposal flow: reasonability check, tool selection,
// initial index build, traction gate, final accept decision. The returned
// event is open, or rejected with a reason. Rejections that happen before the
// event row exists are ephemeral: the returned event carries the reason but
// is never persisted.
func (s *EventService) Propose(ctx context.Context, req ProposeRequest) (domain.Event, error) {
	if req.Name == "" {
		return domain.Event{}, domain.ErrNameRequired
	}

	window, marketType, err := windowFor(req)
	if err != nil {
		return domain.Event{}, err
	}

	now := time.Now().UTC()

	// Reasonability gate, before anything is persisted.
	check := s.policy.CheckReasonability(ctx, req.Name, req.SourceURL, req.Description)
	if !check.Pass {
		s.logger.InfoContext(ctx, "proposal rejected as unreasonable",
			slog.String("name", req.Name),
			slog.String("reason", check.Reason),
		)
		return ephemeralReject(req, check.Reason, now), nil
	}

	cfg := s.policy.SelectTools(ctx, req.Name, req.SourceURL, req.Description,
		domain.AvailableTools(), int(window.Minutes()))
	cfg.WindowMinutes = int(window.Minutes())
	cfg.MarketType = marketType
	cfg.Demo = req.Demo
	cfg.SourceURL = req.SourceURL
	cfg.Description = req.Description

	head := s.policy.Headline(ctx, req.Name, marketType, req.SourceURL, req.Description)
	cfg.Headline = head.Headline
	cfg.Subline = head.Subline
	cfg.LabelUp = head.LabelUp
	cfg.LabelDown = head.LabelDown

	e := domain.Event{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Status:       domain.StatusProposed,
		WindowStart:  now,
		WindowEnd:    now.Add(window),
		IndexStart:   domain.IndexBaseline,
		IndexCurrent: domain.IndexBaseline,
		Config:       cfg,
		CreatedAt:    now,
	}
	if err := s.events.Create(ctx, e); err != nil {
		return domain.Event{}, fmt.Errorf("service: propose: %w", err)
	}

	if req.Demo {
		return s.accept(ctx, e, now, window, domain.IndexBaseline, nil, nil)
	}

	current, activity, backfill := s.initialIndex(ctx, req, cfg)

	// Traction gate: a market on a topic nobody is talking about has nothing
	// to measure. Only applies when the channel pipeline produced the index.
	if backfill == nil && index.TotalActivity(activity) < s.minTraction {
		reason := "insufficient traction across activity channels"
		return s.reject(ctx, e, reason)
	}

	decision := s.policy.DecideAccept(ctx, req.Name, current, activity)
	if !decision.Accept {
		return s.reject(ctx, e, decision.Reason)
	}

	return s.accept(ctx, e, now, window, current, activity, backfill)
}

// initialIndex builds the opening index. The holistic estimator substitutes
// the channel pipeline when configured; both produce the same value/activity
// shape so everything downstream is source-agnostic.
func (s *EventService) initialIndex(ctx context.Context, req ProposeRequest, cfg domain.EventConfig) (float64, domain.Activity, []domain.IndexPoint) {
	if s.holistic != nil {
		current, points, err := s.holistic.BuildIndex(ctx, req.Name, req.SourceURL, req.Description)
		if err == nil {
			current = index.ClampHolistic(current)
			return current, domain.Activity{"holistic": current}, points
		}
		s.logger.WarnContext(ctx, "holistic index failed, using channel pipeline",
			slog.String("name", req.Name),
			slog.String("error", err.Error()),
		)
	}

	value, activity := s.engine.Compute(ctx, cfg, nil)
	return value, activity, nil
}

// reject transitions a persisted proposal to rejected with the given reason.
func (s *EventService) reject(ctx context.Context, e domain.Event, reason string) (domain.Event, error) {
	e.Status = domain.StatusRejected
	e.Config.RejectReason = reason
	if err := s.events.Reject(ctx, e.ID, e.Config); err != nil {
		return domain.Event{}, fmt.Errorf("service: reject %s: %w", e.ID, err)
	}
	s.logger.InfoContext(ctx, "proposal rejected",
		slog.String("event_id", e.ID),
		slog.String("name", e.Name),
		slog.String("reason", reason),
	)
	return e, nil
}

// accept opens the market: fixes the window and baseline, seeds the activity
// cache, writes the initial snapshot plus any backfill, and generates a
// thumbnail when an image pipeline is configured.
func (s *EventService) accept(ctx context.Context, e domain.Event, now time.Time, window time.Duration, current float64, activity domain.Activity, backfill []domain.IndexPoint) (domain.Event, error) {
	e.Status = domain.StatusOpen
	e.WindowStart = now
	e.WindowEnd = now.Add(window)
	e.IndexStart = domain.IndexBaseline
	e.IndexCurrent = current

	if s.images != nil && s.blobs != nil {
		if url := s.generateThumbnail(ctx, e); url != "" {
			e.Config.ImageURL = url
		}
	}

	if err := s.events.Accept(ctx, e.ID, e.WindowStart, e.WindowEnd, e.IndexStart, e.IndexCurrent, e.Config); err != nil {
		return domain.Event{}, fmt.Errorf("service: accept %s: %w", e.ID, err)
	}

	if len(activity) > 0 {
		if err := s.activity.Set(ctx, e.ID, activity, 2*window); err != nil {
			s.logger.WarnContext(ctx, "activity cache seed failed",
				slog.String("event_id", e.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if backfill == nil && !e.Config.Demo {
		backfill = index.SyntheticBackfill(e.ID, e.Name, e.Config.Description, current, now)
	}
	if len(backfill) > 0 {
		if err := s.snapshots.AppendBatch(ctx, e.ID, backfill); err != nil {
			s.logger.WarnContext(ctx, "backfill append failed",
				slog.String("event_id", e.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := s.snapshots.Append(ctx, e.ID, domain.IndexPoint{T: now, Value: current}); err != nil {
		return domain.Event{}, fmt.Errorf("service: initial snapshot %s: %w", e.ID, err)
	}

	publishJSON(ctx, s.bus, s.logger, domain.ChannelEvents, map[string]any{
		"type":  "event_opened",
		"event": e,
	})
	if s.notifier != nil {
		if err := s.notifier.MarketOpened(ctx, e); err != nil {
			s.logger.WarnContext(ctx, "open notification failed",
				slog.String("event_id", e.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "market opened",
		slog.String("event_id", e.ID),
		slog.String("name", e.Name),
		slog.Float64("index", current),
		slog.Time("window_end", e.WindowEnd),
	)
	return e, nil
}

// generateThumbnail renders and stores the event card image, returning its
// serving path. Fail-soft: an event without a thumbnail is still a market.
func (s *EventService) generateThumbnail(ctx context.Context, e domain.Event) string {
	img, err := s.images.Generate(ctx, e.Name, e.Config.Headline)
	if err != nil || len(img) == 0 {
		if err != nil {
			s.logger.WarnContext(ctx, "thumbnail generation failed",
				slog.String("event_id", e.ID),
				slog.String("error", err.Error()),
			)
		}
		return ""
	}
	key := thumbnailKey(e.ID)
	if err := s.blobs.Put(ctx, key, img, "image/png"); err != nil {
		s.logger.WarnContext(ctx, "thumbnail upload failed",
			slog.String("event_id", e.ID),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return "/api/events/" + e.ID + "/image"
}

func thumbnailKey(eventID string) string {
	return "events/" + eventID + "/thumbnail.png"
}

// ephemeralReject builds a rejected event that is returned to the caller but
// never persisted.
func ephemeralReject(req ProposeRequest, reason string, now time.Time) domain.Event {
	return domain.Event{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Status:    domain.StatusRejected,
		CreatedAt: now,
		Config: domain.EventConfig{
			SourceURL:    req.SourceURL,
			Description:  req.Description,
			Demo:         req.Demo,
			RejectReason: reason,
		},
	}
}

// Detail is an event joined with its derived market figures.
type Detail struct {
	domain.Event
	PriceUp   float64 `json:"priceUp"`
	PriceDown float64 `json:"priceDown"`
	Volume    float64 `json:"volume"`
}

// Get returns an event with current prices and volume.
func (s *EventService) Get(ctx context.Context, id string) (Detail, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return Detail{}, fmt.Errorf("service: get event %s: %w", id, err)
	}
	return s.detail(ctx, e)
}

// List returns events matching the filter, each with prices and volume.
func (s *EventService) List(ctx context.Context, f domain.EventFilter) ([]Detail, error) {
	events, err := s.events.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("service: list events: %w", err)
	}
	out := make([]Detail, 0, len(events))
	for _, e := range events {
		d, err := s.detail(ctx, e)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *EventService) detail(ctx context.Context, e domain.Event) (Detail, error) {
	pos, err := s.positions.Get(ctx, e.ID)
	if err != nil {
		return Detail{}, fmt.Errorf("service: position %s: %w", e.ID, err)
	}
	volume, err := s.trades.Volume(ctx, e.ID)
	if err != nil {
		return Detail{}, fmt.Errorf("service: volume %s: %w", e.ID, err)
	}
	up, down := pricing.Prices(pos)
	return Detail{Event: e, PriceUp: up, PriceDown: down, Volume: volume}, nil
}

// ForceResolve resolves an expired open event on demand. It fails with
// ErrEventNotOpen or ErrWindowNotElapsed without mutating state; otherwise it
// performs exactly the periodic resolution procedure.
func (s *EventService) ForceResolve(ctx context.Context, id string) (domain.Event, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("service: force resolve %s: %w", id, err)
	}
	if e.Status != domain.StatusOpen {
		return domain.Event{}, domain.ErrEventNotOpen
	}
	if !e.Expired(time.Now().UTC()) {
		return domain.Event{}, domain.ErrWindowNotElapsed
	}
	return s.ResolveExpired(ctx, e)
}

// ResolveExpired resolves one expired open event: derives the outcome,
// obtains an explanation, persists the transition, and (for non-demo events)
// opens the recurring successor market. The store-level open-status guard
// makes concurrent invocations resolve the event exactly once; the loser of
// the race returns the event unchanged.
func (s *EventService) ResolveExpired(ctx context.Context, e domain.Event) (domain.Event, error) {
	resolution := e.Resolve()

	history, err := s.snapshots.History(ctx, e.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "history read failed, explaining without it",
			slog.String("event_id", e.ID),
			slog.String("error", err.Error()),
		)
	}
	explanation := s.policy.Explain(ctx, e.Name, e.IndexStart, e.IndexCurrent, history)

	resolved, err := s.events.Resolve(ctx, e.ID, resolution, explanation)
	if err != nil {
		return domain.Event{}, fmt.Errorf("service: resolve %s: %w", e.ID, err)
	}
	if !resolved {
		// Another tick got there first.
		return e, nil
	}

	// Final snapshot at (or after) window end so history always records the
	// settling value.
	now := time.Now().UTC()
	if err := s.snapshots.Append(ctx, e.ID, domain.IndexPoint{T: now, Value: e.IndexCurrent}); err != nil {
		s.logger.WarnContext(ctx, "final snapshot failed",
			slog.String("event_id", e.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.activity.Delete(ctx, e.ID); err != nil {
		s.logger.WarnContext(ctx, "activity cache delete failed",
			slog.String("event_id", e.ID),
			slog.String("error", err.Error()),
		)
	}

	e.Status = domain.StatusResolved
	e.Resolution = &resolution
	e.Explanation = explanation

	publishJSON(ctx, s.bus, s.logger, domain.ChannelResolutions, map[string]any{
		"type":        "event_resolved",
		"event_id":    e.ID,
		"name":        e.Name,
		"resolution":  resolution,
		"index_start": e.IndexStart,
		"index_end":   e.IndexCurrent,
		"explanation": explanation,
	})
	if s.notifier != nil {
		if err := s.notifier.MarketResolved(ctx, e); err != nil {
			s.logger.WarnContext(ctx, "resolve notification failed",
				slog.String("event_id", e.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "market resolved",
		slog.String("event_id", e.ID),
		slog.String("name", e.Name),
		slog.String("resolution", string(resolution)),
		slog.Float64("index_start", e.IndexStart),
		slog.Float64("index_end", e.IndexCurrent),
	)

	if !e.Config.Demo {
		if _, err := s.reopen(ctx, e); err != nil {
			s.logger.ErrorContext(ctx, "recurring reopen failed",
				slog.String("event_id", e.ID),
				slog.String("name", e.Name),
				slog.String("error", err.Error()),
			)
		}
	}

	return e, nil
}

// reopen creates the recurring successor market for a resolved event: same
// topic, fresh window, fresh baseline.
func (s *EventService) reopen(ctx context.Context, prev domain.Event) (domain.Event, error) {
	now := time.Now().UTC()

	window := time.Duration(domain.MarketTypeMinutes(prev.Config.MarketType)) * time.Minute
	if prev.Config.WindowMinutes > 0 {
		window = time.Duration(prev.Config.WindowMinutes) * time.Minute
	}

	cfg := prev.Config
	cfg.RejectReason = ""

	current, activity := s.engine.Compute(ctx, cfg, nil)

	next := domain.Event{
		ID:           uuid.NewString(),
		Name:         prev.Name,
		Status:       domain.StatusProposed,
		WindowStart:  now,
		WindowEnd:    now.Add(window),
		IndexStart:   domain.IndexBaseline,
		IndexCurrent: current,
		Config:       cfg,
		CreatedAt:    now,
	}
	if err := s.events.Create(ctx, next); err != nil {
		return domain.Event{}, fmt.Errorf("service: reopen %s: %w", prev.Name, err)
	}
	return s.accept(ctx, next, now, window, current, activity, nil)
}

// Delete removes an event and all dependent rows.
func (s *EventService) Delete(ctx context.Context, id string) error {
	deleted, err := s.events.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("service: delete %s: %w", id, err)
	}
	if !deleted {
		return domain.ErrNotFound
	}
	if err := s.activity.Delete(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "activity cache delete failed",
			slog.String("event_id", id),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "event deleted", slog.String("event_id", id))
	return nil
}

// SuggestWindow asks the policy for a window length, clamped to the
// canonical market windows.
func (s *EventService) SuggestWindow(ctx context.Context, name, sourceURL, description string) int {
	return s.policy.SuggestWindow(ctx, name, sourceURL, description)
}

// Image returns the stored thumbnail for an event.
func (s *EventService) Image(ctx context.Context, id string) ([]byte, string, error) {
	if s.blobRead == nil {
		return nil, "", domain.ErrNotFound
	}
	data, contentType, err := s.blobRead.Get(ctx, thumbnailKey(id))
	if err != nil {
		return nil, "", fmt.Errorf("service: image %s: %w", id, err)
	}
	if contentType == "" {
		contentType = "image/png"
	}
	return data, contentType, nil
}
