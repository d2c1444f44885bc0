package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/attnmarkets/attnd/internal/domain"
	"github.com/attnmarkets/attnd/internal/pricing"
)

// publishJSON marshals and publishes a bus message, logging failures instead
// of surfacing them.
func publishJSON(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, channel string, msg map[string]any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := bus.Publish(ctx, channel, payload); err != nil && !errors.Is(err, context.Canceled) {
		logger.WarnContext(ctx, "bus publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// TradeService records bets and derives prices from the position ledger.
type TradeService struct {
	events    domain.EventStore
	trades    domain.TradeStore
	positions domain.PositionStore
	bus       domain.SignalBus
	logger    *slog.Logger
}

// NewTradeService creates a TradeService.
func NewTradeService(
	events domain.EventStore,
	trades domain.TradeStore,
	positions domain.PositionStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		events:    events,
		trades:    trades,
		positions: positions,
		bus:       bus,
		logger:    logger.With(slog.String("component", "trade_service")),
	}
}

// TradeResult is a recorded trade plus the prices it moved to.
type TradeResult struct {
	Trade     domain.Trade `json:"trade"`
	PriceUp   float64      `json:"priceUp"`
	PriceDown float64      `json:"priceDown"`
}

// Record validates and records a bet. The execution price of the bought side
// at trade time is captured on the ledger row for later PnL.
func (s *TradeService) Record(ctx context.Context, eventID, rawSide string, amount float64, traderID string) (TradeResult, error) {
	side, err := domain.ParseSide(rawSide)
	if err != nil {
		return TradeResult{}, err
	}
	if amount <= 0 {
		return TradeResult{}, domain.ErrInvalidAmount
	}

	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return TradeResult{}, fmt.Errorf("service: record trade: %w", err)
	}
	if e.Status != domain.StatusOpen {
		return TradeResult{}, domain.ErrEventNotOpen
	}

	pos, err := s.positions.Get(ctx, eventID)
	if err != nil {
		return TradeResult{}, fmt.Errorf("service: record trade: %w", err)
	}
	up, down := pricing.Prices(pos)
	execPrice := up
	if side == domain.SideDown {
		execPrice = down
	}

	t := domain.Trade{
		ID:             uuid.NewString(),
		EventID:        eventID,
		Side:           side,
		Amount:         amount,
		TraderID:       traderID,
		ExecutionPrice: &execPrice,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.trades.Record(ctx, t); err != nil {
		return TradeResult{}, fmt.Errorf("service: record trade: %w", err)
	}

	// Prices after the trade, from the updated accumulators.
	if side == domain.SideUp {
		pos.NetUp += amount
	} else {
		pos.NetDown += amount
	}
	up, down = pricing.Prices(pos)

	s.logger.InfoContext(ctx, "trade recorded",
		slog.String("event_id", eventID),
		slog.String("side", string(side)),
		slog.Float64("amount", amount),
		slog.Float64("price_up", up),
	)

	publishJSON(ctx, s.bus, s.logger, domain.ChannelTrades, map[string]any{
		"type":       "trade",
		"event_id":   eventID,
		"side":       side,
		"amount":     amount,
		"price_up":   up,
		"price_down": down,
	})

	return TradeResult{Trade: t, PriceUp: up, PriceDown: down}, nil
}

// Prices returns the current prices for an event from a fresh read of the
// accumulators.
func (s *TradeService) Prices(ctx context.Context, eventID string) (float64, float64, error) {
	pos, err := s.positions.Get(ctx, eventID)
	if err != nil {
		return 0, 0, fmt.Errorf("service: prices %s: %w", eventID, err)
	}
	up, down := pricing.Prices(pos)
	return up, down, nil
}

// Volume returns the total traded amount for an event.
func (s *TradeService) Volume(ctx context.Context, eventID string) (float64, error) {
	v, err := s.trades.Volume(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("service: volume %s: %w", eventID, err)
	}
	return v, nil
}

// History returns a trader's trades joined with their events.
func (s *TradeService) History(ctx context.Context, traderID string) ([]domain.TraderTrade, error) {
	trades, err := s.trades.ListByTrader(ctx, traderID)
	if err != nil {
		return nil, fmt.Errorf("service: trade history %s: %w", traderID, err)
	}
	return trades, nil
}
