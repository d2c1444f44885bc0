package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/attnmarkets/attnd/internal/domain"
)

// ProfileService manages trader profiles and balances.
type ProfileService struct {
	profiles domain.ProfileStore
	trades   domain.TradeStore
	logger   *slog.Logger
}

// NewProfileService creates a ProfileService.
func NewProfileService(profiles domain.ProfileStore, trades domain.TradeStore, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		trades:   trades,
		logger:   logger.With(slog.String("component", "profile_service")),
	}
}

// Get fetches a trader's profile, creating it with the starting balance on
// first sight.
func (s *ProfileService) Get(ctx context.Context, traderID, displayName string) (domain.Profile, error) {
	if traderID == "" {
		return domain.Profile{}, domain.ErrUnauthorized
	}
	p, err := s.profiles.GetOrCreate(ctx, traderID, displayName)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("service: profile %s: %w", traderID, err)
	}
	return p, nil
}

// Trades returns a trader's trade history joined with event outcomes.
func (s *ProfileService) Trades(ctx context.Context, traderID string) ([]domain.TraderTrade, error) {
	if traderID == "" {
		return nil, domain.ErrUnauthorized
	}
	trades, err := s.trades.ListByTrader(ctx, traderID)
	if err != nil {
		return nil, fmt.Errorf("service: profile trades %s: %w", traderID, err)
	}
	return trades, nil
}

// SetDisplayName updates the trader's display name.
func (s *ProfileService) SetDisplayName(ctx context.Context, traderID, displayName string) error {
	if traderID == "" {
		return domain.ErrUnauthorized
	}
	if err := s.profiles.UpdateDisplayName(ctx, traderID, displayName); err != nil {
		return fmt.Errorf("service: set display name %s: %w", traderID, err)
	}
	return nil
}
