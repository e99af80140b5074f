package rating

import (
	"context"
	"log/slog"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/dependencies/clock"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage"
)

// Config holds configuration for the rating aggregator.
// The weights divide by the full slot count (30 + 10) regardless of how many
// entries a player actually has, so sparse ledgers yield a lower overall.
// Zero values take the defaults.
type Config struct {
	BestCount    int
	RecentCount  int
	BestWeight   float64
	RecentWeight float64
}

// DefaultConfig returns default rating configuration
func DefaultConfig() Config {
	return Config{
		BestCount:    30,
		RecentCount:  10,
		BestWeight:   1.0 / 40,
		RecentWeight: 1.0 / 40,
	}
}

// Breakdown is the overall rating together with its inputs
type Breakdown struct {
	Overall     float64 `json:"overall"`
	BestSum     float64 `json:"best_sum"`
	BestCount   int     `json:"best_count"`
	RecentSum   float64 `json:"recent_sum"`
	RecentCount int     `json:"recent_count"`
}

// Service computes a player's overall competitive rating
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
	cfg     Config
}

// New creates a new rating Service
func New(storage storage.Storage, clock clock.Clock, cfg Config, logger *slog.Logger) *Service {
	def := DefaultConfig()
	if cfg.BestCount <= 0 {
		cfg.BestCount = def.BestCount
	}
	if cfg.RecentCount <= 0 {
		cfg.RecentCount = def.RecentCount
	}
	if cfg.BestWeight <= 0 {
		cfg.BestWeight = def.BestWeight
	}
	if cfg.RecentWeight <= 0 {
		cfg.RecentWeight = def.RecentWeight
	}
	return &Service{
		storage: storage,
		clock:   clock,
		logger:  logger.With(slog.String("component", "rating")),
		cfg:     cfg,
	}
}

// Overall computes the rating from the top best entries and the most recent plays
func (s *Service) Overall(ctx context.Context, playerID model.PlayerID) (*Breakdown, error) {
	if _, err := s.storage.GetPlayer(ctx, playerID); err != nil {
		return nil, model.WrapStorage(err)
	}
	best, err := s.storage.ListBestScores(ctx, playerID, s.cfg.BestCount)
	if err != nil {
		return nil, model.WrapStorage(err)
	}
	recent, err := s.storage.ListRecentPlays(ctx, playerID, s.cfg.RecentCount)
	if err != nil {
		return nil, model.WrapStorage(err)
	}
	return s.compute(best, recent), nil
}

func (s *Service) compute(best []model.BestScore, recent []model.RecentPlay) *Breakdown {
	b := &Breakdown{BestCount: len(best), RecentCount: len(recent)}
	for _, e := range best {
		b.BestSum += e.Rating
	}
	for _, p := range recent {
		b.RecentSum += p.Rating
	}
	b.Overall = b.BestSum*s.cfg.BestWeight + b.RecentSum*s.cfg.RecentWeight
	return b
}

// Publish recomputes the overall rating and stores it on the player. The
// ledgers are read through the update's tx, so writes staged earlier in the
// same update are included.
func (s *Service) Publish(ctx context.Context, playerID model.PlayerID) (*Breakdown, error) {
	var breakdown *Breakdown
	err := s.storage.UpdatePlayer(ctx, playerID, func(tx storage.Tx) error {
		best, err := tx.BestScores(ctx, s.cfg.BestCount)
		if err != nil {
			return err
		}
		recent, err := tx.RecentPlays(ctx, s.cfg.RecentCount)
		if err != nil {
			return err
		}
		b := s.compute(best, recent)

		p, err := tx.Player(ctx)
		if err != nil {
			return err
		}
		p.Rating = b.Overall
		p.UpdatedAt = s.clock.Now()
		if err := tx.SavePlayer(ctx, p); err != nil {
			return err
		}
		breakdown = b
		return nil
	})
	if err != nil {
		return nil, model.WrapStorage(err)
	}

	s.logger.Debug("rating published",
		slog.String("player_id", string(playerID)),
		slog.Float64("overall", breakdown.Overall),
	)
	return breakdown, nil
}
