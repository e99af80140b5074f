package stamina

import (
	"context"
	"log/slog"
	"time"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/dependencies/clock"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage"
)

// Config holds configuration for the stamina ledger
type Config struct {
	Max         int
	RecoverTick time.Duration

	// The bonus slot holds one charge that refills every BonusTick and converts
	// into BonusAmount primary stamina when used
	BonusTick   time.Duration
	BonusAmount int
}

// DefaultConfig returns default stamina configuration
func DefaultConfig() Config {
	return Config{
		Max:         12,
		RecoverTick: 30 * time.Minute,
		BonusTick:   23 * time.Hour,
		BonusAmount: 6,
	}
}

// Status is a player's stamina as observed at a point in time
type Status struct {
	Stamina      int       `json:"stamina"`
	Max          int       `json:"max_stamina"`
	FullAt       time.Time `json:"stamina_full_at"`
	BonusReady   bool      `json:"bonus_ready"`
	BonusReadyAt time.Time `json:"bonus_ready_at"`
}

// Service reads and mutates the primary stamina pool and the bonus slot
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger

	primary     Rules
	bonus       Rules
	bonusAmount int
}

// New creates a new stamina Service
func New(storage storage.Storage, clock clock.Clock, cfg Config, logger *slog.Logger) *Service {
	def := DefaultConfig()
	if cfg.Max <= 0 {
		cfg.Max = def.Max
	}
	if cfg.RecoverTick <= 0 {
		cfg.RecoverTick = def.RecoverTick
	}
	if cfg.BonusTick <= 0 {
		cfg.BonusTick = def.BonusTick
	}
	if cfg.BonusAmount <= 0 {
		cfg.BonusAmount = def.BonusAmount
	}
	return &Service{
		storage:     storage,
		clock:       clock,
		logger:      logger.With(slog.String("component", "stamina")),
		primary:     Rules{Max: cfg.Max, Tick: cfg.RecoverTick},
		bonus:       Rules{Max: 1, Tick: cfg.BonusTick},
		bonusAmount: cfg.BonusAmount,
	}
}

// Baseline returns the pools a newly created player starts with
func (s *Service) Baseline(now time.Time) (primary, bonus model.StaminaPool) {
	return s.primary.Full(now), s.bonus.Full(now)
}

// StatusOf evaluates a player's pools at now
func (s *Service) StatusOf(p *model.Player, now time.Time) Status {
	st := Status{
		Stamina:    s.primary.Effective(p.Stamina, now),
		Max:        s.primary.Max,
		BonusReady: s.bonus.Effective(p.Bonus, now) >= 1,
	}
	if st.Stamina < st.Max {
		st.FullAt = p.Stamina.FullAt
	}
	if !st.BonusReady {
		st.BonusReadyAt = p.Bonus.FullAt
	}
	return st
}

// Charge spends cost from the player's primary pool in place
func (s *Service) Charge(p *model.Player, cost int, now time.Time) error {
	pool, err := s.primary.Spend(p.Stamina, cost, now)
	if err != nil {
		return err
	}
	p.Stamina = pool
	return nil
}

// Restore grants amount to the player's primary pool in place
func (s *Service) Restore(p *model.Player, amount int, now time.Time) {
	p.Stamina = s.primary.Grant(p.Stamina, amount, now)
}

// Get returns the player's current stamina
func (s *Service) Get(ctx context.Context, playerID model.PlayerID) (*Status, error) {
	p, err := s.storage.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, model.WrapStorage(err)
	}
	st := s.StatusOf(p, s.clock.Now())
	return &st, nil
}

// Spend removes cost stamina in one atomic read-modify-write
func (s *Service) Spend(ctx context.Context, playerID model.PlayerID, cost int) (*Status, error) {
	return s.update(ctx, playerID, func(p *model.Player, now time.Time) error {
		return s.Charge(p, cost, now)
	})
}

// UseBonus consumes the bonus charge and grants the bonus amount of stamina
func (s *Service) UseBonus(ctx context.Context, playerID model.PlayerID) (*Status, error) {
	return s.update(ctx, playerID, func(p *model.Player, now time.Time) error {
		bonus, err := s.bonus.Spend(p.Bonus, 1, now)
		if err != nil {
			return model.ErrBonusNotReady
		}
		p.Bonus = bonus
		s.Restore(p, s.bonusAmount, now)

		s.logger.Info("bonus stamina used",
			slog.String("player_id", string(p.ID)),
			slog.Int("amount", s.bonusAmount),
		)
		return nil
	})
}

func (s *Service) update(ctx context.Context, playerID model.PlayerID, fn func(p *model.Player, now time.Time) error) (*Status, error) {
	var st Status
	err := s.storage.UpdatePlayer(ctx, playerID, func(tx storage.Tx) error {
		p, err := tx.Player(ctx)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := fn(p, now); err != nil {
			return err
		}
		p.UpdatedAt = now
		if err := tx.SavePlayer(ctx, p); err != nil {
			return err
		}
		st = s.StatusOf(p, now)
		return nil
	})
	if err != nil {
		return nil, model.WrapStorage(err)
	}
	return &st, nil
}
