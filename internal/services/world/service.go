package world

import (
	"context"
	"log/slog"
	"time"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/dependencies/clock"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage"
)

// MapSource resolves world map reference data
type MapSource interface {
	Map(id string) (*model.WorldMap, error)
}

// Stamina charges and refunds a player's primary stamina pool in place
type Stamina interface {
	Charge(p *model.Player, cost int, now time.Time) error
	Restore(p *model.Player, amount int, now time.Time)
}

// StepRequest asks to move a player forward on a map
type StepRequest struct {
	MapID  string
	Target int
	// PlayID selects the recent play (by submission id) offered for step
	// restrictions. Empty means the player's most recent play.
	PlayID string
}

// StepResult is the outcome of a successful traversal
type StepResult struct {
	Progress     model.MapProgress  `json:"progress"`
	Rewards      model.RewardBundle `json:"rewards"`
	StaminaSpent int                `json:"stamina_spent"`
	StaminaBonus int                `json:"stamina_bonus"`
}

// Service tracks per-player traversal of world maps
type Service struct {
	storage storage.Storage
	maps    MapSource
	stamina Stamina
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates a new world Service
func New(storage storage.Storage, maps MapSource, stamina Stamina, clock clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		maps:    maps,
		stamina: stamina,
		clock:   clock,
		logger:  logger.With(slog.String("component", "world")),
	}
}

func newProgress(playerID model.PlayerID, mapID string, now time.Time) *model.MapProgress {
	return &model.MapProgress{PlayerID: playerID, MapID: mapID, UpdatedAt: now}
}

func lockedError(p *model.MapProgress) error {
	if p.LockedUntil.IsZero() {
		return model.ErrMapLockedUntil
	}
	return model.ErrMapLockedUntil.WithMessage("map is locked until %s", p.LockedUntil.Format(time.RFC3339))
}

// Enter makes mapID the player's current map, creating progress on first entry
func (s *Service) Enter(ctx context.Context, playerID model.PlayerID, mapID string) (*model.MapProgress, error) {
	if _, err := s.maps.Map(mapID); err != nil {
		return nil, err
	}

	var progress *model.MapProgress
	err := s.storage.UpdatePlayer(ctx, playerID, func(tx storage.Tx) error {
		now := s.clock.Now()
		p, err := tx.MapProgress(ctx, mapID)
		if err != nil {
			return err
		}
		if p == nil {
			p = newProgress(playerID, mapID, now)
		} else if p.LockedAt(now) {
			return lockedError(p)
		}

		player, err := tx.Player(ctx)
		if err != nil {
			return err
		}
		player.CurrentMap = mapID
		player.UpdatedAt = now
		if err := tx.SavePlayer(ctx, player); err != nil {
			return err
		}
		if err := tx.SaveMapProgress(ctx, p); err != nil {
			return err
		}
		progress = p
		return nil
	})
	if err != nil {
		return nil, model.WrapStorage(err)
	}
	return progress, nil
}

// EnterStep advances exactly one step: Target must be the position after the current one
func (s *Service) EnterStep(ctx context.Context, playerID model.PlayerID, req StepRequest) (*StepResult, error) {
	return s.advance(ctx, playerID, req, true)
}

// Climb advances to Target in one batch, resolving every intermediate step in order
func (s *Service) Climb(ctx context.Context, playerID model.PlayerID, req StepRequest) (*StepResult, error) {
	return s.advance(ctx, playerID, req, false)
}

func (s *Service) advance(ctx context.Context, playerID model.PlayerID, req StepRequest, single bool) (*StepResult, error) {
	m, err := s.maps.Map(req.MapID)
	if err != nil {
		return nil, err
	}

	var result *StepResult
	err = s.storage.UpdatePlayer(ctx, playerID, func(tx storage.Tx) error {
		now := s.clock.Now()

		progress, err := tx.MapProgress(ctx, m.ID)
		if err != nil {
			return err
		}
		if progress == nil {
			progress = newProgress(playerID, m.ID, now)
		}
		if progress.LockedAt(now) {
			return lockedError(progress)
		}
		if progress.Cleared || progress.Position >= m.LastPosition() {
			return model.ErrMapAlreadyClear
		}

		from := progress.Position + 1
		if req.Target < from || (single && req.Target != from) {
			return model.ErrStepOutOfOrder.WithMessage("target %d must follow position %d", req.Target, progress.Position)
		}
		if req.Target > m.LastPosition() {
			return model.ErrInvalidArgument.WithMessage("map %s has no step %d", m.ID, req.Target)
		}
		steps := m.Steps[from : req.Target+1]

		if err := s.checkRestrictions(ctx, tx, steps, req.PlayID); err != nil {
			return err
		}

		player, err := tx.Player(ctx)
		if err != nil {
			return err
		}

		res := &StepResult{Rewards: model.RewardBundle{}}
		for _, step := range steps {
			res.StaminaSpent += step.Cost
		}
		if err := s.stamina.Charge(player, res.StaminaSpent, now); err != nil {
			return err
		}

		// Every step in the inclusive range contributes, not just the destination
		for i := from; i <= req.Target; i++ {
			step := m.Steps[i]
			progress.Capture += step.Capture
			res.StaminaBonus += step.PlusStamina
			for _, r := range step.Rewards {
				player.Credit(r.ItemID, r.Amount)
				res.Rewards = append(res.Rewards, r)
			}
		}
		if res.StaminaBonus > 0 {
			s.stamina.Restore(player, res.StaminaBonus, now)
		}

		ceiling := m.Ceiling()
		if progress.Capture >= ceiling {
			progress.Capture = ceiling
			progress.Cleared = true
		}
		progress.Position = req.Target
		if progress.Position == m.LastPosition() {
			progress.Cleared = true
		}
		progress.UpdatedAt = now

		player.CurrentMap = m.ID
		player.UpdatedAt = now
		if err := tx.SavePlayer(ctx, player); err != nil {
			return err
		}
		if err := tx.SaveMapProgress(ctx, progress); err != nil {
			return err
		}

		res.Progress = *progress
		result = res
		return nil
	})
	if err != nil {
		return nil, model.WrapStorage(err)
	}

	s.logger.Info("map progressed",
		slog.String("player_id", string(playerID)),
		slog.String("map_id", m.ID),
		slog.Int("position", result.Progress.Position),
		slog.Int("capture", result.Progress.Capture),
		slog.Bool("cleared", result.Progress.Cleared),
		slog.Int("rewards", len(result.Rewards)),
	)
	return result, nil
}

func (s *Service) checkRestrictions(ctx context.Context, tx storage.Tx, steps []model.Step, playID string) error {
	var (
		play     *model.RecentPlay
		resolved bool
	)
	for _, step := range steps {
		if step.Restriction.Empty() {
			continue
		}
		if !resolved {
			p, err := s.findPlay(ctx, tx, playID)
			if err != nil {
				return err
			}
			play, resolved = p, true
		}
		if !step.Restriction.Allows(play) {
			return model.ErrStepRestriction
		}
	}
	return nil
}

func (s *Service) findPlay(ctx context.Context, tx storage.Tx, playID string) (*model.RecentPlay, error) {
	plays, err := tx.RecentPlays(ctx, 0)
	if err != nil {
		return nil, err
	}
	for i := range plays {
		if playID == "" || plays[i].SubmissionID == playID {
			return &plays[i], nil
		}
	}
	return nil, nil
}

// Lock blocks traversal of mapID for the player until until (zero means until unlocked)
func (s *Service) Lock(ctx context.Context, playerID model.PlayerID, mapID string, until time.Time) (*model.MapProgress, error) {
	return s.setLock(ctx, playerID, mapID, true, until)
}

// Unlock clears any lock on mapID for the player
func (s *Service) Unlock(ctx context.Context, playerID model.PlayerID, mapID string) (*model.MapProgress, error) {
	return s.setLock(ctx, playerID, mapID, false, time.Time{})
}

func (s *Service) setLock(ctx context.Context, playerID model.PlayerID, mapID string, locked bool, until time.Time) (*model.MapProgress, error) {
	if _, err := s.maps.Map(mapID); err != nil {
		return nil, err
	}

	var progress *model.MapProgress
	err := s.storage.UpdatePlayer(ctx, playerID, func(tx storage.Tx) error {
		now := s.clock.Now()
		p, err := tx.MapProgress(ctx, mapID)
		if err != nil {
			return err
		}
		if p == nil {
			p = newProgress(playerID, mapID, now)
		}
		p.Locked = locked
		p.LockedUntil = until
		p.UpdatedAt = now
		if err := tx.SaveMapProgress(ctx, p); err != nil {
			return err
		}
		progress = p
		return nil
	})
	if err != nil {
		return nil, model.WrapStorage(err)
	}

	s.logger.Info("map lock changed",
		slog.String("player_id", string(playerID)),
		slog.String("map_id", mapID),
		slog.Bool("locked", locked),
		slog.Time("until", until),
	)
	return progress, nil
}

// Progress returns the player's state on mapID; a map never entered reads as position 0
func (s *Service) Progress(ctx context.Context, playerID model.PlayerID, mapID string) (*model.MapProgress, error) {
	if _, err := s.maps.Map(mapID); err != nil {
		return nil, err
	}
	if _, err := s.storage.GetPlayer(ctx, playerID); err != nil {
		return nil, model.WrapStorage(err)
	}
	p, err := s.storage.GetMapProgress(ctx, playerID, mapID)
	if err != nil {
		return nil, model.WrapStorage(err)
	}
	if p == nil {
		p = newProgress(playerID, mapID, time.Time{})
	}
	return p, nil
}
