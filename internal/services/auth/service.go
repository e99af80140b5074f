package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/dependencies/clock"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/dependencies/random"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/limiter"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage"
)

// Limiter is the sliding-window event log consulted on login and registration
type Limiter interface {
	Record(ctx context.Context, log storage.EventLog, event *model.AuthEvent) error
	Reserve(ctx context.Context, event *model.AuthEvent, limits ...limiter.Limit) (int, error)
	Release(ctx context.Context, event *model.AuthEvent) error
	DistinctDevices(ctx context.Context, log storage.EventLog, playerID model.PlayerID, window time.Duration, now time.Time) ([]string, error)
}

// Baseline supplies the stamina pools of a new player
type Baseline interface {
	Baseline(now time.Time) (primary, bonus model.StaminaPool)
}

// Config holds configuration for the auth service
type Config struct {
	// SessionDuration is how long a token stays valid; 0 means no expiry
	SessionDuration time.Duration

	LoginDeviceWindow  time.Duration
	LoginDeviceLimit   int
	AutoBanMultiDevice bool

	RegisterWindow       time.Duration
	RegisterDeviceLimit  int
	RegisterAddressLimit int

	// BanDurations is indexed by offense count; offenses beyond the table reuse the last entry
	BanDurations []time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	day := 24 * time.Hour
	return Config{
		SessionDuration:      30 * day,
		LoginDeviceWindow:    day,
		LoginDeviceLimit:     1,
		RegisterWindow:       day,
		RegisterDeviceLimit:  1,
		RegisterAddressLimit: 3,
		BanDurations:         []time.Duration{1 * day, 3 * day, 7 * day, 15 * day, 31 * day},
	}
}

// LoginRequest carries credentials and the origin of a login
type LoginRequest struct {
	Name     string
	Secret   string
	DeviceID string
	Address  string
}

// RegisterRequest carries a new account and the origin of the registration
type RegisterRequest struct {
	Name     string
	Secret   string
	Email    string
	DeviceID string
	Address  string
}

// Service handles authentication, sessions and bans
type Service struct {
	storage  storage.Storage
	limiter  Limiter
	baseline Baseline
	clock    clock.Clock
	random   random.Random
	logger   *slog.Logger
	cfg      Config
}

// New creates a new auth Service
func New(storage storage.Storage, limiter Limiter, baseline Baseline, clock clock.Clock, random random.Random, cfg Config, logger *slog.Logger) *Service {
	def := DefaultConfig()
	if cfg.LoginDeviceWindow <= 0 {
		cfg.LoginDeviceWindow = def.LoginDeviceWindow
	}
	if cfg.LoginDeviceLimit <= 0 {
		cfg.LoginDeviceLimit = def.LoginDeviceLimit
	}
	if cfg.RegisterWindow <= 0 {
		cfg.RegisterWindow = def.RegisterWindow
	}
	if cfg.RegisterDeviceLimit <= 0 {
		cfg.RegisterDeviceLimit = def.RegisterDeviceLimit
	}
	if cfg.RegisterAddressLimit <= 0 {
		cfg.RegisterAddressLimit = def.RegisterAddressLimit
	}
	if len(cfg.BanDurations) == 0 {
		cfg.BanDurations = def.BanDurations
	}
	return &Service{
		storage:  storage,
		limiter:  limiter,
		baseline: baseline,
		clock:    clock,
		random:   random,
		logger:   logger.With(slog.String("component", "auth")),
		cfg:      cfg,
	}
}

// Login authenticates by name and secret and mints a new session.
// Unknown names and wrong secrets are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*model.Session, error) {
	player, err := s.storage.GetPlayerByName(ctx, req.Name)
	if err != nil {
		if errors.Is(err, model.ErrPlayerNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, model.WrapStorage(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(player.PasswordHash), []byte(req.Secret)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	return s.openSession(ctx, player.ID, req.DeviceID, req.Address)
}

// openSession runs the post-credential part of login: ban check, device window
// check, login event and token mint. The checks run under the player's update
// lock and go through its tx, so concurrent logins observe each other's events
// and the login event commits or rolls back with the rest of the update.
func (s *Service) openSession(ctx context.Context, playerID model.PlayerID, deviceID, address string) (*model.Session, error) {
	var rejection error
	err := s.storage.UpdatePlayer(ctx, playerID, func(tx storage.Tx) error {
		now := s.clock.Now()
		player, err := tx.Player(ctx)
		if err != nil {
			return err
		}
		if player.Ban.Active(now) {
			return model.Banned(player.Ban.Reason, player.Ban.Until)
		}

		devices, err := s.limiter.DistinctDevices(ctx, tx, playerID, s.cfg.LoginDeviceWindow, now)
		if err != nil {
			return err
		}
		if countWith(devices, deviceID) > s.cfg.LoginDeviceLimit {
			if !s.cfg.AutoBanMultiDevice {
				return model.ErrLoginDeviceLimit
			}
			// The ban must commit, so the rejection is reported after the update
			s.applyBan(player, "multiple devices", now)
			rejection = model.Banned(player.Ban.Reason, player.Ban.Until)
			return tx.SavePlayer(ctx, player)
		}

		return s.limiter.Record(ctx, tx, &model.AuthEvent{
			Kind:     model.AuthEventLogin,
			PlayerID: playerID,
			DeviceID: deviceID,
			Address:  address,
			At:       now,
		})
	})
	if err != nil {
		return nil, model.WrapStorage(err)
	}
	if rejection != nil {
		s.logger.Warn("player auto-banned for device abuse",
			slog.String("player_id", string(playerID)),
			slog.String("device_id", deviceID),
		)
		return nil, rejection
	}

	now := s.clock.Now()
	session := &model.Session{
		Token:    s.random.SessionToken(),
		PlayerID: playerID,
		DeviceID: deviceID,
		Address:  address,
		IssuedAt: now,
	}
	if s.cfg.SessionDuration > 0 {
		session.ExpiresAt = now.Add(s.cfg.SessionDuration)
	}
	if err := s.storage.SaveSession(ctx, session); err != nil {
		return nil, model.WrapStorage(err)
	}

	s.logger.Info("player logged in",
		slog.String("player_id", string(playerID)),
		slog.String("device_id", deviceID),
	)
	return session, nil
}

func countWith(devices []string, current string) int {
	n := len(devices)
	if current == "" {
		return n
	}
	for _, d := range devices {
		if d == current {
			return n
		}
	}
	return n + 1
}

// Verify resolves a token to its player. Ban state is re-read on every call so
// a ban imposed after issuance takes effect immediately.
func (s *Service) Verify(ctx context.Context, token string) (*model.Player, error) {
	if token == "" {
		return nil, model.ErrInvalidSession
	}
	session, err := s.storage.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return nil, model.ErrInvalidSession
		}
		return nil, model.WrapStorage(err)
	}

	now := s.clock.Now()
	if session.Expired(now) {
		if err := s.storage.DeleteSession(ctx, token); err != nil {
			s.logger.Warn("failed to delete expired session",
				slog.String("player_id", string(session.PlayerID)),
				slog.String("error", err.Error()),
			)
		}
		return nil, model.ErrInvalidSession
	}

	player, err := s.storage.GetPlayer(ctx, session.PlayerID)
	if err != nil {
		if errors.Is(err, model.ErrPlayerNotFound) {
			return nil, model.ErrInvalidSession
		}
		return nil, model.WrapStorage(err)
	}
	if player.Ban.Active(now) {
		return nil, model.Banned(player.Ban.Reason, player.Ban.Until)
	}
	return player, nil
}

// Register creates an account and logs it in.
// Checks run in order: name, email, device window, address window.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*model.Session, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Secret == "" {
		return nil, model.ErrInvalidArgument.WithMessage("name and secret are required")
	}

	if err := s.ensureFree(ctx, s.storage.GetPlayerByName, req.Name, model.ErrNameTaken); err != nil {
		return nil, err
	}
	if req.Email != "" {
		if err := s.ensureFree(ctx, s.storage.GetPlayerByEmail, req.Email, model.ErrEmailTaken); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	playerID := model.PlayerID(s.random.UUID())
	event := &model.AuthEvent{
		Kind:     model.AuthEventRegistration,
		PlayerID: playerID,
		DeviceID: req.DeviceID,
		Address:  req.Address,
		At:       now,
	}

	// The registration event is reserved before the account exists so that
	// concurrent registrations from one device or address count each other
	var (
		limits     []limiter.Limit
		rejections []error
	)
	if req.DeviceID != "" {
		limits = append(limits, limiter.Limit{
			Key:    model.EventKey{Scope: model.ScopeDevice, Value: req.DeviceID},
			Window: s.cfg.RegisterWindow,
			Max:    s.cfg.RegisterDeviceLimit,
		})
		rejections = append(rejections, model.ErrDeviceRegisterLimit)
	}
	if req.Address != "" {
		limits = append(limits, limiter.Limit{
			Key:    model.EventKey{Scope: model.ScopeAddress, Value: req.Address},
			Window: s.cfg.RegisterWindow,
			Max:    s.cfg.RegisterAddressLimit,
		})
		rejections = append(rejections, model.ErrAddressRegisterLimit)
	}
	full, err := s.limiter.Reserve(ctx, event, limits...)
	if err != nil {
		return nil, err
	}
	if full >= 0 {
		return nil, rejections[full]
	}

	player, err := s.createPlayer(ctx, playerID, req, now)
	if err != nil {
		if rerr := s.limiter.Release(context.WithoutCancel(ctx), event); rerr != nil {
			s.logger.Warn("failed to release registration event",
				slog.String("event_id", event.ID),
				slog.String("error", rerr.Error()),
			)
		}
		return nil, err
	}

	s.logger.Info("player registered",
		slog.String("player_id", string(player.ID)),
		slog.String("name", player.Name),
	)

	// The account stays if the implicit login fails; a later Login reaches it
	session, err := s.openSession(ctx, player.ID, req.DeviceID, req.Address)
	if err != nil {
		s.logger.Warn("registered player could not be logged in",
			slog.String("player_id", string(player.ID)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return session, nil
}

func (s *Service) createPlayer(ctx context.Context, id model.PlayerID, req RegisterRequest, now time.Time) (*model.Player, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	primary, bonus := s.baseline.Baseline(now)
	player := &model.Player{
		ID:           id,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Stamina:      primary,
		Bonus:        bonus,
		Inventory:    map[string]int{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.storage.CreatePlayer(ctx, player); err != nil {
		return nil, model.WrapStorage(err)
	}
	return player, nil
}

func (s *Service) ensureFree(ctx context.Context, lookup func(context.Context, string) (*model.Player, error), value string, taken error) error {
	_, err := lookup(ctx, value)
	if err == nil {
		return taken
	}
	if !errors.Is(err, model.ErrPlayerNotFound) {
		return model.WrapStorage(err)
	}
	return nil
}

// Logout revokes a session token
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.storage.DeleteSession(ctx, token); err != nil {
		return model.WrapStorage(err)
	}
	return nil
}

// Ban bans a player for the duration matching their next offense
func (s *Service) Ban(ctx context.Context, playerID model.PlayerID, reason string) (*model.Ban, error) {
	var ban model.Ban
	err := s.storage.UpdatePlayer(ctx, playerID, func(tx storage.Tx) error {
		player, err := tx.Player(ctx)
		if err != nil {
			return err
		}
		s.applyBan(player, reason, s.clock.Now())
		ban = player.Ban
		return tx.SavePlayer(ctx, player)
	})
	if err != nil {
		return nil, model.WrapStorage(err)
	}

	s.logger.Warn("player banned",
		slog.String("player_id", string(playerID)),
		slog.String("reason", reason),
		slog.Int("offenses", ban.Offenses),
		slog.Time("until", ban.Until),
	)
	return &ban, nil
}

// Unban lifts an active ban; the offense count is kept for escalation
func (s *Service) Unban(ctx context.Context, playerID model.PlayerID) error {
	err := s.storage.UpdatePlayer(ctx, playerID, func(tx storage.Tx) error {
		player, err := tx.Player(ctx)
		if err != nil {
			return err
		}
		player.Ban.Until = time.Time{}
		player.Ban.Reason = ""
		player.UpdatedAt = s.clock.Now()
		return tx.SavePlayer(ctx, player)
	})
	if err != nil {
		return model.WrapStorage(err)
	}
	s.logger.Info("player unbanned", slog.String("player_id", string(playerID)))
	return nil
}

func (s *Service) applyBan(player *model.Player, reason string, now time.Time) {
	player.Ban.Offenses++
	idx := player.Ban.Offenses - 1
	if idx >= len(s.cfg.BanDurations) {
		idx = len(s.cfg.BanDurations) - 1
	}
	player.Ban.Reason = reason
	player.Ban.Until = now.Add(s.cfg.BanDurations[idx])
	player.UpdatedAt = now
}
