package limiter

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/dependencies/clock"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/dependencies/random"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage"
)

// Config holds configuration for the limiter
type Config struct {
	// Retention is how long events are kept before Prune may remove them.
	// It must cover the widest window any caller counts over.
	Retention time.Duration
}

// DefaultConfig returns default limiter configuration
func DefaultConfig() Config {
	return Config{
		Retention: 24 * time.Hour,
	}
}

// Service counts login and registration events in sliding time windows
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger

	retention time.Duration
}

// New creates a new limiter Service
func New(storage storage.Storage, clock clock.Clock, random random.Random, cfg Config, logger *slog.Logger) *Service {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultConfig().Retention
	}
	return &Service{
		storage:   storage,
		clock:     clock,
		random:    random,
		logger:    logger.With(slog.String("component", "limiter")),
		retention: cfg.Retention,
	}
}

// Limit caps how many events of the reserved kind one key may have in a window
type Limit struct {
	Key    model.EventKey
	Window time.Duration
	Max    int
}

// Record appends an event to log, assigning an id if it has none.
// Callers inside UpdatePlayer pass their tx so the event commits with it.
func (s *Service) Record(ctx context.Context, log storage.EventLog, event *model.AuthEvent) error {
	if event.ID == "" {
		event.ID = s.random.UUID()
	}
	if err := log.AppendEvent(ctx, event); err != nil {
		return model.WrapStorage(err)
	}
	return nil
}

// Reserve records event only if every limit has room in the window ending at
// event.At. Counting and recording happen as one step, so concurrent callers
// sharing a key cannot all pass. Returns the index of the first full limit,
// or -1 once the event is recorded.
func (s *Service) Reserve(ctx context.Context, event *model.AuthEvent, limits ...Limit) (int, error) {
	if event.ID == "" {
		event.ID = s.random.UUID()
	}

	windows := make([]storage.WindowLimit, len(limits))
	for i, l := range limits {
		windows[i] = storage.WindowLimit{
			Query: storage.EventQuery{Key: l.Key, Kind: event.Kind, Since: event.At.Add(-l.Window)},
			Max:   l.Max,
		}
	}

	full, err := s.storage.ReserveEvent(ctx, event, windows)
	if err != nil {
		return 0, model.WrapStorage(err)
	}
	if full >= 0 {
		s.logger.Info("event window full",
			slog.String("kind", string(event.Kind)),
			slog.String("scope", string(limits[full].Key.Scope)),
			slog.Int("max", limits[full].Max),
		)
	}
	return full, nil
}

// Release drops an event recorded by Reserve whose operation did not complete
func (s *Service) Release(ctx context.Context, event *model.AuthEvent) error {
	if err := s.storage.DeleteEvent(ctx, event); err != nil {
		return model.WrapStorage(err)
	}
	return nil
}

// CountInWindow returns the number of events of kind for key with At >= now - window.
// An empty history counts as zero.
func (s *Service) CountInWindow(ctx context.Context, key model.EventKey, kind model.AuthEventKind, window time.Duration, now time.Time) (int, error) {
	n, err := s.storage.CountEvents(ctx, storage.EventQuery{
		Key:   key,
		Kind:  kind,
		Since: now.Add(-window),
	})
	if err != nil {
		return 0, model.WrapStorage(err)
	}
	return n, nil
}

// DistinctDevices returns the sorted set of device ids the player logged in
// from inside the window, as seen by log
func (s *Service) DistinctDevices(ctx context.Context, log storage.EventLog, playerID model.PlayerID, window time.Duration, now time.Time) ([]string, error) {
	events, err := log.ListEvents(ctx, storage.EventQuery{
		Key:   model.EventKey{Scope: model.ScopePlayer, Value: string(playerID)},
		Kind:  model.AuthEventLogin,
		Since: now.Add(-window),
	})
	if err != nil {
		return nil, model.WrapStorage(err)
	}

	seen := make(map[string]struct{})
	devices := []string{}
	for _, e := range events {
		if e.DeviceID == "" {
			continue
		}
		if _, ok := seen[e.DeviceID]; ok {
			continue
		}
		seen[e.DeviceID] = struct{}{}
		devices = append(devices, e.DeviceID)
	}
	sort.Strings(devices)
	return devices, nil
}

// Prune deletes events older than the retention window and returns how many were removed
func (s *Service) Prune(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.retention)
	removed, err := s.storage.PruneEvents(ctx, cutoff)
	if err != nil {
		return 0, model.WrapStorage(err)
	}
	if removed > 0 {
		s.logger.Info("pruned auth events",
			slog.Int("removed", removed),
			slog.Time("cutoff", cutoff),
		)
	}
	return removed, nil
}
