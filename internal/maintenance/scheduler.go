package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const pruneTimeout = time.Minute

// Pruner deletes auth events that have aged out of every window
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}

// Sweeper drops notification hubs that no longer have open streams
type Sweeper interface {
	SweepIdle() int
}

// Scheduler runs periodic housekeeping jobs
type Scheduler struct {
	sched  gocron.Scheduler
	logger *slog.Logger
}

// New creates a scheduler that prunes the auth event log every interval,
// starting immediately
func New(pruner Pruner, interval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("prune interval must be positive, got %s", interval)
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	s := &Scheduler{
		sched:  sched,
		logger: logger.With(slog.String("component", "maintenance")),
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.prune, pruner),
		gocron.WithName("prune-auth-events"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule prune job: %w", err)
	}
	return s, nil
}

func (s *Scheduler) prune(pruner Pruner) {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()

	removed, err := pruner.Prune(ctx)
	if err != nil {
		s.logger.Error("prune auth events failed", slog.String("error", err.Error()))
		return
	}
	if removed > 0 {
		s.logger.Info("pruned auth events", slog.Int("removed", removed))
	}
}

// AddSweep schedules sweeper to run every interval
func (s *Scheduler) AddSweep(sweeper Sweeper, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", interval)
	}
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.sweep, sweeper),
		gocron.WithName("sweep-notification-hubs"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule sweep job: %w", err)
	}
	return nil
}

func (s *Scheduler) sweep(sweeper Sweeper) {
	if removed := sweeper.SweepIdle(); removed > 0 {
		s.logger.Debug("swept idle notification hubs", slog.Int("removed", removed))
	}
}

// Start begins running scheduled jobs in the background
func (s *Scheduler) Start() {
	s.sched.Start()
}

// Shutdown stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
