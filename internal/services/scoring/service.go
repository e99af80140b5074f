package scoring

import (
	"context"
	"log/slog"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/dependencies/clock"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/dependencies/random"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage"
)

// ChartSource resolves chart reference data
type ChartSource interface {
	Chart(key model.ChartKey) (*model.Chart, error)
}

// Config holds configuration for the scoring ledger
type Config struct {
	RecentCapacity int
}

// DefaultConfig returns default scoring configuration
func DefaultConfig() Config {
	return Config{
		RecentCapacity: 30,
	}
}

// SubmitRequest is one play result submitted by a client
type SubmitRequest struct {
	// SubmissionID identifies the submission across client retries.
	// If empty a fresh id is assigned and the submission is never deduplicated.
	SubmissionID string
	Chart        model.ChartKey
	Result       model.PlayResult
}

// SubmitResult describes the outcome of a submission
type SubmitResult struct {
	SubmissionID string         `json:"submission_id"`
	Chart        model.ChartKey `json:"-"`
	Rating       float64        `json:"rating"`
	Improved     bool           `json:"improved"`
	Replayed     bool           `json:"replayed"`
}

// Service maintains the best-score table and recent-play ring
type Service struct {
	storage storage.Storage
	charts  ChartSource
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger

	recentCapacity int
}

// New creates a new scoring Service
func New(storage storage.Storage, charts ChartSource, clock clock.Clock, random random.Random, cfg Config, logger *slog.Logger) *Service {
	if cfg.RecentCapacity <= 0 {
		cfg.RecentCapacity = DefaultConfig().RecentCapacity
	}
	return &Service{
		storage:        storage,
		charts:         charts,
		clock:          clock,
		random:         random,
		logger:         logger.With(slog.String("component", "scoring")),
		recentCapacity: cfg.RecentCapacity,
	}
}

// Submit records a play. The best entry for the chart is replaced only by a
// strictly greater score; the recent ring always receives the play. Replaying a
// known submission id returns the originally computed rating without writing.
func (s *Service) Submit(ctx context.Context, playerID model.PlayerID, req SubmitRequest) (*SubmitResult, error) {
	if req.Result.Score < 0 || !req.Chart.Difficulty.Valid() {
		return nil, model.ErrInvalidArgument.WithMessage("invalid score or difficulty")
	}
	chart, err := s.charts.Chart(req.Chart)
	if err != nil {
		return nil, err
	}

	subID := req.SubmissionID
	if subID == "" {
		subID = s.random.UUID()
	}

	var result *SubmitResult
	err = s.storage.UpdatePlayer(ctx, playerID, func(tx storage.Tx) error {
		prior, err := tx.Submission(ctx, subID)
		if err != nil {
			return err
		}
		if prior != nil {
			result = &SubmitResult{
				SubmissionID: prior.ID,
				Chart:        prior.Chart,
				Rating:       prior.Rating,
				Improved:     prior.Improved,
				Replayed:     true,
			}
			return nil
		}

		now := s.clock.Now()
		rating := Rating(req.Result.Score, chart.Constant)

		best, err := tx.BestScore(ctx, req.Chart)
		if err != nil {
			return err
		}
		improved := best == nil || req.Result.Score > best.Score
		if improved {
			err := tx.SaveBestScore(ctx, &model.BestScore{
				PlayerID:   playerID,
				Chart:      req.Chart,
				Score:      req.Result.Score,
				Judgements: req.Result.Judgements,
				ClearType:  req.Result.ClearType,
				Rating:     rating,
				AchievedAt: now,
			})
			if err != nil {
				return err
			}
		}

		err = tx.PushRecentPlay(ctx, &model.RecentPlay{
			SubmissionID: subID,
			PlayerID:     playerID,
			Chart:        req.Chart,
			Score:        req.Result.Score,
			Judgements:   req.Result.Judgements,
			ClearType:    req.Result.ClearType,
			Speed:        req.Result.Speed,
			Rating:       rating,
			PlayedAt:     now,
		}, s.recentCapacity)
		if err != nil {
			return err
		}

		err = tx.SaveSubmission(ctx, &model.Submission{
			ID:          subID,
			PlayerID:    playerID,
			Chart:       req.Chart,
			Rating:      rating,
			Improved:    improved,
			ProcessedAt: now,
		})
		if err != nil {
			return err
		}

		result = &SubmitResult{
			SubmissionID: subID,
			Chart:        req.Chart,
			Rating:       rating,
			Improved:     improved,
		}
		return nil
	})
	if err != nil {
		return nil, model.WrapStorage(err)
	}

	s.logger.Info("score submitted",
		slog.String("player_id", string(playerID)),
		slog.String("chart", req.Chart.String()),
		slog.Int("score", req.Result.Score),
		slog.Float64("rating", result.Rating),
		slog.Bool("improved", result.Improved),
		slog.Bool("replayed", result.Replayed),
	)
	return result, nil
}

// BestScores returns the player's best entries, highest rating first
func (s *Service) BestScores(ctx context.Context, playerID model.PlayerID, limit int) ([]model.BestScore, error) {
	if _, err := s.storage.GetPlayer(ctx, playerID); err != nil {
		return nil, model.WrapStorage(err)
	}
	scores, err := s.storage.ListBestScores(ctx, playerID, limit)
	if err != nil {
		return nil, model.WrapStorage(err)
	}
	return scores, nil
}

// RecentPlays returns the player's recent plays, newest first
func (s *Service) RecentPlays(ctx context.Context, playerID model.PlayerID, limit int) ([]model.RecentPlay, error) {
	if _, err := s.storage.GetPlayer(ctx, playerID); err != nil {
		return nil, model.WrapStorage(err)
	}
	plays, err := s.storage.ListRecentPlays(ctx, playerID, limit)
	if err != nil {
		return nil, model.WrapStorage(err)
	}
	return plays, nil
}
