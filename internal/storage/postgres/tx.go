package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage"
)

// txView writes straight into the surrounding transaction, so reads see
// earlier writes without any staging.
type txView struct {
	tx       pgx.Tx
	playerID model.PlayerID
}

var _ storage.Tx = (*txView)(nil)

func (t *txView) Player(ctx context.Context) (*model.Player, error) {
	return selectPlayer(ctx, t.tx, "WHERE id = $1", t.playerID)
}

func (t *txView) SavePlayer(ctx context.Context, p *model.Player) error {
	inventory := p.Inventory
	if inventory == nil {
		inventory = map[string]int{}
	}
	_, err := t.tx.Exec(ctx, `
		UPDATE players SET
			ban_reason = $2, ban_until = $3, ban_offenses = $4,
			stamina = $5, stamina_full_at = $6, bonus = $7, bonus_full_at = $8,
			current_map = $9, rating = $10, inventory = $11, updated_at = $12
		WHERE id = $1`,
		string(t.playerID),
		p.Ban.Reason, nullTime(p.Ban.Until), p.Ban.Offenses,
		p.Stamina.Value, nullTime(p.Stamina.FullAt),
		p.Bonus.Value, nullTime(p.Bonus.FullAt),
		p.CurrentMap, p.Rating, inventory, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	return nil
}

func (t *txView) BestScore(ctx context.Context, chart model.ChartKey) (*model.BestScore, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+bestColumns+` FROM best_scores
		WHERE player_id = $1 AND song_id = $2 AND difficulty = $3`,
		string(t.playerID), chart.SongID, int(chart.Difficulty),
	)
	if err != nil {
		return nil, fmt.Errorf("get best score: %w", err)
	}
	scores, err := scanBestScores(rows)
	if err != nil || len(scores) == 0 {
		return nil, err
	}
	return &scores[0], nil
}

func (t *txView) SaveBestScore(ctx context.Context, b *model.BestScore) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO best_scores (`+bestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (player_id, song_id, difficulty) DO UPDATE SET
			score = EXCLUDED.score, shiny_pure = EXCLUDED.shiny_pure, pure = EXCLUDED.pure,
			far = EXCLUDED.far, lost = EXCLUDED.lost, clear_type = EXCLUDED.clear_type,
			rating = EXCLUDED.rating, achieved_at = EXCLUDED.achieved_at`,
		string(t.playerID), b.Chart.SongID, int(b.Chart.Difficulty), b.Score,
		b.Judgements.ShinyPure, b.Judgements.Pure, b.Judgements.Far, b.Judgements.Lost,
		b.ClearType, b.Rating, b.AchievedAt,
	)
	if err != nil {
		return fmt.Errorf("save best score: %w", err)
	}
	return nil
}

func (t *txView) BestScores(ctx context.Context, limit int) ([]model.BestScore, error) {
	return listBestScores(ctx, t.tx, t.playerID, limit)
}

func (t *txView) PushRecentPlay(ctx context.Context, p *model.RecentPlay, capacity int) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO recent_plays (player_id, submission_id, song_id, difficulty, score,
			shiny_pure, pure, far, lost, clear_type, speed, rating, played_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		string(t.playerID), p.SubmissionID, p.Chart.SongID, int(p.Chart.Difficulty), p.Score,
		p.Judgements.ShinyPure, p.Judgements.Pure, p.Judgements.Far, p.Judgements.Lost,
		p.ClearType, p.Speed, p.Rating, p.PlayedAt,
	)
	if err != nil {
		return fmt.Errorf("push recent play: %w", err)
	}
	if capacity <= 0 {
		return nil
	}

	_, err = t.tx.Exec(ctx, `
		DELETE FROM recent_plays WHERE player_id = $1 AND seq NOT IN (
			SELECT seq FROM recent_plays WHERE player_id = $1 ORDER BY seq DESC LIMIT $2
		)`,
		string(t.playerID), capacity,
	)
	if err != nil {
		return fmt.Errorf("trim recent plays: %w", err)
	}
	return nil
}

func (t *txView) RecentPlays(ctx context.Context, limit int) ([]model.RecentPlay, error) {
	return listRecentPlays(ctx, t.tx, t.playerID, limit)
}

func (t *txView) Submission(ctx context.Context, id string) (*model.Submission, error) {
	var (
		sub        model.Submission
		playerID   string
		difficulty int
	)
	err := t.tx.QueryRow(ctx, `
		SELECT player_id, id, song_id, difficulty, rating, improved, processed_at
		FROM submissions WHERE player_id = $1 AND id = $2`,
		string(t.playerID), id,
	).Scan(&playerID, &sub.ID, &sub.Chart.SongID, &difficulty, &sub.Rating, &sub.Improved, &sub.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	sub.PlayerID = model.PlayerID(playerID)
	sub.Chart.Difficulty = model.Difficulty(difficulty)
	return &sub, nil
}

func (t *txView) SaveSubmission(ctx context.Context, sub *model.Submission) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO submissions (player_id, id, song_id, difficulty, rating, improved, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (player_id, id) DO NOTHING`,
		string(t.playerID), sub.ID, sub.Chart.SongID, int(sub.Chart.Difficulty),
		sub.Rating, sub.Improved, sub.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

func (t *txView) MapProgress(ctx context.Context, mapID string) (*model.MapProgress, error) {
	return selectMapProgress(ctx, t.tx, t.playerID, mapID)
}

func (t *txView) SaveMapProgress(ctx context.Context, p *model.MapProgress) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO map_progress (player_id, map_id, position, capture, cleared, locked, locked_until, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (player_id, map_id) DO UPDATE SET
			position = EXCLUDED.position, capture = EXCLUDED.capture, cleared = EXCLUDED.cleared,
			locked = EXCLUDED.locked, locked_until = EXCLUDED.locked_until, updated_at = EXCLUDED.updated_at`,
		string(t.playerID), p.MapID, p.Position, p.Capture, p.Cleared, p.Locked,
		nullTime(p.LockedUntil), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save map progress: %w", err)
	}
	return nil
}

func (t *txView) AppendEvent(ctx context.Context, event *model.AuthEvent) error {
	return insertEvent(ctx, t.tx, event)
}

func (t *txView) ListEvents(ctx context.Context, q storage.EventQuery) ([]model.AuthEvent, error) {
	return listEvents(ctx, t.tx, q)
}

// Shared row helpers

const bestColumns = `player_id, song_id, difficulty, score, shiny_pure, pure, far, lost, clear_type, rating, achieved_at`

func listBestScores(ctx context.Context, db DBTX, id model.PlayerID, limit int) ([]model.BestScore, error) {
	rows, err := db.Query(ctx, `SELECT `+bestColumns+` FROM best_scores
		WHERE player_id = $1
		ORDER BY rating DESC, achieved_at DESC
		LIMIT $2`,
		string(id), sqlLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list best scores: %w", err)
	}
	return scanBestScores(rows)
}

func scanBestScores(rows pgx.Rows) ([]model.BestScore, error) {
	defer rows.Close()

	var scores []model.BestScore
	for rows.Next() {
		var (
			b          model.BestScore
			playerID   string
			difficulty int
		)
		err := rows.Scan(&playerID, &b.Chart.SongID, &difficulty, &b.Score,
			&b.Judgements.ShinyPure, &b.Judgements.Pure, &b.Judgements.Far, &b.Judgements.Lost,
			&b.ClearType, &b.Rating, &b.AchievedAt)
		if err != nil {
			return nil, fmt.Errorf("scan best score: %w", err)
		}
		b.PlayerID = model.PlayerID(playerID)
		b.Chart.Difficulty = model.Difficulty(difficulty)
		scores = append(scores, b)
	}
	return scores, rows.Err()
}

func listRecentPlays(ctx context.Context, db DBTX, id model.PlayerID, limit int) ([]model.RecentPlay, error) {
	rows, err := db.Query(ctx, `
		SELECT player_id, submission_id, song_id, difficulty, score,
			shiny_pure, pure, far, lost, clear_type, speed, rating, played_at
		FROM recent_plays WHERE player_id = $1
		ORDER BY seq DESC
		LIMIT $2`,
		string(id), sqlLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list recent plays: %w", err)
	}
	defer rows.Close()

	var plays []model.RecentPlay
	for rows.Next() {
		var (
			p          model.RecentPlay
			playerID   string
			difficulty int
		)
		err := rows.Scan(&playerID, &p.SubmissionID, &p.Chart.SongID, &difficulty, &p.Score,
			&p.Judgements.ShinyPure, &p.Judgements.Pure, &p.Judgements.Far, &p.Judgements.Lost,
			&p.ClearType, &p.Speed, &p.Rating, &p.PlayedAt)
		if err != nil {
			return nil, fmt.Errorf("scan recent play: %w", err)
		}
		p.PlayerID = model.PlayerID(playerID)
		p.Chart.Difficulty = model.Difficulty(difficulty)
		plays = append(plays, p)
	}
	return plays, rows.Err()
}

func selectMapProgress(ctx context.Context, db DBTX, id model.PlayerID, mapID string) (*model.MapProgress, error) {
	var (
		p           model.MapProgress
		playerID    string
		lockedUntil *time.Time
	)
	err := db.QueryRow(ctx, `
		SELECT player_id, map_id, position, capture, cleared, locked, locked_until, updated_at
		FROM map_progress WHERE player_id = $1 AND map_id = $2`,
		string(id), mapID,
	).Scan(&playerID, &p.MapID, &p.Position, &p.Capture, &p.Cleared, &p.Locked, &lockedUntil, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get map progress: %w", err)
	}
	p.PlayerID = model.PlayerID(playerID)
	p.LockedUntil = timeOrZero(lockedUntil)
	return &p, nil
}
