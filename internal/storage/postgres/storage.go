package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage"
)

// DBTX is satisfied by both the pool and a transaction
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Storage is a Postgres-backed implementation of the storage interface
type Storage struct {
	pool *pgxpool.Pool
}

// New creates a pgx pool from cfg and verifies the connection
func New(ctx context.Context, cfg Config) (*Storage, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Storage{pool: pool}, nil
}

// NewWithPool wraps an existing pool
func NewWithPool(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

// Close closes the pool
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// UpdatePlayer runs fn inside a transaction that holds the player row lock
// (SELECT ... FOR UPDATE) until commit. Everything fn does through tx runs on
// that transaction's connection, so fn never waits on the pool.
func (s *Storage) UpdatePlayer(ctx context.Context, id model.PlayerID, fn func(tx storage.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := selectPlayer(ctx, tx, "WHERE id = $1 FOR UPDATE", id); err != nil {
		return err
	}

	if err := fn(&txView{tx: tx, playerID: id}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Player operations

const playerColumns = `id, name, email, password_hash, ban_reason, ban_until, ban_offenses,
	stamina, stamina_full_at, bonus, bonus_full_at, current_map, rating, inventory, created_at, updated_at`

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO players (`+playerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		playerArgs(player)...,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "players_name_key":
				return model.ErrNameTaken
			case "players_email_key":
				return model.ErrEmailTaken
			}
		}
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	return selectPlayer(ctx, s.pool, "WHERE id = $1", id)
}

func (s *Storage) GetPlayerByName(ctx context.Context, name string) (*model.Player, error) {
	return selectPlayer(ctx, s.pool, "WHERE name = $1", name)
}

func (s *Storage) GetPlayerByEmail(ctx context.Context, email string) (*model.Player, error) {
	return selectPlayer(ctx, s.pool, "WHERE email = $1", email)
}

func playerArgs(p *model.Player) []any {
	inventory := p.Inventory
	if inventory == nil {
		inventory = map[string]int{}
	}
	var email *string
	if p.Email != "" {
		email = &p.Email
	}
	return []any{
		string(p.ID), p.Name, email, p.PasswordHash,
		p.Ban.Reason, nullTime(p.Ban.Until), p.Ban.Offenses,
		p.Stamina.Value, nullTime(p.Stamina.FullAt),
		p.Bonus.Value, nullTime(p.Bonus.FullAt),
		p.CurrentMap, p.Rating, inventory,
		p.CreatedAt, p.UpdatedAt,
	}
}

func selectPlayer(ctx context.Context, db DBTX, where string, arg any) (*model.Player, error) {
	row := db.QueryRow(ctx, `SELECT `+playerColumns+` FROM players `+where, arg)

	var (
		p                                  model.Player
		id                                 string
		email                              *string
		banUntil, staminaFullAt, bonusFull *time.Time
	)
	err := row.Scan(
		&id, &p.Name, &email, &p.PasswordHash,
		&p.Ban.Reason, &banUntil, &p.Ban.Offenses,
		&p.Stamina.Value, &staminaFullAt,
		&p.Bonus.Value, &bonusFull,
		&p.CurrentMap, &p.Rating, &p.Inventory,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("scan player: %w", err)
	}

	p.ID = model.PlayerID(id)
	if email != nil {
		p.Email = *email
	}
	p.Ban.Until = timeOrZero(banUntil)
	p.Stamina.FullAt = timeOrZero(staminaFullAt)
	p.Bonus.FullAt = timeOrZero(bonusFull)
	return &p, nil
}

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (token, player_id, device_id, address, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (token) DO UPDATE SET
			player_id = EXCLUDED.player_id, device_id = EXCLUDED.device_id,
			address = EXCLUDED.address, issued_at = EXCLUDED.issued_at, expires_at = EXCLUDED.expires_at`,
		session.Token, string(session.PlayerID), session.DeviceID, session.Address,
		session.IssuedAt, nullTime(session.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Storage) GetSession(ctx context.Context, token string) (*model.Session, error) {
	var (
		session   model.Session
		playerID  string
		expiresAt *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT token, player_id, device_id, address, issued_at, expires_at
		FROM sessions WHERE token = $1`, token,
	).Scan(&session.Token, &playerID, &session.DeviceID, &session.Address, &session.IssuedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	session.PlayerID = model.PlayerID(playerID)
	session.ExpiresAt = timeOrZero(expiresAt)
	return &session, nil
}

func (s *Storage) DeleteSession(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

// Auth event operations

func (s *Storage) AppendEvent(ctx context.Context, event *model.AuthEvent) error {
	return insertEvent(ctx, s.pool, event)
}

func (s *Storage) CountEvents(ctx context.Context, q storage.EventQuery) (int, error) {
	return countEvents(ctx, s.pool, q)
}

func (s *Storage) ListEvents(ctx context.Context, q storage.EventQuery) ([]model.AuthEvent, error) {
	return listEvents(ctx, s.pool, q)
}

// ReserveEvent takes a transaction-scoped advisory lock per limit key, in a
// fixed order, so concurrent reservations on a shared key count one at a time.
func (s *Storage) ReserveEvent(ctx context.Context, event *model.AuthEvent, limits []storage.WindowLimit) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lockKeys := make([]string, 0, len(limits))
	for _, l := range limits {
		lockKeys = append(lockKeys, fmt.Sprintf("auth_events:%s:%s:%s", l.Query.Kind, l.Query.Key.Scope, l.Query.Key.Value))
	}
	slices.Sort(lockKeys)
	for _, key := range slices.Compact(lockKeys) {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return 0, fmt.Errorf("lock event window: %w", err)
		}
	}

	for i, l := range limits {
		n, err := countEvents(ctx, tx, l.Query)
		if err != nil {
			return 0, err
		}
		if n >= l.Max {
			return i, nil
		}
	}

	if err := insertEvent(ctx, tx, event); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit reservation: %w", err)
	}
	return -1, nil
}

func (s *Storage) DeleteEvent(ctx context.Context, event *model.AuthEvent) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM auth_events WHERE id = $1`, event.ID); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, db DBTX, event *model.AuthEvent) error {
	_, err := db.Exec(ctx, `
		INSERT INTO auth_events (id, kind, player_id, device_id, address, at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, string(event.Kind), string(event.PlayerID), event.DeviceID, event.Address, event.At,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func scopeColumn(scope model.KeyScope) (string, error) {
	switch scope {
	case model.ScopeDevice:
		return "device_id", nil
	case model.ScopeAddress:
		return "address", nil
	case model.ScopePlayer:
		return "player_id", nil
	}
	return "", fmt.Errorf("unknown event scope %q", scope)
}

func countEvents(ctx context.Context, db DBTX, q storage.EventQuery) (int, error) {
	column, err := scopeColumn(q.Key.Scope)
	if err != nil {
		return 0, err
	}

	var n int
	err = db.QueryRow(ctx,
		`SELECT count(*) FROM auth_events WHERE kind = $1 AND `+column+` = $2 AND at >= $3`,
		string(q.Kind), q.Key.Value, q.Since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func listEvents(ctx context.Context, db DBTX, q storage.EventQuery) ([]model.AuthEvent, error) {
	column, err := scopeColumn(q.Key.Scope)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(ctx, `
		SELECT id, kind, player_id, device_id, address, at FROM auth_events
		WHERE kind = $1 AND `+column+` = $2 AND at >= $3
		ORDER BY at`,
		string(q.Kind), q.Key.Value, q.Since,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.AuthEvent
	for rows.Next() {
		var (
			e              model.AuthEvent
			kind, playerID string
		)
		if err := rows.Scan(&e.ID, &kind, &playerID, &e.DeviceID, &e.Address, &e.At); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = model.AuthEventKind(kind)
		e.PlayerID = model.PlayerID(playerID)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Storage) PruneEvents(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM auth_events WHERE at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Ledger queries

func (s *Storage) ListBestScores(ctx context.Context, id model.PlayerID, limit int) ([]model.BestScore, error) {
	return listBestScores(ctx, s.pool, id, limit)
}

func (s *Storage) ListRecentPlays(ctx context.Context, id model.PlayerID, limit int) ([]model.RecentPlay, error) {
	return listRecentPlays(ctx, s.pool, id, limit)
}

func (s *Storage) GetMapProgress(ctx context.Context, id model.PlayerID, mapID string) (*model.MapProgress, error) {
	return selectMapProgress(ctx, s.pool, id, mapID)
}

// sqlLimit maps "no limit" (<= 0) onto NULL, which LIMIT treats as unbounded
func sqlLimit(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
