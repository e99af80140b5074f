package storage

import (
	"context"
	"time"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
)

// Storage defines the interface for data persistence
type Storage interface {
	// UpdatePlayer runs fn against a serialised view of one player's rows.
	// Writes made through tx are committed only if fn returns nil; concurrent
	// UpdatePlayer calls for the same player never interleave.
	// Returns model.ErrPlayerNotFound if the player does not exist.
	UpdatePlayer(ctx context.Context, id model.PlayerID, fn func(tx Tx) error) error

	// Player operations
	CreatePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	GetPlayerByName(ctx context.Context, name string) (*model.Player, error)
	GetPlayerByEmail(ctx context.Context, email string) (*model.Player, error)

	// Session operations
	SaveSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, token string) (*model.Session, error)
	DeleteSession(ctx context.Context, token string) error

	// Auth event log operations
	EventLog
	CountEvents(ctx context.Context, q EventQuery) (int, error)
	PruneEvents(ctx context.Context, before time.Time) (int, error)
	// ReserveEvent appends event only if every limit still has room. The
	// check and the append are atomic with respect to other ReserveEvent
	// calls sharing a limit key. Returns the index of the first full limit,
	// or -1 once the event is stored.
	ReserveEvent(ctx context.Context, event *model.AuthEvent, limits []WindowLimit) (int, error)
	// DeleteEvent removes an appended event; unknown events are ignored
	DeleteEvent(ctx context.Context, event *model.AuthEvent) error

	// Ledger queries
	ListBestScores(ctx context.Context, id model.PlayerID, limit int) ([]model.BestScore, error)
	ListRecentPlays(ctx context.Context, id model.PlayerID, limit int) ([]model.RecentPlay, error)
	// GetMapProgress returns nil, nil when the player has never entered the map
	GetMapProgress(ctx context.Context, id model.PlayerID, mapID string) (*model.MapProgress, error)

	Close() error
}

// Tx is the view of a single player's rows inside UpdatePlayer.
// Reads observe the tx's own uncommitted writes.
type Tx interface {
	Player(ctx context.Context) (*model.Player, error)
	SavePlayer(ctx context.Context, player *model.Player) error

	// BestScore returns nil, nil when the player has no entry for the chart
	BestScore(ctx context.Context, chart model.ChartKey) (*model.BestScore, error)
	SaveBestScore(ctx context.Context, best *model.BestScore) error

	// PushRecentPlay prepends play and evicts the oldest entries beyond capacity
	PushRecentPlay(ctx context.Context, play *model.RecentPlay, capacity int) error
	RecentPlays(ctx context.Context, limit int) ([]model.RecentPlay, error)

	// BestScores returns the player's top entries, highest rating first.
	// A limit of 0 returns all of them.
	BestScores(ctx context.Context, limit int) ([]model.BestScore, error)

	// Submission returns nil, nil for an unknown submission id.
	// Submission records are permanent on every backend so a replayed
	// submission is recognised no matter how late it arrives.
	Submission(ctx context.Context, id string) (*model.Submission, error)
	SaveSubmission(ctx context.Context, sub *model.Submission) error

	// MapProgress returns nil, nil when the player has never entered the map
	MapProgress(ctx context.Context, mapID string) (*model.MapProgress, error)
	SaveMapProgress(ctx context.Context, progress *model.MapProgress) error

	// Events appended through the tx are committed with the rest of its
	// writes and are visible to its own ListEvents.
	EventLog
}

// EventLog is the append-only auth event log. Both Storage and Tx implement
// it so callers inside UpdatePlayer stay on the tx's connection.
type EventLog interface {
	AppendEvent(ctx context.Context, event *model.AuthEvent) error
	ListEvents(ctx context.Context, q EventQuery) ([]model.AuthEvent, error)
}

// WindowLimit caps how many events may match Query
type WindowLimit struct {
	Query EventQuery
	Max   int
}

// EventQuery selects auth events of one kind for one key since a point in time
type EventQuery struct {
	Key   model.EventKey
	Kind  model.AuthEventKind
	Since time.Time // inclusive
}

// Matches reports whether event falls inside the query
func (q EventQuery) Matches(event *model.AuthEvent) bool {
	return event.Kind == q.Kind &&
		event.KeyValue(q.Key.Scope) == q.Key.Value &&
		!event.At.Before(q.Since)
}
