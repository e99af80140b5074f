package memory

import (
	"context"
	"sync"
	"time"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	players     map[model.PlayerID]*model.Player
	nameIndex   map[string]model.PlayerID
	emailIndex  map[string]model.PlayerID
	sessions    map[string]*model.Session
	events      []model.AuthEvent
	best        map[model.PlayerID]map[model.ChartKey]*model.BestScore
	recent      map[model.PlayerID][]model.RecentPlay
	submissions map[model.PlayerID]map[string]*model.Submission
	progress    map[model.PlayerID]map[string]*model.MapProgress

	locksMu sync.Mutex
	locks   map[model.PlayerID]*sync.Mutex
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:     make(map[model.PlayerID]*model.Player),
		nameIndex:   make(map[string]model.PlayerID),
		emailIndex:  make(map[string]model.PlayerID),
		sessions:    make(map[string]*model.Session),
		best:        make(map[model.PlayerID]map[model.ChartKey]*model.BestScore),
		recent:      make(map[model.PlayerID][]model.RecentPlay),
		submissions: make(map[model.PlayerID]map[string]*model.Submission),
		progress:    make(map[model.PlayerID]map[string]*model.MapProgress),
		locks:       make(map[model.PlayerID]*sync.Mutex),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Close is a no-op for memory storage
func (s *Storage) Close() error {
	return nil
}

func (s *Storage) playerLock(id model.PlayerID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// UpdatePlayer serialises fn per player and applies its staged writes on success
func (s *Storage) UpdatePlayer(ctx context.Context, id model.PlayerID, fn func(tx storage.Tx) error) error {
	l := s.playerLock(id)
	l.Lock()
	defer l.Unlock()

	if _, err := s.GetPlayer(ctx, id); err != nil {
		return err
	}

	t := newTx(s, id)
	if err := fn(t); err != nil {
		return err
	}
	t.commit()
	return nil
}

// Player operations

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nameIndex[player.Name]; ok {
		return model.ErrNameTaken
	}
	if player.Email != "" {
		if _, ok := s.emailIndex[player.Email]; ok {
			return model.ErrEmailTaken
		}
		s.emailIndex[player.Email] = player.ID
	}
	s.nameIndex[player.Name] = player.ID
	s.players[player.ID] = player.Clone()
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return player.Clone(), nil
}

func (s *Storage) GetPlayerByName(ctx context.Context, name string) (*model.Player, error) {
	s.mu.RLock()
	id, ok := s.nameIndex[name]
	s.mu.RUnlock()
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return s.GetPlayer(ctx, id)
}

func (s *Storage) GetPlayerByEmail(ctx context.Context, email string) (*model.Player, error) {
	s.mu.RLock()
	id, ok := s.emailIndex[email]
	s.mu.RUnlock()
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return s.GetPlayer(ctx, id)
}

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *session
	s.sessions[session.Token] = &c
	return nil
}

func (s *Storage) GetSession(ctx context.Context, token string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	c := *session
	return &c, nil
}

func (s *Storage) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

// Auth event operations

func (s *Storage) AppendEvent(ctx context.Context, event *model.AuthEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

func (s *Storage) CountEvents(ctx context.Context, q storage.EventQuery) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countEvents(q), nil
}

// countEvents must be called with s.mu held
func (s *Storage) countEvents(q storage.EventQuery) int {
	count := 0
	for i := range s.events {
		if q.Matches(&s.events[i]) {
			count++
		}
	}
	return count
}

func (s *Storage) ReserveEvent(ctx context.Context, event *model.AuthEvent, limits []storage.WindowLimit) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range limits {
		if s.countEvents(l.Query) >= l.Max {
			return i, nil
		}
	}
	s.events = append(s.events, *event)
	return -1, nil
}

func (s *Storage) DeleteEvent(ctx context.Context, event *model.AuthEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == event.ID {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *Storage) ListEvents(ctx context.Context, q storage.EventQuery) ([]model.AuthEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var events []model.AuthEvent
	for i := range s.events {
		if q.Matches(&s.events[i]) {
			events = append(events, s.events[i])
		}
	}
	return events, nil
}

func (s *Storage) PruneEvents(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	removed := 0
	for _, e := range s.events {
		if e.At.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return removed, nil
}

// Ledger queries

func (s *Storage) ListBestScores(ctx context.Context, id model.PlayerID, limit int) ([]model.BestScore, error) {
	s.mu.RLock()
	scores := make([]model.BestScore, 0, len(s.best[id]))
	for _, b := range s.best[id] {
		scores = append(scores, *b)
	}
	s.mu.RUnlock()

	storage.SortBestScores(scores)
	return storage.Truncate(scores, limit), nil
}

func (s *Storage) ListRecentPlays(ctx context.Context, id model.PlayerID, limit int) ([]model.RecentPlay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ring := storage.Truncate(s.recent[id], limit)
	out := make([]model.RecentPlay, len(ring))
	copy(out, ring)
	return out, nil
}

func (s *Storage) GetMapProgress(ctx context.Context, id model.PlayerID, mapID string) (*model.MapProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[id][mapID]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}
