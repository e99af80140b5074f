package memory

import (
	"context"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage"
)

type recentPush struct {
	play     model.RecentPlay
	capacity int
}

// tx stages writes until commit; reads fall through to the committed state
type tx struct {
	s        *Storage
	playerID model.PlayerID

	player      *model.Player
	best        map[model.ChartKey]*model.BestScore
	pushes      []recentPush
	submissions map[string]*model.Submission
	progress    map[string]*model.MapProgress
	events      []model.AuthEvent
}

var _ storage.Tx = (*tx)(nil)

func newTx(s *Storage, id model.PlayerID) *tx {
	return &tx{
		s:           s,
		playerID:    id,
		best:        make(map[model.ChartKey]*model.BestScore),
		submissions: make(map[string]*model.Submission),
		progress:    make(map[string]*model.MapProgress),
	}
}

func (t *tx) Player(ctx context.Context) (*model.Player, error) {
	if t.player != nil {
		return t.player.Clone(), nil
	}
	return t.s.GetPlayer(ctx, t.playerID)
}

func (t *tx) SavePlayer(ctx context.Context, player *model.Player) error {
	t.player = player.Clone()
	return nil
}

func (t *tx) BestScore(ctx context.Context, chart model.ChartKey) (*model.BestScore, error) {
	if b, ok := t.best[chart]; ok {
		c := *b
		return &c, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	b, ok := t.s.best[t.playerID][chart]
	if !ok {
		return nil, nil
	}
	c := *b
	return &c, nil
}

func (t *tx) SaveBestScore(ctx context.Context, best *model.BestScore) error {
	c := *best
	t.best[best.Chart] = &c
	return nil
}

func (t *tx) BestScores(ctx context.Context, limit int) ([]model.BestScore, error) {
	committed, err := t.s.ListBestScores(ctx, t.playerID, 0)
	if err != nil {
		return nil, err
	}
	return storage.OverlayBestScores(committed, t.best, limit), nil
}

func (t *tx) PushRecentPlay(ctx context.Context, play *model.RecentPlay, capacity int) error {
	t.pushes = append(t.pushes, recentPush{play: *play, capacity: capacity})
	return nil
}

func (t *tx) RecentPlays(ctx context.Context, limit int) ([]model.RecentPlay, error) {
	t.s.mu.RLock()
	ring := make([]model.RecentPlay, len(t.s.recent[t.playerID]))
	copy(ring, t.s.recent[t.playerID])
	t.s.mu.RUnlock()

	for _, p := range t.pushes {
		ring = storage.PushRing(ring, p.play, p.capacity)
	}
	return storage.Truncate(ring, limit), nil
}

func (t *tx) Submission(ctx context.Context, id string) (*model.Submission, error) {
	if sub, ok := t.submissions[id]; ok {
		c := *sub
		return &c, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	sub, ok := t.s.submissions[t.playerID][id]
	if !ok {
		return nil, nil
	}
	c := *sub
	return &c, nil
}

func (t *tx) SaveSubmission(ctx context.Context, sub *model.Submission) error {
	c := *sub
	t.submissions[sub.ID] = &c
	return nil
}

func (t *tx) MapProgress(ctx context.Context, mapID string) (*model.MapProgress, error) {
	if p, ok := t.progress[mapID]; ok {
		c := *p
		return &c, nil
	}
	return t.s.GetMapProgress(ctx, t.playerID, mapID)
}

func (t *tx) SaveMapProgress(ctx context.Context, progress *model.MapProgress) error {
	c := *progress
	t.progress[progress.MapID] = &c
	return nil
}

func (t *tx) AppendEvent(ctx context.Context, event *model.AuthEvent) error {
	t.events = append(t.events, *event)
	return nil
}

func (t *tx) ListEvents(ctx context.Context, q storage.EventQuery) ([]model.AuthEvent, error) {
	events, err := t.s.ListEvents(ctx, q)
	if err != nil {
		return nil, err
	}
	for i := range t.events {
		if q.Matches(&t.events[i]) {
			events = append(events, t.events[i])
		}
	}
	return events, nil
}

// commit applies all staged writes under the storage write lock
func (t *tx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.player != nil {
		s.players[t.playerID] = t.player
	}

	if len(t.best) > 0 {
		if s.best[t.playerID] == nil {
			s.best[t.playerID] = make(map[model.ChartKey]*model.BestScore)
		}
		for k, b := range t.best {
			s.best[t.playerID][k] = b
		}
	}

	s.events = append(s.events, t.events...)

	for _, p := range t.pushes {
		s.recent[t.playerID] = storage.PushRing(s.recent[t.playerID], p.play, p.capacity)
	}

	if len(t.submissions) > 0 {
		if s.submissions[t.playerID] == nil {
			s.submissions[t.playerID] = make(map[string]*model.Submission)
		}
		for id, sub := range t.submissions {
			s.submissions[t.playerID][id] = sub
		}
	}

	if len(t.progress) > 0 {
		if s.progress[t.playerID] == nil {
			s.progress[t.playerID] = make(map[string]*model.MapProgress)
		}
		for id, p := range t.progress {
			s.progress[t.playerID][id] = p
		}
	}
}
