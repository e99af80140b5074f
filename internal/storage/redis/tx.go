package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage"
)

type recentPush struct {
	play     model.RecentPlay
	capacity int
}

// tx stages writes in memory while the player lock is held; commit flushes
// them through one MULTI/EXEC pipeline.
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

	data, err := t.s.client.HGet(ctx, bestKey(t.playerID), chart.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var best model.BestScore
	if err := json.Unmarshal(data, &best); err != nil {
		return nil, err
	}
	return &best, nil
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
	ring, err := t.s.recentPlays(ctx, t.playerID, 0)
	if err != nil {
		return nil, err
	}
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

	data, err := t.s.client.Get(ctx, submissionKey(t.playerID, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var sub model.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
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

type encoded struct {
	key  string
	data []byte
}

func (t *tx) commit(ctx context.Context) error {
	id := t.playerID

	// Marshal everything up front so a bad value aborts before anything is sent
	var playerData []byte
	if t.player != nil {
		data, err := json.Marshal(t.player)
		if err != nil {
			return err
		}
		playerData = data
	}

	best := make([]encoded, 0, len(t.best))
	for k, b := range t.best {
		data, err := json.Marshal(b)
		if err != nil {
			return err
		}
		best = append(best, encoded{key: k.String(), data: data})
	}

	pushes := make([][]byte, 0, len(t.pushes))
	for _, p := range t.pushes {
		data, err := json.Marshal(p.play)
		if err != nil {
			return err
		}
		pushes = append(pushes, data)
	}

	subs := make([]encoded, 0, len(t.submissions))
	for subID, sub := range t.submissions {
		data, err := json.Marshal(sub)
		if err != nil {
			return err
		}
		subs = append(subs, encoded{key: submissionKey(id, subID), data: data})
	}

	progress := make([]encoded, 0, len(t.progress))
	for mapID, p := range t.progress {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		progress = append(progress, encoded{key: mapID, data: data})
	}

	events := make([]encoded, 0, len(t.events))
	for i := range t.events {
		data, err := json.Marshal(&t.events[i])
		if err != nil {
			return err
		}
		events = append(events, encoded{data: data})
	}

	_, err := t.s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if playerData != nil {
			pipe.Set(ctx, playerKey(id), playerData, 0)
		}
		for _, b := range best {
			pipe.HSet(ctx, bestKey(id), b.key, b.data)
		}
		for i, data := range pushes {
			pipe.LPush(ctx, recentKey(id), data)
			if c := t.pushes[i].capacity; c > 0 {
				pipe.LTrim(ctx, recentKey(id), 0, int64(c-1))
			}
		}
		for _, sub := range subs {
			pipe.Set(ctx, sub.key, sub.data, 0)
		}
		for _, p := range progress {
			pipe.HSet(ctx, progressKey(id), p.key, p.data)
		}
		for i, e := range events {
			addEvent(ctx, pipe, &t.events[i], e.data)
		}
		return nil
	})
	return err
}
