package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// UpdatePlayer holds the player's lock key while fn runs and commits its
// staged writes in a single MULTI/EXEC.
func (s *Storage) UpdatePlayer(ctx context.Context, id model.PlayerID, fn func(tx storage.Tx) error) error {
	unlock, err := s.lockPlayer(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	exists, err := s.client.Exists(ctx, playerKey(id)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return model.ErrPlayerNotFound
	}

	t := newTx(s, id)
	if err := fn(t); err != nil {
		return err
	}
	return t.commit(ctx)
}

// Player operations

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	// Claim the unique indexes first so concurrent registrations cannot both win
	ok, err := s.client.SetNX(ctx, nameIndexKey(player.Name), string(player.ID), 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrNameTaken
	}

	if player.Email != "" {
		ok, err = s.client.SetNX(ctx, emailIndexKey(player.Email), string(player.ID), 0).Result()
		if err != nil || !ok {
			s.client.Del(ctx, nameIndexKey(player.Name))
			if err != nil {
				return err
			}
			return model.ErrEmailTaken
		}
	}

	return s.client.Set(ctx, playerKey(player.ID), data, 0).Err()
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	data, err := s.client.Get(ctx, playerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *Storage) GetPlayerByName(ctx context.Context, name string) (*model.Player, error) {
	return s.getPlayerByIndex(ctx, nameIndexKey(name))
}

func (s *Storage) GetPlayerByEmail(ctx context.Context, email string) (*model.Player, error) {
	return s.getPlayerByIndex(ctx, emailIndexKey(email))
}

func (s *Storage) getPlayerByIndex(ctx context.Context, key string) (*model.Player, error) {
	playerIDStr, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	return s.GetPlayer(ctx, model.PlayerID(playerIDStr))
}

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if !session.ExpiresAt.IsZero() {
		ttl = session.ExpiresAt.Sub(session.IssuedAt)
	}
	return s.client.Set(ctx, sessionKey(session.Token), data, ttl).Err()
}

func (s *Storage) GetSession(ctx context.Context, token string) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Storage) DeleteSession(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKey(token)).Err()
}

// Auth event operations
//
// Each event is written to one sorted set per (kind, key) it belongs to, scored
// by unix millis, so window counts are a single ZCOUNT.

func (s *Storage) AppendEvent(ctx context.Context, event *model.AuthEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	addEvent(ctx, pipe, event, data)
	_, err = pipe.Exec(ctx)
	return err
}

func addEvent(ctx context.Context, pipe redis.Pipeliner, event *model.AuthEvent, data []byte) {
	score := float64(event.At.UnixMilli())
	for _, key := range event.Keys() {
		windowKey := eventWindowKey(event.Kind, key)
		pipe.ZAdd(ctx, windowKey, redis.Z{Score: score, Member: data})
		pipe.SAdd(ctx, eventWindowsIndexKey(), windowKey)
	}
}

// reserveScript counts each limit window and adds the event to its own
// windows only when every count is below its max.
//
// KEYS: limit windows (n), event windows, then the window index.
// ARGV: n, score, member, then n (since, max) pairs.
var reserveScript = redis.NewScript(`
local n = tonumber(ARGV[1])
for i = 1, n do
	local c = redis.call("ZCOUNT", KEYS[i], ARGV[2 + 2 * i], "+inf")
	if c >= tonumber(ARGV[3 + 2 * i]) then
		return i - 1
	end
end
for i = n + 1, #KEYS - 1 do
	redis.call("ZADD", KEYS[i], ARGV[2], ARGV[3])
	redis.call("SADD", KEYS[#KEYS], KEYS[i])
end
return -1
`)

func (s *Storage) ReserveEvent(ctx context.Context, event *model.AuthEvent, limits []storage.WindowLimit) (int, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(limits)+3)
	args := []any{len(limits), event.At.UnixMilli(), data}
	for _, l := range limits {
		keys = append(keys, eventWindowKey(l.Query.Kind, l.Query.Key))
		args = append(args, sinceBound(l.Query.Since), l.Max)
	}
	for _, key := range event.Keys() {
		keys = append(keys, eventWindowKey(event.Kind, key))
	}
	keys = append(keys, eventWindowsIndexKey())

	n, err := reserveScript.Run(ctx, s.client, keys, args...).Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Storage) DeleteEvent(ctx context.Context, event *model.AuthEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	for _, key := range event.Keys() {
		pipe.ZRem(ctx, eventWindowKey(event.Kind, key), data)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) CountEvents(ctx context.Context, q storage.EventQuery) (int, error) {
	n, err := s.client.ZCount(ctx, eventWindowKey(q.Kind, q.Key), sinceBound(q.Since), "+inf").Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Storage) ListEvents(ctx context.Context, q storage.EventQuery) ([]model.AuthEvent, error) {
	members, err := s.client.ZRangeByScore(ctx, eventWindowKey(q.Kind, q.Key), &redis.ZRangeBy{
		Min: sinceBound(q.Since),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	events := make([]model.AuthEvent, 0, len(members))
	for _, m := range members {
		var e model.AuthEvent
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// PruneEvents removes events older than before and reports how many distinct
// events were dropped. An event indexed under several keys counts once.
func (s *Storage) PruneEvents(ctx context.Context, before time.Time) (int, error) {
	windowKeys, err := s.client.SMembers(ctx, eventWindowsIndexKey()).Result()
	if err != nil {
		return 0, err
	}

	upper := "(" + strconv.FormatInt(before.UnixMilli(), 10)
	removed := make(map[string]struct{})
	for _, key := range windowKeys {
		stale, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: "-inf", Max: upper}).Result()
		if err != nil {
			return 0, err
		}
		for _, m := range stale {
			var e model.AuthEvent
			if err := json.Unmarshal([]byte(m), &e); err == nil {
				removed[e.ID] = struct{}{}
			}
		}
		if err := s.client.ZRemRangeByScore(ctx, key, "-inf", upper).Err(); err != nil {
			return 0, err
		}

		left, err := s.client.ZCard(ctx, key).Result()
		if err != nil {
			return 0, err
		}
		if left == 0 {
			s.client.SRem(ctx, eventWindowsIndexKey(), key)
		}
	}
	return len(removed), nil
}

func sinceBound(since time.Time) string {
	if since.IsZero() {
		return "-inf"
	}
	return strconv.FormatInt(since.UnixMilli(), 10)
}

// Ledger queries

func (s *Storage) ListBestScores(ctx context.Context, id model.PlayerID, limit int) ([]model.BestScore, error) {
	values, err := s.client.HVals(ctx, bestKey(id)).Result()
	if err != nil {
		return nil, err
	}

	scores := make([]model.BestScore, 0, len(values))
	for _, v := range values {
		var b model.BestScore
		if err := json.Unmarshal([]byte(v), &b); err != nil {
			return nil, err
		}
		scores = append(scores, b)
	}

	storage.SortBestScores(scores)
	return storage.Truncate(scores, limit), nil
}

func (s *Storage) ListRecentPlays(ctx context.Context, id model.PlayerID, limit int) ([]model.RecentPlay, error) {
	return s.recentPlays(ctx, id, limit)
}

func (s *Storage) recentPlays(ctx context.Context, id model.PlayerID, limit int) ([]model.RecentPlay, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	values, err := s.client.LRange(ctx, recentKey(id), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	plays := make([]model.RecentPlay, 0, len(values))
	for _, v := range values {
		var p model.RecentPlay
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			return nil, err
		}
		plays = append(plays, p)
	}
	return plays, nil
}

func (s *Storage) GetMapProgress(ctx context.Context, id model.PlayerID, mapID string) (*model.MapProgress, error) {
	data, err := s.client.HGet(ctx, progressKey(id), mapID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var progress model.MapProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}
