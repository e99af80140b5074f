package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
)

// ErrLockTimeout is returned when another operation holds the player lock for too long
var ErrLockTimeout = errors.New("timed out waiting for player lock")

// releaseScript deletes the lock only if it is still owned by the caller
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// lockPlayer acquires the per-player lock, waiting up to LockWait.
// The returned func releases it.
func (s *Storage) lockPlayer(ctx context.Context, id model.PlayerID) (func(), error) {
	key := playerLockKey(id)
	token := uuid.NewString()
	deadline := time.Now().Add(s.cfg.LockWait)

	for {
		ok, err := s.client.SetNX(ctx, key, token, s.cfg.LockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				// Released with a fresh context so a cancelled request still unlocks
				_ = releaseScript.Run(context.Background(), s.client, []string{key}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.LockRetryInterval):
		}
	}
}
