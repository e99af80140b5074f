package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage/storagetest"
)

func newMiniStorage(t *testing.T) (*miniredis.Miniredis, *Storage) {
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	return mini, NewWithClient(client, DefaultConfig())
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStorage: func() storage.Storage {
			_, s := newMiniStorage(t)
			return s
		},
	})
}

// Redis-specific behavior

type RedisSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *Storage
	ctx     context.Context
	now     time.Time
}

func TestRedisSuite(t *testing.T) {
	suite.Run(t, new(RedisSuite))
}

func (s *RedisSuite) SetupTest() {
	s.mini, s.storage = newMiniStorage(s.T())
	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *RedisSuite) TearDownTest() {
	_ = s.storage.Close()
}

func (s *RedisSuite) TestSessionExpiresWithTTL() {
	err := s.storage.SaveSession(s.ctx, &model.Session{
		Token:     "tok",
		PlayerID:  "p1",
		IssuedAt:  s.now,
		ExpiresAt: s.now.Add(time.Hour),
	})
	s.Require().NoError(err)
	s.Equal(time.Hour, s.mini.TTL(sessionKey("tok")))

	s.mini.FastForward(time.Hour + time.Second)

	_, err = s.storage.GetSession(s.ctx, "tok")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *RedisSuite) TestSessionWithoutExpiryHasNoTTL() {
	err := s.storage.SaveSession(s.ctx, &model.Session{Token: "tok", PlayerID: "p1", IssuedAt: s.now})
	s.Require().NoError(err)
	s.Zero(s.mini.TTL(sessionKey("tok")))
}

func (s *RedisSuite) TestUpdatePlayerReleasesLock() {
	s.Require().NoError(s.storage.CreatePlayer(s.ctx, &model.Player{ID: "p1", Name: "alice"}))

	err := s.storage.UpdatePlayer(s.ctx, "p1", func(tx storage.Tx) error {
		s.True(s.mini.Exists(playerLockKey("p1")))
		return nil
	})
	s.Require().NoError(err)
	s.False(s.mini.Exists(playerLockKey("p1")))
}

func (s *RedisSuite) TestUpdatePlayerTimesOutOnHeldLock() {
	s.Require().NoError(s.storage.CreatePlayer(s.ctx, &model.Player{ID: "p1", Name: "alice"}))
	s.Require().NoError(s.mini.Set(playerLockKey("p1"), "someone-else"))

	s.storage.cfg.LockWait = 50 * time.Millisecond
	s.storage.cfg.LockRetryInterval = 10 * time.Millisecond

	err := s.storage.UpdatePlayer(s.ctx, "p1", func(tx storage.Tx) error {
		s.Fail("fn must not run without the lock")
		return nil
	})
	s.ErrorIs(err, ErrLockTimeout)

	// The foreign holder keeps its lock
	val, err := s.mini.Get(playerLockKey("p1"))
	s.Require().NoError(err)
	s.Equal("someone-else", val)
}

func (s *RedisSuite) TestSubmissionRecordsArePermanent() {
	s.Require().NoError(s.storage.CreatePlayer(s.ctx, &model.Player{ID: "p1", Name: "alice"}))

	err := s.storage.UpdatePlayer(s.ctx, "p1", func(tx storage.Tx) error {
		return tx.SaveSubmission(s.ctx, &model.Submission{ID: "sub-1", PlayerID: "p1"})
	})
	s.Require().NoError(err)
	s.Equal(time.Duration(0), s.mini.TTL(submissionKey("p1", "sub-1")))

	s.mini.FastForward(365 * 24 * time.Hour)

	err = s.storage.UpdatePlayer(s.ctx, "p1", func(tx storage.Tx) error {
		sub, err := tx.Submission(s.ctx, "sub-1")
		s.Require().NoError(err)
		s.NotNil(sub, "a replay a year later is still recognised")
		return nil
	})
	s.Require().NoError(err)
}

func (s *RedisSuite) TestPruneDropsEmptyWindows() {
	err := s.storage.AppendEvent(s.ctx, &model.AuthEvent{
		ID:       "e1",
		Kind:     model.AuthEventLogin,
		PlayerID: "p1",
		DeviceID: "dev",
		At:       s.now.Add(-48 * time.Hour),
	})
	s.Require().NoError(err)

	members, err := s.mini.Members(eventWindowsIndexKey())
	s.Require().NoError(err)
	s.Len(members, 2)

	removed, err := s.storage.PruneEvents(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(1, removed)
	s.False(s.mini.Exists(eventWindowsIndexKey()))
}
