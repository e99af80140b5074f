// Package storagetest holds the behavioral suite every storage backend must pass.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage"
)

// Suite runs the shared storage contract against a backend.
// NewStorage is called before every test and must return an empty store.
type Suite struct {
	suite.Suite
	NewStorage func() storage.Storage

	Storage storage.Storage
	Ctx     context.Context
	Now     time.Time
}

func (s *Suite) SetupTest() {
	s.Storage = s.NewStorage()
	s.Ctx = context.Background()
	s.Now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *Suite) TearDownTest() {
	if s.Storage != nil {
		_ = s.Storage.Close()
	}
}

func (s *Suite) createPlayer(id model.PlayerID, name string) *model.Player {
	player := &model.Player{
		ID:           id,
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
		Stamina:      model.StaminaPool{Value: 12},
		Inventory:    map[string]int{},
		CreatedAt:    s.Now,
		UpdatedAt:    s.Now,
	}
	s.Require().NoError(s.Storage.CreatePlayer(s.Ctx, player))
	return player
}

// Player tests

func (s *Suite) TestCreateAndGetPlayer() {
	s.createPlayer("p1", "alice")

	byID, err := s.Storage.GetPlayer(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal("alice", byID.Name)
	s.Equal(12, byID.Stamina.Value)

	byName, err := s.Storage.GetPlayerByName(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p1"), byName.ID)

	byEmail, err := s.Storage.GetPlayerByEmail(s.Ctx, "alice@example.com")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p1"), byEmail.ID)
}

func (s *Suite) TestGetPlayerNotFound() {
	_, err := s.Storage.GetPlayer(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrPlayerNotFound)

	_, err = s.Storage.GetPlayerByName(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrPlayerNotFound)

	_, err = s.Storage.GetPlayerByEmail(s.Ctx, "missing@example.com")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestCreatePlayerDuplicateName() {
	s.createPlayer("p1", "alice")

	err := s.Storage.CreatePlayer(s.Ctx, &model.Player{ID: "p2", Name: "alice", Email: "other@example.com"})
	s.ErrorIs(err, model.ErrNameTaken)
}

func (s *Suite) TestCreatePlayerDuplicateEmail() {
	s.createPlayer("p1", "alice")

	err := s.Storage.CreatePlayer(s.Ctx, &model.Player{ID: "p2", Name: "bob", Email: "alice@example.com"})
	s.ErrorIs(err, model.ErrEmailTaken)

	// The failed attempt must not have claimed the name
	s.createPlayer("p3", "bob")
}

// UpdatePlayer tests

func (s *Suite) TestUpdatePlayerCommits() {
	s.createPlayer("p1", "alice")

	err := s.Storage.UpdatePlayer(s.Ctx, "p1", func(tx storage.Tx) error {
		p, err := tx.Player(s.Ctx)
		if err != nil {
			return err
		}
		p.Stamina = model.StaminaPool{Value: 10, FullAt: s.Now.Add(time.Hour)}
		p.Credit("fragment", 50)
		return tx.SavePlayer(s.Ctx, p)
	})
	s.Require().NoError(err)

	p, err := s.Storage.GetPlayer(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal(10, p.Stamina.Value)
	s.True(p.Stamina.FullAt.Equal(s.Now.Add(time.Hour)))
	s.Equal(50, p.Inventory["fragment"])
}

func (s *Suite) TestUpdatePlayerRollsBackOnError() {
	s.createPlayer("p1", "alice")
	boom := errors.New("boom")

	err := s.Storage.UpdatePlayer(s.Ctx, "p1", func(tx storage.Tx) error {
		p, _ := tx.Player(s.Ctx)
		p.Stamina.Value = 0
		_ = tx.SavePlayer(s.Ctx, p)
		_ = tx.SaveBestScore(s.Ctx, &model.BestScore{PlayerID: "p1", Chart: model.ChartKey{SongID: "s"}, Score: 1})
		_ = tx.PushRecentPlay(s.Ctx, &model.RecentPlay{PlayerID: "p1", SubmissionID: "x"}, 30)
		return boom
	})
	s.ErrorIs(err, boom)

	p, err := s.Storage.GetPlayer(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal(12, p.Stamina.Value)

	best, err := s.Storage.ListBestScores(s.Ctx, "p1", 0)
	s.Require().NoError(err)
	s.Empty(best)

	recent, err := s.Storage.ListRecentPlays(s.Ctx, "p1", 0)
	s.Require().NoError(err)
	s.Empty(recent)
}

func (s *Suite) TestUpdatePlayerNotFound() {
	called := false
	err := s.Storage.UpdatePlayer(s.Ctx, "missing", func(tx storage.Tx) error {
		called = true
		return nil
	})
	s.ErrorIs(err, model.ErrPlayerNotFound)
	s.False(called)
}

func (s *Suite) TestTxReadsOwnWrites() {
	s.createPlayer("p1", "alice")
	chart := model.ChartKey{SongID: "grievous", Difficulty: model.DifficultyFuture}

	err := s.Storage.UpdatePlayer(s.Ctx, "p1", func(tx storage.Tx) error {
		b, err := tx.BestScore(s.Ctx, chart)
		s.Require().NoError(err)
		s.Nil(b)

		s.Require().NoError(tx.SaveBestScore(s.Ctx, &model.BestScore{PlayerID: "p1", Chart: chart, Score: 9_800_000, Rating: 11}))
		b, err = tx.BestScore(s.Ctx, chart)
		s.Require().NoError(err)
		s.Require().NotNil(b)
		s.Equal(9_800_000, b.Score)

		sub, err := tx.Submission(s.Ctx, "sub-1")
		s.Require().NoError(err)
		s.Nil(sub)
		s.Require().NoError(tx.SaveSubmission(s.Ctx, &model.Submission{ID: "sub-1", PlayerID: "p1", Chart: chart, Rating: 11}))
		sub, err = tx.Submission(s.Ctx, "sub-1")
		s.Require().NoError(err)
		s.Require().NotNil(sub)

		s.Require().NoError(tx.PushRecentPlay(s.Ctx, &model.RecentPlay{SubmissionID: "sub-1", PlayerID: "p1", Chart: chart}, 30))
		plays, err := tx.RecentPlays(s.Ctx, 10)
		s.Require().NoError(err)
		s.Len(plays, 1)

		pr, err := tx.MapProgress(s.Ctx, "map-a")
		s.Require().NoError(err)
		s.Nil(pr)
		s.Require().NoError(tx.SaveMapProgress(s.Ctx, &model.MapProgress{PlayerID: "p1", MapID: "map-a", Position: 2}))
		pr, err = tx.MapProgress(s.Ctx, "map-a")
		s.Require().NoError(err)
		s.Require().NotNil(pr)
		s.Equal(2, pr.Position)
		return nil
	})
	s.Require().NoError(err)

	err = s.Storage.UpdatePlayer(s.Ctx, "p1", func(tx storage.Tx) error {
		sub, err := tx.Submission(s.Ctx, "sub-1")
		s.Require().NoError(err)
		s.Require().NotNil(sub)
		s.InDelta(11.0, sub.Rating, 1e-9)
		return nil
	})
	s.Require().NoError(err)

	pr, err := s.Storage.GetMapProgress(s.Ctx, "p1", "map-a")
	s.Require().NoError(err)
	s.Require().NotNil(pr)
	s.Equal(2, pr.Position)
}

func (s *Suite) TestUpdatePlayerSerialisesConcurrentCallers() {
	s.createPlayer("p1", "alice")

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Storage.UpdatePlayer(s.Ctx, "p1", func(tx storage.Tx) error {
				p, err := tx.Player(s.Ctx)
				if err != nil {
					return err
				}
				p.Credit("fragment", 1)
				return tx.SavePlayer(s.Ctx, p)
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	p, err := s.Storage.GetPlayer(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal(workers, p.Inventory["fragment"])
}

// Session tests

func (s *Suite) TestSessions() {
	session := &model.Session{
		Token:     "tok",
		PlayerID:  "p1",
		DeviceID:  "dev",
		Address:   "10.0.0.1",
		IssuedAt:  s.Now,
		ExpiresAt: s.Now.Add(24 * time.Hour),
	}
	s.Require().NoError(s.Storage.SaveSession(s.Ctx, session))

	got, err := s.Storage.GetSession(s.Ctx, "tok")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p1"), got.PlayerID)
	s.Equal("dev", got.DeviceID)

	s.Require().NoError(s.Storage.DeleteSession(s.Ctx, "tok"))
	_, err = s.Storage.GetSession(s.Ctx, "tok")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

// Event tests

func (s *Suite) appendEvent(id string, kind model.AuthEventKind, player model.PlayerID, device, address string, at time.Time) {
	s.Require().NoError(s.Storage.AppendEvent(s.Ctx, &model.AuthEvent{
		ID:       id,
		Kind:     kind,
		PlayerID: player,
		DeviceID: device,
		Address:  address,
		At:       at,
	}))
}

func (s *Suite) TestCountEventsWindow() {
	s.appendEvent("e1", model.AuthEventLogin, "p1", "dev-a", "1.1.1.1", s.Now.Add(-25*time.Hour))
	s.appendEvent("e2", model.AuthEventLogin, "p1", "dev-a", "1.1.1.1", s.Now.Add(-24*time.Hour))
	s.appendEvent("e3", model.AuthEventLogin, "p1", "dev-b", "1.1.1.1", s.Now.Add(-time.Hour))
	s.appendEvent("e4", model.AuthEventRegistration, "p2", "dev-a", "1.1.1.1", s.Now)

	since := s.Now.Add(-24 * time.Hour)
	n, err := s.Storage.CountEvents(s.Ctx, storage.EventQuery{
		Key:   model.EventKey{Scope: model.ScopeDevice, Value: "dev-a"},
		Kind:  model.AuthEventLogin,
		Since: since,
	})
	s.Require().NoError(err)
	s.Equal(1, n, "window boundary is inclusive")

	n, err = s.Storage.CountEvents(s.Ctx, storage.EventQuery{
		Key:   model.EventKey{Scope: model.ScopePlayer, Value: "p1"},
		Kind:  model.AuthEventLogin,
		Since: since,
	})
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = s.Storage.CountEvents(s.Ctx, storage.EventQuery{
		Key:   model.EventKey{Scope: model.ScopeAddress, Value: "1.1.1.1"},
		Kind:  model.AuthEventRegistration,
		Since: since,
	})
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *Suite) TestCountEventsEmpty() {
	n, err := s.Storage.CountEvents(s.Ctx, storage.EventQuery{
		Key:   model.EventKey{Scope: model.ScopeDevice, Value: "nobody"},
		Kind:  model.AuthEventLogin,
		Since: s.Now.Add(-time.Hour),
	})
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *Suite) TestListEvents() {
	s.appendEvent("e1", model.AuthEventLogin, "p1", "dev-a", "", s.Now.Add(-2*time.Hour))
	s.appendEvent("e2", model.AuthEventLogin, "p1", "dev-b", "", s.Now.Add(-time.Hour))

	events, err := s.Storage.ListEvents(s.Ctx, storage.EventQuery{
		Key:   model.EventKey{Scope: model.ScopePlayer, Value: "p1"},
		Kind:  model.AuthEventLogin,
		Since: s.Now.Add(-3 * time.Hour),
	})
	s.Require().NoError(err)
	s.Require().Len(events, 2)

	devices := []string{events[0].DeviceID, events[1].DeviceID}
	s.ElementsMatch([]string{"dev-a", "dev-b"}, devices)
}

func (s *Suite) TestPruneEvents() {
	s.appendEvent("old", model.AuthEventLogin, "p1", "dev-a", "1.1.1.1", s.Now.Add(-48*time.Hour))
	s.appendEvent("new", model.AuthEventLogin, "p1", "dev-a", "1.1.1.1", s.Now)

	removed, err := s.Storage.PruneEvents(s.Ctx, s.Now.Add(-24*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, removed)

	events, err := s.Storage.ListEvents(s.Ctx, storage.EventQuery{
		Key:  model.EventKey{Scope: model.ScopePlayer, Value: "p1"},
		Kind: model.AuthEventLogin,
	})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("new", events[0].ID)
}

func registration(id, device, address string, at time.Time) *model.AuthEvent {
	return &model.AuthEvent{
		ID:       id,
		Kind:     model.AuthEventRegistration,
		PlayerID: model.PlayerID("p-" + id),
		DeviceID: device,
		Address:  address,
		At:       at,
	}
}

func (s *Suite) registrationLimits(device, address string, deviceMax, addressMax int) []storage.WindowLimit {
	since := s.Now.Add(-24 * time.Hour)
	return []storage.WindowLimit{
		{Query: storage.EventQuery{Key: model.EventKey{Scope: model.ScopeDevice, Value: device}, Kind: model.AuthEventRegistration, Since: since}, Max: deviceMax},
		{Query: storage.EventQuery{Key: model.EventKey{Scope: model.ScopeAddress, Value: address}, Kind: model.AuthEventRegistration, Since: since}, Max: addressMax},
	}
}

func (s *Suite) TestReserveEventStopsAtFirstFullLimit() {
	cases := []struct {
		id, device, address string
		want                int
	}{
		{"r1", "dev-a", "1.1.1.1", -1},
		{"r2", "dev-a", "2.2.2.2", 0},
		{"r3", "dev-b", "1.1.1.1", -1},
		{"r4", "dev-c", "1.1.1.1", 1},
	}
	for _, tc := range cases {
		got, err := s.Storage.ReserveEvent(s.Ctx, registration(tc.id, tc.device, tc.address, s.Now),
			s.registrationLimits(tc.device, tc.address, 1, 2))
		s.Require().NoError(err)
		s.Equal(tc.want, got, tc.id)
	}

	n, err := s.Storage.CountEvents(s.Ctx, storage.EventQuery{
		Key:   model.EventKey{Scope: model.ScopeAddress, Value: "1.1.1.1"},
		Kind:  model.AuthEventRegistration,
		Since: s.Now.Add(-time.Hour),
	})
	s.Require().NoError(err)
	s.Equal(2, n, "rejected reservations are not stored")
}

func (s *Suite) TestReserveEventIgnoresEventsOutsideWindow() {
	s.appendEvent("old", model.AuthEventRegistration, "p0", "dev-a", "1.1.1.1", s.Now.Add(-25*time.Hour))

	got, err := s.Storage.ReserveEvent(s.Ctx, registration("r1", "dev-a", "1.1.1.1", s.Now),
		s.registrationLimits("dev-a", "1.1.1.1", 1, 1))
	s.Require().NoError(err)
	s.Equal(-1, got)
}

func (s *Suite) TestReserveEventAdmitsOneConcurrentCaller() {
	const workers = 8
	results := make([]int, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			address := fmt.Sprintf("10.0.0.%d", i)
			results[i], errs[i] = s.Storage.ReserveEvent(s.Ctx,
				registration(fmt.Sprintf("r%d", i), "dev-shared", address, s.Now),
				s.registrationLimits("dev-shared", address, 1, 3))
		}(i)
	}
	wg.Wait()

	admitted := 0
	for i := range results {
		s.Require().NoError(errs[i])
		if results[i] == -1 {
			admitted++
		} else {
			s.Equal(0, results[i], "only the device limit can be full")
		}
	}
	s.Equal(1, admitted)
}

func (s *Suite) TestDeleteEventReleasesReservation() {
	limits := s.registrationLimits("dev-a", "1.1.1.1", 1, 1)
	first := registration("r1", "dev-a", "1.1.1.1", s.Now)

	got, err := s.Storage.ReserveEvent(s.Ctx, first, limits)
	s.Require().NoError(err)
	s.Require().Equal(-1, got)

	s.Require().NoError(s.Storage.DeleteEvent(s.Ctx, first))
	s.Require().NoError(s.Storage.DeleteEvent(s.Ctx, registration("unknown", "dev-z", "", s.Now)))

	got, err = s.Storage.ReserveEvent(s.Ctx, registration("r2", "dev-a", "1.1.1.1", s.Now), limits)
	s.Require().NoError(err)
	s.Equal(-1, got)
}

func (s *Suite) TestTxEventsCommitWithUpdate() {
	s.createPlayer("p1", "alice")
	s.appendEvent("e1", model.AuthEventLogin, "p1", "dev-a", "", s.Now.Add(-time.Hour))
	q := storage.EventQuery{
		Key:   model.EventKey{Scope: model.ScopePlayer, Value: "p1"},
		Kind:  model.AuthEventLogin,
		Since: s.Now.Add(-24 * time.Hour),
	}

	err := s.Storage.UpdatePlayer(s.Ctx, "p1", func(tx storage.Tx) error {
		s.Require().NoError(tx.AppendEvent(s.Ctx, &model.AuthEvent{
			ID: "e2", Kind: model.AuthEventLogin, PlayerID: "p1", DeviceID: "dev-b", At: s.Now,
		}))
		events, err := tx.ListEvents(s.Ctx, q)
		s.Require().NoError(err)
		s.Len(events, 2)
		return nil
	})
	s.Require().NoError(err)

	errAbort := errors.New("abort")
	err = s.Storage.UpdatePlayer(s.Ctx, "p1", func(tx storage.Tx) error {
		s.Require().NoError(tx.AppendEvent(s.Ctx, &model.AuthEvent{
			ID: "e3", Kind: model.AuthEventLogin, PlayerID: "p1", DeviceID: "dev-c", At: s.Now,
		}))
		return errAbort
	})
	s.ErrorIs(err, errAbort)

	events, err := s.Storage.ListEvents(s.Ctx, q)
	s.Require().NoError(err)
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	s.ElementsMatch([]string{"e1", "e2"}, ids)
}

func (s *Suite) TestTxBestScoresSeeStagedWrites() {
	s.createPlayer("p1", "alice")
	a := model.ChartKey{SongID: "a", Difficulty: model.DifficultyFuture}
	b := model.ChartKey{SongID: "b", Difficulty: model.DifficultyFuture}
	c := model.ChartKey{SongID: "c", Difficulty: model.DifficultyFuture}

	err := s.Storage.UpdatePlayer(s.Ctx, "p1", func(tx storage.Tx) error {
		s.Require().NoError(tx.SaveBestScore(s.Ctx, &model.BestScore{PlayerID: "p1", Chart: a, Rating: 10, AchievedAt: s.Now}))
		return tx.SaveBestScore(s.Ctx, &model.BestScore{PlayerID: "p1", Chart: b, Rating: 9, AchievedAt: s.Now})
	})
	s.Require().NoError(err)

	err = s.Storage.UpdatePlayer(s.Ctx, "p1", func(tx storage.Tx) error {
		s.Require().NoError(tx.SaveBestScore(s.Ctx, &model.BestScore{PlayerID: "p1", Chart: b, Rating: 11, AchievedAt: s.Now}))
		s.Require().NoError(tx.SaveBestScore(s.Ctx, &model.BestScore{PlayerID: "p1", Chart: c, Rating: 8, AchievedAt: s.Now}))

		scores, err := tx.BestScores(s.Ctx, 0)
		s.Require().NoError(err)
		s.Require().Len(scores, 3)
		s.Equal([]string{"b", "a", "c"}, []string{scores[0].Chart.SongID, scores[1].Chart.SongID, scores[2].Chart.SongID})

		top, err := tx.BestScores(s.Ctx, 1)
		s.Require().NoError(err)
		s.Require().Len(top, 1)
		s.InDelta(11.0, top[0].Rating, 1e-9)
		return nil
	})
	s.Require().NoError(err)
}

// Every reader inside UpdatePlayer goes through the tx. A backend with a
// small connection pool must not deadlock when more players than it has
// connections are updated at once.
func (s *Suite) TestConcurrentUpdatesReadThroughTx() {
	const players = 8
	for i := 0; i < players; i++ {
		s.createPlayer(model.PlayerID(fmt.Sprintf("p%d", i)), fmt.Sprintf("player%d", i))
	}

	ctx, cancel := context.WithTimeout(s.Ctx, 10*time.Second)
	defer cancel()

	errs := make([]error, players)
	var wg sync.WaitGroup
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := model.PlayerID(fmt.Sprintf("p%d", i))
			errs[i] = s.Storage.UpdatePlayer(ctx, id, func(tx storage.Tx) error {
				q := storage.EventQuery{
					Key:  model.EventKey{Scope: model.ScopePlayer, Value: string(id)},
					Kind: model.AuthEventLogin,
				}
				if _, err := tx.ListEvents(ctx, q); err != nil {
					return err
				}
				if err := tx.AppendEvent(ctx, &model.AuthEvent{
					ID: "login-" + string(id), Kind: model.AuthEventLogin, PlayerID: id, DeviceID: "dev", At: s.Now,
				}); err != nil {
					return err
				}
				if _, err := tx.BestScores(ctx, 30); err != nil {
					return err
				}
				_, err := tx.RecentPlays(ctx, 10)
				return err
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		s.NoError(err, "player %d", i)
	}
}

// Ledger tests

func (s *Suite) TestListBestScoresOrder() {
	s.createPlayer("p1", "alice")

	err := s.Storage.UpdatePlayer(s.Ctx, "p1", func(tx storage.Tx) error {
		entries := []model.BestScore{
			{Chart: model.ChartKey{SongID: "a"}, Rating: 9, AchievedAt: s.Now},
			{Chart: model.ChartKey{SongID: "b"}, Rating: 11, AchievedAt: s.Now},
			{Chart: model.ChartKey{SongID: "c"}, Rating: 10, AchievedAt: s.Now.Add(-time.Hour)},
			{Chart: model.ChartKey{SongID: "d"}, Rating: 10, AchievedAt: s.Now},
		}
		for i := range entries {
			entries[i].PlayerID = "p1"
			if err := tx.SaveBestScore(s.Ctx, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	s.Require().NoError(err)

	best, err := s.Storage.ListBestScores(s.Ctx, "p1", 0)
	s.Require().NoError(err)
	s.Require().Len(best, 4)
	order := make([]string, len(best))
	for i, b := range best {
		order[i] = b.Chart.SongID
	}
	s.Equal([]string{"b", "d", "c", "a"}, order)

	top, err := s.Storage.ListBestScores(s.Ctx, "p1", 2)
	s.Require().NoError(err)
	s.Len(top, 2)
}

func (s *Suite) TestRecentPlaysRingEvictsOldest() {
	s.createPlayer("p1", "alice")

	for i := 0; i < 5; i++ {
		err := s.Storage.UpdatePlayer(s.Ctx, "p1", func(tx storage.Tx) error {
			return tx.PushRecentPlay(s.Ctx, &model.RecentPlay{
				SubmissionID: fmt.Sprintf("sub-%d", i),
				PlayerID:     "p1",
				Chart:        model.ChartKey{SongID: "same"},
				PlayedAt:     s.Now.Add(time.Duration(i) * time.Minute),
			}, 3)
		})
		s.Require().NoError(err)
	}

	plays, err := s.Storage.ListRecentPlays(s.Ctx, "p1", 0)
	s.Require().NoError(err)
	s.Require().Len(plays, 3)
	s.Equal("sub-4", plays[0].SubmissionID)
	s.Equal("sub-3", plays[1].SubmissionID)
	s.Equal("sub-2", plays[2].SubmissionID)

	limited, err := s.Storage.ListRecentPlays(s.Ctx, "p1", 2)
	s.Require().NoError(err)
	s.Len(limited, 2)
}

func (s *Suite) TestGetMapProgressAbsent() {
	s.createPlayer("p1", "alice")

	pr, err := s.Storage.GetMapProgress(s.Ctx, "p1", "nowhere")
	s.Require().NoError(err)
	s.Nil(pr)
}
