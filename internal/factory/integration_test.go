package factory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/auth"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/scoring"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/world"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
	s.Require().NoError(s.app.LoadTestMap())
}

func (s *IntegrationSuite) register(name, device string) *model.Session {
	session, err := s.app.AuthService.Register(s.ctx, auth.RegisterRequest{
		Name:     name,
		Secret:   "hikari",
		DeviceID: device,
		Address:  "10.0.0.1",
	})
	s.Require().NoError(err)
	return session
}

var grievousFuture = model.ChartKey{SongID: "grievouslady", Difficulty: model.DifficultyFuture}

// Test: register, play, publish a rating, then spend stamina climbing a map
func (s *IntegrationSuite) TestPlayerProgressionFlow() {
	session := s.register("tairitsu", "dev-a")

	player, err := s.app.AuthService.Verify(s.ctx, session.Token)
	s.Require().NoError(err)

	// The last step needs a grievouslady FTR play first
	_, err = s.app.WorldService.Climb(s.ctx, player.ID, world.StepRequest{MapID: TestMapID, Target: 3})
	s.ErrorIs(err, model.ErrRestrictionNotMet)

	res, err := s.app.ScoringService.Submit(s.ctx, player.ID, scoring.SubmitRequest{
		SubmissionID: "sub-1",
		Chart:        grievousFuture,
		Result:       model.PlayResult{Score: 9_900_000},
	})
	s.Require().NoError(err)
	s.InDelta(12.8, res.Rating, 1e-9)
	s.True(res.Improved)

	breakdown, err := s.app.RatingService.Publish(s.ctx, player.ID)
	s.Require().NoError(err)
	s.InDelta(0.64, breakdown.Overall, 1e-9)

	step, err := s.app.WorldService.Climb(s.ctx, player.ID, world.StepRequest{MapID: TestMapID, Target: 3})
	s.Require().NoError(err)
	s.Equal(3, step.Progress.Position)
	s.True(step.Progress.Cleared)
	s.Equal(4, step.StaminaSpent)
	s.Equal(2, step.StaminaBonus)

	status, err := s.app.StaminaService.Get(s.ctx, player.ID)
	s.Require().NoError(err)
	s.Equal(10, status.Stamina)

	stored, err := s.app.Storage.GetPlayer(s.ctx, player.ID)
	s.Require().NoError(err)
	s.Equal(150, stored.Inventory["fragment"])
	s.Equal(1, stored.Inventory["core_generic"])
	s.Equal(TestMapID, stored.CurrentMap)
	s.InDelta(0.64, stored.Rating, 1e-9)
}

// Test: a retried submission leaves the ledger untouched
func (s *IntegrationSuite) TestSubmissionRetryIsIdempotent() {
	session := s.register("hikari", "dev-a")
	req := scoring.SubmitRequest{
		SubmissionID: "sub-1",
		Chart:        grievousFuture,
		Result:       model.PlayResult{Score: 9_500_000},
	}

	first, err := s.app.ScoringService.Submit(s.ctx, session.PlayerID, req)
	s.Require().NoError(err)
	second, err := s.app.ScoringService.Submit(s.ctx, session.PlayerID, req)
	s.Require().NoError(err)

	s.True(second.Replayed)
	s.Equal(first.Rating, second.Rating)

	recent, err := s.app.ScoringService.RecentPlays(s.ctx, session.PlayerID, 0)
	s.Require().NoError(err)
	s.Len(recent, 1)
}

// Test: a ban issued mid-session blocks the existing token and every later login
func (s *IntegrationSuite) TestModerationFlow() {
	session := s.register("tairitsu", "dev-a")

	_, err := s.app.AuthService.Ban(s.ctx, session.PlayerID, "score tampering")
	s.Require().NoError(err)

	_, err = s.app.AuthService.Verify(s.ctx, session.Token)
	s.ErrorIs(err, model.ErrBanned)

	_, err = s.app.AuthService.Login(s.ctx, auth.LoginRequest{Name: "tairitsu", Secret: "hikari", DeviceID: "dev-a"})
	s.ErrorIs(err, model.ErrBanned)

	s.Require().NoError(s.app.AuthService.Unban(s.ctx, session.PlayerID))
	_, err = s.app.AuthService.Verify(s.ctx, session.Token)
	s.NoError(err)
}

// Test: the pruning job clears events once they age out of every window
func (s *IntegrationSuite) TestPruneForgetsOldDevices() {
	s.register("tairitsu", "dev-a")

	s.app.MockClock.Advance(25 * time.Hour)
	removed, err := s.app.LimiterService.Prune(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, removed) // registration and implicit login

	_, err = s.app.AuthService.Login(s.ctx, auth.LoginRequest{Name: "tairitsu", Secret: "hikari", DeviceID: "dev-b"})
	s.NoError(err)
}

func TestNewWithMemoryStorage(t *testing.T) {
	app, err := New(context.Background(), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer app.Close()

	if app.Catalog.ChartCount() == 0 {
		t.Fatal("expected builtin charts to be loaded")
	}
}

func TestNewRejectsMissingBackendConfig(t *testing.T) {
	for _, storageType := range []string{StorageTypeRedis, StorageTypePostgres, "sqlite"} {
		if _, err := New(context.Background(), Config{StorageType: storageType}); err == nil {
			t.Errorf("expected error for storage type %q", storageType)
		}
	}
}
