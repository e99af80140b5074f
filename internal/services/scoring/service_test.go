package scoring

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/dependencies/mocks"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/catalog"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage/memory"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/testutil"
)

var (
	grievous = model.ChartKey{SongID: "grievous", Difficulty: model.DifficultyFuture}
	fracture = model.ChartKey{SongID: "fracture", Difficulty: model.DifficultyFuture}
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	random  *mocks.MockRandom
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.ctx = context.Background()

	charts := catalog.New()
	charts.LoadCharts(
		model.Chart{SongID: "grievous", Difficulty: model.DifficultyFuture, Constant: 11.3},
		model.Chart{SongID: "fracture", Difficulty: model.DifficultyFuture, Constant: 11.2},
	)
	s.service = New(s.storage, charts, s.clock, s.random, DefaultConfig(), testutil.NopLogger())

	s.Require().NoError(s.storage.CreatePlayer(s.ctx, &model.Player{ID: "p1", Name: "alice"}))
}

func (s *ServiceSuite) submit(id string, chart model.ChartKey, score int) *SubmitResult {
	res, err := s.service.Submit(s.ctx, "p1", SubmitRequest{
		SubmissionID: id,
		Chart:        chart,
		Result:       model.PlayResult{Score: score},
	})
	s.Require().NoError(err)
	return res
}

func (s *ServiceSuite) TestSubmitFirstScoreBecomesBest() {
	res := s.submit("s1", grievous, 9_800_000)
	s.True(res.Improved)
	s.False(res.Replayed)
	s.InDelta(12.3, res.Rating, 1e-9)

	best, err := s.service.BestScores(s.ctx, "p1", 0)
	s.Require().NoError(err)
	s.Require().Len(best, 1)
	s.Equal(9_800_000, best[0].Score)
	s.InDelta(12.3, best[0].Rating, 1e-9)
}

func (s *ServiceSuite) TestSubmitHigherScoreReplacesBest() {
	s.submit("s1", grievous, 9_500_000)
	s.clock.Advance(time.Minute)
	res := s.submit("s2", grievous, 9_700_000)
	s.True(res.Improved)

	best, err := s.service.BestScores(s.ctx, "p1", 0)
	s.Require().NoError(err)
	s.Require().Len(best, 1)
	s.Equal(9_700_000, best[0].Score)
	s.Equal(s.clock.Now(), best[0].AchievedAt)
}

func (s *ServiceSuite) TestSubmitLowerScoreKeepsBest() {
	s.submit("s1", grievous, 9_700_000)
	res := s.submit("s2", grievous, 9_100_000)
	s.False(res.Improved)

	best, err := s.service.BestScores(s.ctx, "p1", 0)
	s.Require().NoError(err)
	s.Equal(9_700_000, best[0].Score)
}

func (s *ServiceSuite) TestSubmitTieKeepsExistingEntryUntouched() {
	_, err := s.service.Submit(s.ctx, "p1", SubmitRequest{
		SubmissionID: "s1",
		Chart:        grievous,
		Result:       model.PlayResult{Score: 9_700_000, Judgements: model.Judgements{Pure: 10, Far: 2}},
	})
	s.Require().NoError(err)
	before, err := s.service.BestScores(s.ctx, "p1", 0)
	s.Require().NoError(err)

	s.clock.Advance(time.Hour)
	res, err := s.service.Submit(s.ctx, "p1", SubmitRequest{
		SubmissionID: "s2",
		Chart:        grievous,
		Result:       model.PlayResult{Score: 9_700_000, Judgements: model.Judgements{Pure: 11, Far: 1}},
	})
	s.Require().NoError(err)
	s.False(res.Improved)

	after, err := s.service.BestScores(s.ctx, "p1", 0)
	s.Require().NoError(err)
	s.Equal(before, after)
}

func (s *ServiceSuite) TestSubmitAlwaysPushesRecent() {
	s.submit("s1", grievous, 9_700_000)
	s.submit("s2", grievous, 9_000_000)
	s.submit("s3", grievous, 9_000_000)

	recent, err := s.service.RecentPlays(s.ctx, "p1", 0)
	s.Require().NoError(err)
	s.Require().Len(recent, 3)
	s.Equal("s3", recent[0].SubmissionID)
	s.Equal("s1", recent[2].SubmissionID)
}

func (s *ServiceSuite) TestRecentRingCapacity() {
	for i := 0; i < 35; i++ {
		s.clock.Advance(time.Minute)
		s.submit(fmt.Sprintf("s%d", i), fracture, 9_000_000+i)
	}

	recent, err := s.service.RecentPlays(s.ctx, "p1", 0)
	s.Require().NoError(err)
	s.Require().Len(recent, 30)
	s.Equal("s34", recent[0].SubmissionID)
	s.Equal("s5", recent[29].SubmissionID)
	for i := 1; i < len(recent); i++ {
		s.True(recent[i-1].PlayedAt.After(recent[i].PlayedAt))
	}
}

func (s *ServiceSuite) TestReplayedSubmissionIsIdempotent() {
	first := s.submit("s1", grievous, 9_800_000)
	s.clock.Advance(time.Minute)

	replay, err := s.service.Submit(s.ctx, "p1", SubmitRequest{
		SubmissionID: "s1",
		Chart:        grievous,
		Result:       model.PlayResult{Score: 10_000_000},
	})
	s.Require().NoError(err)
	s.True(replay.Replayed)
	s.Equal(first.Rating, replay.Rating)
	s.Equal(first.Improved, replay.Improved)

	recent, err := s.service.RecentPlays(s.ctx, "p1", 0)
	s.Require().NoError(err)
	s.Len(recent, 1)

	best, err := s.service.BestScores(s.ctx, "p1", 0)
	s.Require().NoError(err)
	s.Equal(9_800_000, best[0].Score)
}

func (s *ServiceSuite) TestSubmitWithoutIDIsAssignedOne() {
	s.random.QueueUUID("generated")
	res, err := s.service.Submit(s.ctx, "p1", SubmitRequest{Chart: grievous, Result: model.PlayResult{Score: 9_000_000}})
	s.Require().NoError(err)
	s.Equal("generated", res.SubmissionID)
}

func (s *ServiceSuite) TestSubmitUnknownChart() {
	_, err := s.service.Submit(s.ctx, "p1", SubmitRequest{
		SubmissionID: "s1",
		Chart:        model.ChartKey{SongID: "nope", Difficulty: model.DifficultyPast},
	})
	s.ErrorIs(err, model.ErrChartNotFound)
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *ServiceSuite) TestSubmitUnknownPlayer() {
	_, err := s.service.Submit(s.ctx, "missing", SubmitRequest{SubmissionID: "s1", Chart: grievous})
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ServiceSuite) TestSubmitRejectsNegativeScore() {
	_, err := s.service.Submit(s.ctx, "p1", SubmitRequest{Chart: grievous, Result: model.PlayResult{Score: -1}})
	s.ErrorIs(err, model.ErrInvalidRequest)
}

func (s *ServiceSuite) TestBestScoresOrderedByRating() {
	s.submit("s1", fracture, 9_500_000)
	s.submit("s2", grievous, 9_500_000)

	best, err := s.service.BestScores(s.ctx, "p1", 0)
	s.Require().NoError(err)
	s.Require().Len(best, 2)
	s.Equal(grievous, best[0].Chart)
	s.Equal(fracture, best[1].Chart)
}
