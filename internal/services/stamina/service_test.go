package stamina

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/dependencies/mocks"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage/memory"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.service = New(s.storage, s.clock, DefaultConfig(), testutil.NopLogger())
	s.ctx = context.Background()

	primary, bonus := s.service.Baseline(s.clock.Now())
	s.Require().NoError(s.storage.CreatePlayer(s.ctx, &model.Player{
		ID:      "p1",
		Name:    "alice",
		Stamina: primary,
		Bonus:   bonus,
	}))
}

func (s *ServiceSuite) TestGetFullPlayer() {
	st, err := s.service.Get(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal(12, st.Stamina)
	s.Equal(12, st.Max)
	s.True(st.BonusReady)
	s.True(st.FullAt.IsZero())
}

func (s *ServiceSuite) TestGetUnknownPlayer() {
	_, err := s.service.Get(s.ctx, "missing")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ServiceSuite) TestSpendPersists() {
	st, err := s.service.Spend(s.ctx, "p1", 4)
	s.Require().NoError(err)
	s.Equal(8, st.Stamina)
	s.Equal(s.clock.Now().Add(2*time.Hour), st.FullAt)

	s.clock.Advance(time.Hour)
	st, err = s.service.Get(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal(10, st.Stamina)
}

func (s *ServiceSuite) TestSpendInsufficientDoesNotMutate() {
	_, err := s.service.Spend(s.ctx, "p1", 10)
	s.Require().NoError(err)

	_, err = s.service.Spend(s.ctx, "p1", 3)
	s.ErrorIs(err, model.ErrInsufficientStamina)

	st, err := s.service.Get(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal(2, st.Stamina)
}

func (s *ServiceSuite) TestConcurrentSpendsNeverOverdraw() {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.service.Spend(s.ctx, "p1", 5); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(2, success)
	st, err := s.service.Get(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal(2, st.Stamina)
}

func (s *ServiceSuite) TestUseBonusGrantsStamina() {
	_, err := s.service.Spend(s.ctx, "p1", 12)
	s.Require().NoError(err)

	st, err := s.service.UseBonus(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal(6, st.Stamina)
	s.False(st.BonusReady)
	s.Equal(s.clock.Now().Add(23*time.Hour), st.BonusReadyAt)
}

func (s *ServiceSuite) TestUseBonusNotReady() {
	_, err := s.service.UseBonus(s.ctx, "p1")
	s.Require().NoError(err)

	_, err = s.service.UseBonus(s.ctx, "p1")
	s.ErrorIs(err, model.ErrBonusNotReady)

	s.clock.Advance(23 * time.Hour)
	_, err = s.service.UseBonus(s.ctx, "p1")
	s.NoError(err)
}

func (s *ServiceSuite) TestUseBonusCapsAtMax() {
	st, err := s.service.UseBonus(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal(12, st.Stamina)
}
