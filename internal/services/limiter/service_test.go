package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/dependencies/mocks"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage"
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
	s.service = New(s.storage, s.clock, mocks.NewMockRandom(), DefaultConfig(), testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ServiceSuite) record(kind model.AuthEventKind, player model.PlayerID, device, address string) {
	err := s.service.Record(s.ctx, s.storage, &model.AuthEvent{
		Kind:     kind,
		PlayerID: player,
		DeviceID: device,
		Address:  address,
		At:       s.clock.Now(),
	})
	s.Require().NoError(err)
}

func deviceKey(id string) model.EventKey {
	return model.EventKey{Scope: model.ScopeDevice, Value: id}
}

func (s *ServiceSuite) TestCountEmptyHistoryIsZero() {
	n, err := s.service.CountInWindow(s.ctx, deviceKey("dev"), model.AuthEventLogin, 24*time.Hour, s.clock.Now())
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *ServiceSuite) TestRecordAssignsID() {
	event := &model.AuthEvent{Kind: model.AuthEventLogin, DeviceID: "dev", At: s.clock.Now()}
	s.Require().NoError(s.service.Record(s.ctx, s.storage, event))
	s.Equal("uuid-1", event.ID)
}

func (s *ServiceSuite) TestCountSeparatesKinds() {
	s.record(model.AuthEventLogin, "p1", "dev", "1.1.1.1")
	s.record(model.AuthEventRegistration, "p1", "dev", "1.1.1.1")
	s.record(model.AuthEventRegistration, "p2", "dev", "1.1.1.1")

	n, err := s.service.CountInWindow(s.ctx, deviceKey("dev"), model.AuthEventRegistration, 24*time.Hour, s.clock.Now())
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *ServiceSuite) TestWindowSlides() {
	s.record(model.AuthEventRegistration, "p1", "dev", "")
	s.clock.Advance(24 * time.Hour)

	// Exactly at the boundary the event is still inside
	n, err := s.service.CountInWindow(s.ctx, deviceKey("dev"), model.AuthEventRegistration, 24*time.Hour, s.clock.Now())
	s.Require().NoError(err)
	s.Equal(1, n)

	s.clock.Advance(time.Millisecond)
	n, err = s.service.CountInWindow(s.ctx, deviceKey("dev"), model.AuthEventRegistration, 24*time.Hour, s.clock.Now())
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *ServiceSuite) TestCountingNeverDeletes() {
	s.record(model.AuthEventLogin, "p1", "dev", "")
	s.clock.Advance(48 * time.Hour)

	_, err := s.service.CountInWindow(s.ctx, deviceKey("dev"), model.AuthEventLogin, time.Hour, s.clock.Now())
	s.Require().NoError(err)

	n, err := s.service.CountInWindow(s.ctx, deviceKey("dev"), model.AuthEventLogin, 72*time.Hour, s.clock.Now())
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *ServiceSuite) TestDistinctDevices() {
	s.record(model.AuthEventLogin, "p1", "dev-b", "")
	s.record(model.AuthEventLogin, "p1", "dev-a", "")
	s.record(model.AuthEventLogin, "p1", "dev-a", "")
	s.record(model.AuthEventLogin, "p2", "dev-c", "")

	devices, err := s.service.DistinctDevices(s.ctx, s.storage, "p1", 24*time.Hour, s.clock.Now())
	s.Require().NoError(err)
	s.Equal([]string{"dev-a", "dev-b"}, devices)
}

func (s *ServiceSuite) TestDistinctDevicesIgnoresOldLogins() {
	s.record(model.AuthEventLogin, "p1", "dev-old", "")
	s.clock.Advance(25 * time.Hour)
	s.record(model.AuthEventLogin, "p1", "dev-new", "")

	devices, err := s.service.DistinctDevices(s.ctx, s.storage, "p1", 24*time.Hour, s.clock.Now())
	s.Require().NoError(err)
	s.Equal([]string{"dev-new"}, devices)
}

func (s *ServiceSuite) TestDistinctDevicesSeesTxLogins() {
	s.Require().NoError(s.storage.CreatePlayer(s.ctx, &model.Player{ID: "p1", Name: "hikari"}))
	s.record(model.AuthEventLogin, "p1", "dev-a", "")

	err := s.storage.UpdatePlayer(s.ctx, "p1", func(tx storage.Tx) error {
		s.Require().NoError(s.service.Record(s.ctx, tx, &model.AuthEvent{
			Kind: model.AuthEventLogin, PlayerID: "p1", DeviceID: "dev-b", At: s.clock.Now(),
		}))

		devices, err := s.service.DistinctDevices(s.ctx, tx, "p1", 24*time.Hour, s.clock.Now())
		s.Require().NoError(err)
		s.Equal([]string{"dev-a", "dev-b"}, devices)
		return nil
	})
	s.Require().NoError(err)
}

func registration(device, address string, at time.Time) *model.AuthEvent {
	return &model.AuthEvent{Kind: model.AuthEventRegistration, DeviceID: device, Address: address, At: at}
}

func (s *ServiceSuite) TestReserveRecordsUntilFull() {
	limits := []Limit{
		{Key: deviceKey("dev"), Window: 24 * time.Hour, Max: 2},
		{Key: model.EventKey{Scope: model.ScopeAddress, Value: "1.1.1.1"}, Window: 24 * time.Hour, Max: 1},
	}

	first := registration("dev", "1.1.1.1", s.clock.Now())
	full, err := s.service.Reserve(s.ctx, first, limits...)
	s.Require().NoError(err)
	s.Equal(-1, full)
	s.Equal("uuid-1", first.ID)

	full, err = s.service.Reserve(s.ctx, registration("dev", "1.1.1.1", s.clock.Now()), limits...)
	s.Require().NoError(err)
	s.Equal(1, full, "address limit is full")

	n, err := s.service.CountInWindow(s.ctx, deviceKey("dev"), model.AuthEventRegistration, 24*time.Hour, s.clock.Now())
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *ServiceSuite) TestReserveWindowEndsAtEventTime() {
	limit := Limit{Key: deviceKey("dev"), Window: 24 * time.Hour, Max: 1}
	full, err := s.service.Reserve(s.ctx, registration("dev", "", s.clock.Now()), limit)
	s.Require().NoError(err)
	s.Require().Equal(-1, full)

	s.clock.Advance(24*time.Hour + time.Millisecond)
	full, err = s.service.Reserve(s.ctx, registration("dev", "", s.clock.Now()), limit)
	s.Require().NoError(err)
	s.Equal(-1, full)
}

func (s *ServiceSuite) TestReleaseFreesReservation() {
	limit := Limit{Key: deviceKey("dev"), Window: 24 * time.Hour, Max: 1}
	event := registration("dev", "", s.clock.Now())
	full, err := s.service.Reserve(s.ctx, event, limit)
	s.Require().NoError(err)
	s.Require().Equal(-1, full)

	s.Require().NoError(s.service.Release(s.ctx, event))

	full, err = s.service.Reserve(s.ctx, registration("dev", "", s.clock.Now()), limit)
	s.Require().NoError(err)
	s.Equal(-1, full)
}

func (s *ServiceSuite) TestPruneRemovesOnlyExpired() {
	s.record(model.AuthEventLogin, "p1", "dev", "")
	s.clock.Advance(25 * time.Hour)
	s.record(model.AuthEventLogin, "p1", "dev", "")

	removed, err := s.service.Prune(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, removed)

	n, err := s.service.CountInWindow(s.ctx, deviceKey("dev"), model.AuthEventLogin, 100*time.Hour, s.clock.Now())
	s.Require().NoError(err)
	s.Equal(1, n)
}
