package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
)

type ServiceSuite struct {
	suite.Suite
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.service = New()
}

func (s *ServiceSuite) TestLoadBuiltin() {
	s.Require().NoError(s.service.LoadBuiltin())

	s.Positive(s.service.ChartCount())
	chart, err := s.service.Chart(model.ChartKey{SongID: "grievouslady", Difficulty: model.DifficultyFuture})
	s.Require().NoError(err)
	s.InDelta(11.3, chart.Constant, 1e-9)

	m, err := s.service.Map("tutorial")
	s.Require().NoError(err)
	s.Equal(100, m.Ceiling())
}

func (s *ServiceSuite) TestChartNotFound() {
	_, err := s.service.Chart(model.ChartKey{SongID: "nope"})
	s.ErrorIs(err, model.ErrChartNotFound)
}

func (s *ServiceSuite) TestMapNotFound() {
	_, err := s.service.Map("nope")
	s.ErrorIs(err, model.ErrMapNotFound)
}

func (s *ServiceSuite) TestMapsSortedByID() {
	s.Require().NoError(s.service.LoadMaps(
		model.WorldMap{ID: "b", Steps: make([]model.Step, 2)},
		model.WorldMap{ID: "a", Steps: make([]model.Step, 2)},
	))

	maps := s.service.Maps()
	s.Require().Len(maps, 2)
	s.Equal("a", maps[0].ID)
	s.Equal("b", maps[1].ID)
}

func (s *ServiceSuite) TestLoadMapsRejectsShortMap() {
	err := s.service.LoadMaps(model.WorldMap{ID: "tiny", Steps: make([]model.Step, 1)})
	s.Error(err)
}

func (s *ServiceSuite) TestLoadFromDir() {
	dir := s.T().TempDir()
	s.Require().NoError(os.WriteFile(filepath.Join(dir, chartsFile),
		[]byte(`[{"song_id":"custom","difficulty":2,"constant":9.9,"note_count":1000}]`), 0o644))
	s.Require().NoError(os.WriteFile(filepath.Join(dir, mapsFile),
		[]byte(`[{"id":"m","steps":[{"capture":0,"cost":0},{"capture":5,"cost":1}]}]`), 0o644))

	s.Require().NoError(s.service.LoadFromDir(dir))

	s.Equal(1, s.service.ChartCount())
	_, err := s.service.Map("m")
	s.NoError(err)
}

func (s *ServiceSuite) TestLoadFromDirRejectsBadDifficulty() {
	dir := s.T().TempDir()
	s.Require().NoError(os.WriteFile(filepath.Join(dir, chartsFile),
		[]byte(`[{"song_id":"custom","difficulty":9,"constant":9.9}]`), 0o644))
	s.Require().NoError(os.WriteFile(filepath.Join(dir, mapsFile), []byte(`[]`), 0o644))

	s.Error(s.service.LoadFromDir(dir))
}
