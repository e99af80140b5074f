package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
)

const (
	chartsFile = "charts.json"
	mapsFile   = "maps.json"
)

//go:embed data/*.json
var builtin embed.FS

// Service holds static chart and world map reference data
type Service struct {
	mu     sync.RWMutex
	charts map[model.ChartKey]model.Chart
	maps   map[string]model.WorldMap
}

// New creates an empty catalog
func New() *Service {
	return &Service{
		charts: make(map[model.ChartKey]model.Chart),
		maps:   make(map[string]model.WorldMap),
	}
}

// LoadBuiltin loads the catalog bundled with the binary
func (s *Service) LoadBuiltin() error {
	charts, err := builtin.ReadFile("data/" + chartsFile)
	if err != nil {
		return err
	}
	maps, err := builtin.ReadFile("data/" + mapsFile)
	if err != nil {
		return err
	}
	return s.load(charts, maps)
}

// LoadFromDir loads charts.json and maps.json from dir, replacing the current catalog
func (s *Service) LoadFromDir(dir string) error {
	charts, err := os.ReadFile(filepath.Join(dir, chartsFile))
	if err != nil {
		return err
	}
	maps, err := os.ReadFile(filepath.Join(dir, mapsFile))
	if err != nil {
		return err
	}
	return s.load(charts, maps)
}

// LoadCharts directly loads charts (useful for testing)
func (s *Service) LoadCharts(charts ...model.Chart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range charts {
		s.charts[c.Key()] = c
	}
}

// LoadMaps directly loads world maps (useful for testing)
func (s *Service) LoadMaps(maps ...model.WorldMap) error {
	for i := range maps {
		if err := validateMap(&maps[i]); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range maps {
		s.maps[m.ID] = m
	}
	return nil
}

func (s *Service) load(chartData, mapData []byte) error {
	var charts []model.Chart
	if err := json.Unmarshal(chartData, &charts); err != nil {
		return fmt.Errorf("parse %s: %w", chartsFile, err)
	}
	var maps []model.WorldMap
	if err := json.Unmarshal(mapData, &maps); err != nil {
		return fmt.Errorf("parse %s: %w", mapsFile, err)
	}

	chartIndex := make(map[model.ChartKey]model.Chart, len(charts))
	for _, c := range charts {
		if c.SongID == "" || !c.Difficulty.Valid() {
			return fmt.Errorf("invalid chart %q difficulty %d", c.SongID, c.Difficulty)
		}
		chartIndex[c.Key()] = c
	}
	mapIndex := make(map[string]model.WorldMap, len(maps))
	for i := range maps {
		if err := validateMap(&maps[i]); err != nil {
			return err
		}
		mapIndex[maps[i].ID] = maps[i]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.charts = chartIndex
	s.maps = mapIndex
	return nil
}

func validateMap(m *model.WorldMap) error {
	if m.ID == "" {
		return fmt.Errorf("world map without id")
	}
	if len(m.Steps) < 2 {
		return fmt.Errorf("world map %q needs a start and at least one step", m.ID)
	}
	for i, step := range m.Steps {
		if step.Cost < 0 || step.Capture < 0 {
			return fmt.Errorf("world map %q step %d has negative cost or capture", m.ID, i)
		}
	}
	return nil
}

// Chart returns the chart for key, or ErrChartNotFound
func (s *Service) Chart(key model.ChartKey) (*model.Chart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.charts[key]
	if !ok {
		return nil, model.ErrChartNotFound
	}
	return &c, nil
}

// Map returns the world map with the given id, or ErrMapNotFound
func (s *Service) Map(id string) (*model.WorldMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.maps[id]
	if !ok {
		return nil, model.ErrMapNotFound
	}
	return &m, nil
}

// Maps returns all world maps ordered by id
func (s *Service) Maps() []model.WorldMap {
	s.mu.RLock()
	maps := make([]model.WorldMap, 0, len(s.maps))
	for _, m := range s.maps {
		maps = append(maps, m)
	}
	s.mu.RUnlock()

	sort.Slice(maps, func(i, j int) bool { return maps[i].ID < maps[j].ID })
	return maps
}

// ChartCount returns the number of loaded charts
func (s *Service) ChartCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.charts)
}
