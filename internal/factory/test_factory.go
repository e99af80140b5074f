package factory

import (
	"time"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/dependencies/mocks"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/catalog"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage/memory"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// The catalog holds the embedded charts plus a small map from LoadTestMap.
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	cat := catalog.New()
	if err := cat.LoadBuiltin(); err != nil {
		panic(err)
	}

	app := newWithDependencies(store, cat, mockClock, mockRandom, DefaultServices(), testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}

// TestMapID is the id of the map registered by LoadTestMap
const TestMapID = "test_path"

// LoadTestMap registers a four step map with a reward on every step and a
// restriction on the last one
func (t *TestApp) LoadTestMap() error {
	ftr := model.DifficultyFuture
	return t.Catalog.LoadMaps(model.WorldMap{
		ID: TestMapID,
		Steps: []model.Step{
			{},
			{Capture: 10, Cost: 1, Rewards: model.RewardBundle{{ItemID: "fragment", Amount: 50}}},
			{Capture: 10, Cost: 1, PlusStamina: 2, Rewards: model.RewardBundle{{ItemID: "fragment", Amount: 100}}},
			{Capture: 10, Cost: 2, Rewards: model.RewardBundle{{ItemID: "core_generic", Amount: 1}},
				Restriction: &model.StepRestriction{SongID: "grievouslady", Difficulty: &ftr}},
		},
	})
}
