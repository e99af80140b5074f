package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/testutil"
)

type countingPruner struct {
	calls atomic.Int32
	err   error
}

func (p *countingPruner) Prune(ctx context.Context) (int, error) {
	p.calls.Add(1)
	return 3, p.err
}

func TestSchedulerPrunesImmediatelyAndRepeats(t *testing.T) {
	pruner := &countingPruner{}
	sched, err := New(pruner, 50*time.Millisecond, testutil.NopLogger())
	require.NoError(t, err)

	sched.Start()
	defer func() { _ = sched.Shutdown() }()

	assert.Eventually(t, func() bool { return pruner.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerSurvivesPruneErrors(t *testing.T) {
	pruner := &countingPruner{err: errors.New("redis down")}
	sched, err := New(pruner, 50*time.Millisecond, testutil.NopLogger())
	require.NoError(t, err)

	sched.Start()
	defer func() { _ = sched.Shutdown() }()

	assert.Eventually(t, func() bool { return pruner.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestNewRejectsNonPositiveInterval(t *testing.T) {
	_, err := New(&countingPruner{}, 0, testutil.NopLogger())
	assert.Error(t, err)
}

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) SweepIdle() int {
	s.calls.Add(1)
	return 0
}

func TestSchedulerRunsSweep(t *testing.T) {
	sched, err := New(&countingPruner{}, time.Hour, testutil.NopLogger())
	require.NoError(t, err)

	sweeper := &countingSweeper{}
	require.NoError(t, sched.AddSweep(sweeper, 20*time.Millisecond))

	sched.Start()
	defer func() { _ = sched.Shutdown() }()

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestAddSweepRejectsNonPositiveInterval(t *testing.T) {
	sched, err := New(&countingPruner{}, time.Hour, testutil.NopLogger())
	require.NoError(t, err)
	sched.Start()
	defer func() { _ = sched.Shutdown() }()

	assert.Error(t, sched.AddSweep(&countingSweeper{}, 0))
}
