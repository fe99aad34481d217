package timer

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"equipqr/sync-agent/internal/database"
	"equipqr/sync-agent/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestTimerStore(t *testing.T) *store.TimerStore {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "agent.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewTimerStore(db.DB, zap.NewNop())
}

func TestWorkTimer_CountsWallClockTimeAcrossPauses(t *testing.T) {
	ts := newTestTimerStore(t)
	clk := newFakeClock()
	wt := newWorkTimer(ts, "wo-1", zap.NewNop(), clk.Now)
	t.Cleanup(wt.Close)

	// Start at t=0, pause at t=10
	wt.Start()
	clk.Advance(10 * time.Second)
	wt.Pause()
	require.False(t, wt.IsRunning())
	require.Equal(t, int64(10), wt.ElapsedSeconds())

	// 30s gap while paused: reading stays frozen
	clk.Advance(30 * time.Second)
	require.Equal(t, int64(10), wt.ElapsedSeconds())

	// Resume at t=40: the timer measures time since the job started, so
	// the pause gap folds back in
	wt.Start()
	require.True(t, wt.IsRunning())
	require.Equal(t, int64(40), wt.ElapsedSeconds())

	// Tick restores the invariant accumulated + session == now - originalStart
	clk.Advance(1 * time.Second)
	wt.tick()
	state := wt.State()
	require.Equal(t, int64(40), state.AccumulatedSeconds)
	require.Equal(t, int64(41), wt.ElapsedSeconds())

	// Stop at t=50: 50s wall clock == 0.01h, not the 20s of active work
	clk.Advance(9 * time.Second)
	hours := wt.StopAndGetHours()
	require.Equal(t, 0.01, hours)

	// Stopping clears persisted state
	require.Nil(t, ts.Load("wo-1"))
	require.Nil(t, wt.State())
}

func TestWorkTimer_StopWhileRunningFoldsUntickedGap(t *testing.T) {
	ts := newTestTimerStore(t)
	clk := newFakeClock()
	wt := newWorkTimer(ts, "wo-1", zap.NewNop(), clk.Now)
	t.Cleanup(wt.Close)

	wt.Start()
	clk.Advance(10 * time.Second)
	wt.Pause()
	clk.Advance(30 * time.Second)
	wt.Start()

	// Stop immediately after resume, before any tick ran: the total is
	// still wall-clock time since the original start
	clk.Advance(10 * time.Second)
	require.Equal(t, 0.01, wt.StopAndGetHours())
}

func TestWorkTimer_ResumeKeepsOriginalStart(t *testing.T) {
	ts := newTestTimerStore(t)
	clk := newFakeClock()
	wt := newWorkTimer(ts, "wo-1", zap.NewNop(), clk.Now)
	t.Cleanup(wt.Close)

	wt.Start()
	original := wt.State().OriginalStartTime

	clk.Advance(5 * time.Second)
	wt.Pause()
	clk.Advance(5 * time.Second)
	wt.Start()

	require.Equal(t, original, wt.State().OriginalStartTime)

	// Start while already running is a no-op
	startTime := *wt.State().StartTime
	clk.Advance(5 * time.Second)
	wt.Start()
	require.Equal(t, startTime, *wt.State().StartTime)
}

func TestWorkTimer_RestoresRunningSessionAfterRestart(t *testing.T) {
	ts := newTestTimerStore(t)
	clk := newFakeClock()

	wt := newWorkTimer(ts, "wo-1", zap.NewNop(), clk.Now)
	wt.Start()
	clk.Advance(20 * time.Second)
	wt.tick()
	wt.Close()

	// Time passes while the agent is down; elapsed is still measured from
	// the original start
	clk.Advance(40 * time.Second)

	restored := newWorkTimer(ts, "wo-1", zap.NewNop(), clk.Now)
	t.Cleanup(restored.Close)
	require.True(t, restored.IsRunning())
	require.Equal(t, int64(60), restored.ElapsedSeconds())
}

func TestWorkTimer_RestoresPausedSessionAfterRestart(t *testing.T) {
	ts := newTestTimerStore(t)
	clk := newFakeClock()

	wt := newWorkTimer(ts, "wo-1", zap.NewNop(), clk.Now)
	wt.Start()
	clk.Advance(15 * time.Second)
	wt.Pause()
	wt.Close()

	clk.Advance(time.Hour)

	restored := newWorkTimer(ts, "wo-1", zap.NewNop(), clk.Now)
	t.Cleanup(restored.Close)
	require.False(t, restored.IsRunning())
	require.Equal(t, int64(15), restored.ElapsedSeconds())
}

func TestWorkTimer_Reset(t *testing.T) {
	ts := newTestTimerStore(t)
	clk := newFakeClock()
	wt := newWorkTimer(ts, "wo-1", zap.NewNop(), clk.Now)
	t.Cleanup(wt.Close)

	wt.Start()
	clk.Advance(10 * time.Second)
	wt.Reset()

	require.Nil(t, wt.State())
	require.Nil(t, ts.Load("wo-1"))
	require.Equal(t, int64(0), wt.ElapsedSeconds())
}

func TestWorkTimer_EmptyWorkOrderIDNoOps(t *testing.T) {
	ts := newTestTimerStore(t)
	clk := newFakeClock()
	wt := newWorkTimer(ts, "", zap.NewNop(), clk.Now)

	wt.Start()
	clk.Advance(10 * time.Second)
	require.False(t, wt.IsRunning())
	require.Equal(t, int64(0), wt.ElapsedSeconds())
	require.Nil(t, wt.State())
	require.Equal(t, float64(0), wt.StopAndGetHours())
}

func TestWorkTimer_RoundsHoursToTwoDecimals(t *testing.T) {
	ts := newTestTimerStore(t)
	clk := newFakeClock()
	wt := newWorkTimer(ts, "wo-1", zap.NewNop(), clk.Now)
	t.Cleanup(wt.Close)

	wt.Start()
	// 90 minutes == 1.5h exactly
	clk.Advance(90 * time.Minute)
	require.Equal(t, 1.5, wt.StopAndGetHours())

	// 100 seconds == 0.0277...h, rounds to 0.03
	wt.Start()
	clk.Advance(100 * time.Second)
	require.Equal(t, 0.03, wt.StopAndGetHours())
}

func TestManager_ReusesTimersPerWorkOrder(t *testing.T) {
	ts := newTestTimerStore(t)
	m := NewManager(ts, zap.NewNop())
	t.Cleanup(m.Close)

	a := m.Get("wo-1")
	b := m.Get("wo-1")
	require.Same(t, a, b)

	other := m.Get("wo-2")
	require.NotSame(t, a, other)

	// Timers for different work orders do not share state
	a.Start()
	require.True(t, a.IsRunning())
	require.False(t, other.IsRunning())
}
