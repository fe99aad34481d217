package timer

import (
	"math"
	"sync"
	"time"

	"equipqr/sync-agent/internal/models"
	"equipqr/sync-agent/internal/store"

	"go.uber.org/zap"
)

// WorkTimer tracks wall-clock elapsed time for one work order from the
// first start to stop, across pause/resume cycles and agent restarts.
//
// The timer deliberately measures "time since the job started", not time
// actively worked: while running, elapsed always equals now minus the
// original start, so a pause gap is folded back in once the timer resumes.
// While paused, elapsed is frozen at the banked accumulated seconds.
//
// A timer constructed with an empty work order id no-ops everything and
// never persists, so a reused component cannot bleed state between work
// orders.
type WorkTimer struct {
	store       *store.TimerStore
	workOrderID string
	logger      *zap.Logger
	now         func() time.Time

	mu       sync.Mutex
	state    *models.WorkTimerState
	stopTick chan struct{}
	wg       sync.WaitGroup
}

// NewWorkTimer creates a timer bound to a work order, restoring any
// persisted session. A restored running session continues ticking.
func NewWorkTimer(ts *store.TimerStore, workOrderID string, logger *zap.Logger) *WorkTimer {
	return newWorkTimer(ts, workOrderID, logger, time.Now)
}

func newWorkTimer(ts *store.TimerStore, workOrderID string, logger *zap.Logger, now func() time.Time) *WorkTimer {
	t := &WorkTimer{
		store:       ts,
		workOrderID: workOrderID,
		logger:      logger,
		now:         now,
	}
	if workOrderID == "" {
		return t
	}

	t.state = ts.Load(workOrderID)
	if t.state != nil && t.state.IsRunning && t.state.StartTime != nil {
		logger.Info("Resumed running work timer after restart",
			zap.String("work_order_id", workOrderID),
			zap.Time("original_start", t.state.OriginalStartTime),
		)
		t.startTickLoopLocked()
	}
	return t
}

// Start begins or resumes timing. The original start time is set once, on
// the first start of a session, and never reset by a resume.
func (t *WorkTimer) Start() {
	if t.workOrderID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	switch {
	case t.state == nil:
		start := now
		t.state = &models.WorkTimerState{
			WorkOrderID:       t.workOrderID,
			OriginalStartTime: now,
			StartTime:         &start,
			IsRunning:         true,
		}
	case !t.state.IsRunning:
		start := now
		t.state.StartTime = &start
		t.state.IsRunning = true
	default:
		// Already running
		return
	}

	t.store.Save(t.state)
	t.startTickLoopLocked()
	t.logger.Info("Work timer started",
		zap.String("work_order_id", t.workOrderID),
		zap.Time("original_start", t.state.OriginalStartTime),
	)
}

// Pause banks the current run segment and stops ticking. The banked value
// stays frozen until the next resume-and-tick folds the gap back in.
func (t *WorkTimer) Pause() {
	if t.workOrderID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == nil || !t.state.IsRunning || t.state.StartTime == nil {
		return
	}

	t.state.AccumulatedSeconds += int64(t.now().Sub(*t.state.StartTime).Seconds())
	t.state.StartTime = nil
	t.state.IsRunning = false
	t.store.Save(t.state)
	t.stopTickLoopLocked()

	t.logger.Info("Work timer paused",
		zap.String("work_order_id", t.workOrderID),
		zap.Int64("accumulated_seconds", t.state.AccumulatedSeconds),
	)
}

// ElapsedSeconds reports the timer's current reading: wall-clock seconds
// since the original start while running, the frozen accumulated seconds
// while paused.
func (t *WorkTimer) ElapsedSeconds() int64 {
	if t.workOrderID == "" {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == nil {
		return 0
	}
	if t.state.IsRunning {
		return int64(t.now().Sub(t.state.OriginalStartTime).Seconds())
	}
	return t.state.AccumulatedSeconds
}

// StopAndGetHours ends the session, clears all persisted state for the
// work order and returns total elapsed time as hours rounded to two
// decimal places.
func (t *WorkTimer) StopAndGetHours() float64 {
	if t.workOrderID == "" {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == nil {
		return 0
	}

	var totalSeconds int64
	if t.state.IsRunning {
		totalSeconds = int64(t.now().Sub(t.state.OriginalStartTime).Seconds())
	} else {
		totalSeconds = t.state.AccumulatedSeconds
	}

	t.clearLocked()

	hours := math.Round(float64(totalSeconds)/3600*100) / 100
	t.logger.Info("Work timer stopped",
		zap.String("work_order_id", t.workOrderID),
		zap.Int64("total_seconds", totalSeconds),
		zap.Float64("hours", hours),
	)
	return hours
}

// Reset discards the session without reporting a value
func (t *WorkTimer) Reset() {
	if t.workOrderID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == nil {
		return
	}
	t.clearLocked()
	t.logger.Info("Work timer reset", zap.String("work_order_id", t.workOrderID))
}

// IsRunning reports whether the timer is currently running
func (t *WorkTimer) IsRunning() bool {
	if t.workOrderID == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state != nil && t.state.IsRunning
}

// State returns a copy of the current timer state, or nil when no session
// exists
func (t *WorkTimer) State() *models.WorkTimerState {
	if t.workOrderID == "" {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == nil {
		return nil
	}
	cp := *t.state
	if t.state.StartTime != nil {
		st := *t.state.StartTime
		cp.StartTime = &st
	}
	return &cp
}

// Close stops the tick loop without clearing persisted state, so a running
// session can be restored after a restart
func (t *WorkTimer) Close() {
	if t.workOrderID == "" {
		return
	}

	t.mu.Lock()
	t.stopTickLoopLocked()
	t.mu.Unlock()
	t.wg.Wait()
}

// tick recomputes the banked seconds from wall-clock time so that
// accumulated + session == now - originalStart holds continuously. This is
// where a pause gap gets folded back into the total after a resume.
func (t *WorkTimer) tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == nil || !t.state.IsRunning || t.state.StartTime == nil {
		return
	}

	now := t.now()
	totalElapsed := int64(now.Sub(t.state.OriginalStartTime).Seconds())
	sessionElapsed := int64(now.Sub(*t.state.StartTime).Seconds())
	t.state.AccumulatedSeconds = totalElapsed - sessionElapsed
	t.store.Save(t.state)
}

func (t *WorkTimer) clearLocked() {
	t.store.Clear(t.workOrderID)
	t.state = nil
	t.stopTickLoopLocked()
}

func (t *WorkTimer) startTickLoopLocked() {
	if t.stopTick != nil {
		return
	}
	stop := make(chan struct{})
	t.stopTick = stop

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				t.tick()
			case <-stop:
				return
			}
		}
	}()
}

func (t *WorkTimer) stopTickLoopLocked() {
	if t.stopTick != nil {
		close(t.stopTick)
		t.stopTick = nil
	}
}
