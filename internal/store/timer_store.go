package store

import (
	"database/sql"

	"equipqr/sync-agent/internal/models"

	"go.uber.org/zap"
)

// TimerStore persists work timer state, one record per work order, so a
// timing session survives an agent restart.
type TimerStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTimerStore creates a new timer store
func NewTimerStore(db *sql.DB, logger *zap.Logger) *TimerStore {
	return &TimerStore{
		db:     db,
		logger: logger,
	}
}

// Load returns the persisted timer state for a work order, or nil when no
// session exists. Read failures degrade to nil.
func (ts *TimerStore) Load(workOrderID string) *models.WorkTimerState {
	if workOrderID == "" {
		return nil
	}

	var (
		state     models.WorkTimerState
		startTime sql.NullTime
		isRunning int
	)
	err := ts.db.QueryRow(`
		SELECT work_order_id, original_start_time, start_time, accumulated_seconds, is_running
		FROM work_timers
		WHERE work_order_id = ?
	`, workOrderID).Scan(&state.WorkOrderID, &state.OriginalStartTime, &startTime,
		&state.AccumulatedSeconds, &isRunning)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		ts.logger.Error("Failed to load timer state", zap.Error(err), zap.String("work_order_id", workOrderID))
		return nil
	}

	if startTime.Valid {
		t := startTime.Time
		state.StartTime = &t
	}
	state.IsRunning = isRunning != 0

	return &state
}

// Save upserts the timer state for its work order. Failures are logged,
// not returned.
func (ts *TimerStore) Save(state *models.WorkTimerState) {
	if state == nil || state.WorkOrderID == "" {
		return
	}

	var startTime interface{}
	if state.StartTime != nil {
		startTime = *state.StartTime
	}
	isRunning := 0
	if state.IsRunning {
		isRunning = 1
	}

	_, err := ts.db.Exec(`
		INSERT INTO work_timers (work_order_id, original_start_time, start_time, accumulated_seconds, is_running, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(work_order_id) DO UPDATE SET
			original_start_time = excluded.original_start_time,
			start_time = excluded.start_time,
			accumulated_seconds = excluded.accumulated_seconds,
			is_running = excluded.is_running,
			updated_at = CURRENT_TIMESTAMP
	`, state.WorkOrderID, state.OriginalStartTime, startTime, state.AccumulatedSeconds, isRunning)
	if err != nil {
		ts.logger.Error("Failed to save timer state", zap.Error(err), zap.String("work_order_id", state.WorkOrderID))
	}
}

// Clear removes the persisted state for a work order
func (ts *TimerStore) Clear(workOrderID string) {
	if workOrderID == "" {
		return
	}
	if _, err := ts.db.Exec("DELETE FROM work_timers WHERE work_order_id = ?", workOrderID); err != nil {
		ts.logger.Error("Failed to clear timer state", zap.Error(err), zap.String("work_order_id", workOrderID))
	}
}
