package timer

import (
	"sync"

	"equipqr/sync-agent/internal/store"

	"go.uber.org/zap"
)

// Manager hands out one WorkTimer per work order id, restoring persisted
// sessions lazily on first access.
type Manager struct {
	store  *store.TimerStore
	logger *zap.Logger

	mu     sync.Mutex
	timers map[string]*WorkTimer
}

// NewManager creates a timer manager
func NewManager(ts *store.TimerStore, logger *zap.Logger) *Manager {
	return &Manager{
		store:  ts,
		logger: logger,
		timers: make(map[string]*WorkTimer),
	}
}

// Get returns the timer for a work order, creating it on first access.
// An empty id yields a detached no-op timer that is never cached.
func (m *Manager) Get(workOrderID string) *WorkTimer {
	if workOrderID == "" {
		return NewWorkTimer(m.store, "", m.logger)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.timers[workOrderID]; ok {
		return t
	}
	t := NewWorkTimer(m.store, workOrderID, m.logger)
	m.timers[workOrderID] = t
	return t
}

// Close stops the tick loops of all managed timers, leaving persisted
// state intact for restore
func (m *Manager) Close() {
	m.mu.Lock()
	timers := make([]*WorkTimer, 0, len(m.timers))
	for _, t := range m.timers {
		timers = append(timers, t)
	}
	m.mu.Unlock()

	for _, t := range timers {
		t.Close()
	}
	m.logger.Info("Work timers closed", zap.Int("count", len(timers)))
}
