package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Checker probes whether the backend is reachable
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Watcher tracks backend reachability by polling a health check and reports
// online/offline transitions to a single subscriber. It is the agent's
// stand-in for browser online/offline events.
type Watcher struct {
	checker  Checker
	interval time.Duration
	onChange func(online bool)
	logger   *zap.Logger

	mu          sync.RWMutex
	online      bool
	checkTicker *time.Ticker
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

// NewWatcher creates a connectivity watcher polling at the given interval
func NewWatcher(checker Checker, interval time.Duration, logger *zap.Logger) *Watcher {
	return &Watcher{
		checker:  checker,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins polling. The first probe runs synchronously to establish a
// baseline; onChange fires only on transitions after that.
func (w *Watcher) Start(onChange func(online bool)) {
	w.onChange = onChange

	initial := w.probe()
	w.mu.Lock()
	w.online = initial
	w.mu.Unlock()

	w.checkTicker = time.NewTicker(w.interval)
	w.wg.Add(1)
	go w.pollLoop()

	w.logger.Info("Connectivity watcher started",
		zap.Bool("online", initial),
		zap.Duration("interval", w.interval),
	)
}

// Stop stops polling
func (w *Watcher) Stop() {
	w.mu.Lock()
	select {
	case <-w.stopChan:
		// Already stopped
		w.mu.Unlock()
		return
	default:
		close(w.stopChan)
	}
	w.mu.Unlock()

	w.wg.Wait()
	if w.checkTicker != nil {
		w.checkTicker.Stop()
	}
	w.logger.Info("Connectivity watcher stopped")
}

// IsOnline returns the last observed connectivity state
func (w *Watcher) IsOnline() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.online
}

func (w *Watcher) pollLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.checkTicker.C:
			w.check()
		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) check() {
	online := w.probe()

	w.mu.Lock()
	changed := online != w.online
	w.online = online
	w.mu.Unlock()

	if !changed {
		return
	}

	select {
	case <-w.stopChan:
		return
	default:
	}

	w.logger.Info("Connectivity changed", zap.Bool("online", online))
	if w.onChange != nil {
		w.onChange(online)
	}
}

func (w *Watcher) probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), w.interval)
	defer cancel()

	if err := w.checker.HealthCheck(ctx); err != nil {
		w.logger.Debug("Health check failed", zap.Error(err))
		return false
	}
	return true
}
