package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"equipqr/sync-agent/internal/connectivity"
	"equipqr/sync-agent/internal/models"
	"equipqr/sync-agent/internal/processor"
	"equipqr/sync-agent/internal/queue"

	"go.uber.org/zap"
)

// State is a snapshot of the queue exposed to UI consumers
type State struct {
	QueuedItems  []models.QueueItem `json:"queuedItems"`
	PendingCount int                `json:"pendingCount"`
	FailedCount  int                `json:"failedCount"`
	IsOnline     bool               `json:"isOnline"`
	IsSyncing    bool               `json:"isSyncing"`
	Revision     int64              `json:"revision"`
}

// Controller bridges connectivity transitions, the queue service and the
// sync processor. When the backend becomes reachable again it schedules a
// drain after a short debounce so a flaky reconnect does not thrash, and a
// periodic drain ticker re-attempts queued items that accumulated while
// nominally online.
type Controller struct {
	queue     *queue.Service
	processor *processor.Processor
	watcher   *connectivity.Watcher
	notifier  Notifier
	logger    *zap.Logger

	debounce      time.Duration
	drainInterval time.Duration

	mu            sync.Mutex
	debounceTimer *time.Timer
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

// New creates a controller. notifier may be nil, in which case notifications
// go to the log.
func New(
	q *queue.Service,
	p *processor.Processor,
	w *connectivity.Watcher,
	notifier Notifier,
	debounce time.Duration,
	drainInterval time.Duration,
	logger *zap.Logger,
) *Controller {
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &Controller{
		queue:         q,
		processor:     p,
		watcher:       w,
		notifier:      notifier,
		debounce:      debounce,
		drainInterval: drainInterval,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
}

// Start subscribes to connectivity transitions and begins the periodic
// drain loop
func (c *Controller) Start() {
	c.watcher.Start(c.onConnectivityChange)

	if c.drainInterval > 0 {
		c.wg.Add(1)
		go c.drainLoop()
	}

	c.logger.Info("Queue controller started",
		zap.Duration("debounce", c.debounce),
		zap.Duration("drain_interval", c.drainInterval),
	)
}

// Stop unsubscribes and tears down background work
func (c *Controller) Stop() {
	c.mu.Lock()
	select {
	case <-c.stopChan:
		// Already stopped
		c.mu.Unlock()
		return
	default:
		close(c.stopChan)
	}
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.watcher.Stop()
	c.logger.Info("Queue controller stopped")
}

// Enqueue delegates to the queue service. Payload validation errors are
// surfaced as a notification and returned, so the calling flow can tell
// "queued for later" apart from "rejected outright".
func (c *Controller) Enqueue(payload models.Payload, serverUpdatedAt *time.Time) (*models.QueueItem, error) {
	item, err := c.queue.Enqueue(payload, serverUpdatedAt)
	if err != nil {
		var pe *models.PayloadError
		if errors.As(err, &pe) {
			c.notifier.Error(fmt.Sprintf("Could not queue change: %s", pe.Error()))
		}
		return nil, err
	}
	return item, nil
}

// SyncNow drains the queue once. A call while another drain is in flight is
// dropped and returns (nil, nil).
func (c *Controller) SyncNow(ctx context.Context) (*models.ProcessResult, error) {
	result, err := c.processor.ProcessAll(ctx)
	if err != nil {
		c.notifier.Error(fmt.Sprintf("Sync failed to start: %v", err))
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	if result.Succeeded > 0 {
		msg := fmt.Sprintf("Synced %d offline change(s)", result.Succeeded)
		if len(result.Conflicts) > 0 {
			msg += fmt.Sprintf(", %d conflict(s) resolved", len(result.Conflicts))
		}
		c.notifier.Success(msg)
	}
	for _, conflict := range result.Conflicts {
		c.notifier.Warning(conflict.Details)
	}
	if result.Failed > 0 {
		c.notifier.Error(fmt.Sprintf("%d offline change(s) could not be synced", result.Failed))
	}

	return result, nil
}

// RemoveItem deletes one queued item
func (c *Controller) RemoveItem(id string) {
	c.queue.Remove(id)
}

// ClearQueue empties the queue
func (c *Controller) ClearQueue() {
	c.queue.Clear()
}

// RetryFailed requeues failed items and triggers a drain if any were reset
func (c *Controller) RetryFailed(ctx context.Context) {
	if c.queue.RetryFailedItems() > 0 {
		c.SyncNow(ctx)
	}
}

// Refresh reloads the queue snapshot from durable storage
func (c *Controller) Refresh() {
	c.queue.Refresh()
}

// State returns the current reactive snapshot
func (c *Controller) State() State {
	return State{
		QueuedItems:  c.queue.GetAll(),
		PendingCount: c.queue.PendingCount(),
		FailedCount:  c.queue.FailedCount(),
		IsOnline:     c.watcher.IsOnline(),
		IsSyncing:    c.processor.InFlight(),
		Revision:     c.queue.Revision(),
	}
}

// PendingCount returns the number of items awaiting sync
func (c *Controller) PendingCount() int {
	return c.queue.PendingCount()
}

// FailedCount returns the number of terminally failed items
func (c *Controller) FailedCount() int {
	return c.queue.FailedCount()
}

// IsOnline returns the last observed connectivity state
func (c *Controller) IsOnline() bool {
	return c.watcher.IsOnline()
}

// IsSyncing reports whether a drain is in flight
func (c *Controller) IsSyncing() bool {
	return c.processor.InFlight()
}

// onConnectivityChange schedules a debounced drain when the backend comes
// back and pending work exists. Going offline cancels any scheduled drain.
func (c *Controller) onConnectivityChange(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}

	if !online {
		return
	}
	if c.queue.PendingCount() == 0 || c.processor.InFlight() {
		return
	}

	c.logger.Info("Back online, scheduling sync",
		zap.Int("pending", c.queue.PendingCount()),
		zap.Duration("debounce", c.debounce),
	)
	c.debounceTimer = time.AfterFunc(c.debounce, func() {
		select {
		case <-c.stopChan:
			return
		default:
		}
		c.SyncNow(context.Background())
	})
}

func (c *Controller) drainLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.watcher.IsOnline() && c.queue.PendingCount() > 0 {
				c.SyncNow(context.Background())
			}
		case <-c.stopChan:
			return
		}
	}
}
