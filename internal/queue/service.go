package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"equipqr/sync-agent/internal/models"
	"equipqr/sync-agent/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service is the typed API over the persistent queue store for one
// user+organization scope. It keeps an in-memory snapshot of the item list
// and writes every mutation through to the store.
type Service struct {
	store  *store.QueueStore
	scope  models.Scope
	logger *zap.Logger

	mu       sync.RWMutex
	items    []models.QueueItem
	revision int64

	now func() time.Time
}

// NewService creates a queue service for the given scope, loading any
// previously persisted items.
func NewService(qs *store.QueueStore, scope models.Scope, logger *zap.Logger) *Service {
	s := &Service{
		store:  qs,
		scope:  scope,
		logger: logger,
		now:    time.Now,
	}
	s.items = qs.Load(scope)
	if len(s.items) > 0 {
		logger.Info("Restored offline queue",
			zap.Int("count", len(s.items)),
			zap.String("scope", scope.Key()),
		)
	}
	return s
}

// Scope returns the user+organization scope this service is bound to
func (s *Service) Scope() models.Scope {
	return s.scope
}

// Enqueue validates the payload and appends a new pending item to the queue.
// Validation failures return a *models.PayloadError and persist nothing.
func (s *Service) Enqueue(payload models.Payload, serverUpdatedAt *time.Time) (*models.QueueItem, error) {
	if err := payload.Validate(); err != nil {
		s.logger.Warn("Rejected queue payload",
			zap.String("operation", string(payload.Kind())),
			zap.Error(err),
		)
		return nil, err
	}

	if cr, ok := payload.(models.ChecklistReplace); ok {
		payload = cr.Normalize()
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	item := models.QueueItem{
		ID:              uuid.New().String(),
		Operation:       payload.Kind(),
		Payload:         raw,
		Status:          models.StatusPending,
		Attempts:        0,
		CreatedAt:       s.now(),
		ServerUpdatedAt: serverUpdatedAt,
	}

	s.mu.Lock()
	s.items = append(s.items, item)
	s.persistLocked()
	s.mu.Unlock()

	s.logger.Info("Mutation queued for offline sync",
		zap.String("item_id", item.ID),
		zap.String("operation", string(item.Operation)),
	)

	return &item, nil
}

// GetAll returns a snapshot of the current queue in insertion order
func (s *Service) GetAll() []models.QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]models.QueueItem, len(s.items))
	copy(items, s.items)
	return items
}

// Remove deletes one item by id. Removing an unknown id is a no-op.
func (s *Service) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, item := range s.items {
		if item.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.persistLocked()
			return
		}
	}
}

// SetStatus updates one item's status and last error. An empty lastError
// clears any recorded failure reason.
func (s *Service) SetStatus(id string, status models.ItemStatus, lastError string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Status = status
			if lastError == "" {
				s.items[i].LastError = nil
			} else {
				s.items[i].LastError = &lastError
			}
			s.persistLocked()
			return
		}
	}
}

// IncrementAttempts bumps the attempt count for one item and returns the
// new count. Returns 0 for an unknown id.
func (s *Service) IncrementAttempts(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Attempts++
			s.persistLocked()
			return s.items[i].Attempts
		}
	}
	return 0
}

// RetryFailedItems transitions every failed item back to pending with a
// fresh attempt budget. It does not trigger a sync; that is the caller's
// decision.
func (s *Service) RetryFailedItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	reset := 0
	for i := range s.items {
		if s.items[i].Status == models.StatusFailed {
			s.items[i].Status = models.StatusPending
			s.items[i].Attempts = 0
			s.items[i].LastError = nil
			reset++
		}
	}
	if reset > 0 {
		s.persistLocked()
		s.logger.Info("Failed items queued for retry", zap.Int("count", reset))
	}
	return reset
}

// Clear empties the queue entirely
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.store.Clear(s.scope)
	s.revision++
}

// Refresh reloads the snapshot from the store, discarding in-memory state
func (s *Service) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = s.store.Load(s.scope)
	s.revision++
}

// PendingCount returns the number of items awaiting sync
func (s *Service) PendingCount() int {
	return s.countByStatus(models.StatusPending)
}

// FailedCount returns the number of items that exhausted their retries or
// were rejected permanently
func (s *Service) FailedCount() int {
	return s.countByStatus(models.StatusFailed)
}

// Revision returns a counter that increases with every queue mutation.
// Consumers compare revisions to decide when to recompute derived state.
func (s *Service) Revision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

func (s *Service) countByStatus(status models.ItemStatus) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, item := range s.items {
		if item.Status == status {
			count++
		}
	}
	return count
}

// persistLocked writes the current snapshot through to the store and bumps
// the revision counter. Callers must hold s.mu.
func (s *Service) persistLocked() {
	s.store.Save(s.scope, s.items)
	s.revision++
}
