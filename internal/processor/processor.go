package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"equipqr/sync-agent/internal/client"
	"equipqr/sync-agent/internal/models"
	"equipqr/sync-agent/internal/queue"

	"go.uber.org/zap"
)

// Remote is the backend boundary the processor drains the queue against
type Remote interface {
	Apply(ctx context.Context, item models.QueueItem) error
	Revision(ctx context.Context, entityType, entityID string) (time.Time, error)
}

// Invalidator is notified after a pass that applied at least one mutation,
// with the entity types whose cached reads are now stale.
type Invalidator func(entityTypes []string)

// ErrNotInitialized is returned when the processor is constructed without
// its queue or remote boundary
var ErrNotInitialized = errors.New("sync processor not initialized")

// Processor drains the offline queue against the remote boundary: items are
// replayed in insertion order, conflicts are detected against server
// revisions, transient failures retry up to a bounded attempt count, and
// permanent rejections fail immediately.
type Processor struct {
	queue       *queue.Service
	remote      Remote
	invalidate  Invalidator
	maxAttempts int
	logger      *zap.Logger

	running atomic.Bool
}

// New creates a sync processor. invalidate may be nil.
func New(q *queue.Service, remote Remote, maxAttempts int, invalidate Invalidator, logger *zap.Logger) *Processor {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Processor{
		queue:       q,
		remote:      remote,
		invalidate:  invalidate,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// InFlight reports whether a processing pass is currently running
func (p *Processor) InFlight() bool {
	return p.running.Load()
}

// ProcessAll drains every pending item once, in queue order. At most one
// pass runs at a time: a concurrent call returns (nil, nil) immediately
// instead of queuing a second drain. Per-item failures are captured in the
// result, never thrown; only setup errors are returned.
func (p *Processor) ProcessAll(ctx context.Context) (*models.ProcessResult, error) {
	if p.queue == nil || p.remote == nil {
		return nil, ErrNotInitialized
	}

	if !p.running.CompareAndSwap(false, true) {
		p.logger.Debug("Sync already in flight, dropping trigger")
		return nil, nil
	}
	defer p.running.Store(false)

	snapshot := p.queue.GetAll()
	result := &models.ProcessResult{}
	staleTypes := make(map[string]bool)

	p.logger.Debug("Starting sync pass", zap.Int("queue_size", len(snapshot)))

	for _, item := range snapshot {
		if item.Status != models.StatusPending {
			continue
		}

		p.queue.SetStatus(item.ID, models.StatusSyncing, "")

		payload, err := models.DecodePayload(item.Operation, item.Payload)
		if err != nil {
			// Undecodable payloads can never replay; no point burning retries
			p.failItem(item.ID, result, fmt.Sprintf("unreadable payload: %v", err))
			continue
		}

		var conflict *models.Conflict
		if item.ServerUpdatedAt != nil {
			var handled bool
			conflict, handled = p.checkConflict(ctx, item, payload, result)
			if handled {
				continue
			}
			if conflict != nil {
				p.logger.Warn("Applying over newer server state (last write wins)",
					zap.String("item_id", item.ID),
					zap.String("entity", payload.EntityType()+"/"+payload.EntityID()),
				)
			}
		}

		if err := p.remote.Apply(ctx, item); err != nil {
			// An unrecorded conflict stays unrecorded; a retry re-checks it
			p.handleApplyError(item, result, err)
			continue
		}

		if conflict != nil {
			result.Conflicts = append(result.Conflicts, *conflict)
		}
		p.queue.Remove(item.ID)
		result.Succeeded++
		staleTypes[payload.EntityType()] = true
	}

	if result.Succeeded > 0 && p.invalidate != nil {
		types := make([]string, 0, len(staleTypes))
		for t := range staleTypes {
			types = append(types, t)
		}
		sort.Strings(types)
		p.invalidate(types)
	}

	p.logger.Info("Sync pass completed",
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("conflicts", len(result.Conflicts)),
	)

	return result, nil
}

// checkConflict compares the item's last-known server revision against the
// current one. A non-nil conflict means the server has moved on but the item
// may still be applied last-write-wins; the caller records it only once the
// apply succeeds, so a transient apply failure does not report the same
// conflict on every pass. handled is true when the item's outcome for this
// pass is already recorded (unsafe blind apply failed it, or the revision
// probe itself errored) and the caller must not apply it.
func (p *Processor) checkConflict(ctx context.Context, item models.QueueItem, payload models.Payload, result *models.ProcessResult) (conflict *models.Conflict, handled bool) {
	rev, err := p.remote.Revision(ctx, payload.EntityType(), payload.EntityID())
	if err != nil {
		p.handleApplyError(item, result, fmt.Errorf("conflict check failed: %w", err))
		return nil, true
	}

	if !rev.After(*item.ServerUpdatedAt) {
		return nil, false
	}

	c := models.Conflict{
		ItemID:     item.ID,
		Operation:  item.Operation,
		EntityType: payload.EntityType(),
		EntityID:   payload.EntityID(),
	}

	if item.Operation.BlindApplySafe() {
		c.Details = fmt.Sprintf(
			"%s %s was changed on the server after this edit was queued; the queued change was applied last-write-wins",
			payload.EntityType(), payload.EntityID(),
		)
		return &c, false
	}

	c.Details = fmt.Sprintf(
		"%s %s was changed on the server after this edit was queued; a bulk replace cannot be applied safely and was not synced",
		payload.EntityType(), payload.EntityID(),
	)
	result.Conflicts = append(result.Conflicts, c)
	p.failItem(item.ID, result, c.Details)
	return nil, true
}

// handleApplyError routes a replay failure: transient errors go back to
// pending until the attempt budget runs out, permanent errors fail
// immediately.
func (p *Processor) handleApplyError(item models.QueueItem, result *models.ProcessResult, err error) {
	if client.IsTransient(err) {
		attempts := p.queue.IncrementAttempts(item.ID)
		if attempts < p.maxAttempts {
			p.queue.SetStatus(item.ID, models.StatusPending, "")
			p.logger.Warn("Transient sync failure, will retry",
				zap.String("item_id", item.ID),
				zap.Int("attempts", attempts),
				zap.Int("max_attempts", p.maxAttempts),
				zap.Error(err),
			)
			return
		}
		p.failItem(item.ID, result, fmt.Sprintf("gave up after %d attempts: %v", attempts, err))
		return
	}

	p.failItem(item.ID, result, err.Error())
}

func (p *Processor) failItem(id string, result *models.ProcessResult, reason string) {
	p.queue.SetStatus(id, models.StatusFailed, reason)
	result.Failed++
	p.logger.Error("Queue item failed",
		zap.String("item_id", id),
		zap.String("reason", reason),
	)
}
