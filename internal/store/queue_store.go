package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"equipqr/sync-agent/internal/models"

	"go.uber.org/zap"
)

// QueueStore persists the ordered list of queued mutations, partitioned by
// scope key. Persistence is best effort: a failed save degrades to an
// in-memory-only queue for this process lifetime, never to a crashed caller.
type QueueStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewQueueStore creates a new queue store
func NewQueueStore(db *sql.DB, logger *zap.Logger) *QueueStore {
	return &QueueStore{
		db:     db,
		logger: logger,
	}
}

// Load returns all items persisted under the scope, in insertion order.
// Missing data and corrupt rows degrade to an empty result; corrupt rows
// are deleted so they are not re-read forever.
func (qs *QueueStore) Load(scope models.Scope) []models.QueueItem {
	rows, err := qs.db.Query(`
		SELECT seq, id, operation, payload, status, attempts, created_at, server_updated_at, last_error
		FROM queue_items
		WHERE scope_key = ?
		ORDER BY seq ASC
	`, scope.Key())
	if err != nil {
		qs.logger.Error("Failed to query queue items", zap.Error(err), zap.String("scope", scope.Key()))
		return []models.QueueItem{}
	}
	items := []models.QueueItem{}
	corruptSeqs := []int64{}
	for rows.Next() {
		var (
			seq             int64
			item            models.QueueItem
			operation       string
			payload         string
			status          string
			serverUpdatedAt sql.NullTime
			lastError       sql.NullString
		)
		if err := rows.Scan(&seq, &item.ID, &operation, &payload, &status,
			&item.Attempts, &item.CreatedAt, &serverUpdatedAt, &lastError); err != nil {
			qs.logger.Error("Failed to scan queue item", zap.Error(err))
			continue
		}

		item.Operation = models.OperationKind(operation)
		item.Status = models.ItemStatus(status)
		item.Payload = json.RawMessage(payload)
		if serverUpdatedAt.Valid {
			t := serverUpdatedAt.Time
			item.ServerUpdatedAt = &t
		}
		if lastError.Valid {
			s := lastError.String
			item.LastError = &s
		}

		if !item.Operation.Valid() || !json.Valid(item.Payload) {
			qs.logger.Warn("Dropping corrupt queue item",
				zap.Int64("seq", seq),
				zap.String("operation", operation),
			)
			corruptSeqs = append(corruptSeqs, seq)
			continue
		}

		items = append(items, item)
	}
	rows.Close()

	// Deleting while the cursor is open would contend with our own read
	for _, seq := range corruptSeqs {
		if _, err := qs.db.Exec("DELETE FROM queue_items WHERE seq = ?", seq); err != nil {
			qs.logger.Error("Failed to delete corrupt queue item", zap.Error(err), zap.Int64("seq", seq))
		}
	}

	return items
}

// Save overwrites the persisted list for the scope with the given items,
// preserving slice order. Failures are logged, not returned.
func (qs *QueueStore) Save(scope models.Scope, items []models.QueueItem) {
	tx, err := qs.db.Begin()
	if err != nil {
		qs.logger.Error("Failed to begin queue save", zap.Error(err), zap.String("scope", scope.Key()))
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM queue_items WHERE scope_key = ?", scope.Key()); err != nil {
		qs.logger.Error("Failed to clear queue items for save", zap.Error(err))
		return
	}

	stmt, err := tx.Prepare(`
		INSERT INTO queue_items (id, scope_key, operation, payload, status, attempts, created_at, server_updated_at, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		qs.logger.Error("Failed to prepare queue insert", zap.Error(err))
		return
	}
	defer stmt.Close()

	for _, item := range items {
		var serverUpdatedAt interface{}
		if item.ServerUpdatedAt != nil {
			serverUpdatedAt = *item.ServerUpdatedAt
		}
		var lastError interface{}
		if item.LastError != nil {
			lastError = *item.LastError
		}

		if _, err := stmt.Exec(item.ID, scope.Key(), string(item.Operation), string(item.Payload),
			string(item.Status), item.Attempts, item.CreatedAt, serverUpdatedAt, lastError); err != nil {
			qs.logger.Error("Failed to persist queue item", zap.Error(err), zap.String("item_id", item.ID))
			return
		}
	}

	if err := tx.Commit(); err != nil {
		qs.logger.Error("Failed to commit queue save", zap.Error(err))
		return
	}

	qs.logger.Debug("Queue persisted",
		zap.Int("count", len(items)),
		zap.String("scope", scope.Key()),
	)
}

// Clear removes all persisted items for the scope
func (qs *QueueStore) Clear(scope models.Scope) {
	if _, err := qs.db.Exec("DELETE FROM queue_items WHERE scope_key = ?", scope.Key()); err != nil {
		qs.logger.Error("Failed to clear queue", zap.Error(err), zap.String("scope", scope.Key()))
	}
}

// CleanupStaleFailed removes failed items older than the given duration
// across all scopes. Items in other states are kept regardless of age.
func (qs *QueueStore) CleanupStaleFailed(olderThan time.Duration) {
	cutoff := time.Now().Add(-olderThan)
	result, err := qs.db.Exec(`
		DELETE FROM queue_items
		WHERE created_at < ? AND status = ?
	`, cutoff, string(models.StatusFailed))
	if err != nil {
		qs.logger.Error("Failed to cleanup stale failed items", zap.Error(err))
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		qs.logger.Info("Cleaned up stale failed items",
			zap.Int64("count", rowsAffected),
		)
	}
}
