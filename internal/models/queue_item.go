package models

import (
	"encoding/json"
	"time"
)

// ItemStatus represents the sync lifecycle state of a queued mutation
type ItemStatus string

const (
	StatusPending ItemStatus = "pending"
	StatusSyncing ItemStatus = "syncing"
	StatusFailed  ItemStatus = "failed"
)

// QueueItem represents a single deferred mutation awaiting replay against the backend
type QueueItem struct {
	ID              string          `json:"id"`
	Operation       OperationKind   `json:"operation"`
	Payload         json.RawMessage `json:"payload"`
	Status          ItemStatus      `json:"status"`
	Attempts        int             `json:"attempts"`
	CreatedAt       time.Time       `json:"createdAt"`
	ServerUpdatedAt *time.Time      `json:"serverUpdatedAt,omitempty"`
	LastError       *string         `json:"lastError,omitempty"`
}

// Scope identifies the user+organization pair a queue belongs to.
// Queues for different scopes are persisted under separate keys and
// must never merge.
type Scope struct {
	UserID         string
	OrganizationID string
}

// Key returns the storage key for this scope
func (s Scope) Key() string {
	return s.UserID + "::" + s.OrganizationID
}
