package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"equipqr/sync-agent/internal/controller"
	"equipqr/sync-agent/internal/models"

	"go.uber.org/zap"
)

// QueueHandler exposes the offline queue to a local UI
type QueueHandler struct {
	controller *controller.Controller
	logger     *zap.Logger
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(ctrl *controller.Controller, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{
		controller: ctrl,
		logger:     logger,
	}
}

// GetState returns the current queue snapshot with derived counts
func (h *QueueHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.State())
}

// enqueueRequest is the wire form of an enqueue call
type enqueueRequest struct {
	Operation       models.OperationKind `json:"operation"`
	Payload         json.RawMessage      `json:"payload"`
	ServerUpdatedAt *time.Time           `json:"serverUpdatedAt,omitempty"`
}

// Enqueue validates and queues one mutation
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode enqueue request", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	payload, err := models.DecodePayload(req.Operation, req.Payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	item, err := h.controller.Enqueue(payload, req.ServerUpdatedAt)
	if err != nil {
		var pe *models.PayloadError
		if errors.As(err, &pe) {
			http.Error(w, pe.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("Failed to enqueue mutation", zap.Error(err))
		http.Error(w, "Failed to enqueue mutation", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// Sync triggers a drain. A drain already in flight reports 202 rather than
// queuing a second pass.
func (h *QueueHandler) Sync(w http.ResponseWriter, r *http.Request) {
	result, err := h.controller.SyncNow(r.Context())
	if err != nil {
		h.logger.Error("Sync failed", zap.Error(err))
		http.Error(w, "Sync failed", http.StatusInternalServerError)
		return
	}
	if result == nil {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "sync already in flight"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RetryFailed requeues failed items and drains
func (h *QueueHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	h.controller.RetryFailed(r.Context())
	writeJSON(w, http.StatusOK, h.controller.State())
}

// RemoveItem deletes one queued item by id
func (h *QueueHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}
	h.controller.RemoveItem(id)
	w.WriteHeader(http.StatusNoContent)
}

// Clear empties the queue
func (h *QueueHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.controller.ClearQueue()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
