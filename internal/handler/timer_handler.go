package handler

import (
	"net/http"

	"equipqr/sync-agent/internal/timer"

	"go.uber.org/zap"
)

// TimerHandler exposes per-work-order timers to a local UI
type TimerHandler struct {
	timers *timer.Manager
	logger *zap.Logger
}

// NewTimerHandler creates a new timer handler
func NewTimerHandler(timers *timer.Manager, logger *zap.Logger) *TimerHandler {
	return &TimerHandler{
		timers: timers,
		logger: logger,
	}
}

// GetTimer returns the current state and elapsed reading of one timer
func (h *TimerHandler) GetTimer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workOrderID(w, r)
	if !ok {
		return
	}
	t := h.timers.Get(id)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workOrderId":    id,
		"isRunning":      t.IsRunning(),
		"elapsedSeconds": t.ElapsedSeconds(),
		"state":          t.State(),
	})
}

// Start begins or resumes a timer
func (h *TimerHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workOrderID(w, r)
	if !ok {
		return
	}
	t := h.timers.Get(id)
	t.Start()
	writeJSON(w, http.StatusOK, t.State())
}

// Pause pauses a timer
func (h *TimerHandler) Pause(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workOrderID(w, r)
	if !ok {
		return
	}
	t := h.timers.Get(id)
	t.Pause()
	writeJSON(w, http.StatusOK, t.State())
}

// Stop ends the session and returns the hours value to attach to a note
func (h *TimerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workOrderID(w, r)
	if !ok {
		return
	}
	hours := h.timers.Get(id).StopAndGetHours()
	writeJSON(w, http.StatusOK, map[string]float64{"hours": hours})
}

// Reset discards a session without reporting hours
func (h *TimerHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.workOrderID(w, r)
	if !ok {
		return
	}
	h.timers.Get(id).Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (h *TimerHandler) workOrderID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("work_order_id")
	if id == "" {
		http.Error(w, "Missing work_order_id parameter", http.StatusBadRequest)
		return "", false
	}
	return id, true
}
