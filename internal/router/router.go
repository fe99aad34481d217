package router

import (
	"net/http"

	"equipqr/sync-agent/internal/handler"

	"go.uber.org/zap"
)

func New(queueHandler *handler.QueueHandler, timerHandler *handler.TimerHandler, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Queue endpoints
	mux.HandleFunc("/api/v1/queue", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			queueHandler.GetState(w, r)
		case http.MethodDelete:
			queueHandler.Clear(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/v1/queue/items", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			queueHandler.Enqueue(w, r)
		case http.MethodDelete:
			queueHandler.RemoveItem(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/v1/queue/sync", postOnly(queueHandler.Sync))
	mux.HandleFunc("/api/v1/queue/retry", postOnly(queueHandler.RetryFailed))

	// Work timer endpoints
	mux.HandleFunc("/api/v1/timers", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		timerHandler.GetTimer(w, r)
	})

	mux.HandleFunc("/api/v1/timers/start", postOnly(timerHandler.Start))
	mux.HandleFunc("/api/v1/timers/pause", postOnly(timerHandler.Pause))
	mux.HandleFunc("/api/v1/timers/stop", postOnly(timerHandler.Stop))
	mux.HandleFunc("/api/v1/timers/reset", postOnly(timerHandler.Reset))

	// Logging middleware
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
		)
		mux.ServeHTTP(w, r)
	})
}

func postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}
