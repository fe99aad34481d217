package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"equipqr/sync-agent/internal/client"
	"equipqr/sync-agent/internal/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testQueueItem() models.QueueItem {
	payload, _ := json.Marshal(models.WorkOrderStatusUpdate{
		WorkOrderID: "wo-1",
		Status:      models.WorkOrderCompleted,
	})
	return models.QueueItem{
		ID:        "item-1",
		Operation: models.OpWorkOrderStatusUpdate,
		Payload:   payload,
		Status:    models.StatusSyncing,
		CreatedAt: time.Now().UTC(),
	}
}

func TestApply_SendsMutationRequest(t *testing.T) {
	var got struct {
		ItemID    string          `json:"itemId"`
		Operation string          `json:"operation"`
		Payload   json.RawMessage `json:"payload"`
		QueuedAt  int64           `json:"queuedAt"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/mutations", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := client.NewAPIClient(server.URL, "test-key", 5*time.Second, zap.NewNop())
	item := testQueueItem()
	require.NoError(t, c.Apply(context.Background(), item))

	require.Equal(t, "item-1", got.ItemID)
	require.Equal(t, string(models.OpWorkOrderStatusUpdate), got.Operation)
	require.JSONEq(t, string(item.Payload), string(got.Payload))
	require.Equal(t, item.CreatedAt.UnixMilli(), got.QueuedAt)
}

func TestApply_ClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		transient  bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"bad gateway", http.StatusBadGateway, true},
		{"validation rejection", http.StatusUnprocessableEntity, false},
		{"not found", http.StatusNotFound, false},
		{"unauthorized", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			c := client.NewAPIClient(server.URL, "", 5*time.Second, zap.NewNop())
			err := c.Apply(context.Background(), testQueueItem())
			require.Error(t, err)
			require.Equal(t, tt.transient, client.IsTransient(err))

			if tt.transient {
				var te *client.TransientError
				require.True(t, errors.As(err, &te))
				require.Equal(t, tt.statusCode, te.StatusCode)
			} else {
				var pe *client.PermanentError
				require.True(t, errors.As(err, &pe))
				require.Equal(t, tt.statusCode, pe.StatusCode)
			}
		})
	}
}

func TestApply_NetworkFailureIsTransient(t *testing.T) {
	// A server that is already gone stands in for a dead network
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := client.NewAPIClient(server.URL, "", time.Second, zap.NewNop())
	err := c.Apply(context.Background(), testQueueItem())
	require.Error(t, err)
	require.True(t, client.IsTransient(err))
}

func TestRevision_ParsesServerMarker(t *testing.T) {
	updatedAt := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/work_orders/wo-1/revision", r.URL.Path)
		fmt.Fprintf(w, `{"updatedAt":%q}`, updatedAt.Format(time.RFC3339))
	}))
	defer server.Close()

	c := client.NewAPIClient(server.URL, "", 5*time.Second, zap.NewNop())
	rev, err := c.Revision(context.Background(), "work_orders", "wo-1")
	require.NoError(t, err)
	require.True(t, rev.Equal(updatedAt))
}

func TestRevision_ClassifiesFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/work_orders/wo-busy/revision":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := client.NewAPIClient(server.URL, "", 5*time.Second, zap.NewNop())

	_, err := c.Revision(context.Background(), "work_orders", "wo-busy")
	require.Error(t, err)
	require.True(t, client.IsTransient(err))

	_, err = c.Revision(context.Background(), "work_orders", "wo-gone")
	require.Error(t, err)
	require.False(t, client.IsTransient(err))
}

func TestHealthCheck(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	c := client.NewAPIClient(server.URL, "", 5*time.Second, zap.NewNop())
	require.NoError(t, c.HealthCheck(context.Background()))

	healthy = false
	require.Error(t, c.HealthCheck(context.Background()))
}
