package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"equipqr/sync-agent/internal/models"

	"go.uber.org/zap"
)

// APIClient replays queued mutations against the backend and answers
// revision queries for conflict checks. The backend is treated as an opaque
// request/response boundary: a mutation either succeeds, fails transiently,
// or is rejected permanently.
type APIClient struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// mutationRequest is the wire form of one replayed mutation
type mutationRequest struct {
	ItemID    string               `json:"itemId"`
	Operation models.OperationKind `json:"operation"`
	Payload   json.RawMessage      `json:"payload"`
	QueuedAt  int64                `json:"queuedAt"` // Unix timestamp in milliseconds
}

// Apply replays one queued mutation. Network failures, 5xx and 429 come
// back as *TransientError; other 4xx responses as *PermanentError.
func (c *APIClient) Apply(ctx context.Context, item models.QueueItem) error {
	body := mutationRequest{
		ItemID:    item.ID,
		Operation: item.Operation,
		Payload:   item.Payload,
		QueuedAt:  item.CreatedAt.UnixMilli(),
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return &PermanentError{Message: fmt.Sprintf("failed to marshal mutation: %v", err)}
	}

	url := fmt.Sprintf("%s/api/v1/mutations", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return &PermanentError{Message: fmt.Sprintf("failed to create request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Warn("Mutation request failed",
			zap.Error(err),
			zap.String("item_id", item.ID),
			zap.Duration("duration", duration),
		)
		return &TransientError{Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Info("Mutation applied",
			zap.String("item_id", item.ID),
			zap.String("operation", string(item.Operation)),
			zap.Int("status_code", resp.StatusCode),
			zap.Duration("duration", duration),
		)
		return nil
	}

	errMsg := fmt.Sprintf("backend returned status %d: %s", resp.StatusCode, string(respBody))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		c.logger.Warn("Transient backend error",
			zap.Int("status_code", resp.StatusCode),
			zap.String("item_id", item.ID),
		)
		return &TransientError{Message: errMsg, StatusCode: resp.StatusCode}
	default:
		c.logger.Error("Mutation rejected by backend",
			zap.Int("status_code", resp.StatusCode),
			zap.String("item_id", item.ID),
			zap.String("response", string(respBody)),
		)
		return &PermanentError{Message: errMsg, StatusCode: resp.StatusCode}
	}
}

// revisionResponse carries the server-side revision marker of one entity
type revisionResponse struct {
	UpdatedAt time.Time `json:"updatedAt"`
}

// Revision returns the current server revision marker for an entity
func (c *APIClient) Revision(ctx context.Context, entityType, entityID string) (time.Time, error) {
	url := fmt.Sprintf("%s/api/v1/%s/%s/revision", c.baseURL, entityType, entityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return time.Time{}, &PermanentError{Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return time.Time{}, &TransientError{Message: fmt.Sprintf("revision check failed: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return time.Time{}, &TransientError{Message: fmt.Sprintf("failed to read revision response: %v", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return time.Time{}, &TransientError{
			Message:    fmt.Sprintf("revision check returned status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return time.Time{}, &PermanentError{
			Message:    fmt.Sprintf("revision check returned status %d: %s", resp.StatusCode, string(respBody)),
			StatusCode: resp.StatusCode,
		}
	}

	var rev revisionResponse
	if err := json.Unmarshal(respBody, &rev); err != nil {
		return time.Time{}, &PermanentError{Message: fmt.Sprintf("failed to parse revision response: %v", err)}
	}

	return rev.UpdatedAt, nil
}

// HealthCheck checks if the backend is reachable
func (c *APIClient) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/health", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// Error types

// TransientError is a failure expected to self-resolve: network loss,
// server 5xx, rate limiting.
type TransientError struct {
	Message    string
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Message
}

// PermanentError is a semantic rejection that retrying cannot fix
type PermanentError struct {
	Message    string
	StatusCode int
}

func (e *PermanentError) Error() string {
	return e.Message
}

// IsTransient reports whether the error should be retried
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
