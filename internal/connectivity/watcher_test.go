package connectivity_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"equipqr/sync-agent/internal/connectivity"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flakyChecker is a health checker whose outcome can be flipped at runtime
type flakyChecker struct {
	mu  sync.Mutex
	err error
}

func (c *flakyChecker) HealthCheck(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *flakyChecker) set(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func TestWatcher_ReportsTransitions(t *testing.T) {
	checker := &flakyChecker{err: errors.New("unreachable")}
	w := connectivity.NewWatcher(checker, 10*time.Millisecond, zap.NewNop())

	var (
		mu          sync.Mutex
		transitions []bool
	)
	w.Start(func(online bool) {
		mu.Lock()
		transitions = append(transitions, online)
		mu.Unlock()
	})
	t.Cleanup(w.Stop)

	require.False(t, w.IsOnline())

	checker.set(nil)
	require.Eventually(t, w.IsOnline, time.Second, 5*time.Millisecond)

	checker.set(errors.New("unreachable again"))
	require.Eventually(t, func() bool { return !w.IsOnline() }, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(transitions), 2)
	require.True(t, transitions[0])
	require.False(t, transitions[1])
}

func TestWatcher_NoCallbackWithoutTransition(t *testing.T) {
	checker := &flakyChecker{}
	w := connectivity.NewWatcher(checker, 10*time.Millisecond, zap.NewNop())

	var (
		mu    sync.Mutex
		calls int
	)
	w.Start(func(bool) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	t.Cleanup(w.Stop)

	require.True(t, w.IsOnline())
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 0, calls)
}
