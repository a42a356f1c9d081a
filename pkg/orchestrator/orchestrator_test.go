package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/horology/pkg/kernel"
	"github.com/cuemby/horology/pkg/types"
)

func newTestKernel(t *testing.T) *kernel.Kernel {
	t.Helper()
	k, err := kernel.New(&kernel.Config{
		NodeID:       "node-1",
		BindAddr:     "127.0.0.1:0",
		DataDir:      t.TempDir(),
		StoreBackend: "memory",
		TickInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, k.Bootstrap())
	t.Cleanup(func() { _ = k.Shutdown() })
	require.Eventually(t, k.IsLeader, 2*time.Second, 5*time.Millisecond)
	return k
}

func scheduleWithWebhook(t *testing.T, k *kernel.Kernel, tenantID, url string) *types.Timer {
	t.Helper()
	timer, err := k.Schedule(context.Background(), kernel.ScheduleInput{
		TenantID: tenantID,
		Name:     "webhook-timer",
		FireAt:   time.Now().Add(20 * time.Millisecond),
		ActionBundle: &types.ActionBundle{
			Actions: []types.Action{{
				Kind:       types.ActionKindWebhook,
				Parameters: map[string]string{"url": url},
				Retry:      types.RetryPolicy{MaxAttempts: 3, InitialBackoffMs: 5, Multiplier: 2},
			}},
		},
	})
	require.NoError(t, err)
	return timer
}

func TestOrchestrator_DispatchesFiredWebhook(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		require.NotEmpty(t, r.Header.Get(IdempotencyHeader))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	k := newTestKernel(t)
	scheduleWithWebhook(t, k, "acme", srv.URL)

	orch := New(k, NewMemoryCursorStore(), DefaultConfig(), NewWebhookDispatcher())
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = orch.Run(ctx) }()
	defer cancel()
	defer orch.Stop()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&hits) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestOrchestrator_RetriesOnServerError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	k := newTestKernel(t)
	scheduleWithWebhook(t, k, "acme", srv.URL)

	orch := New(k, NewMemoryCursorStore(), DefaultConfig(), NewWebhookDispatcher())
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = orch.Run(ctx) }()
	defer cancel()
	defer orch.Stop()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&hits) == 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestOrchestrator_TerminalFailureRecordsOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	k := newTestKernel(t)
	timer := scheduleWithWebhook(t, k, "acme", srv.URL)

	orch := New(k, NewMemoryCursorStore(), DefaultConfig(), NewWebhookDispatcher())
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = orch.Run(ctx) }()
	defer cancel()
	defer orch.Stop()

	require.Eventually(t, func() bool {
		got, err := k.Get("acme", timer.ID)
		return err == nil && got.FailureReason != ""
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOrchestrator_AgentPromptLoopback(t *testing.T) {
	delivered := make(chan WebhookKey, 1)
	adapter := NewLoopbackAdapter("local", func(ctx context.Context, action types.Action, key WebhookKey) error {
		delivered <- key
		return nil
	})

	k := newTestKernel(t)
	timer, err := k.Schedule(context.Background(), kernel.ScheduleInput{
		TenantID: "acme",
		Name:     "agent-timer",
		FireAt:   time.Now().Add(20 * time.Millisecond),
		ActionBundle: &types.ActionBundle{
			Actions: []types.Action{{
				Kind:       types.ActionKindAgentPrompt,
				Parameters: map[string]string{"adapter": "local"},
			}},
		},
	})
	require.NoError(t, err)

	orch := New(k, NewMemoryCursorStore(), DefaultConfig(), NewAgentDispatcher(adapter))
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = orch.Run(ctx) }()
	defer cancel()
	defer orch.Stop()

	select {
	case key := <-delivered:
		require.Equal(t, timer.ID, key.TimerID)
	case <-time.After(2 * time.Second):
		t.Fatal("agent prompt never delivered")
	}
}
