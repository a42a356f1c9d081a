package kernel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/horology/pkg/herror"
	"github.com/cuemby/horology/pkg/types"
)

// newTestKernel bootstraps a single-node, memory-backed Kernel and
// waits for it to self-elect: a lone bootstrapped node runs in
// degraded mode and serves requests immediately.
func newTestKernel(t *testing.T) *Kernel {
	t.Helper()

	k, err := New(&Config{
		NodeID:       "node-1",
		BindAddr:     "127.0.0.1:0",
		DataDir:      t.TempDir(),
		StoreBackend: "memory",
		TickInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, k.Bootstrap())
	t.Cleanup(func() { _ = k.Shutdown() })

	require.Eventually(t, k.IsLeader, 2*time.Second, 5*time.Millisecond, "node never became leader")
	return k
}

func TestKernel_ScheduleAndFire(t *testing.T) {
	k := newTestKernel(t)
	ctx := context.Background()

	timer, err := k.Schedule(ctx, ScheduleInput{
		TenantID:    "acme",
		PrincipalID: "alice",
		Name:        "reminder-1",
		FireAt:      time.Now().Add(150 * time.Millisecond),
	})
	require.NoError(t, err)
	require.Equal(t, types.TimerStatusArmed, timer.Status)

	require.Eventually(t, func() bool {
		got, err := k.Get("acme", timer.ID)
		return err == nil && got.Status == types.TimerStatusFired
	}, 2*time.Second, 10*time.Millisecond, "timer never fired")

	got, err := k.Get("acme", timer.ID)
	require.NoError(t, err)
	require.False(t, got.FiredAt.Before(got.FireAt), "no premature fire: fired_at must be >= fire_at")
}

func TestKernel_CancelBeforeFire(t *testing.T) {
	k := newTestKernel(t)
	ctx := context.Background()

	timer, err := k.Schedule(ctx, ScheduleInput{
		TenantID: "acme",
		Name:     "reminder-2",
		FireAt:   time.Now().Add(5 * time.Second),
	})
	require.NoError(t, err)

	cancelled, err := k.Cancel(ctx, "acme", timer.ID, "user-changed-mind", "alice")
	require.NoError(t, err)
	require.Equal(t, types.TimerStatusCancelled, cancelled.Status)
	require.Equal(t, "user-changed-mind", cancelled.CancelReason)

	time.Sleep(50 * time.Millisecond)
	got, err := k.Get("acme", timer.ID)
	require.NoError(t, err)
	require.Equal(t, types.TimerStatusCancelled, got.Status, "no fired event ever emitted for a cancelled timer")
}

func TestKernel_CancelAfterTerminalReturnsExistingState(t *testing.T) {
	k := newTestKernel(t)
	ctx := context.Background()

	timer, err := k.Schedule(ctx, ScheduleInput{
		TenantID: "acme",
		Name:     "reminder-3",
		FireAt:   time.Now().Add(30 * time.Millisecond),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, _ := k.Get("acme", timer.ID)
		return got.Status == types.TimerStatusFired
	}, 2*time.Second, 10*time.Millisecond)

	result, err := k.Cancel(ctx, "acme", timer.ID, "too-late", "alice")
	require.NoError(t, err)
	require.Equal(t, types.TimerStatusFired, result.Status, "cancel loses the race once fired is committed")
}

func TestKernel_IdempotentSchedule(t *testing.T) {
	k := newTestKernel(t)
	ctx := context.Background()

	in := ScheduleInput{
		TenantID:       "acme",
		Name:           "reminder-4",
		FireAt:         time.Now().Add(time.Hour),
		IdempotencyKey: "key-1",
	}
	first, err := k.Schedule(ctx, in)
	require.NoError(t, err)

	second, err := k.Schedule(ctx, in)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "duplicate idempotency key yields the same timer id")
}

func TestKernel_ScheduleRejectsPastFireInstant(t *testing.T) {
	k := newTestKernel(t)
	ctx := context.Background()

	_, err := k.Schedule(ctx, ScheduleInput{
		TenantID: "acme",
		Name:     "too-late",
		FireAt:   time.Now().Add(-time.Second),
	})
	require.Error(t, err)
	require.Equal(t, herror.KindInvalidInput, herror.KindOf(err))
}

func TestKernel_CrossTenantGetReturnsNotFound(t *testing.T) {
	k := newTestKernel(t)
	ctx := context.Background()

	timer, err := k.Schedule(ctx, ScheduleInput{
		TenantID: "acme",
		Name:     "reminder-5",
		FireAt:   time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = k.Get("beta", timer.ID)
	require.Error(t, err, "a timer must never be visible under another tenant's id")
}

func TestKernel_TieBreakByLogIndexAtEqualFireInstant(t *testing.T) {
	k := newTestKernel(t)
	ctx := context.Background()

	fireAt := time.Now().Add(100 * time.Millisecond)
	first, err := k.Schedule(ctx, ScheduleInput{TenantID: "acme", Name: "a", FireAt: fireAt})
	require.NoError(t, err)
	second, err := k.Schedule(ctx, ScheduleInput{TenantID: "acme", Name: "b", FireAt: fireAt})
	require.NoError(t, err)
	require.Less(t, first.LogIndex, second.LogIndex)

	require.Eventually(t, func() bool {
		a, _ := k.Get("acme", first.ID)
		b, _ := k.Get("acme", second.ID)
		return a.Status == types.TimerStatusFired && b.Status == types.TimerStatusFired
	}, 2*time.Second, 10*time.Millisecond)
}
