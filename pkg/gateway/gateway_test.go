package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/horology/pkg/herror"
	"github.com/cuemby/horology/pkg/kernel"
	"github.com/cuemby/horology/pkg/types"
)

func newTestGateway(t *testing.T, tenantID string, policy *types.TenantPolicy) (*Gateway, *kernel.Kernel) {
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

	policy.TenantID = tenantID
	require.NoError(t, k.PutTenantPolicy(policy))

	cfg := DefaultConfig()
	gw := New(k, Chain{NewAPIKeyResolver(k)}, cfg)
	return gw, k
}

func acmePolicy(apiKey string) *types.TenantPolicy {
	return &types.TenantPolicy{
		APIKeyHash:        HashAPIKey(apiKey),
		Permissions:       []string{"timers:create", "timers:cancel", "timers:read", "timers:stream"},
		BurstLimit:        3,
		DailyLimit:        100,
		SchedulePerMinute: 60,
		CancelPerMinute:   60,
	}
}

func TestGateway_ScheduleHappyPath(t *testing.T) {
	gw, _ := newTestGateway(t, "acme", acmePolicy("secret"))

	timer, err := gw.Schedule(context.Background(), "acme", "secret", ScheduleInput{
		Name:       "reminder",
		DurationMs: 500,
	})
	require.NoError(t, err)
	require.Equal(t, "acme", timer.TenantID)
}

func TestGateway_WrongCredentialIsUnauthenticated(t *testing.T) {
	gw, _ := newTestGateway(t, "acme", acmePolicy("secret"))

	_, err := gw.Schedule(context.Background(), "acme", "wrong-key", ScheduleInput{Name: "x", DurationMs: 500})
	require.Error(t, err)
	require.Equal(t, herror.KindUnauthenticated, herror.KindOf(err))
}

func TestGateway_CrossTenantCredentialCannotReadOtherTenant(t *testing.T) {
	gw, k := newTestGateway(t, "acme", acmePolicy("secret"))
	require.NoError(t, k.PutTenantPolicy(&types.TenantPolicy{
		TenantID:    "beta",
		APIKeyHash:  HashAPIKey("beta-secret"),
		Permissions: []string{"timers:read"},
	}))

	timer, err := gw.Schedule(context.Background(), "acme", "secret", ScheduleInput{Name: "x", DurationMs: 500})
	require.NoError(t, err)

	// beta's own valid credential, but requesting acme's timer id under
	// its own tenant claim must never see it.
	_, err = gw.Get(context.Background(), "beta", "beta-secret", timer.ID)
	require.Error(t, err)
	require.Equal(t, herror.KindNotFound, herror.KindOf(err))
}

func TestGateway_MissingPermissionIsDenied(t *testing.T) {
	policy := acmePolicy("secret")
	policy.Permissions = []string{"timers:read"}
	gw, _ := newTestGateway(t, "acme", policy)

	_, err := gw.Schedule(context.Background(), "acme", "secret", ScheduleInput{Name: "x", DurationMs: 500})
	require.Error(t, err)
	require.Equal(t, herror.KindPermissionDenied, herror.KindOf(err))
}

func TestGateway_BurstQuotaExceeded(t *testing.T) {
	policy := acmePolicy("secret")
	policy.BurstLimit = 2
	gw, _ := newTestGateway(t, "acme", policy)

	for i := 0; i < 2; i++ {
		_, err := gw.Schedule(context.Background(), "acme", "secret", ScheduleInput{Name: "x", DurationMs: 60_000})
		require.NoError(t, err)
	}

	_, err := gw.Schedule(context.Background(), "acme", "secret", ScheduleInput{Name: "x", DurationMs: 60_000})
	require.Error(t, err)
	require.Equal(t, herror.KindQuotaExceeded, herror.KindOf(err))
}

func TestGateway_ScheduleRateQuota(t *testing.T) {
	policy := acmePolicy("secret")
	policy.SchedulePerMinute = 1
	policy.BurstLimit = 10
	gw, _ := newTestGateway(t, "acme", policy)

	_, err := gw.Schedule(context.Background(), "acme", "secret", ScheduleInput{Name: "x", DurationMs: 60_000})
	require.NoError(t, err)

	_, err = gw.Schedule(context.Background(), "acme", "secret", ScheduleInput{Name: "y", DurationMs: 60_000})
	require.Error(t, err)
	herr := herror.KindOf(err)
	require.True(t, herr == herror.KindQuotaExceeded)
}

func TestGateway_CancelHappyPath(t *testing.T) {
	gw, _ := newTestGateway(t, "acme", acmePolicy("secret"))

	timer, err := gw.Schedule(context.Background(), "acme", "secret", ScheduleInput{Name: "x", DurationMs: 5_000})
	require.NoError(t, err)

	cancelled, err := gw.Cancel(context.Background(), "acme", "secret", timer.ID, "changed-mind")
	require.NoError(t, err)
	require.Equal(t, types.TimerStatusCancelled, cancelled.Status)
}
