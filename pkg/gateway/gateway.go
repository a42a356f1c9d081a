package gateway

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/cuemby/horology/pkg/herror"
	"github.com/cuemby/horology/pkg/kernel"
	"github.com/cuemby/horology/pkg/log"
	"github.com/cuemby/horology/pkg/metrics"
	"github.com/cuemby/horology/pkg/types"
)

// Config configures a Gateway, sourced from the GATEWAY_* environment
// variables.
type Config struct {
	DefaultSchedulePerMinute int
	DefaultCancelPerMinute   int
	DefaultBurst             int

	// ProcessRatePerSecond bounds total admitted requests per second
	// across all tenants: a coarse token-bucket guard ahead of the
	// precise per-credential sliding windows, defense in depth for a
	// single overloaded process.
	ProcessRatePerSecond float64
	ProcessBurst         int
}

// DefaultConfig returns the per-tenant quota defaults applied when a
// TenantPolicy leaves a limit unset.
func DefaultConfig() Config {
	return Config{
		DefaultSchedulePerMinute: 60,
		DefaultCancelPerMinute:   60,
		DefaultBurst:             1000,
		ProcessRatePerSecond:     500,
		ProcessBurst:             1000,
	}
}

// Gateway is the Command Gateway: the single external
// write surface. It never mutates timer state directly — every admitted
// command is forwarded to the Kernel, which alone owns the wheel and
// the log.
type Gateway struct {
	kernel     *kernel.Kernel
	resolvers  Chain
	quota      *QuotaTracker
	processCap *rate.Limiter
	cfg        Config
}

func New(k *kernel.Kernel, resolvers Chain, cfg Config) *Gateway {
	return &Gateway{
		kernel:     k,
		resolvers:  resolvers,
		quota:      NewQuotaTracker(cfg.DefaultSchedulePerMinute, cfg.DefaultCancelPerMinute),
		processCap: rate.NewLimiter(rate.Limit(cfg.ProcessRatePerSecond), cfg.ProcessBurst),
		cfg:        cfg,
	}
}

// Authenticate resolves credential for the claimed tenantID and checks
// permission, centralising the Unauthenticated/PermissionDenied logic
// shared by every operation.
func (g *Gateway) Authenticate(ctx context.Context, tenantID, credential, permission string) (*AuthContext, error) {
	authCtx, err := g.resolvers.Resolve(ctx, tenantID, credential)
	if err != nil {
		return nil, err
	}
	if !authCtx.HasPermission(permission) {
		return nil, herror.PermissionDenied("credential lacks %s", permission)
	}
	return authCtx, nil
}

// ScheduleInput is the gateway-facing request shape, before
// normalisation onto the server clock.
type ScheduleInput struct {
	Name           string
	Labels         map[string]string
	DurationMs     int64
	FireAtISO      *time.Time
	ActionBundle   *types.ActionBundle
	Metadata       map[string]string
	IdempotencyKey string
}

// Schedule authenticates, enforces quotas, normalises schedule_time
// (duration_ms | fire_time_iso) onto an absolute instant on the server
// clock, and forwards to the kernel leader.
func (g *Gateway) Schedule(ctx context.Context, tenantID, credential string, in ScheduleInput) (*types.Timer, error) {
	t := metrics.NewTimer()
	defer t.ObserveDurationVec(metrics.GatewayRequestDuration, "schedule")

	authCtx, err := g.Authenticate(ctx, tenantID, credential, "timers:create")
	if err != nil {
		g.countResult("schedule", err)
		return nil, err
	}

	if !g.processCap.Allow() {
		err := herror.Unavailable("gateway admission capacity exceeded, retry shortly")
		g.countResult("schedule", err)
		return nil, err
	}

	now := time.Now()
	policy, err := g.kernel.GetTenantPolicy(authCtx.TenantID)
	if err != nil || policy == nil {
		err := herror.Internal(err, "tenant policy not found for %s", authCtx.TenantID)
		g.countResult("schedule", err)
		return nil, err
	}

	scheduleLimit := policy.SchedulePerMinute
	if scheduleLimit <= 0 {
		scheduleLimit = g.quota.schedulePerMinute
	}
	if ok, retryAfter := g.quota.windowFor(g.quota.schedule, authCtx.TenantID).allow(now, scheduleLimit); !ok {
		metrics.QuotaRejectionsTotal.WithLabelValues(authCtx.TenantID, "schedule_rate").Inc()
		err := herror.QuotaExceeded("schedule_rate", retryAfter.Milliseconds(), "schedule rate limit exceeded")
		g.countResult("schedule", err)
		return nil, err
	}

	if err := g.enforceBurst(authCtx.TenantID, policy); err != nil {
		g.countResult("schedule", err)
		return nil, err
	}
	if err := g.enforceDaily(authCtx.TenantID, policy, now); err != nil {
		g.countResult("schedule", err)
		return nil, err
	}

	fireAt, err := normalizeFireAt(now, in.DurationMs, in.FireAtISO)
	if err != nil {
		g.countResult("schedule", err)
		return nil, err
	}

	timer, err := g.kernel.Schedule(ctx, kernel.ScheduleInput{
		TenantID:       authCtx.TenantID,
		PrincipalID:    authCtx.PrincipalID,
		Name:           in.Name,
		Labels:         in.Labels,
		FireAt:         fireAt,
		ActionBundle:   in.ActionBundle,
		Metadata:       in.Metadata,
		IdempotencyKey: in.IdempotencyKey,
	})
	g.countResult("schedule", err)
	return timer, err
}

// normalizeFireAt resolves the schedule_time oneof (duration_ms |
// fire_time_iso) to a single absolute instant on the server clock.
// The client's own clock is never trusted for anything but an offset.
func normalizeFireAt(now time.Time, durationMs int64, fireAtISO *time.Time) (time.Time, error) {
	if fireAtISO != nil {
		if !fireAtISO.After(now) {
			return time.Time{}, herror.InvalidInput("fire_time_iso", "fire instant must be in the future")
		}
		return *fireAtISO, nil
	}
	if durationMs <= 0 {
		return time.Time{}, herror.InvalidInput("duration_ms", "duration_ms must be positive when fire_time_iso is not set")
	}
	return now.Add(time.Duration(durationMs) * time.Millisecond), nil
}

func (g *Gateway) enforceBurst(tenantID string, policy *types.TenantPolicy) error {
	limit := policy.BurstLimit
	if limit <= 0 {
		limit = g.cfg.DefaultBurst
	}
	active, err := g.kernel.CountActive(tenantID)
	if err != nil {
		return herror.Internal(err, "count active timers for %s", tenantID)
	}
	if active+1 > limit {
		metrics.QuotaRejectionsTotal.WithLabelValues(tenantID, "burst").Inc()
		return herror.QuotaExceeded("burst", 0, "non-terminal timer count %d reached burst limit %d", active, limit)
	}
	return nil
}

func (g *Gateway) enforceDaily(tenantID string, policy *types.TenantPolicy, now time.Time) error {
	limit := policy.DailyLimit
	if limit <= 0 {
		return nil
	}
	day := now.UTC().Format("2006-01-02")
	count, err := g.kernel.IncrementDailyScheduleCount(tenantID, day)
	if err != nil {
		return herror.Internal(err, "increment daily schedule count for %s", tenantID)
	}
	if count > limit {
		metrics.QuotaRejectionsTotal.WithLabelValues(tenantID, "daily").Inc()
		return herror.QuotaExceeded("daily", 0, "daily creation count %d exceeded limit %d", count, limit)
	}
	return nil
}

// Cancel authenticates, enforces the cancel-rate quota, and forwards
// to the kernel leader.
func (g *Gateway) Cancel(ctx context.Context, tenantID, credential, timerID, reason string) (*types.Timer, error) {
	t := metrics.NewTimer()
	defer t.ObserveDurationVec(metrics.GatewayRequestDuration, "cancel")

	authCtx, err := g.Authenticate(ctx, tenantID, credential, "timers:cancel")
	if err != nil {
		g.countResult("cancel", err)
		return nil, err
	}

	now := time.Now()
	cancelLimit := g.quota.cancelPerMinute
	if policy, err := g.kernel.GetTenantPolicy(authCtx.TenantID); err == nil && policy != nil && policy.CancelPerMinute > 0 {
		cancelLimit = policy.CancelPerMinute
	}
	if ok, retryAfter := g.quota.windowFor(g.quota.cancel, authCtx.TenantID).allow(now, cancelLimit); !ok {
		metrics.QuotaRejectionsTotal.WithLabelValues(authCtx.TenantID, "cancel_rate").Inc()
		err := herror.QuotaExceeded("cancel_rate", retryAfter.Milliseconds(), "cancel rate limit exceeded")
		g.countResult("cancel", err)
		return nil, err
	}

	existing, err := g.kernel.Get(authCtx.TenantID, timerID)
	if err != nil {
		g.countResult("cancel", err)
		return nil, herror.NotFound("timer %s not found", timerID)
	}
	if existing.TenantID != authCtx.TenantID {
		// Defense in depth: Get is already tenant-scoped, but never
		// trust a response that somehow crossed tenants.
		err := herror.NotFound("timer %s not found", timerID)
		g.countResult("cancel", err)
		return nil, err
	}

	timer, err := g.kernel.Cancel(ctx, authCtx.TenantID, timerID, reason, authCtx.PrincipalID)
	g.countResult("cancel", err)
	return timer, err
}

// Get authenticates for timers:read and routes to any kernel node.
func (g *Gateway) Get(ctx context.Context, tenantID, credential, timerID string) (*types.Timer, error) {
	t := metrics.NewTimer()
	defer t.ObserveDurationVec(metrics.GatewayRequestDuration, "get")

	authCtx, err := g.Authenticate(ctx, tenantID, credential, "timers:read")
	if err != nil {
		g.countResult("get", err)
		return nil, err
	}
	timer, err := g.kernel.Get(authCtx.TenantID, timerID)
	g.countResult("get", err)
	return timer, err
}

// List authenticates for timers:read and routes to any kernel node.
func (g *Gateway) List(ctx context.Context, tenantID, credential string, afterIndex uint64, limit int) ([]*types.Timer, error) {
	t := metrics.NewTimer()
	defer t.ObserveDurationVec(metrics.GatewayRequestDuration, "list")

	authCtx, err := g.Authenticate(ctx, tenantID, credential, "timers:read")
	if err != nil {
		g.countResult("list", err)
		return nil, err
	}
	timers, err := g.kernel.List(authCtx.TenantID, afterIndex, limit)
	g.countResult("list", err)
	return timers, err
}

// Subscribe authenticates for timers:stream and opens a broker
// subscription scoped to the authenticated tenant — never the tenant id
// in the request, which is only used for the cross-tenant check.
func (g *Gateway) Subscribe(ctx context.Context, tenantID, credential string, topics []types.EventKind, fromCursor string) (*AuthContext, error) {
	authCtx, err := g.Authenticate(ctx, tenantID, credential, "timers:stream")
	g.countResult("stream", err)
	return authCtx, err
}

func (g *Gateway) countResult(operation string, err error) {
	code := "ok"
	if err != nil {
		code = string(herror.KindOf(err))
	}
	metrics.GatewayRequestsTotal.WithLabelValues(operation, code).Inc()
	if err != nil && herror.KindOf(err) == herror.KindInternal {
		log.WithComponent("gateway").Error().Err(err).Str("operation", operation).Msg("internal error")
	}
}

// Kernel exposes the underlying kernel for callers (e.g. the API
// server) that need direct access to EventBroker/IsLeader/etc.
func (g *Gateway) Kernel() *kernel.Kernel { return g.kernel }
