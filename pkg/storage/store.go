package storage

import (
	"github.com/cuemby/horology/pkg/types"
)

// TimerProjection is the read/write interface to the kernel's durable
// projection of timer state. It is never shared by mutable reference
// across goroutines: the Raft FSM is the single writer (leader applies
// committed log entries; followers apply in the same commit order), and
// reads serve get/list/stream requests from any node's local copy.
//
// Implementations: memory (single-node / test), bolt (embedded, default
// production store). KERNEL_STORE=postgres is reserved for a relational
// backend not provided here.
type TimerProjection interface {
	PutTimer(t *types.Timer) error
	GetTimer(tenantID, id string) (*types.Timer, error)
	// ListTimers returns timers for a tenant in log-index order, starting
	// strictly after afterIndex (0 for the first page), bounded by limit.
	ListTimers(tenantID string, afterIndex uint64, limit int) ([]*types.Timer, error)
	// FindByIdempotencyKey supports idempotent scheduling: a duplicate
	// idempotency key on a still-pending or already-settled timer returns
	// the original instead of creating a second one.
	FindByIdempotencyKey(tenantID, key string) (*types.Timer, error)
	DeleteTimer(tenantID, id string) error

	PutTenantPolicy(p *types.TenantPolicy) error
	GetTenantPolicy(tenantID string) (*types.TenantPolicy, error)
	ListTenantPolicies() ([]*types.TenantPolicy, error)

	// QuotaUsage tracks the tenant_quota_usage(tenant_id, day, ...)
	// table, used for the daily-limit half of quota enforcement (the
	// burst half is answered by counting non-terminal timers directly).
	IncrementDailyScheduleCount(tenantID, day string) (int, error)
	GetDailyScheduleCount(tenantID, day string) (int, error)

	Close() error
}
