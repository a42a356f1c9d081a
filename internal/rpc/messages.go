package rpc

import "time"

// TimerMessage is the wire shape of pkg/types.Timer, documented in
// proto/horology/v1/timer.proto as the Timer message.
type TimerMessage struct {
	ID             string            `json:"id"`
	TenantID       string            `json:"tenant_id"`
	PrincipalID    string            `json:"principal_id"`
	Name           string            `json:"name"`
	Labels         map[string]string `json:"labels,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	FireAt         time.Time         `json:"fire_at"`
	DurationMs     int64             `json:"duration_ms"`
	Status         string            `json:"status"`
	CancelReason   string            `json:"cancel_reason,omitempty"`
	CancelledBy    string            `json:"cancelled_by,omitempty"`
	FiredAt        *time.Time        `json:"fired_at,omitempty"`
	SettledAt      *time.Time        `json:"settled_at,omitempty"`
	ActionBundle   *ActionBundleMsg  `json:"action_bundle,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	LogIndex       uint64            `json:"log_index"`
	JitterMs       int64             `json:"jitter_ms,omitempty"`
	FailureReason  string            `json:"failure_reason,omitempty"`
}

// ActionBundleMsg is the wire shape of pkg/types.ActionBundle.
type ActionBundleMsg struct {
	Actions []ActionMsg `json:"actions"`
}

// ActionMsg is the wire shape of pkg/types.Action.
type ActionMsg struct {
	Kind             string            `json:"kind"`
	Parameters       map[string]string `json:"parameters,omitempty"`
	MaxAttempts      int               `json:"max_attempts,omitempty"`
	InitialBackoffMs int               `json:"initial_backoff_ms,omitempty"`
	Multiplier       float64           `json:"multiplier,omitempty"`
}

// FireEventMessage is the wire shape of pkg/types.FireEvent.
type FireEventMessage struct {
	EventID  uint64    `json:"event_id"`
	TimerID  string    `json:"timer_id"`
	TenantID string    `json:"tenant_id"`
	Kind     string    `json:"kind"`
	Instant  time.Time `json:"instant"`
	Reason   string    `json:"reason,omitempty"`
	Cursor   string    `json:"cursor"`
}

type ScheduleRequest struct {
	TenantID       string            `json:"tenant_id"`
	PrincipalID    string            `json:"principal_id"`
	Name           string            `json:"name"`
	Labels         map[string]string `json:"labels,omitempty"`
	FireAt         *time.Time        `json:"fire_at,omitempty"`
	DurationMs     int64             `json:"duration_ms,omitempty"`
	ActionBundle   *ActionBundleMsg  `json:"action_bundle,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

type ScheduleResponse struct {
	Timer *TimerMessage `json:"timer"`
}

type CancelRequest struct {
	TenantID string `json:"tenant_id"`
	TimerID  string `json:"timer_id"`
	Reason   string `json:"reason,omitempty"`
	By       string `json:"by,omitempty"`
}

type CancelResponse struct {
	Timer *TimerMessage `json:"timer"`
}

type GetRequest struct {
	TenantID string `json:"tenant_id"`
	TimerID  string `json:"timer_id"`
}

type GetResponse struct {
	Timer *TimerMessage `json:"timer"`
}

type ListRequest struct {
	TenantID   string `json:"tenant_id"`
	AfterIndex uint64 `json:"after_index,omitempty"`
	Limit      int32  `json:"limit,omitempty"`
}

type ListResponse struct {
	Timers []*TimerMessage `json:"timers"`
}

type StreamRequest struct {
	TenantID   string   `json:"tenant_id"`
	Topics     []string `json:"topics,omitempty"`
	FromCursor string   `json:"from_cursor,omitempty"`
}

// JoinClusterRequest carries a new voter's identity, Raft transport
// address, and the join token gating its admission.
type JoinClusterRequest struct {
	NodeID   string `json:"node_id"`
	BindAddr string `json:"bind_addr"`
	Token    string `json:"token"`
}

type JoinClusterResponse struct {
	Status     string `json:"status"`
	LeaderAddr string `json:"leader_addr"`
}

// GenerateJoinTokenRequest has no fields: every Horology node joins as
// a Raft voter, so there is no role to pick.
type GenerateJoinTokenRequest struct{}

type GenerateJoinTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ClusterServer struct {
	ID       string `json:"id"`
	Address  string `json:"address"`
	Suffrage string `json:"suffrage"`
}

type GetClusterInfoRequest struct{}

type GetClusterInfoResponse struct {
	Servers    []*ClusterServer `json:"servers"`
	LeaderAddr string           `json:"leader_addr"`
	IsLeader   bool             `json:"is_leader"`
}

// TenantPolicyMsg is the wire shape of pkg/types.TenantPolicy, carrying
// a plaintext APIKey only on this one bootstrap RPC — it is hashed
// before it ever reaches the kernel's store.
type TenantPolicyMsg struct {
	TenantID           string   `json:"tenant_id"`
	APIKey             string   `json:"api_key,omitempty"`
	Permissions        []string `json:"permissions,omitempty"`
	DailyLimit         int32    `json:"daily_limit,omitempty"`
	BurstLimit         int32    `json:"burst_limit,omitempty"`
	SchedulePerMinute  int32    `json:"schedule_per_minute,omitempty"`
	CancelPerMinute    int32    `json:"cancel_per_minute,omitempty"`
	RegionalPreference string   `json:"regional_preference,omitempty"`
}

type PutTenantPolicyRequest struct {
	Policy *TenantPolicyMsg `json:"policy"`
}

type PutTenantPolicyResponse struct {
	Policy *TenantPolicyMsg `json:"policy"`
}

type GetTenantPolicyRequest struct {
	TenantID string `json:"tenant_id"`
}

type GetTenantPolicyResponse struct {
	Policy *TenantPolicyMsg `json:"policy"`
}
