package types

import "time"

// Timer represents a single-shot future event owned by a tenant.
type Timer struct {
	ID          string
	TenantID    string
	PrincipalID string // creator
	Name        string
	Labels      map[string]string

	CreatedAt time.Time
	FireAt    time.Time
	Duration  time.Duration // derived: FireAt - CreatedAt

	Status TimerStatus

	CancelReason string
	CancelledBy  string
	FiredAt      time.Time
	SettledAt    time.Time

	ActionBundle *ActionBundle // opaque to the kernel, interpreted by the orchestrator
	Metadata     map[string]string

	IdempotencyKey string

	// LogIndex is the Raft log index of the most recent committed
	// transition for this timer. Strictly increasing.
	LogIndex uint64

	// JitterMs is the observed (FiredAt - FireAt) in milliseconds, set
	// once the timer fires.
	JitterMs int64

	// FailureReason records why an action bundle dispatch terminally
	// failed; the scheduling call itself never fails because of it.
	FailureReason string
}

// IsActive reports whether the timer has not yet reached a terminal state.
func (t *Timer) IsActive() bool {
	switch t.Status {
	case TimerStatusFired, TimerStatusCancelled, TimerStatusFailed:
		return false
	default:
		return true
	}
}

// IsTerminal reports whether the timer's status is final.
func (t *Timer) IsTerminal() bool {
	return !t.IsActive()
}

// TimerStatus is the node in the per-timer status DAG.
type TimerStatus string

const (
	TimerStatusScheduled TimerStatus = "scheduled"
	TimerStatusArmed     TimerStatus = "armed"
	TimerStatusFired     TimerStatus = "fired"
	TimerStatusCancelled TimerStatus = "cancelled"
	TimerStatusFailed    TimerStatus = "failed"
)

// FireEvent is a single entry in the per-tenant fire-event stream.
type FireEvent struct {
	EventID  uint64 // monotonic per log
	TimerID  string
	TenantID string
	Kind     EventKind
	Instant  time.Time
	Reason   string

	// ActionBundleRef lets a subscriber correlate the event with the
	// action bundle attached to the timer, without shipping the bundle
	// payload itself on every event.
	ActionBundleRef string

	// Cursor is the opaque resumption token a subscriber presents on
	// reconnect to resume from this point (exclusive).
	Cursor string
}

// EventKind mirrors TimerStatus for the subset of transitions that are
// externally observable in the fire-event stream.
type EventKind string

const (
	EventKindScheduled EventKind = "scheduled"
	EventKindArmed     EventKind = "armed"
	EventKindFired     EventKind = "fired"
	EventKindCancelled EventKind = "cancelled"
	EventKindFailed    EventKind = "failed"
)

// TenantPolicy holds the quota and identity configuration for a tenant.
type TenantPolicy struct {
	TenantID string

	// APIKeyHash is the hashed (never plaintext) credential used to
	// authenticate requests for this tenant.
	APIKeyHash string

	Permissions []string // e.g. "timers:create", "timers:cancel", "timers:read", "timers:stream"

	DailyLimit         int // daily creation count ceiling
	BurstLimit         int // non-terminal timer count ceiling
	SchedulePerMinute  int // sliding 60s window, schedule ops
	CancelPerMinute    int // sliding 60s window, cancel ops
	RegionalPreference string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPermission reports whether the policy grants the named permission.
func (p *TenantPolicy) HasPermission(permission string) bool {
	for _, perm := range p.Permissions {
		if perm == permission {
			return true
		}
	}
	return false
}

// ActionBundle is opaque to the kernel; only the orchestrator interprets it.
type ActionBundle struct {
	Actions []Action
}

// Action describes a single dispatchable side effect of a timer firing.
type Action struct {
	Kind       ActionKind
	Parameters map[string]string
	Retry      RetryPolicy
}

// ActionKind enumerates the orchestrator's supported dispatch targets.
type ActionKind string

const (
	ActionKindWebhook     ActionKind = "webhook"
	ActionKindAgentPrompt ActionKind = "agent_prompt"
)

// RetryPolicy controls the orchestrator's backoff schedule for one action.
type RetryPolicy struct {
	MaxAttempts      int // default 1, max 20
	InitialBackoffMs int // default 1000
	Multiplier       float64 // default 2
}

// DefaultRetryPolicy returns the spec's default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, InitialBackoffMs: 1000, Multiplier: 2}
}

// Normalize fills in defaults and clamps to the spec's bounds.
func (r RetryPolicy) Normalize() RetryPolicy {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 1
	}
	if r.MaxAttempts > 20 {
		r.MaxAttempts = 20
	}
	if r.InitialBackoffMs <= 0 {
		r.InitialBackoffMs = 1000
	}
	if r.Multiplier <= 0 {
		r.Multiplier = 2
	}
	return r
}
