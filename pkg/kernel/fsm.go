package kernel

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cuemby/horology/pkg/events"
	"github.com/cuemby/horology/pkg/storage"
	"github.com/cuemby/horology/pkg/types"
	"github.com/cuemby/horology/pkg/wheel"
	"github.com/hashicorp/raft"
)

// Command is one entry in the durable timer log: an Op tag plus its
// JSON payload, the envelope every timer state transition travels in.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const (
	opSchedule            = "schedule"
	opCancel              = "cancel"
	opMarkFired           = "mark_fired"
	opFailAdmission       = "fail_admission"
	opPutTenantPolicy     = "put_tenant_policy"
	opRecordActionOutcome = "record_action_outcome"
)

// scheduleCmd is the payload for opSchedule. FireAt and CreatedAt are
// computed by the leader on the server clock before Apply so every
// replica derives identical state without calling time.Now() itself.
type scheduleCmd struct {
	Timer *types.Timer `json:"timer"`
}

type cancelCmd struct {
	TenantID string    `json:"tenant_id"`
	TimerID  string    `json:"timer_id"`
	Reason   string    `json:"reason"`
	By       string    `json:"by"`
	At       time.Time `json:"at"`
}

type markFiredCmd struct {
	TenantID string    `json:"tenant_id"`
	TimerID  string    `json:"timer_id"`
	FiredAt  time.Time `json:"fired_at"`
	JitterMs int64     `json:"jitter_ms"`
}

type failAdmissionCmd struct {
	TenantID string `json:"tenant_id"`
	TimerID  string `json:"timer_id"`
	Reason   string `json:"reason"`
}

type recordActionOutcomeCmd struct {
	TenantID      string `json:"tenant_id"`
	TimerID       string `json:"timer_id"`
	FailureReason string `json:"failure_reason"`
}

// ApplyResult is what the FSM returns through raft's
// future.Response(): either a timer value or the error the apply
// handler hit.
type ApplyResult struct {
	Timer           *types.Timer
	AlreadyTerminal bool
	Err             error
}

// FSM is the Raft finite state machine backing the Durable Timer Log.
// It is applied identically on every replica: the leader and followers
// all reach the same TimerProjection state and all publish the same
// FireEvent sequence locally, so get/list/stream requests can be
// answered by any node.
//
// FSM also keeps a passive wheel reconstruction on every replica:
// every node inserts/removes wheel entries as scheduling/cancellation
// commands apply, but only the elected leader ever calls wheel.Advance
// (see kernel.go's tick loop), so a newly-elected leader's wheel is
// already populated and can resume firing immediately.
type FSM struct {
	mu     sync.Mutex
	store  storage.TimerProjection
	wheel  *wheel.Wheel
	events *events.Broker
}

// NewFSM creates an FSM. w must be anchored (wheel.New(now)) before use.
func NewFSM(store storage.TimerProjection, w *wheel.Wheel, broker *events.Broker) *FSM {
	return &FSM{store: store, wheel: w, events: broker}
}

// Apply applies one committed log entry. Called by hashicorp/raft on
// every replica in strictly increasing log-index order.
func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return ApplyResult{Err: fmt.Errorf("unmarshal command: %w", err)}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case opSchedule:
		return f.applySchedule(cmd.Data, log.Index)
	case opCancel:
		return f.applyCancel(cmd.Data, log.Index)
	case opMarkFired:
		return f.applyMarkFired(cmd.Data, log.Index)
	case opFailAdmission:
		return f.applyFailAdmission(cmd.Data, log.Index)
	case opPutTenantPolicy:
		return f.applyPutTenantPolicy(cmd.Data)
	case opRecordActionOutcome:
		return f.applyRecordActionOutcome(cmd.Data)
	default:
		return ApplyResult{Err: fmt.Errorf("unknown command: %s", cmd.Op)}
	}
}

func (f *FSM) applySchedule(data json.RawMessage, logIndex uint64) interface{} {
	var c scheduleCmd
	if err := json.Unmarshal(data, &c); err != nil {
		return ApplyResult{Err: err}
	}
	t := c.Timer
	t.LogIndex = logIndex
	t.Status = types.TimerStatusScheduled

	if err := f.store.PutTimer(t); err != nil {
		return ApplyResult{Err: fmt.Errorf("put timer: %w", err)}
	}
	f.publish(t.TenantID, t.ID, types.EventKindScheduled, t.CreatedAt, "", logIndex)

	// Promotion into the wheel is deterministic given the committed
	// fire instant, so every replica arms the timer identically and
	// emits the armed event right behind scheduled.
	f.wheel.Add(&wheel.Entry{TimerID: t.ID, TenantID: t.TenantID, FireAt: t.FireAt, LogIndex: logIndex})
	t.Status = types.TimerStatusArmed
	if err := f.store.PutTimer(t); err != nil {
		return ApplyResult{Err: fmt.Errorf("arm timer: %w", err)}
	}
	f.publish(t.TenantID, t.ID, types.EventKindArmed, t.CreatedAt, "", logIndex)

	return ApplyResult{Timer: t}
}

func (f *FSM) applyCancel(data json.RawMessage, logIndex uint64) interface{} {
	var c cancelCmd
	if err := json.Unmarshal(data, &c); err != nil {
		return ApplyResult{Err: err}
	}

	t, err := f.store.GetTimer(c.TenantID, c.TimerID)
	if err != nil {
		return ApplyResult{Err: fmt.Errorf("timer not found: %w", err)}
	}
	if t.IsTerminal() {
		// Cancel lost the race (fire already committed first, or a
		// previous cancel already won): the loser's response reflects
		// the winner's terminal state.
		return ApplyResult{Timer: t, AlreadyTerminal: true}
	}

	f.wheel.Cancel(t.ID)
	t.Status = types.TimerStatusCancelled
	t.CancelReason = c.Reason
	t.CancelledBy = c.By
	t.SettledAt = c.At
	t.LogIndex = logIndex

	if err := f.store.PutTimer(t); err != nil {
		return ApplyResult{Err: fmt.Errorf("put timer: %w", err)}
	}
	f.publish(t.TenantID, t.ID, types.EventKindCancelled, c.At, c.Reason, logIndex)
	return ApplyResult{Timer: t}
}

func (f *FSM) applyMarkFired(data json.RawMessage, logIndex uint64) interface{} {
	var c markFiredCmd
	if err := json.Unmarshal(data, &c); err != nil {
		return ApplyResult{Err: err}
	}

	t, err := f.store.GetTimer(c.TenantID, c.TimerID)
	if err != nil {
		return ApplyResult{Err: fmt.Errorf("timer not found: %w", err)}
	}
	if t.IsTerminal() {
		// Lost the race against a cancel that committed first.
		return ApplyResult{Timer: t, AlreadyTerminal: true}
	}

	f.wheel.Cancel(t.ID) // defensive; the leader's Advance already removed it
	t.Status = types.TimerStatusFired
	t.FiredAt = c.FiredAt
	t.SettledAt = c.FiredAt
	t.JitterMs = c.JitterMs
	t.LogIndex = logIndex

	if err := f.store.PutTimer(t); err != nil {
		return ApplyResult{Err: fmt.Errorf("put timer: %w", err)}
	}
	f.publish(t.TenantID, t.ID, types.EventKindFired, c.FiredAt, "", logIndex)
	return ApplyResult{Timer: t}
}

func (f *FSM) applyFailAdmission(data json.RawMessage, logIndex uint64) interface{} {
	var c failAdmissionCmd
	if err := json.Unmarshal(data, &c); err != nil {
		return ApplyResult{Err: err}
	}
	t, err := f.store.GetTimer(c.TenantID, c.TimerID)
	if err != nil {
		return ApplyResult{Err: fmt.Errorf("timer not found: %w", err)}
	}
	if t.IsTerminal() {
		return ApplyResult{Timer: t, AlreadyTerminal: true}
	}

	f.wheel.Cancel(t.ID)
	t.Status = types.TimerStatusFailed
	t.FailureReason = c.Reason
	t.SettledAt = time.Now()
	t.LogIndex = logIndex

	if err := f.store.PutTimer(t); err != nil {
		return ApplyResult{Err: err}
	}
	f.publish(t.TenantID, t.ID, types.EventKindFailed, t.SettledAt, c.Reason, logIndex)
	return ApplyResult{Timer: t}
}

func (f *FSM) applyPutTenantPolicy(data json.RawMessage) interface{} {
	var p types.TenantPolicy
	if err := json.Unmarshal(data, &p); err != nil {
		return ApplyResult{Err: err}
	}
	if err := f.store.PutTenantPolicy(&p); err != nil {
		return ApplyResult{Err: err}
	}
	return ApplyResult{}
}

// applyRecordActionOutcome records the orchestrator's terminal action
// outcome on an already-fired timer's FailureReason. It never changes
// timer status: the scheduling call already succeeded when the timer
// fired.
func (f *FSM) applyRecordActionOutcome(data json.RawMessage) interface{} {
	var c recordActionOutcomeCmd
	if err := json.Unmarshal(data, &c); err != nil {
		return ApplyResult{Err: err}
	}
	t, err := f.store.GetTimer(c.TenantID, c.TimerID)
	if err != nil {
		return ApplyResult{Err: err}
	}
	t.FailureReason = c.FailureReason
	if err := f.store.PutTimer(t); err != nil {
		return ApplyResult{Err: err}
	}
	return ApplyResult{Timer: t}
}

func (f *FSM) publish(tenantID, timerID string, kind types.EventKind, instant time.Time, reason string, logIndex uint64) {
	if f.events == nil {
		return
	}
	f.events.Publish(&types.FireEvent{
		EventID:  logIndex,
		TimerID:  timerID,
		TenantID: tenantID,
		Kind:     kind,
		Instant:  instant,
		Reason:   reason,
		Cursor:   events.EncodeCursor(logIndex),
	})
}

// Snapshot captures every tenant policy and the timers of each tenant
// that has a policy; timers of a tenant with no policy are not included.
// The wheel itself is not snapshotted (it is rebuilt from the snapshot's
// non-terminal timers on Restore).
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	policies, err := f.store.ListTenantPolicies()
	if err != nil {
		return nil, fmt.Errorf("list tenant policies: %w", err)
	}

	var timers []*types.Timer
	for _, p := range policies {
		ts, err := f.store.ListTimers(p.TenantID, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("list timers for %s: %w", p.TenantID, err)
		}
		timers = append(timers, ts...)
	}

	return &fsmSnapshot{Timers: timers, Policies: policies}, nil
}

// Restore rebuilds the projection and the wheel from a snapshot.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap fsmSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range snap.Policies {
		if err := f.store.PutTenantPolicy(p); err != nil {
			return fmt.Errorf("restore tenant policy: %w", err)
		}
	}
	for _, t := range snap.Timers {
		if err := f.store.PutTimer(t); err != nil {
			return fmt.Errorf("restore timer: %w", err)
		}
		if !t.IsTerminal() {
			f.wheel.Add(&wheel.Entry{TimerID: t.ID, TenantID: t.TenantID, FireAt: t.FireAt, LogIndex: t.LogIndex})
		}
	}
	return nil
}

type fsmSnapshot struct {
	Timers   []*types.Timer
	Policies []*types.TenantPolicy
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	if err := json.NewEncoder(sink).Encode(s); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}
