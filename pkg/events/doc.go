/*
Package events implements the Horology Kernel's event fan-out: a
per-tenant, cursor-resumable pub/sub broker distributing FireEvents
(scheduled, armed, fired, cancelled, failed) to subscribers such as the
Command Gateway's StreamTimerEvents RPC and the Action Orchestrator.

# Architecture

	┌──────────────────────── BROKER ──────────────────────────┐
	│                                                            │
	│  FSM.Apply (per node, per committed log entry)            │
	│       │                                                    │
	│       ▼ Publish(*FireEvent)                                │
	│  ┌────────────────────────────────────────────┐           │
	│  │  history: append-only, trimmed by retention │           │
	│  │           (default 7 days)                  │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │ fan out to matching subscribers       │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │  Subscription (per tenant, optional topics) │           │
	│  │  bounded channel (256); full → disconnect   │           │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────────┘

Every node runs its own Broker, fed only by that node's own FSM.Apply
calls. Because FSM.Apply is deterministic and runs on every replica, a
subscriber gets the same event stream regardless of which node it
connects to — there is no cross-node event replication to build.

# Core Components

Broker:
  - Per-node in-memory event bus, one per Horology Kernel process
  - Bounded history buffer for resumable subscriptions
  - Non-blocking publish; slow subscribers are disconnected, not blocked

FireEvent (pkg/types):
  - EventID: the committing Raft log index, doubling as the cursor value
  - TenantID, TimerID, Kind, Instant, Reason, Cursor

Subscription:
  - Tenant-scoped, optionally filtered to specific event kinds
  - Bounded channel (256); Ack records processing progress
  - Disconnected() reports a slow-consumer drop; Cursor() gives the
    resume point for a fresh Subscribe call

# Cursors and resume

EncodeCursor/DecodeCursor turn a log index into the opaque token handed
to clients. Subscribe(tenantID, topics, fromCursor) replays any buffered
history strictly after fromCursor before switching to live delivery. If
fromCursor has aged out of the retention window, Subscribe returns
ErrCursorTooOld and the caller must reconcile directly against the
timer table (pkg/storage) instead of resuming the stream.

# Event Kinds

  - scheduled: committed, not yet due
  - armed: placed in the leader's wheel (no separate log entry; emitted
    alongside scheduled within the same FSM.Apply call)
  - fired: the kernel committed the fire decision
  - cancelled: cancelled before firing
  - failed: a committed fail_admission entry settled the timer; requests
    the gateway rejects (quota, invalid input) create no timer and emit
    no event

# Consumers

Command Gateway: StreamTimerEvents RPC subscribes on behalf of a
client connection and forwards events as they arrive.

Action Orchestrator: subscribes with a durable last-acked cursor,
dispatching actions for "fired" events and advancing its cursor once
each event's actions have been handed off for dispatch (on a follower,
without dispatching them).
*/
package events
