/*
Package kernel implements the Horology Kernel: the replicated,
leader-elected scheduling engine that owns a tenant's timers end to
end, from admission through firing.

# Architecture

A Horology cluster runs 1, 3, or 5 Kernel nodes forming a Raft quorum.
Every node keeps a full TimerProjection current by applying the same
committed log; only the leader drives the wheel against wall-clock
time.

	┌───────────────────────── KERNEL NODE ──────────────────────────┐
	│                                                                  │
	│  ┌────────────────────────────────────────────────┐            │
	│  │         Command Gateway (pkg/gateway)           │            │
	│  │  - Credential resolution, quota enforcement     │            │
	│  └──────────────────────┬─────────────────────────┘            │
	│                         │                                        │
	│  ┌──────────────────────▼─────────────────────────┐            │
	│  │                  Kernel                          │            │
	│  │  - Schedule/Cancel/Get/List                      │            │
	│  │  - Idempotency pre-check before Raft.Apply       │            │
	│  │  - Leader-only tick loop drives the wheel        │            │
	│  └──────────────────────┬─────────────────────────┘            │
	│                         │                                        │
	│  ┌──────────────────────▼─────────────────────────┐            │
	│  │              Raft Consensus Layer                │            │
	│  │  - Leader election, log replication              │            │
	│  │  - FSM.Apply runs identically on every replica   │            │
	│  └──────────────────────┬─────────────────────────┘            │
	│                         │                                        │
	│  ┌──────────────────────▼─────────────────────────┐            │
	│  │                    FSM                           │            │
	│  │  - schedule/cancel/mark_fired/put_tenant_policy  │            │
	│  │  - Passive wheel reconstruction on followers     │            │
	│  │  - Publishes FireEvents to the local broker      │            │
	│  └──────────────────────┬─────────────────────────┘            │
	│                         │                                        │
	│  ┌──────────────────────▼─────────────────────────┐            │
	│  │       Hierarchical Timing Wheel (pkg/wheel)       │            │
	│  │  - Leader: Advance(now) decides fire order       │            │
	│  │  - Follower: populated, never ticked             │            │
	│  └────────────────────────────────────────────────┘             │
	│                                                                  │
	│  ┌────────────────────────────────────────────────┐            │
	│  │          TimerProjection (pkg/storage)           │            │
	│  │  - Timers, tenant policies, quota usage, CA      │            │
	│  └────────────────────────────────────────────────┘             │
	└──────────────────────────────────────────────────────────────────┘

# Core Components

Kernel:
  - Accepts Schedule/Cancel/Get/List calls from the Command Gateway
  - Commits state transitions through Raft
  - Runs the leader-only tick loop that fires due timers
  - Owns the node's CA, token manager, and event broker lifecycle

FSM:
  - Deterministic Raft finite state machine
  - Applies committed commands identically on every replica
  - Snapshot/Restore for fast recovery and new-node catch-up

TokenManager:
  - Generates and validates cluster join tokens
  - Tokens are role-less: every Horology Kernel node is a Raft voter,
    so a token grants exactly one capability
  - A token stays valid until expiry, so the bootstrap token can admit
    several replicas

Command:
  - Encapsulates one FSM state transition (schedule, cancel, mark_fired,
    fail_admission, put_tenant_policy, record_action_outcome)
  - Serialized as JSON in the Raft log

# Raft Consensus

Cluster Sizes:
  - 1 kernel node: single-node degraded mode, serves requests with no
    replication until more voters join
  - 3 kernel nodes: tolerates 1 failure
  - 5 kernel nodes: tolerates 2 failures

Leadership:
  - Only the leader ticks the wheel and commits mark_fired entries
  - Followers reject schedule/cancel with not_leader, but apply every
    committed schedule/cancel and keep their wheel populated so a newly
    elected leader can resume ticking without a gap
  - On leadership change, the new leader's wheel is already correct
    because every replica applied the same schedule/cancel history

# Usage

Creating a Kernel node:

	cfg := &kernel.Config{
		NodeID:   "kernel-1",
		BindAddr: "10.0.0.1:7700",
		DataDir:  "/var/lib/horology/kernel-1",
	}
	k, err := kernel.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

Bootstrapping the first node of a cluster:

	if err := k.Bootstrap(); err != nil {
		log.Fatal(err)
	}

Joining an existing cluster (leaderAddr is the leader's gRPC API
address, not its Raft bind address):

	if err := k.Join(ctx, "10.0.0.1:8080", joinToken); err != nil {
		log.Fatal(err)
	}

Scheduling a timer (normally called from pkg/gateway, after quota
checks):

	timer, err := k.Schedule(ctx, kernel.ScheduleInput{
		TenantID: "acme",
		Name:     "invoice-reminder",
		FireAt:   time.Now().Add(24 * time.Hour),
	})

# Failure Scenarios

Leader failure: new election, the incoming leader resumes ticking from
its own wheel state with no replay needed, since followers apply every
committed schedule/cancel as it lands.

Network partition: minority partition stops accepting writes; a
partitioned former leader cannot keep ticking once it steps down, so no
timer fires twice from two different leaders.

# Integration Points

This package integrates with:

  - pkg/gateway: the tenant-facing RPC surface, enforces quotas before
    ever calling into the Kernel
  - pkg/orchestrator: consumes FireEvents from the Kernel's event
    broker to dispatch action bundles
  - pkg/storage: persists the timer projection, tenant policies, quota
    usage, and CA material (the Raft log and snapshots live in
    raft-boltdb files and a file snapshot store under the data directory)
  - pkg/security: manages the cluster CA and node/client certificates
  - pkg/wheel: the in-memory scheduling structure the leader ticks
  - pkg/events: the per-tenant, cursor-resumable event broker

# Design Patterns

Command Pattern: every state change is a Command, serialized and
replicated via Raft, applied by the FSM to reach the next state.

Leader Pattern: a single leader decides fire order and commits it;
followers never independently decide fire order, so there is never a
race between two nodes both believing they own a timer's firing.

Single-Owner Wheel: the wheel struct is not safe for concurrent access.
FSM.Apply and Restore add and cancel entries on every replica, and only
the leader's tick loop calls Advance; both do so while holding the FSM's
mutex.

# See Also

  - pkg/gateway for the tenant-facing RPC surface
  - pkg/orchestrator for action dispatch
  - pkg/storage for state persistence
  - pkg/wheel for the scheduling data structure
*/
package kernel
