/*
Package storage provides durable state persistence for Horology's timer
projection: the kernel's read model of every timer, tenant policy, and
quota counter, kept outside the Raft log itself so reads never need to
replay log entries.

# Architecture

	┌──────────────────── TIMER PROJECTION ──────────────────────┐
	│                                                              │
	│  ┌────────────────────────────────────────────┐            │
	│  │            BoltStore (default)               │            │
	│  │  - File: <dataDir>/horology.db               │            │
	│  │  - Format: B+tree with MVCC                  │            │
	│  │  - Transactions: ACID with fsync             │            │
	│  └──────────────────┬─────────────────────────┘            │
	│                     │                                        │
	│  ┌──────────────────▼─────────────────────────┐            │
	│  │              Bucket Structure                 │            │
	│  │  ┌────────────────────────────┐              │            │
	│  │  │ timers          (tenant/id)│              │            │
	│  │  │ timers_by_idx (tenant/idx) │              │            │
	│  │  │ idempotency (tenant/key)   │              │            │
	│  │  │ tenant_policies (tenantID) │              │            │
	│  │  │ quota_usage  (tenant/day)  │              │            │
	│  │  │ ca             (fixed key) │              │            │
	│  │  └────────────────────────────┘              │            │
	│  └──────────────────┬─────────────────────────┘            │
	│                     │                                        │
	│  ┌──────────────────▼─────────────────────────┐            │
	│  │        Transaction Management                 │            │
	│  │  - Read: db.View() - Concurrent reads        │            │
	│  │  - Write: db.Update() - Serialized writes    │            │
	│  └────────────────────────────────────────────┘             │
	└──────────────────────────────────────────────────────────────┘

# Core Components

BoltStore:
  - Implements TimerProjection using BoltDB
  - Single database file per kernel node
  - Automatic bucket creation on open
  - Thread-safe via BoltDB's transaction model

MemoryStore:
  - Implements the same TimerProjection interface entirely in maps
  - Used for single-node degraded mode and unit tests
  - No fsync, no crash durability — never selected for a multi-node cluster

A postgres-backed TimerProjection is named by the kernel's
KERNEL_STORE=postgres configuration for operators who want a relational
projection for ad hoc querying; its table layout mirrors the bucket keys
above (timers, tenant_policies, tenant_quota_usage) but this package does
not ship that implementation — the Raft log, not the projection, is the
source of truth, so any conforming TimerProjection is interchangeable.

# Secondary Index

timers_by_idx exists because BoltDB buckets are ordered by key, and the
natural primary key (tenantID+"/"+id) has no relationship to a timer's
Raft log index. ListTimers needs log-index order so a resumed listing
(afterIndex, limit) is stable even as new timers are scheduled, so every
PutTimer call also writes a tenantID+"/"+big-endian(logIndex) -> id
entry that ListTimers scans instead of the primary bucket.

# Design Patterns

Upsert Pattern:
  - PutTimer/PutTenantPolicy always overwrite; no separate create/update
  - Simplifies the FSM, which applies log entries idempotently

Idempotency Index:
  - A timer scheduled with a client-supplied idempotency key is
    discoverable by FindByIdempotencyKey without a full bucket scan,
    supporting the kernel's duplicate-schedule-request rule

Error Wrapping:
  - Errors are wrapped with fmt.Errorf("...: %w", err) to preserve the
    underlying BoltDB error for inspection

# Security

File Permissions:
  - Database file: 0600 (owner read/write only)
  - Root CA key material lives in the same store, under the ca bucket,
    alongside (not instead of) the timer projection

# See Also

  - pkg/kernel for the Raft FSM that is the only writer of this state
  - pkg/types for all entity definitions
  - pkg/security for the certificate authority that persists through
    the SaveCA/GetCA pair both implementations provide
  - BoltDB documentation: https://github.com/etcd-io/bbolt
*/
package storage
