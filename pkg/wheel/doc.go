// Package wheel implements the Horology Kernel's in-memory scheduling
// structure: a hierarchical timing wheel with an innermost min-heap for
// sub-bucket ordering and an overflow heap for timers beyond the
// outermost level's horizon.
//
// The wheel is single-owner: only the Raft leader advances it. Followers
// keep a wheel populated by applying the log (Add/Cancel) but never
// advance it, so a newly elected leader can resume firing from it.
// Nothing here touches Raft, storage, or gRPC; Tick is pure with respect
// to wall-clock time passed in by the caller, which keeps it unit
// testable without sleeping.
package wheel
