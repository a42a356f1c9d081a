// Package orchestrator implements the Action Orchestrator: it
// subscribes to the Horology Kernel's fire-event stream via a
// durable cursor, dispatches each fired timer's action bundle (webhook
// or agent_prompt), retries with bounded exponential backoff, and
// reports terminal outcomes back onto the timer row.
//
// Delivery is at-least-once: a restart resumes from the last acked
// cursor and may redeliver, so every Dispatcher must be idempotent —
// it receives the (timer_id, fire_index) tuple as a forwarding key.
//
// All fan-out rides the single bounded-channel publish/subscribe
// contract pkg/events defines; transports beyond the in-process broker
// are adapters over the same contract, not separate code paths.
package orchestrator
