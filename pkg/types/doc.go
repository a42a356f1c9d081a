/*
Package types defines the core data structures shared across Horology's
components: the timer and fire-event records the kernel owns, the tenant
policy the gateway enforces, and the action bundle the orchestrator
interprets.

All types are plain structs with string-typed enums, mirroring their wire
representation closely enough that the RPC layer (internal/rpc) can
convert between them with simple field assignment.
*/
package types
