/*
Package metrics defines and registers Horology's Prometheus metrics,
exposes the /metrics scrape handler, and runs a background Collector
that snapshots kernel/Raft state into gauges. The HTTP liveness and
readiness endpoints live in pkg/api, which can interrogate the kernel
directly.

Instrumentation spans all four components: wheel tick duration and fire
jitter from the kernel, request counts and quota rejections from the
gateway, dispatch outcomes from the orchestrator, and subscriber gauges
from the orchestrator's event subscription.
*/
package metrics
