/*
Package health provides the one-shot reachability probes behind
`horologyctl healthcheck` and any external supervisor that needs to
decide whether a Horology node is serving.

Three checkers share one Checker interface, each wired to a healthcheck
flag:

  - HTTPChecker (--http-addr) dials a node's HTTP health surface (the
    /live, /ready and /health endpoints pkg/api exposes on the metrics
    address). It judges the response status code and, when the body is
    one of the node's JSON health responses, surfaces the status and
    message inside it — so a 503 reads as "not ready: waiting for
    leader election" rather than a bare code.
  - TCPChecker (--tcp-addr) confirms a listener is accepting
    connections at all, useful for the gRPC endpoint where a full RPC
    round-trip is not warranted.
  - ExecChecker (--exec) runs an operator-supplied command and inspects
    its exit code, for site-specific probes the built-in checkers
    cannot express.

Every probe is one-shot: run, report, exit. Retry cadence and flap
damping belong to whatever invokes the CLI (systemd, kubelet, cron),
which already has its own thresholds.

Usage:

	checker := health.NewHTTPChecker("http://127.0.0.1:9090/ready").
		WithTimeout(3 * time.Second)
	result := checker.Check(ctx)

The healthcheck CLI maps results onto its exit-code contract: 0 healthy,
1 generic failure, 2 misconfigured invocation, 3 unreachable, 4
credentials rejected.
*/
package health
