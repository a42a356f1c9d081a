package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cuemby/horology/pkg/health"
)

// Exit codes for horologyctl healthcheck, matching the scheme scripted
// probes (systemd, k8s execProbe, cron) expect to branch on.
const (
	exitOK             = 0
	exitGenericFailure = 1
	exitConfigError    = 2
	exitUnreachable    = 3
	exitUnauthorized   = 4
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe a Horology node and exit with a status code",
	Long: `healthcheck is meant for init systems and orchestrators: it never
prints a stack trace, only a one-line message, and signals the result
through its exit code:

  0  healthy
  1  generic failure
  2  misconfigured invocation
  3  node unreachable
  4  credentials rejected`,
	RunE: runHealthcheck,
}

func init() {
	healthcheckCmd.Flags().String("http-addr", envOr("KERNEL_METRICS_ADDR", ""), "HTTP address exposing /ready (checked if set)")
	healthcheckCmd.Flags().String("tcp-addr", "", "TCP address to probe for bare reachability, e.g. the gRPC endpoint (checked if set)")
	healthcheckCmd.Flags().StringSlice("exec", nil, "site-specific probe command; non-zero exit fails the check (checked if set)")
	healthcheckCmd.Flags().Duration("timeout", 5*time.Second, "probe timeout")
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	httpAddr, _ := cmd.Flags().GetString("http-addr")
	tcpAddr, _ := cmd.Flags().GetString("tcp-addr")
	execProbe, _ := cmd.Flags().GetStringSlice("exec")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	addr, _ := cmd.Flags().GetString("addr")

	if addr == "" && httpAddr == "" && tcpAddr == "" && len(execProbe) == 0 {
		fmt.Fprintln(os.Stderr, "healthcheck: --addr, --http-addr, --tcp-addr or --exec is required")
		os.Exit(exitConfigError)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if tcpAddr != "" {
		result := health.NewTCPChecker(tcpAddr).WithTimeout(timeout).Check(ctx)
		if !result.Healthy {
			fmt.Fprintf(os.Stderr, "healthcheck: %s\n", result.Message)
			os.Exit(exitUnreachable)
		}
	}

	if len(execProbe) > 0 {
		result := health.NewExecChecker(execProbe).WithTimeout(timeout).Check(ctx)
		if !result.Healthy {
			fmt.Fprintf(os.Stderr, "healthcheck: %s\n", result.Message)
			os.Exit(exitGenericFailure)
		}
	}

	if httpAddr != "" {
		result := health.NewHTTPChecker(fmt.Sprintf("http://%s/ready", httpAddr)).WithTimeout(timeout).Check(ctx)
		if !result.Healthy {
			fmt.Fprintf(os.Stderr, "healthcheck: %s\n", result.Message)
			os.Exit(exitUnreachable)
		}
	}

	c, err := newClient(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck: %v\n", err)
		os.Exit(exitUnreachable)
	}
	defer c.Close()

	tenant, _ := cmd.Flags().GetString("tenant")
	if tenant != "" {
		if _, err := c.List(ctx, 0, 1); err != nil {
			switch status.Code(err) {
			case codes.Unauthenticated, codes.PermissionDenied:
				fmt.Fprintf(os.Stderr, "healthcheck: %v\n", err)
				os.Exit(exitUnauthorized)
			case codes.Unavailable, codes.DeadlineExceeded:
				fmt.Fprintf(os.Stderr, "healthcheck: %v\n", err)
				os.Exit(exitUnreachable)
			default:
				fmt.Fprintf(os.Stderr, "healthcheck: %v\n", err)
				os.Exit(exitGenericFailure)
			}
		}
	} else if _, err := c.GetClusterInfo(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck: %v\n", err)
		os.Exit(exitUnreachable)
	}

	fmt.Println("OK")
	os.Exit(exitOK)
	return nil
}
