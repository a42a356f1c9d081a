package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/horology/pkg/api"
	"github.com/cuemby/horology/pkg/client"
	"github.com/cuemby/horology/pkg/gateway"
	"github.com/cuemby/horology/pkg/kernel"
	"github.com/cuemby/horology/pkg/log"
	"github.com/cuemby/horology/pkg/metrics"
	"github.com/cuemby/horology/pkg/orchestrator"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "horologyd",
	Short: "Horology - a durable, multi-tenant timer service",
	Long: `horologyd runs one node of the Horology Kernel: a Raft-replicated
durable timer log backing a hierarchical timing wheel, fronted by the
Command Gateway and the Action Orchestrator.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"horologyd version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(clusterCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage a Horology cluster",
}

func init() {
	clusterCmd.AddCommand(clusterInitCmd)
	clusterCmd.AddCommand(clusterJoinTokenCmd)
	clusterCmd.AddCommand(clusterJoinCmd)
	clusterCmd.AddCommand(clusterInfoCmd)

	clusterInitCmd.Flags().String("node-id", envOr("KERNEL_NODE_ID", "node-1"), "unique node identity")
	clusterInitCmd.Flags().String("bind-addr", envOr("KERNEL_RAFT_ADDR", "127.0.0.1:9000"), "Raft transport bind address")
	clusterInitCmd.Flags().String("api-addr", envOr("KERNEL_GRPC_ADDR", "127.0.0.1:8080"), "gRPC API bind address")
	clusterInitCmd.Flags().String("rest-addr", envOr("KERNEL_REST_ADDR", "127.0.0.1:8090"), "REST API bind address")
	clusterInitCmd.Flags().String("metrics-addr", envOr("KERNEL_METRICS_ADDR", "127.0.0.1:9090"), "metrics/health HTTP bind address")
	clusterInitCmd.Flags().String("data-dir", envOr("KERNEL_DATA_DIR", "./data"), "data directory")
	clusterInitCmd.Flags().String("store", envOr("KERNEL_STORE", "bolt"), "timer projection backend: bolt|memory")

	clusterJoinTokenCmd.Flags().String("node", "127.0.0.1:8080", "address of a node in the cluster")
	clusterJoinCmd.Flags().String("token", "", "join token (required)")
	clusterJoinCmd.Flags().String("leader", "127.0.0.1:8080", "address of a node to join through")
	clusterJoinCmd.Flags().String("node-id", envOr("KERNEL_NODE_ID", "node-2"), "unique node identity")
	clusterJoinCmd.Flags().String("bind-addr", envOr("KERNEL_RAFT_ADDR", "127.0.0.1:9001"), "Raft transport bind address")
	clusterJoinCmd.Flags().String("api-addr", envOr("KERNEL_GRPC_ADDR", "127.0.0.1:8081"), "gRPC API bind address")
	clusterJoinCmd.Flags().String("rest-addr", envOr("KERNEL_REST_ADDR", "127.0.0.1:8091"), "REST API bind address")
	clusterJoinCmd.Flags().String("metrics-addr", envOr("KERNEL_METRICS_ADDR", "127.0.0.1:9091"), "metrics/health HTTP bind address")
	clusterJoinCmd.Flags().String("data-dir", envOr("KERNEL_DATA_DIR", "./data-2"), "data directory")
	clusterJoinCmd.Flags().String("store", envOr("KERNEL_STORE", "bolt"), "timer projection backend: bolt|memory")
	clusterInfoCmd.Flags().String("node", "127.0.0.1:8080", "address of a node in the cluster")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

var clusterInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new Horology cluster",
	Long: `Initialize a new Horology cluster with this node as the first
voter. Additional nodes join this one with 'horologyd cluster join'.`,
	RunE: runClusterInit,
}

func runClusterInit(cmd *cobra.Command, args []string) error {
	nodeID, _ := cmd.Flags().GetString("node-id")
	bindAddr, _ := cmd.Flags().GetString("bind-addr")
	apiAddr, _ := cmd.Flags().GetString("api-addr")
	restAddr, _ := cmd.Flags().GetString("rest-addr")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	store, _ := cmd.Flags().GetString("store")

	fmt.Println("Initializing Horology cluster...")
	fmt.Printf("  Node ID: %s\n", nodeID)
	fmt.Printf("  Raft Address: %s\n", bindAddr)
	fmt.Printf("  API Address: %s\n", apiAddr)
	fmt.Printf("  REST Address: %s\n", restAddr)
	fmt.Printf("  Data Directory: %s\n", dataDir)
	fmt.Printf("  Store: %s\n", store)
	fmt.Println()

	k, err := kernel.New(&kernel.Config{
		NodeID:       nodeID,
		BindAddr:     bindAddr,
		DataDir:      dataDir,
		StoreBackend: store,
		JitterWarnMs: int64(envInt("KERNEL_JITTER_WARN_MS", kernel.DefaultJitterWarnMs)),
		HeartbeatTimeout: time.Duration(envInt("KERNEL_RAFT_HEARTBEAT_MS", 0)) * time.Millisecond,
		ElectionTimeout:  time.Duration(envInt("KERNEL_RAFT_ELECTION_TIMEOUT_MS", 0)) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("create kernel: %w", err)
	}
	if err := k.Bootstrap(); err != nil {
		return fmt.Errorf("bootstrap cluster: %w", err)
	}
	fmt.Println("✓ Kernel bootstrapped")

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  Join Tokens (valid for 24 hours)")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	nodeToken, err := k.GenerateJoinToken(24 * time.Hour)
	if err != nil {
		fmt.Printf("warning: failed to generate join token: %v\n", err)
	} else {
		fmt.Printf("Node join token:\n  %s\n\n", nodeToken.Token)
		fmt.Printf("To add a node:\n  horologyd cluster join --leader %s --token %s\n", apiAddr, nodeToken.Token)
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	return serveNode(k, dataDir, apiAddr, restAddr, metricsAddr)
}

// serveNode starts the gateway, orchestrator, health/metrics, REST and
// gRPC surfaces around an already-bootstrapped-or-joined kernel, then
// blocks until a signal or a fatal server error.
func serveNode(k *kernel.Kernel, dataDir, apiAddr, restAddr, metricsAddr string) error {
	gw := gateway.New(k, gateway.Chain{gateway.NewAPIKeyResolver(k)}, gatewayConfigFromEnv())
	fmt.Println("✓ Command Gateway ready")

	orch := orchestrator.New(k, orchestrator.NewFileCursorStore(dataDir), orchestratorConfigFromEnv(),
		orchestrator.NewWebhookDispatcher())
	orchCtx, orchCancel := context.WithCancel(context.Background())
	orchErrCh := make(chan error, 1)
	go func() {
		if err := orch.Run(orchCtx); err != nil && err != context.Canceled {
			orchErrCh <- err
		}
	}()
	fmt.Println("✓ Action Orchestrator started")

	collector := metrics.NewCollector(k)
	collector.Start()
	defer collector.Stop()

	healthSrv := api.NewHealthServer(k)
	go func() {
		if err := healthSrv.Start(metricsAddr); err != nil {
			fmt.Printf("health server error: %v\n", err)
		}
	}()
	fmt.Printf("✓ Health/metrics endpoint: http://%s/{health,ready,live,metrics}\n", metricsAddr)

	restSrv := api.NewRESTServer(gw, k)
	go func() {
		if err := http.ListenAndServe(restAddr, restSrv.GetHandler()); err != nil {
			fmt.Printf("REST server error: %v\n", err)
		}
	}()
	fmt.Printf("✓ REST API listening on %s\n", restAddr)

	apiSrv, err := api.NewServer(gw, k)
	if err != nil {
		return fmt.Errorf("create API server: %w", err)
	}
	apiErrCh := make(chan error, 1)
	go func() {
		if err := apiSrv.Start(apiAddr); err != nil {
			apiErrCh <- fmt.Errorf("gRPC API server error: %w", err)
		}
	}()
	fmt.Printf("✓ gRPC API listening on %s\n", apiAddr)

	fmt.Println()
	fmt.Println("Node is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-apiErrCh:
		fmt.Fprintf(os.Stderr, "\n%v\n", err)
	case err := <-orchErrCh:
		fmt.Fprintf(os.Stderr, "\norchestrator error: %v\n", err)
	}

	orchCancel()
	orch.Stop()
	apiSrv.Stop()
	if err := k.Shutdown(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	fmt.Println("✓ Shutdown complete")
	return nil
}

func gatewayConfigFromEnv() gateway.Config {
	cfg := gateway.DefaultConfig()
	cfg.DefaultSchedulePerMinute = envInt("GATEWAY_DEFAULT_SCHEDULE_PER_MINUTE", cfg.DefaultSchedulePerMinute)
	cfg.DefaultCancelPerMinute = envInt("GATEWAY_DEFAULT_CANCEL_PER_MINUTE", cfg.DefaultCancelPerMinute)
	cfg.DefaultBurst = envInt("GATEWAY_DEFAULT_BURST", cfg.DefaultBurst)
	return cfg
}

func orchestratorConfigFromEnv() orchestrator.Config {
	cfg := orchestrator.DefaultConfig()
	cfg.MaxInflight = envInt("ORCHESTRATOR_MAX_INFLIGHT", cfg.MaxInflight)
	return cfg
}

var clusterJoinTokenCmd = &cobra.Command{
	Use:   "join-token",
	Short: "Generate a join token for a new node",
	RunE: func(cmd *cobra.Command, args []string) error {
		node, _ := cmd.Flags().GetString("node")
		c, err := client.NewClient(client.Config{Addr: node, Insecure: true})
		if err != nil {
			return fmt.Errorf("connect to %s: %w", node, err)
		}
		defer c.Close()

		resp, err := c.GenerateJoinToken(cmd.Context())
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		fmt.Printf("Join token (expires %s):\n  %s\n", resp.ExpiresAt.Format(time.RFC3339), resp.Token)
		return nil
	},
}

var clusterJoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join this node to an existing cluster and serve",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		leader, _ := cmd.Flags().GetString("leader")
		nodeID, _ := cmd.Flags().GetString("node-id")
		bindAddr, _ := cmd.Flags().GetString("bind-addr")
		apiAddr, _ := cmd.Flags().GetString("api-addr")
		restAddr, _ := cmd.Flags().GetString("rest-addr")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		store, _ := cmd.Flags().GetString("store")
		if token == "" {
			return fmt.Errorf("--token is required")
		}

		k, err := kernel.New(&kernel.Config{
			NodeID:       nodeID,
			BindAddr:     bindAddr,
			DataDir:      dataDir,
			StoreBackend: store,
			JitterWarnMs: int64(envInt("KERNEL_JITTER_WARN_MS", kernel.DefaultJitterWarnMs)),
			HeartbeatTimeout: time.Duration(envInt("KERNEL_RAFT_HEARTBEAT_MS", 0)) * time.Millisecond,
			ElectionTimeout:  time.Duration(envInt("KERNEL_RAFT_ELECTION_TIMEOUT_MS", 0)) * time.Millisecond,
		})
		if err != nil {
			return fmt.Errorf("create kernel: %w", err)
		}
		if err := k.Join(cmd.Context(), leader, token); err != nil {
			return fmt.Errorf("join cluster: %w", err)
		}
		fmt.Printf("✓ Node %s joined the cluster through %s\n", nodeID, leader)

		return serveNode(k, dataDir, apiAddr, restAddr, metricsAddr)
	},
}

var clusterInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display cluster information",
	RunE: func(cmd *cobra.Command, args []string) error {
		node, _ := cmd.Flags().GetString("node")
		c, err := client.NewClient(client.Config{Addr: node, Insecure: true})
		if err != nil {
			return fmt.Errorf("connect to %s: %w", node, err)
		}
		defer c.Close()

		info, err := c.GetClusterInfo(cmd.Context())
		if err != nil {
			return fmt.Errorf("get cluster info: %w", err)
		}

		fmt.Println("Cluster Information:")
		fmt.Printf("  Leader Address: %s\n", info.LeaderAddr)
		fmt.Printf("  Is Leader (this node): %v\n", info.IsLeader)
		fmt.Printf("  Servers: %d\n", len(info.Servers))
		fmt.Println()
		for _, srv := range info.Servers {
			fmt.Printf("  - ID: %s\n", srv.ID)
			fmt.Printf("    Address: %s\n", srv.Address)
			fmt.Printf("    Suffrage: %s\n", srv.Suffrage)
			fmt.Println()
		}
		return nil
	},
}
