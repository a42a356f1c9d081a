package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/horology/pkg/client"
	"github.com/cuemby/horology/pkg/log"
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
	Use:   "horologyctl",
	Short: "horologyctl - CLI for the Horology timer service",
	Long: `horologyctl talks to a Horology node's gRPC API to schedule and
manage timers, inspect cluster membership, and seed tenant policies.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"horologyctl version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("addr", envOr("HOROLOGY_ADDR", "127.0.0.1:8080"), "gRPC address of a Horology node")
	rootCmd.PersistentFlags().String("tenant", envOr("HOROLOGY_TENANT_ID", ""), "tenant ID to authenticate as")
	rootCmd.PersistentFlags().String("api-key", envOr("HOROLOGY_API_KEY", ""), "tenant API key")
	rootCmd.PersistentFlags().Bool("insecure", envOr("HOROLOGY_INSECURE", "") != "", "skip TLS and dial the node in plaintext")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(healthcheckCmd)
	rootCmd.AddCommand(clusterCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: false})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newClient builds a pkg/client.Client from the root command's
// persistent connection flags, shared by every subcommand.
func newClient(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("addr")
	tenant, _ := cmd.Flags().GetString("tenant")
	apiKey, _ := cmd.Flags().GetString("api-key")
	insecure, _ := cmd.Flags().GetBool("insecure")

	return client.NewClient(client.Config{
		Addr:     addr,
		TenantID: tenant,
		APIKey:   apiKey,
		Insecure: insecure,
	})
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Inspect Horology cluster membership",
}

func init() {
	clusterCmd.AddCommand(clusterInfoCmd)
}

var clusterInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display cluster membership and leader",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer c.Close()

		info, err := c.GetClusterInfo(cmd.Context())
		if err != nil {
			return fmt.Errorf("get cluster info: %w", err)
		}

		fmt.Printf("Leader Address: %s\n", info.LeaderAddr)
		fmt.Printf("Is Leader (this node): %v\n", info.IsLeader)
		fmt.Printf("Servers: %d\n", len(info.Servers))
		for _, srv := range info.Servers {
			fmt.Printf("  - %s  %s  %s\n", srv.ID, srv.Address, srv.Suffrage)
		}
		return nil
	},
}
