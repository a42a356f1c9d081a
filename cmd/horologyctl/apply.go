package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/horology/pkg/client"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a tenant bootstrap manifest",
	Long: `Apply a declarative tenant bootstrap manifest, seeding or updating
TenantPolicy rows (quota limits, credentials, permissions) via the
operator AdminService.

Example:
  horologyctl apply -f tenants.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML manifest to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")
}

// tenantManifest is the on-disk shape of a tenant bootstrap manifest:
// one or more TenantPolicy entries, seeded in file order.
type tenantManifest struct {
	Tenants []tenantManifestEntry `yaml:"tenants"`
}

type tenantManifestEntry struct {
	TenantID           string   `yaml:"tenantId"`
	APIKey             string   `yaml:"apiKey"`
	Permissions        []string `yaml:"permissions"`
	DailyLimit         int32    `yaml:"dailyLimit"`
	BurstLimit         int32    `yaml:"burstLimit"`
	SchedulePerMinute  int32    `yaml:"schedulePerMinute"`
	CancelPerMinute    int32    `yaml:"cancelPerMinute"`
	RegionalPreference string   `yaml:"regionalPreference"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var manifest tenantManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	if len(manifest.Tenants) == 0 {
		return fmt.Errorf("manifest has no tenants entries")
	}

	c, err := newClient(cmd)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer c.Close()

	for _, t := range manifest.Tenants {
		if t.TenantID == "" {
			return fmt.Errorf("manifest entry missing tenantId")
		}

		policy, err := c.PutTenantPolicy(cmd.Context(), client.TenantPolicyInput{
			TenantID:           t.TenantID,
			APIKey:             t.APIKey,
			Permissions:        t.Permissions,
			DailyLimit:         t.DailyLimit,
			BurstLimit:         t.BurstLimit,
			SchedulePerMinute:  t.SchedulePerMinute,
			CancelPerMinute:    t.CancelPerMinute,
			RegionalPreference: t.RegionalPreference,
		})
		if err != nil {
			return fmt.Errorf("apply tenant %s: %w", t.TenantID, err)
		}
		fmt.Printf("✓ tenant applied: %s (daily_limit=%d burst_limit=%d)\n", policy.TenantID, policy.DailyLimit, policy.BurstLimit)
	}
	return nil
}
