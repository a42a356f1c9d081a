package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/horology/internal/rpc"
	"github.com/cuemby/horology/pkg/client"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule NAME",
	Short: "Schedule a new timer",
	Long: `Schedule a new timer for the authenticated tenant.

Examples:
  # Fire 90 seconds from now
  horologyctl schedule reminder --in 90s

  # Fire at an absolute instant
  horologyctl schedule invoice-due --at 2026-08-01T09:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().Duration("in", 0, "fire this long from now (mutually exclusive with --at)")
	scheduleCmd.Flags().String("at", "", "fire at this RFC3339 instant (mutually exclusive with --in)")
	scheduleCmd.Flags().StringToString("label", nil, "labels to attach to the timer (k=v, repeatable)")
	scheduleCmd.Flags().StringToString("meta", nil, "opaque metadata to attach to the timer (k=v, repeatable)")
	scheduleCmd.Flags().String("idempotency-key", "", "dedupe key: replays of the same key return the original timer")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	name := args[0]
	in, _ := cmd.Flags().GetDuration("in")
	at, _ := cmd.Flags().GetString("at")
	labels, _ := cmd.Flags().GetStringToString("label")
	meta, _ := cmd.Flags().GetStringToString("meta")
	idemKey, _ := cmd.Flags().GetString("idempotency-key")

	if (in == 0) == (at == "") {
		return fmt.Errorf("exactly one of --in or --at is required")
	}

	input := client.ScheduleInput{
		Name:           name,
		Labels:         labels,
		Metadata:       meta,
		IdempotencyKey: idemKey,
	}
	if in != 0 {
		input.DurationMs = in.Milliseconds()
	} else {
		fireAt, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("parse --at %q: %w", at, err)
		}
		input.FireAt = &fireAt
	}

	c, err := newClient(cmd)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer c.Close()

	timer, err := c.Schedule(cmd.Context(), input)
	if err != nil {
		return fmt.Errorf("schedule timer: %w", err)
	}
	printTimer(timer)
	return nil
}

var cancelCmd = &cobra.Command{
	Use:   "cancel TIMER_ID",
	Short: "Cancel a scheduled timer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		c, err := newClient(cmd)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer c.Close()

		timer, err := c.Cancel(cmd.Context(), args[0], reason)
		if err != nil {
			return fmt.Errorf("cancel timer: %w", err)
		}
		printTimer(timer)
		return nil
	},
}

func init() {
	cancelCmd.Flags().String("reason", "", "human-readable cancellation reason")
}

var getCmd = &cobra.Command{
	Use:   "get TIMER_ID",
	Short: "Fetch a single timer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer c.Close()

		timer, err := c.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get timer: %w", err)
		}
		printTimer(timer)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List timers for the authenticated tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		after, _ := cmd.Flags().GetUint64("after")
		limit, _ := cmd.Flags().GetInt32("limit")

		c, err := newClient(cmd)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer c.Close()

		timers, err := c.List(cmd.Context(), after, limit)
		if err != nil {
			return fmt.Errorf("list timers: %w", err)
		}
		if len(timers) == 0 {
			fmt.Println("No timers found")
			return nil
		}
		fmt.Printf("%-36s %-20s %-10s %s\n", "ID", "NAME", "STATUS", "FIRE_AT")
		for _, t := range timers {
			fmt.Printf("%-36s %-20s %-10s %s\n", t.ID, truncate(t.Name, 20), t.Status, t.FireAt.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	listCmd.Flags().Uint64("after", 0, "only return timers committed after this Raft log index")
	listCmd.Flags().Int32("limit", 100, "maximum number of timers to return")
}

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream fire/cancel/fail events for the authenticated tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringSlice("topic")
		cursor, _ := cmd.Flags().GetString("from-cursor")

		c, err := newClient(cmd)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer c.Close()

		err = c.Stream(cmd.Context(), topics, cursor, func(ev *rpc.FireEventMessage) error {
			fmt.Printf("%s  %-10s timer=%s  cursor=%s\n", ev.Instant.Format(time.RFC3339), ev.Kind, ev.TimerID, ev.Cursor)
			return nil
		})
		return err
	},
}

func init() {
	streamCmd.Flags().StringSlice("topic", nil, "only stream these event kinds (scheduled, armed, fired, cancelled, failed)")
	streamCmd.Flags().String("from-cursor", "", "resume the stream from this cursor")
}

func printTimer(t *rpc.TimerMessage) {
	fmt.Printf("ID:       %s\n", t.ID)
	fmt.Printf("Name:     %s\n", t.Name)
	fmt.Printf("Status:   %s\n", t.Status)
	fmt.Printf("Fire at:  %s\n", t.FireAt.Format(time.RFC3339))
	if len(t.Labels) > 0 {
		var pairs []string
		for k, v := range t.Labels {
			pairs = append(pairs, k+"="+v)
		}
		fmt.Printf("Labels:   %s\n", strings.Join(pairs, ","))
	}
	if t.FailureReason != "" {
		fmt.Printf("Failure:  %s\n", t.FailureReason)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
