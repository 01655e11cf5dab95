package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wordtrail/wordtrail-engine/internal/app"
)

var (
	compareDays int

	trendDays      int
	trendAlgorithm string

	snapshotDay string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare sm2 and fsrs effectiveness over a trailing window",
	Long: `compare rolls up retention, leech rate, and mastery for both
algorithm arms over the trailing window and prints the per-arm metrics,
the deltas, and a recommendation. The recommendation stays at
"insufficient data" until both arms carry the minimum review sample.

Examples:
  enginectl compare --days 30`,
	RunE: runCompare,
}

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Print stored daily metric snapshots",
	RunE:  runTrend,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write the per-algorithm daily metric rows for one day",
	Long: `snapshot computes and upserts both algorithm arms' metric rows for
the given day (yesterday when --day is omitted). Re-running a day
replaces that day's numbers.

Examples:
  enginectl snapshot
  enginectl snapshot --day 2026-08-20`,
	RunE: runSnapshot,
}

var refreshRollupsCmd = &cobra.Command{
	Use:   "refresh-rollups",
	Short: "Recompute the global per-word difficulty rollups",
	RunE:  runRefreshRollups,
}

func init() {
	compareCmd.Flags().IntVar(&compareDays, "days", 30, "trailing window in days")
	trendCmd.Flags().IntVar(&trendDays, "days", 30, "trailing window in days")
	trendCmd.Flags().StringVar(&trendAlgorithm, "algorithm", "", "filter to one algorithm (sm2 or fsrs)")
	snapshotCmd.Flags().StringVar(&snapshotDay, "day", "", "day to snapshot, YYYY-MM-DD (default yesterday)")

	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(trendCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(refreshRollupsCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		cmp, err := a.Services.Analytics.Compare(ctx, compareDays)
		if err != nil {
			return err
		}
		return printJSON(cmp)
	})
}

func runTrend(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		rows, err := a.Services.Analytics.DailyTrend(ctx, trendDays, trendAlgorithm)
		if err != nil {
			return err
		}
		return printJSON(rows)
	})
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	var day time.Time
	if raw := strings.TrimSpace(snapshotDay); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return fmt.Errorf("invalid --day %q, want YYYY-MM-DD: %w", raw, err)
		}
		day = parsed.UTC()
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		rows, err := a.Services.Analytics.SnapshotDaily(ctx, day)
		if err != nil {
			return err
		}
		return printJSON(rows)
	})
}

func runRefreshRollups(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		n, err := a.Services.Analytics.RefreshWordRollups(ctx)
		if err != nil {
			return err
		}
		return printJSON(map[string]int{"words_refreshed": n})
	})
}
