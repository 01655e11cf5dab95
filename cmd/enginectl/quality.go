package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wordtrail/wordtrail-engine/internal/app"
)

var (
	recalcItem string

	reviewQueueLimit int
)

var recalcQualityCmd = &cobra.Command{
	Use:   "recalc-quality",
	Short: "Recompute item quality statistics from logged attempts",
	Long: `recalc-quality sweeps the whole item pool, recomputing difficulty,
discrimination, and quality tier from the review log. Pass --item to
recompute a single item instead.

Examples:
  enginectl recalc-quality
  enginectl recalc-quality --item 0b9c8c1e-55a1-46b5-8f9c-4a9a1af3a111`,
	RunE: runRecalcQuality,
}

var qualityReportCmd = &cobra.Command{
	Use:   "quality-report",
	Short: "Summarize item pool quality by tier",
	RunE:  runQualityReport,
}

var reviewQueueCmd = &cobra.Command{
	Use:   "review-queue",
	Short: "List items flagged for human review",
	RunE:  runReviewQueue,
}

func init() {
	recalcQualityCmd.Flags().StringVar(&recalcItem, "item", "", "recompute only this item UUID")
	reviewQueueCmd.Flags().IntVar(&reviewQueueLimit, "limit", 50, "maximum items to list")

	rootCmd.AddCommand(recalcQualityCmd)
	rootCmd.AddCommand(qualityReportCmd)
	rootCmd.AddCommand(reviewQueueCmd)
}

func runRecalcQuality(cmd *cobra.Command, args []string) error {
	itemRaw := strings.TrimSpace(recalcItem)
	return withApp(func(ctx context.Context, a *app.App) error {
		if itemRaw != "" {
			itemID, err := uuid.Parse(itemRaw)
			if err != nil {
				return fmt.Errorf("invalid --item %q: %w", itemRaw, err)
			}
			iq, err := a.Services.Quality.RecalculateItem(ctx, itemID)
			if err != nil {
				return err
			}
			return printJSON(iq)
		}
		summary, err := a.Services.Quality.RecalculateAll(ctx)
		if err != nil {
			return err
		}
		return printJSON(summary)
	})
}

func runQualityReport(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		report, err := a.Services.Quality.Report(ctx)
		if err != nil {
			return err
		}
		return printJSON(report)
	})
}

func runReviewQueue(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		items, err := a.Services.Quality.ItemsNeedingReview(ctx, reviewQueueLimit)
		if err != nil {
			return err
		}
		return printJSON(items)
	})
}
