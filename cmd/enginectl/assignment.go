package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wordtrail/wordtrail-engine/internal/app"
)

var (
	assignLearner string

	canMigrateLearner string

	migrateLearner string
	migrateTarget  string
	migrateForce   bool
)

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign a scheduling algorithm to a learner",
	Long: `Assign draws a uniform-random algorithm arm for a learner on first
contact. Re-running for an already assigned learner is a no-op that
prints the stored binding.

Examples:
  enginectl assign --learner 6f1f639e-6a8f-4f6e-9be5-9f42e5a3e6b1`,
	RunE: runAssign,
}

var canMigrateCmd = &cobra.Command{
	Use:   "can-migrate",
	Short: "Check whether a learner is eligible for algorithm migration",
	RunE:  runCanMigrate,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate a learner's cards to another scheduling algorithm",
	Long: `Migrate converts every card the learner owns to the target
algorithm (fsrs unless --target says otherwise) and flips the assignment
in the same transaction. Without --force the learner needs the minimum
review history first.

Examples:
  enginectl migrate --learner 6f1f639e-6a8f-4f6e-9be5-9f42e5a3e6b1
  enginectl migrate --learner 6f1f639e-... --target sm2 --force`,
	RunE: runMigrate,
}

func init() {
	assignCmd.Flags().StringVar(&assignLearner, "learner", "", "learner UUID (required)")
	canMigrateCmd.Flags().StringVar(&canMigrateLearner, "learner", "", "learner UUID (required)")
	migrateCmd.Flags().StringVar(&migrateLearner, "learner", "", "learner UUID (required)")
	migrateCmd.Flags().StringVar(&migrateTarget, "target", "", "target algorithm (default fsrs)")
	migrateCmd.Flags().BoolVar(&migrateForce, "force", false, "bypass the review-count eligibility gate")

	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(canMigrateCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runAssign(cmd *cobra.Command, args []string) error {
	learnerID, err := parseLearnerFlag(assignLearner)
	if err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		info, err := a.Services.Assignment.Assign(ctx, learnerID)
		if err != nil {
			return err
		}
		return printJSON(info)
	})
}

func runCanMigrate(cmd *cobra.Command, args []string) error {
	learnerID, err := parseLearnerFlag(canMigrateLearner)
	if err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		elig, err := a.Services.Assignment.CanMigrate(ctx, learnerID)
		if err != nil {
			return err
		}
		return printJSON(elig)
	})
}

func runMigrate(cmd *cobra.Command, args []string) error {
	learnerID, err := parseLearnerFlag(migrateLearner)
	if err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		out, err := a.Services.Assignment.Migrate(ctx, learnerID, strings.TrimSpace(migrateTarget), migrateForce)
		if err != nil {
			return err
		}
		return printJSON(out)
	})
}
