package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/wordtrail/wordtrail-engine/internal/app"
	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	"github.com/wordtrail/wordtrail-engine/internal/platform/dbctx"
)

var (
	dueLearner string
	dueLimit   int
)

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "List a learner's due cards, soonest first",
	Long: `due lists the cards whose next review is at or before now, in the
order the scheduler would serve them. Leech cards are excluded; they sit
in the recovery queue instead of the normal rotation.

Examples:
  enginectl due --learner 7f3f9f3e-2f6a-4b6e-9f0e-0c8a67d8f4b2
  enginectl due --learner 7f3f9f3e-2f6a-4b6e-9f0e-0c8a67d8f4b2 --limit 20`,
	RunE: runDue,
}

func init() {
	dueCmd.Flags().StringVar(&dueLearner, "learner", "", "learner UUID (required)")
	dueCmd.Flags().IntVar(&dueLimit, "limit", 50, "maximum cards to list")

	rootCmd.AddCommand(dueCmd)
}

func runDue(cmd *cobra.Command, args []string) error {
	learnerID, err := parseLearnerFlag(dueLearner)
	if err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		asOf := time.Now().UTC()
		cards, err := a.Repos.Cards.ListDue(dbctx.Context{Ctx: ctx}, learnerID, asOf, dueLimit)
		if err != nil {
			return err
		}
		return printJSON(struct {
			LearnerID string             `json:"learner_id"`
			AsOf      time.Time          `json:"as_of"`
			Count     int                `json:"count"`
			Cards     []*types.CardState `json:"cards"`
		}{
			LearnerID: learnerID.String(),
			AsOf:      asOf,
			Count:     len(cards),
			Cards:     cards,
		})
	})
}
