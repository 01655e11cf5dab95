package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wordtrail/wordtrail-engine/internal/app"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "enginectl",
	Short: "Operator CLI for the wordtrail scheduling engine",
	Long: `enginectl drives the scheduling engine's operator surface: learner
algorithm assignment and migration, item quality recalculation, and the
sm2 vs fsrs effectiveness reports.

Configuration comes from the environment (a local .env is honored):
POSTGRES_* or DB_DRIVER=sqlite for the store, REDIS_ADDR for engine
events, NEO4J_URI for the word graph.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withApp wires the full application, runs fn under a signal-aware context,
// and tears everything down afterwards. Every subcommand goes through here
// so flag errors never pay the startup cost.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, a)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func parseLearnerFlag(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("missing required --learner")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --learner %q: %w", raw, err)
	}
	return id, nil
}
