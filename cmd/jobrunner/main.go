// Command jobrunner is the engine's maintenance daemon. It runs the
// nightly item quality recalculation, the daily scheduler metric
// snapshot, and the word difficulty rollup refresh, and keeps the
// due-queue and arm-size gauges fresh between runs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/joho/godotenv"

	"github.com/wordtrail/wordtrail-engine/internal/app"
	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	"github.com/wordtrail/wordtrail-engine/internal/events"
	"github.com/wordtrail/wordtrail-engine/internal/observability"
	"github.com/wordtrail/wordtrail-engine/internal/platform/dbctx"
	"github.com/wordtrail/wordtrail-engine/internal/platform/envutil"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
)

const gaugeInterval = 5

func main() {
	_ = godotenv.Load()

	a, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobrunner: %v\n", err)
		os.Exit(1)
	}
	log := a.Log.With("component", "jobrunner")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := observability.Current()
	m.StartServer(ctx, log, a.Cfg.MetricsAddr)
	m.StartPostgresCollector(ctx, log, a.DB)
	m.StartRedisCollector(ctx, log, a.Cfg.RedisAddr)
	m.StartSLOEvaluator(ctx, log)

	if envutil.Bool("ENGINE_EVENTS_LOG", false) {
		if err := a.Clients.Bus.StartForwarder(ctx, func(evt events.Event) {
			log.Info("engine event", "event", evt.Name, "learner_id", evt.LearnerID.String())
		}); err != nil {
			log.Warn("event forwarder unavailable", "error", err)
		}
	}

	s := gocron.NewScheduler(time.UTC)
	if _, err := s.Every(1).Day().At(a.Cfg.QualityRecalcAt).Do(func() { runQualityRecalc(ctx, a, log) }); err != nil {
		log.Error("schedule quality recalc", "error", err)
	}
	if _, err := s.Every(1).Day().At(a.Cfg.SnapshotAt).Do(func() { runDailySnapshot(ctx, a, log) }); err != nil {
		log.Error("schedule daily snapshot", "error", err)
	}
	if _, err := s.Every(1).Day().At(a.Cfg.RollupRefreshAt).Do(func() { runRollupRefresh(ctx, a, log) }); err != nil {
		log.Error("schedule rollup refresh", "error", err)
	}
	if _, err := s.Every(gaugeInterval).Minutes().Do(func() { updateEngineGauges(ctx, a, log) }); err != nil {
		log.Error("schedule engine gauges", "error", err)
	}
	s.StartAsync()

	log.Info("jobrunner started",
		"quality_recalc_at", a.Cfg.QualityRecalcAt,
		"snapshot_at", a.Cfg.SnapshotAt,
		"rollup_refresh_at", a.Cfg.RollupRefreshAt,
		"gauge_minutes", gaugeInterval)

	<-ctx.Done()
	log.Info("jobrunner stopping")
	s.Stop()
	if err := a.Close(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "jobrunner: close: %v\n", err)
	}
}

func runQualityRecalc(ctx context.Context, a *app.App, log *logger.Logger) {
	ctx, finish := observability.StartJobSpan(ctx, "quality_recalc")
	started := time.Now()
	summary, err := a.Services.Quality.RecalculateAll(ctx)
	dur := time.Since(started)
	finish(err)
	if err != nil {
		log.Error("quality recalc failed", "error", err, "duration", dur.String())
		observability.Current().ObserveJobRun("quality_recalc", "failed", dur)
		return
	}
	observability.Current().ObserveJobRun("quality_recalc", "succeeded", dur)
	log.Info("quality recalc complete",
		"processed", summary.Processed,
		"flagged", summary.Flagged,
		"skipped", summary.Skipped,
		"duration", dur.String())

	issues := map[string]int{}
	if summary.Flagged > 0 {
		issues["flagged_for_review"] = summary.Flagged
	}
	if summary.Skipped > 0 {
		issues["recompute_failed"] = summary.Skipped
	}
	observability.ReportItemQualityIssues(ctx, log, "quality_sweep", issues, map[string]any{
		"processed": summary.Processed,
	})

	if summary.Processed > 0 {
		flaggedRatio := float64(summary.Flagged) / float64(summary.Processed)
		threshold := envutil.Float("QUALITY_FLAGGED_RATIO_ALERT", 0.10)
		if flaggedRatio >= threshold {
			observability.ReportCalibrationDrift(ctx, log, []observability.CalibrationDriftMetric{{
				Name:      "item_flagged_ratio",
				Status:    "breached",
				Value:     flaggedRatio,
				Threshold: threshold,
				Meta:      map[string]any{"processed": summary.Processed, "flagged": summary.Flagged},
			}}, nil)
		}
	}
}

func runDailySnapshot(ctx context.Context, a *app.App, log *logger.Logger) {
	ctx, finish := observability.StartJobSpan(ctx, "daily_snapshot")
	started := time.Now()
	rows, err := a.Services.Analytics.SnapshotDaily(ctx, time.Time{})
	dur := time.Since(started)
	finish(err)
	if err != nil {
		log.Error("daily snapshot failed", "error", err, "duration", dur.String())
		observability.Current().ObserveJobRun("daily_snapshot", "failed", dur)
		return
	}
	observability.Current().ObserveJobRun("daily_snapshot", "succeeded", dur)
	log.Info("daily snapshot complete", "rows", len(rows), "duration", dur.String())
}

func runRollupRefresh(ctx context.Context, a *app.App, log *logger.Logger) {
	ctx, finish := observability.StartJobSpan(ctx, "rollup_refresh")
	started := time.Now()
	n, err := a.Services.Analytics.RefreshWordRollups(ctx)
	dur := time.Since(started)
	finish(err)
	if err != nil {
		log.Error("rollup refresh failed", "error", err, "duration", dur.String())
		observability.Current().ObserveJobRun("rollup_refresh", "failed", dur)
		return
	}
	observability.Current().ObserveJobRun("rollup_refresh", "succeeded", dur)
	log.Info("rollup refresh complete", "words", n, "duration", dur.String())
}

// updateEngineGauges publishes per-algorithm due-card counts and arm sizes.
// Arms with no rows are written as zero so a drained queue or empty arm
// reads as 0, not as a stale last value.
func updateEngineGauges(ctx context.Context, a *app.App, log *logger.Logger) {
	dbc := dbctx.Context{Ctx: ctx}
	due, err := a.Repos.Cards.CountDueByAlgorithm(dbc, time.Now().UTC())
	if err != nil {
		log.Warn("due gauge refresh failed", "error", err)
		return
	}
	dueByAlg := make(map[types.Algorithm]int64, len(due))
	for _, r := range due {
		dueByAlg[r.Algorithm] = r.Due
	}
	arms, err := a.Repos.Assignments.ArmSizes(dbc)
	if err != nil {
		log.Warn("arm gauge refresh failed", "error", err)
		return
	}
	armByAlg := make(map[types.Algorithm]int64, len(arms))
	for _, r := range arms {
		armByAlg[r.Algorithm] = r.Learners
	}
	for _, alg := range []types.Algorithm{types.AlgorithmSM2, types.AlgorithmFSRS} {
		observability.Current().SetCardsDue(string(alg), float64(dueByAlg[alg]))
		observability.Current().SetArmLearners(string(alg), float64(armByAlg[alg]))
	}
}
