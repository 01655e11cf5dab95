package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/wordtrail/wordtrail-engine/internal/data/aggregates"
	domainagg "github.com/wordtrail/wordtrail-engine/internal/domain/aggregates"
	"github.com/wordtrail/wordtrail-engine/internal/observability"
	"github.com/wordtrail/wordtrail-engine/internal/platform/envutil"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
	"github.com/wordtrail/wordtrail-engine/internal/services"
	"github.com/wordtrail/wordtrail-engine/internal/srs"
)

type Services struct {
	Selection  services.SelectionService
	Assignment services.AssignmentService
	Quality    services.QualityService
	Analytics  services.AnalyticsService

	// Aggregates are exposed for integration tooling; normal callers go
	// through the services above.
	Review        domainagg.ReviewAggregate
	AssignmentAgg domainagg.AssignmentAggregate
	Schedulers    *srs.Registry
}

func wireServices(db *gorm.DB, log *logger.Logger, reposet Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	params := srs.CurrentParams(log)
	fsrsSched, err := srs.NewFSRSScheduler(params, log)
	if err != nil {
		return Services{}, fmt.Errorf("init fsrs scheduler: %w", err)
	}
	registry := srs.NewRegistry(srs.NewSM2Scheduler(params, log), fsrsSched)

	base := aggregates.BaseDeps{
		DB:    db,
		Log:   log,
		Hooks: aggregates.NewObservabilityHooks(observability.Current()),
	}

	reviewAgg := aggregates.NewReviewAggregate(aggregates.ReviewAggregateDeps{
		Base:        base,
		Schedulers:  registry,
		Assignments: reposet.Assignments,
		Cards:       reposet.Cards,
		Logs:        reposet.Logs,
		Items:       reposet.Items,
	})

	assignmentAgg := aggregates.NewAssignmentAggregate(aggregates.AssignmentAggregateDeps{
		Base:        base,
		Schedulers:  registry,
		Assignments: reposet.Assignments,
		Cards:       reposet.Cards,
		MinReviews:  envutil.Int("MIGRATION_MIN_REVIEWS", 0),
	})

	selection := services.NewSelectionService(
		log,
		params,
		reposet.Items,
		reposet.Cards,
		reposet.Logs,
		reposet.Ability,
		clients.Vocab,
		reviewAgg,
		clients.Bus,
	)
	assignment := services.NewAssignmentService(log, reposet.Assignments, reposet.Logs, assignmentAgg, clients.Bus)
	quality := services.NewQualityService(log, reposet.Items, reposet.Logs)
	analytics := services.NewAnalyticsService(
		log,
		reposet.Logs,
		reposet.Cards,
		reposet.Metrics,
		reposet.Rollups,
		clients.WordGraph,
	)

	return Services{
		Selection:     selection,
		Assignment:    assignment,
		Quality:       quality,
		Analytics:     analytics,
		Review:        reviewAgg,
		AssignmentAgg: assignmentAgg,
		Schedulers:    registry,
	}, nil
}
