package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wordtrail/wordtrail-engine/internal/data/repos"
	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	domainagg "github.com/wordtrail/wordtrail-engine/internal/domain/aggregates"
	"github.com/wordtrail/wordtrail-engine/internal/events"
	"github.com/wordtrail/wordtrail-engine/internal/observability"
	"github.com/wordtrail/wordtrail-engine/internal/platform/dbctx"
	"github.com/wordtrail/wordtrail-engine/internal/platform/envutil"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
)

// DefaultMigrationMinReviews gates sm2 -> fsrs migration: below this many
// completed reviews the conversion heuristics have too little history to be
// trustworthy. Override with MIGRATION_MIN_REVIEWS.
const DefaultMigrationMinReviews = 100

type AssignmentInfo struct {
	AssignmentID uuid.UUID        `json:"assignment_id"`
	LearnerID    uuid.UUID        `json:"learner_id"`
	Algorithm    types.Algorithm  `json:"algorithm"`
	ReviewCount  int              `json:"review_count"`
	AssignedAt   time.Time        `json:"assigned_at"`
	MigratedAt   *time.Time       `json:"migrated_at,omitempty"`
	MigratedFrom *types.Algorithm `json:"migrated_from,omitempty"`
	Created      bool             `json:"created"`
}

type MigrationEligibility struct {
	LearnerID       uuid.UUID       `json:"learner_id"`
	Algorithm       types.Algorithm `json:"algorithm"`
	ReviewCount     int             `json:"review_count"`
	// LoggedReviews is the append-only log's count for the learner. It is
	// advisory: eligibility is judged on the assignment counter, which is
	// what Migrate enforces. A gap between the two means the counter and
	// the log have drifted.
	LoggedReviews   int64 `json:"logged_reviews"`
	RequiredReviews int   `json:"required_reviews"`
	Eligible        bool  `json:"eligible"`
}

type MigrationOutcome struct {
	LearnerID      uuid.UUID       `json:"learner_id"`
	FromAlgorithm  types.Algorithm `json:"from_algorithm"`
	ToAlgorithm    types.Algorithm `json:"to_algorithm"`
	CardsConverted int             `json:"cards_converted"`
	CardsSkipped   int             `json:"cards_skipped"`
	SkippedWordIDs []uuid.UUID     `json:"skipped_word_ids,omitempty"`
	MigratedAt     time.Time       `json:"migrated_at"`
}

type AssignmentService interface {
	// Assign draws an algorithm for the learner on first contact and is a
	// no-op returning the stored binding afterwards.
	Assign(ctx context.Context, learnerID uuid.UUID) (*AssignmentInfo, error)
	Get(ctx context.Context, learnerID uuid.UUID) (*AssignmentInfo, error)
	CanMigrate(ctx context.Context, learnerID uuid.UUID) (*MigrationEligibility, error)
	// Migrate moves the learner to target (default fsrs), converting every
	// card in one transaction. force bypasses the review-count gate.
	Migrate(ctx context.Context, learnerID uuid.UUID, target string, force bool) (*MigrationOutcome, error)
}

type assignmentService struct {
	log         *logger.Logger
	assignments repos.AssignmentRepo
	logs        repos.ReviewLogRepo
	agg         domainagg.AssignmentAggregate
	bus         events.Bus
	minReviews  int
}

func NewAssignmentService(
	baseLog *logger.Logger,
	assignments repos.AssignmentRepo,
	logs repos.ReviewLogRepo,
	agg domainagg.AssignmentAggregate,
	bus events.Bus,
) AssignmentService {
	if bus == nil {
		bus = events.NewNoop()
	}
	return &assignmentService{
		log:         baseLog.With("service", "AssignmentService"),
		assignments: assignments,
		logs:        logs,
		agg:         agg,
		bus:         bus,
		minReviews:  envutil.Int("MIGRATION_MIN_REVIEWS", DefaultMigrationMinReviews),
	}
}

func (s *assignmentService) Assign(ctx context.Context, learnerID uuid.UUID) (*AssignmentInfo, error) {
	if s == nil || s.agg == nil {
		return nil, fmt.Errorf("assignment service not configured")
	}
	res, err := s.agg.Assign(ctx, domainagg.AssignLearnerInput{LearnerID: learnerID})
	if err != nil {
		return nil, err
	}
	info := &AssignmentInfo{
		AssignmentID: res.AssignmentID,
		LearnerID:    res.LearnerID,
		Algorithm:    types.Algorithm(res.Algorithm),
		AssignedAt:   res.AssignedAt,
		Created:      res.Created,
	}
	if res.Created {
		observability.Current().IncAssignment(res.Algorithm)
	}
	if !res.Created {
		// The aggregate only reports the stored arm for existing rows;
		// pick up review counters for the caller.
		full, gerr := s.assignments.GetByLearner(dbctx.Context{Ctx: ctx}, learnerID)
		if gerr == nil && full != nil {
			info.ReviewCount = full.ReviewCount
			info.MigratedAt = full.MigratedAt
			info.MigratedFrom = full.MigratedFrom
		}
	}
	return info, nil
}

func (s *assignmentService) Get(ctx context.Context, learnerID uuid.UUID) (*AssignmentInfo, error) {
	if s == nil || s.assignments == nil {
		return nil, fmt.Errorf("assignment service not configured")
	}
	const op = "Learning.Assignment.Get"
	if learnerID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing learner_id", nil)
	}
	row, err := s.assignments.GetByLearner(dbctx.Context{Ctx: ctx}, learnerID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op,
			fmt.Sprintf("learner has no algorithm assignment: %s", learnerID.String()), nil)
	}
	return &AssignmentInfo{
		AssignmentID: row.ID,
		LearnerID:    row.LearnerID,
		Algorithm:    row.Algorithm,
		ReviewCount:  row.ReviewCount,
		AssignedAt:   row.AssignedAt,
		MigratedAt:   row.MigratedAt,
		MigratedFrom: row.MigratedFrom,
	}, nil
}

func (s *assignmentService) CanMigrate(ctx context.Context, learnerID uuid.UUID) (*MigrationEligibility, error) {
	info, err := s.Get(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	elig := &MigrationEligibility{
		LearnerID:       info.LearnerID,
		Algorithm:       info.Algorithm,
		ReviewCount:     info.ReviewCount,
		RequiredReviews: s.minReviews,
		Eligible:        info.ReviewCount >= s.minReviews,
	}
	if s.logs != nil {
		logged, cerr := s.logs.CountByLearner(dbctx.Context{Ctx: ctx}, learnerID)
		if cerr != nil {
			s.log.Warn("review log count unavailable", "learner_id", learnerID.String(), "error", cerr)
		} else {
			elig.LoggedReviews = logged
		}
	}
	return elig, nil
}

func (s *assignmentService) Migrate(ctx context.Context, learnerID uuid.UUID, target string, force bool) (*MigrationOutcome, error) {
	if s == nil || s.agg == nil {
		return nil, fmt.Errorf("assignment service not configured")
	}
	target = strings.TrimSpace(target)
	if target == "" {
		target = string(types.AlgorithmFSRS)
	}
	res, err := s.agg.Migrate(ctx, domainagg.MigrateLearnerInput{
		LearnerID: learnerID,
		Target:    target,
		Force:     force,
	})
	if err != nil {
		observability.Current().ObserveMigration("", target, "failed", 0, 0)
		return nil, err
	}
	observability.Current().ObserveMigration(res.FromAlgorithm, res.ToAlgorithm, "succeeded", res.CardsConverted, res.CardsSkipped)
	out := &MigrationOutcome{
		LearnerID:      res.LearnerID,
		FromAlgorithm:  types.Algorithm(res.FromAlgorithm),
		ToAlgorithm:    types.Algorithm(res.ToAlgorithm),
		CardsConverted: res.CardsConverted,
		CardsSkipped:   res.CardsSkipped,
		SkippedWordIDs: res.SkippedWordIDs,
		MigratedAt:     res.MigratedAt,
	}
	if res.FromAlgorithm != res.ToAlgorithm {
		evt := events.NewEvent(events.EventMigrationCompleted, learnerID, map[string]any{
			"from":            res.FromAlgorithm,
			"to":              res.ToAlgorithm,
			"cards_converted": res.CardsConverted,
			"cards_skipped":   res.CardsSkipped,
		})
		if perr := s.bus.Publish(ctx, evt); perr != nil {
			s.log.Warn("migration event publish failed", "learner_id", learnerID.String(), "error", perr)
			observability.Current().IncEventPublished(events.EventMigrationCompleted, "failed")
		} else {
			observability.Current().IncEventPublished(events.EventMigrationCompleted, "published")
		}
	}
	return out, nil
}
