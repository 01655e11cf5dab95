package aggregates

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wordtrail/wordtrail-engine/internal/data/repos"
	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	domainagg "github.com/wordtrail/wordtrail-engine/internal/domain/aggregates"
	"github.com/wordtrail/wordtrail-engine/internal/platform/dbctx"
	"github.com/wordtrail/wordtrail-engine/internal/srs"
)

const defaultMigrationMinReviews = 100

type AssignmentAggregateDeps struct {
	Base BaseDeps

	Schedulers  *srs.Registry
	Assignments repos.AssignmentRepo
	Cards       repos.CardStateRepo

	// MinReviews gates non-forced migration; zero means the default of 100.
	MinReviews int
}

type assignmentAggregate struct {
	deps AssignmentAggregateDeps
}

func NewAssignmentAggregate(deps AssignmentAggregateDeps) domainagg.AssignmentAggregate {
	deps.Base = deps.Base.withDefaults()
	if deps.MinReviews <= 0 {
		deps.MinReviews = defaultMigrationMinReviews
	}
	return &assignmentAggregate{deps: deps}
}

func (a *assignmentAggregate) Contract() domainagg.Contract {
	return domainagg.AssignmentAggregateContract
}

func (a *assignmentAggregate) Assign(ctx context.Context, in domainagg.AssignLearnerInput) (domainagg.AssignLearnerResult, error) {
	const op = "Learning.Assignment.Assign"
	var out domainagg.AssignLearnerResult

	if in.LearnerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing learner_id", nil)
	}
	if a.deps.Schedulers == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "scheduler registry not configured", nil)
	}
	if a.deps.Assignments == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "assignment repo not configured", nil)
	}

	chosen, err := a.pickAlgorithm(op, in.Algorithm)
	if err != nil {
		return out, err
	}
	assignedAt := in.AssignedAt.UTC()
	if assignedAt.IsZero() {
		assignedAt = time.Now().UTC()
	}

	err = executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		row := &types.AlgorithmAssignment{
			LearnerID:  in.LearnerID,
			Algorithm:  chosen,
			AssignedAt: assignedAt,
			Version:    1,
		}
		created, err := a.deps.Assignments.CreateIgnoreDuplicates(dbc, row)
		if err != nil {
			return err
		}
		if created {
			out = domainagg.AssignLearnerResult{
				AssignmentID: row.ID,
				LearnerID:    row.LearnerID,
				Algorithm:    string(row.Algorithm),
				AssignedAt:   row.AssignedAt,
				Created:      true,
			}
			return nil
		}

		// Lost the insert race or the learner was assigned long ago; the
		// stored binding wins either way.
		existing, err := a.deps.Assignments.GetByLearner(dbc, in.LearnerID)
		if err != nil {
			return err
		}
		if existing == nil || existing.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeInternal, op,
				fmt.Sprintf("assignment insert skipped but row missing: %s", in.LearnerID.String()), nil)
		}
		out = domainagg.AssignLearnerResult{
			AssignmentID: existing.ID,
			LearnerID:    existing.LearnerID,
			Algorithm:    string(existing.Algorithm),
			AssignedAt:   existing.AssignedAt,
			Created:      false,
		}
		return nil
	})
	return out, err
}

func (a *assignmentAggregate) Migrate(ctx context.Context, in domainagg.MigrateLearnerInput) (domainagg.MigrateLearnerResult, error) {
	const op = "Learning.Assignment.Migrate"
	var out domainagg.MigrateLearnerResult

	if in.LearnerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing learner_id", nil)
	}
	target := types.Algorithm(strings.ToLower(strings.TrimSpace(in.Target)))
	if !target.Valid() {
		return out, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("invalid target algorithm %q", in.Target), nil)
	}
	if a.deps.Schedulers == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "scheduler registry not configured", nil)
	}
	if a.deps.Assignments == nil || a.deps.Cards == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "assignment aggregate repos not configured", nil)
	}

	sched, err := a.deps.Schedulers.ForAlgorithm(target)
	if err != nil {
		return out, err
	}
	adopter, ok := sched.(srs.CardAdopter)
	if !ok {
		return out, domainagg.NewError(domainagg.CodeCapabilityUnavailable, op,
			fmt.Sprintf("scheduler %q cannot adopt existing cards", target), nil)
	}

	migratedAt := in.MigratedAt.UTC()
	if migratedAt.IsZero() {
		migratedAt = time.Now().UTC()
	}

	err = executeWriteRetry(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		asg, err := a.deps.Assignments.LockByLearner(dbc, in.LearnerID)
		if err != nil {
			return err
		}
		if asg == nil || asg.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op,
				fmt.Sprintf("assignment not found for learner: %s", in.LearnerID.String()), nil)
		}

		from := asg.Algorithm
		if from == target {
			out = domainagg.MigrateLearnerResult{
				AssignmentID:  asg.ID,
				LearnerID:     asg.LearnerID,
				FromAlgorithm: string(from),
				ToAlgorithm:   string(target),
				MigratedAt:    migratedAt,
			}
			return nil
		}
		if !in.Force && asg.ReviewCount < a.deps.MinReviews {
			return domainagg.NewError(domainagg.CodePreconditionFailed, op,
				fmt.Sprintf("migration requires %d reviews, learner has %d", a.deps.MinReviews, asg.ReviewCount), nil)
		}

		// The assignment row lock serializes this against reviews, so the
		// card list cannot change underneath the conversion loop.
		cards, err := a.deps.Cards.ListByLearnerAlgorithm(dbc, in.LearnerID, from)
		if err != nil {
			return err
		}

		converted := 0
		skipped := 0
		var skippedWords []uuid.UUID
		for _, card := range cards {
			next, adoptErr := adopter.AdoptLegacyCard(card, migratedAt)
			if adoptErr != nil {
				skipped++
				skippedWords = append(skippedWords, card.WordID)
				if log := a.deps.Base.Log; log != nil {
					log.Warn("card conversion failed; leaving card on current algorithm",
						"learner_id", in.LearnerID.String(),
						"word_id", card.WordID.String(),
						"card_id", card.ID.String(),
						"error", adoptErr)
				}
				continue
			}
			ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, types.CardState{}.TableName(), card.ID, card.Version, map[string]any{
				"algorithm":      next.Algorithm,
				"stability":      next.Stability,
				"difficulty":     next.Difficulty,
				"retrievability": next.Retrievability,
				"algo_state":     next.AlgoState,
				"updated_at":     migratedAt,
			})
			if err != nil {
				return err
			}
			if err := RequireCASSuccess(ok, fmt.Sprintf("card version moved under migration: %s", card.ID.String())); err != nil {
				return err
			}
			converted++
		}

		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, types.AlgorithmAssignment{}.TableName(), asg.ID, asg.Version, map[string]any{
			"algorithm":     target,
			"migrated_at":   migratedAt,
			"migrated_from": from,
			"updated_at":    migratedAt,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, fmt.Sprintf("assignment version moved under migration: %s", asg.ID.String())); err != nil {
			return err
		}

		out = domainagg.MigrateLearnerResult{
			AssignmentID:   asg.ID,
			LearnerID:      asg.LearnerID,
			FromAlgorithm:  string(from),
			ToAlgorithm:    string(target),
			CardsConverted: converted,
			CardsSkipped:   skipped,
			SkippedWordIDs: skippedWords,
			MigratedAt:     migratedAt,
		}
		return nil
	})
	return out, err
}

func (a *assignmentAggregate) pickAlgorithm(op, requested string) (types.Algorithm, error) {
	if pinned := strings.ToLower(strings.TrimSpace(requested)); pinned != "" {
		alg := types.Algorithm(pinned)
		if !alg.Valid() {
			return "", domainagg.NewError(domainagg.CodeValidation, op,
				fmt.Sprintf("invalid algorithm %q", requested), nil)
		}
		if !a.deps.Schedulers.Has(alg) {
			return "", domainagg.NewError(domainagg.CodeCapabilityUnavailable, op,
				fmt.Sprintf("scheduler %q not available", alg), nil)
		}
		return alg, nil
	}
	available := a.deps.Schedulers.Available()
	if len(available) == 0 {
		return "", domainagg.NewError(domainagg.CodeCapabilityUnavailable, op, "no schedulers available", nil)
	}
	return available[rand.Intn(len(available))], nil
}
