package aggregates

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wordtrail/wordtrail-engine/internal/data/repos"
	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	domainagg "github.com/wordtrail/wordtrail-engine/internal/domain/aggregates"
	"github.com/wordtrail/wordtrail-engine/internal/platform/dbctx"
	"github.com/wordtrail/wordtrail-engine/internal/srs"
)

type ReviewAggregateDeps struct {
	Base BaseDeps

	Schedulers  *srs.Registry
	Assignments repos.AssignmentRepo
	Cards       repos.CardStateRepo
	Logs        repos.ReviewLogRepo
	Items       repos.TestItemRepo
}

type reviewAggregate struct {
	deps ReviewAggregateDeps
}

func NewReviewAggregate(deps ReviewAggregateDeps) domainagg.ReviewAggregate {
	deps.Base = deps.Base.withDefaults()
	return &reviewAggregate{deps: deps}
}

func (a *reviewAggregate) Contract() domainagg.Contract {
	return domainagg.ReviewAggregateContract
}

// Lock order inside every write: assignment row first, card rows second.
// The migration aggregate follows the same order, so a review and a
// migration for one learner serialize instead of deadlocking.
func (a *reviewAggregate) ApplyReview(ctx context.Context, in domainagg.ApplyReviewInput) (domainagg.ApplyReviewResult, error) {
	const op = "Learning.Review.ApplyReview"
	var out domainagg.ApplyReviewResult

	if in.LearnerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing learner_id", nil)
	}
	if in.WordID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing word_id", nil)
	}
	if in.ItemID != nil && *in.ItemID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "item_id must not be empty when set", nil)
	}
	if in.ResponseMS < 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "response_ms must be >= 0", nil)
	}
	rating, err := srs.ParseRating(in.Rating)
	if err != nil {
		return out, err
	}
	if a.deps.Schedulers == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "scheduler registry not configured", nil)
	}
	if a.deps.Assignments == nil || a.deps.Cards == nil || a.deps.Logs == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "review aggregate repos not configured", nil)
	}

	reviewedAt := in.ReviewedAt.UTC()
	if reviewedAt.IsZero() {
		reviewedAt = time.Now().UTC()
	}

	err = executeWriteRetry(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		asg, err := a.deps.Assignments.LockByLearner(dbc, in.LearnerID)
		if err != nil {
			return err
		}
		if asg == nil || asg.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodePreconditionFailed, op,
				fmt.Sprintf("learner has no algorithm assignment: %s", in.LearnerID.String()), nil)
		}

		sched, err := a.deps.Schedulers.ForAlgorithm(asg.Algorithm)
		if err != nil {
			return err
		}

		card, err := a.deps.Cards.LockByLearnerWord(dbc, in.LearnerID, in.WordID)
		if err != nil {
			return err
		}
		created := card == nil || card.ID == uuid.Nil
		if created {
			card = sched.InitializeCard(in.LearnerID, in.WordID, reviewedAt)
		} else if card.Algorithm != asg.Algorithm {
			return InvariantError(fmt.Sprintf(
				"card algorithm %q diverges from assignment %q", card.Algorithm, asg.Algorithm))
		}

		res, err := sched.ProcessReview(card, rating, in.ResponseMS, reviewedAt)
		if err != nil {
			return err
		}
		next := res.State

		if created {
			if _, err := a.deps.Cards.Create(dbc, []*types.CardState{next}); err != nil {
				return err
			}
		} else {
			ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, types.CardState{}.TableName(), card.ID, card.Version, map[string]any{
				"interval_days":        next.IntervalDays,
				"due_at":               next.DueAt,
				"last_reviewed_at":     next.LastReviewedAt,
				"total_reviews":        next.TotalReviews,
				"total_correct":        next.TotalCorrect,
				"mastery_level":        next.MasteryLevel,
				"is_leech":             next.IsLeech,
				"ease_factor":          next.EaseFactor,
				"consecutive_correct":  next.ConsecutiveCorrect,
				"consecutive_failures": next.ConsecutiveFailures,
				"recovery_streak":      next.RecoveryStreak,
				"stability":            next.Stability,
				"difficulty":           next.Difficulty,
				"retrievability":       next.Retrievability,
				"algo_state":           next.AlgoState,
				"avg_response_ms":      next.AvgResponseMS,
				"updated_at":           reviewedAt,
			})
			if err != nil {
				return err
			}
			if err := RequireCASSuccess(ok, fmt.Sprintf("card version moved under review: %s", card.ID.String())); err != nil {
				return err
			}
			next.Version = card.Version + 1
		}

		logRow := &types.ReviewLog{
			CardStateID:        next.ID,
			LearnerID:          in.LearnerID,
			WordID:             in.WordID,
			ItemID:             in.ItemID,
			Algorithm:          res.Algorithm,
			Rating:             rating.String(),
			ResponseMS:         int(in.ResponseMS),
			ElapsedDays:        elapsedDaysBetween(card.LastReviewedAt, reviewedAt),
			IntervalBefore:     card.IntervalDays,
			IntervalAfter:      next.IntervalDays,
			EaseBefore:         card.EaseFactor,
			EaseAfter:          next.EaseFactor,
			StabilityBefore:    card.Stability,
			StabilityAfter:     next.Stability,
			DifficultyBefore:   card.Difficulty,
			DifficultyAfter:    next.Difficulty,
			PredictedRetention: res.PredictedRetention,
			WasCorrect:         res.WasCorrect,
			AbilityAtReview:    in.AbilityAtReview,
			ReviewedAt:         reviewedAt,
			CreatedAt:          reviewedAt,
		}
		if _, err := a.deps.Logs.Create(dbc, []*types.ReviewLog{logRow}); err != nil {
			return err
		}

		if err := a.deps.Assignments.IncrementReviewCount(dbc, in.LearnerID); err != nil {
			return err
		}

		if in.ItemID != nil && a.deps.Items != nil {
			if err := a.deps.Items.BumpAttemptStats(dbc, *in.ItemID, res.WasCorrect, in.ResponseMS); err != nil {
				return err
			}
		}

		out = domainagg.ApplyReviewResult{
			CardID:             next.ID,
			ReviewLogID:        logRow.ID,
			Algorithm:          string(res.Algorithm),
			Rating:             rating.String(),
			WasCorrect:         res.WasCorrect,
			NextIntervalDays:   res.NextIntervalDays,
			DueAt:              derefTime(next.DueAt, reviewedAt),
			PredictedRetention: res.PredictedRetention,
			Mastery:            string(next.MasteryLevel),
			IsLeech:            next.IsLeech,
			LeechFlagged:       next.IsLeech && !card.IsLeech,
			ConsecutiveCorrect: next.ConsecutiveCorrect,
			CardVersion:        next.Version,
			CardCreated:        created,
			ReviewedAt:         reviewedAt,
		}
		return nil
	})
	return out, err
}

func (a *reviewAggregate) EnsureCard(ctx context.Context, in domainagg.EnsureCardInput) (domainagg.EnsureCardResult, error) {
	const op = "Learning.Review.EnsureCard"
	var out domainagg.EnsureCardResult

	if in.LearnerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing learner_id", nil)
	}
	if in.WordID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing word_id", nil)
	}
	if a.deps.Schedulers == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "scheduler registry not configured", nil)
	}
	if a.deps.Assignments == nil || a.deps.Cards == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "review aggregate repos not configured", nil)
	}

	now := in.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	// A concurrent first review can insert the same card; the unique
	// (learner, word) index turns the loser into a conflict, and the retry
	// finds the winner's row.
	err := executeWriteRetry(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		asg, err := a.deps.Assignments.LockByLearner(dbc, in.LearnerID)
		if err != nil {
			return err
		}
		if asg == nil || asg.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodePreconditionFailed, op,
				fmt.Sprintf("learner has no algorithm assignment: %s", in.LearnerID.String()), nil)
		}

		existing, err := a.deps.Cards.GetByLearnerWord(dbc, in.LearnerID, in.WordID)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID != uuid.Nil {
			out = domainagg.EnsureCardResult{
				CardID:    existing.ID,
				Algorithm: string(existing.Algorithm),
				DueAt:     derefTime(existing.DueAt, now),
				Created:   false,
			}
			return nil
		}

		sched, err := a.deps.Schedulers.ForAlgorithm(asg.Algorithm)
		if err != nil {
			return err
		}
		card := sched.InitializeCard(in.LearnerID, in.WordID, now)
		if _, err := a.deps.Cards.Create(dbc, []*types.CardState{card}); err != nil {
			return err
		}

		out = domainagg.EnsureCardResult{
			CardID:    card.ID,
			Algorithm: string(card.Algorithm),
			DueAt:     derefTime(card.DueAt, now),
			Created:   true,
		}
		return nil
	})
	return out, err
}

func elapsedDaysBetween(last *time.Time, now time.Time) float64 {
	if last == nil {
		return 0
	}
	d := now.Sub(*last).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

func derefTime(t *time.Time, fallback time.Time) time.Time {
	if t == nil {
		return fallback
	}
	return *t
}
