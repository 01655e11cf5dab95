package srs

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	domainagg "github.com/wordtrail/wordtrail-engine/internal/domain/aggregates"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
)

// SM2Scheduler is the legacy ease-factor scheduler. Intervals walk the fixed
// ladder 1 -> 3 -> 7 and then grow multiplicatively by the ease factor,
// strictly increasing. Classic SM-2 adjusts ease from a 0-5 quality grade;
// that formula leaves GOOD at a zero delta, so ease moves by per-rating
// deltas from the tuning document instead.
type SM2Scheduler struct {
	params Params
	log    *logger.Logger
}

func NewSM2Scheduler(params Params, baseLog *logger.Logger) *SM2Scheduler {
	return &SM2Scheduler{params: params, log: baseLog.With("scheduler", "sm2")}
}

func (s *SM2Scheduler) Algorithm() types.Algorithm { return types.AlgorithmSM2 }

func (s *SM2Scheduler) InitializeCard(learnerID, wordID uuid.UUID, now time.Time) *types.CardState {
	due := now.UTC()
	return &types.CardState{
		LearnerID:    learnerID,
		WordID:       wordID,
		Algorithm:    types.AlgorithmSM2,
		IntervalDays: 0,
		DueAt:        &due,
		MasteryLevel: types.MasteryLearning,
		EaseFactor:   s.params.SM2.InitialEase,
		AlgoState:    datatypes.JSON([]byte("{}")),
		Version:      1,
	}
}

func (s *SM2Scheduler) ProcessReview(card *types.CardState, rating Rating, responseMS int64, now time.Time) (*ReviewResult, error) {
	const op = "srs.sm2.process_review"
	if card == nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "card is required", nil)
	}
	if card.Algorithm != types.AlgorithmSM2 {
		return nil, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("card belongs to %q, not sm2", card.Algorithm), nil)
	}
	if !rating.Valid() {
		return nil, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("unknown rating %q", rating), nil)
	}

	p := s.params.SM2
	now = now.UTC()
	predicted := sm2Retention(card.IntervalDays, elapsedDays(card, now))

	next := *card
	correct := rating.Correct()

	switch rating {
	case RatingAgain:
		next.ConsecutiveCorrect = 0
		next.ConsecutiveFailures = card.ConsecutiveFailures + 1
		next.RecoveryStreak = 0
		next.EaseFactor = clampRange(card.EaseFactor+p.EaseDeltaAgain, p.MinEase, p.MaxEase)
		next.IntervalDays = 1
		if next.EaseFactor < p.LeechEaseBelow && next.ConsecutiveFailures >= p.LeechFailureThreshold {
			next.IsLeech = true
		}
	case RatingHard:
		next.ConsecutiveCorrect = card.ConsecutiveCorrect + 1
		next.ConsecutiveFailures = 0
		next.EaseFactor = clampRange(card.EaseFactor+p.EaseDeltaHard, p.MinEase, p.MaxEase)
		if card.IntervalDays < 1 {
			next.IntervalDays = 1
		} else {
			next.IntervalDays = math.Max(card.IntervalDays+1, math.Round(card.IntervalDays*p.HardIntervalMultiplier))
		}
	case RatingGood, RatingPerfect:
		next.ConsecutiveCorrect = card.ConsecutiveCorrect + 1
		next.ConsecutiveFailures = 0
		delta := p.EaseDeltaGood
		if rating == RatingPerfect {
			delta = p.EaseDeltaPerfect
		}
		next.EaseFactor = clampRange(card.EaseFactor+delta, p.MinEase, p.MaxEase)
		next.IntervalDays = sm2Advance(card.IntervalDays, next.EaseFactor)
	}

	if card.IsLeech && correct {
		next.RecoveryStreak = card.RecoveryStreak + 1
		if next.RecoveryStreak >= p.LeechRecoveryRun {
			next.IsLeech = false
			next.RecoveryStreak = 0
		}
	}

	next.TotalReviews = card.TotalReviews + 1
	if correct {
		next.TotalCorrect = card.TotalCorrect + 1
	}
	foldResponseTime(&next, responseMS)
	next.LastReviewedAt = &now
	due := now.Add(time.Duration(next.IntervalDays * 24 * float64(time.Hour)))
	next.DueAt = &due
	next.MasteryLevel = MasteryFor(next.ConsecutiveCorrect, next.IntervalDays, s.params.Mastery)

	return &ReviewResult{
		State:              &next,
		NextIntervalDays:   next.IntervalDays,
		WasCorrect:         correct,
		PredictedRetention: predicted,
		Algorithm:          types.AlgorithmSM2,
	}, nil
}

// sm2Advance walks the 1/3/7 ladder, then multiplies by ease. The max
// guard keeps the sequence strictly increasing even at the ease floor.
func sm2Advance(intervalDays, ease float64) float64 {
	switch {
	case intervalDays < 1:
		return 1
	case intervalDays < 3:
		return 3
	case intervalDays < 7:
		return 7
	default:
		return math.Max(intervalDays+1, math.Round(intervalDays*ease))
	}
}

// sm2Retention models recall probability decaying with elapsed time. The
// interval was scheduled to land at ~0.9 retention, so the curve passes
// through 0.9 when a card comes back exactly on time.
func sm2Retention(intervalDays, elapsed float64) float64 {
	if intervalDays < 1 {
		intervalDays = 1
	}
	return clamp01(math.Pow(0.9, elapsed/intervalDays))
}
