package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	domainagg "github.com/wordtrail/wordtrail-engine/internal/domain/aggregates"
	"github.com/wordtrail/wordtrail-engine/internal/events"
	"github.com/wordtrail/wordtrail-engine/internal/observability"
	"github.com/wordtrail/wordtrail-engine/internal/platform/dbctx"
	"github.com/wordtrail/wordtrail-engine/internal/srs"
)

// ELO step sizes by how settled the learner's estimate already is. New
// estimates move fast, stable ones resist single-answer swings.
const (
	abilityKNew    = 0.5
	abilityKWarm   = 0.3
	abilityKStable = 0.15

	abilityKNewBelow  = 10
	abilityKWarmBelow = 30
)

func (s *selectionService) ProcessAnswer(ctx context.Context, learnerID, itemID uuid.UUID, selectedIndex int, responseMS int64, answerCtx AnswerContext) (*AnswerOutcome, error) {
	if s == nil || s.items == nil || s.ability == nil || s.review == nil {
		return nil, fmt.Errorf("selection service not configured")
	}
	const op = "Learning.Selection.ProcessAnswer"
	if learnerID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing learner_id", nil)
	}
	if itemID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing item_id", nil)
	}
	if selectedIndex < 0 {
		return nil, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("selected_index must be >= 0, got %d", selectedIndex), nil)
	}
	if responseMS < 0 {
		return nil, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("response_ms must be >= 0, got %d", responseMS), nil)
	}

	dbc := dbctx.Context{Ctx: ctx}
	item, err := s.items.GetByID(dbc, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op,
			fmt.Sprintf("test item not found: %s", itemID.String()), nil)
	}
	if !item.IsActive {
		return nil, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("test item is inactive: %s", itemID.String()), nil)
	}
	opts, err := item.DecodeOptions()
	if err != nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
	}
	if selectedIndex >= len(opts) {
		return nil, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("selected_index %d out of range, item has %d options", selectedIndex, len(opts)), nil)
	}

	correct := opts[selectedIndex].IsCorrect
	rating := s.ratingForAnswer(item, correct, responseMS)

	abilityBefore, sampleCount, err := s.abilityBaseline(ctx, learnerID, item.WordID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := s.review.ApplyReview(ctx, domainagg.ApplyReviewInput{
		LearnerID:       learnerID,
		WordID:          item.WordID,
		ItemID:          &itemID,
		Rating:          rating.String(),
		ResponseMS:      responseMS,
		AbilityAtReview: abilityBefore,
	})
	if err != nil {
		observability.Current().ObserveReview(res.Algorithm, rating.String(), "failed", time.Since(start))
		return nil, err
	}
	observability.Current().ObserveReview(res.Algorithm, rating.String(), "succeeded", time.Since(start))
	if res.LeechFlagged {
		observability.Current().IncLeechFlagged(res.Algorithm)
	}

	abilityAfter := updateAbility(abilityBefore, item.Difficulty, correct, sampleCount)

	// The review is already committed; a lost cache write only costs one
	// recompute on the next estimate.
	now := time.Now().UTC()
	cacheRow := &types.LearnerAbilityState{
		LearnerID:    learnerID,
		WordID:       item.WordID,
		Theta:        abilityAfter,
		Confidence:   abilityConfidence(sampleCount + 1),
		SampleCount:  sampleCount + 1,
		LastAnswerAt: &now,
	}
	if uerr := s.ability.Upsert(dbc, cacheRow); uerr != nil {
		s.log.Warn("ability cache update failed",
			"learner_id", learnerID.String(), "word_id", item.WordID.String(), "error", uerr)
	}

	s.publishAnswerEvents(ctx, learnerID, item, res, rating, abilityAfter, answerCtx)

	feedback := ""
	if !correct {
		feedback = item.Explanation
		if feedback == "" {
			if ci := types.CorrectIndex(opts); ci >= 0 {
				feedback = fmt.Sprintf("The correct answer was %q.", opts[ci].Text)
			}
		}
	}

	return &AnswerOutcome{
		Correct:        correct,
		Rating:         rating.String(),
		AbilityBefore:  abilityBefore,
		AbilityAfter:   abilityAfter,
		ItemDifficulty: item.Difficulty,
		Feedback:       feedback,
		Mastery:        res.Mastery,
		IsLeech:        res.IsLeech,
		IntervalDays:   res.NextIntervalDays,
		DueAt:          res.DueAt,
	}, nil
}

// ratingForAnswer maps grading plus pace onto the scheduler rating scale.
// Incorrect is always Again; correct splits on the item's own average
// response time when it has one, the global cut otherwise.
func (s *selectionService) ratingForAnswer(item *types.TestItem, correct bool, responseMS int64) srs.Rating {
	if !correct {
		return srs.RatingAgain
	}
	threshold := s.fastAnswerMS
	if item.AvgResponseMS > 0 {
		threshold = item.AvgResponseMS
	}
	if float64(responseMS) < threshold {
		return srs.RatingPerfect
	}
	return srs.RatingGood
}

// abilityBaseline prefers the cached running estimate and falls back to a
// fresh recompute when the cache row is missing.
func (s *selectionService) abilityBaseline(ctx context.Context, learnerID, wordID uuid.UUID) (float64, int, error) {
	cached, err := s.ability.GetByLearnerWord(dbctx.Context{Ctx: ctx}, learnerID, wordID)
	if err != nil {
		return 0, 0, err
	}
	if cached != nil {
		return cached.Theta, cached.SampleCount, nil
	}
	est, err := s.EstimateAbility(ctx, learnerID, wordID)
	if err != nil {
		return 0, 0, err
	}
	return est.Value, est.DataPoints, nil
}

func (s *selectionService) publishAnswerEvents(ctx context.Context, learnerID uuid.UUID, item *types.TestItem, res domainagg.ApplyReviewResult, rating srs.Rating, abilityAfter float64, answerCtx AnswerContext) {
	data := map[string]any{
		"word_id":       item.WordID.String(),
		"item_id":       item.ID.String(),
		"rating":        rating.String(),
		"correct":       res.WasCorrect,
		"ability_after": abilityAfter,
		"mastery":       res.Mastery,
		"interval_days": res.NextIntervalDays,
	}
	if answerCtx.SessionID != "" {
		data["session_id"] = answerCtx.SessionID
	}
	if answerCtx.Surface != "" {
		data["surface"] = answerCtx.Surface
	}
	if err := s.bus.Publish(ctx, events.NewEvent(events.EventReviewCompleted, learnerID, data)); err != nil {
		s.log.Warn("review event publish failed", "learner_id", learnerID.String(), "error", err)
		observability.Current().IncEventPublished(events.EventReviewCompleted, "failed")
	} else {
		observability.Current().IncEventPublished(events.EventReviewCompleted, "published")
	}

	if res.LeechFlagged {
		leech := events.NewEvent(events.EventLeechFlagged, learnerID, map[string]any{
			"word_id": item.WordID.String(),
			"card_id": res.CardID.String(),
		})
		if err := s.bus.Publish(ctx, leech); err != nil {
			s.log.Warn("leech event publish failed", "learner_id", learnerID.String(), "error", err)
			observability.Current().IncEventPublished(events.EventLeechFlagged, "failed")
		} else {
			observability.Current().IncEventPublished(events.EventLeechFlagged, "published")
		}
	}
}

// updateAbility is one ELO step in theta space: compare the observed outcome
// against the logistic expectation for this learner/item gap and move the
// estimate by a sample-count-banded K factor.
func updateAbility(before, itemDifficulty float64, correct bool, sampleCount int) float64 {
	expected := 1 / (1 + math.Exp(itemDifficulty-before))
	score := 0.0
	if correct {
		score = 1.0
	}
	k := abilityKStable
	switch {
	case sampleCount < abilityKNewBelow:
		k = abilityKNew
	case sampleCount < abilityKWarmBelow:
		k = abilityKWarm
	}
	return clampTheta(before + k*(score-expected))
}
