package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	domainagg "github.com/wordtrail/wordtrail-engine/internal/domain/aggregates"
	"github.com/wordtrail/wordtrail-engine/internal/events"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
	"github.com/wordtrail/wordtrail-engine/internal/platform/vocabstore"
	"github.com/wordtrail/wordtrail-engine/internal/srs"
)

const twoChoiceOptions = `[{"text":"cat","is_correct":true},{"text":"dog","is_correct":false}]`

func newTestSelectionService(t *testing.T, itemRepo *fakeItemRepo, cardRepo *fakeCardRepo, logRepo *fakeLogRepo, abilityRepo *fakeAbilityRepo, vocab vocabstore.Client, review *fakeReviewAggregate, bus events.Bus) SelectionService {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewSelectionService(log, srs.Defaults(), itemRepo, cardRepo, logRepo, abilityRepo, vocab, review, bus)
}

func TestEstimateAbilityDefaultsWithNoData(t *testing.T) {
	svc := newTestSelectionService(t, newFakeItemRepo(), newFakeCardRepo(), &fakeLogRepo{}, newFakeAbilityRepo(), nil, &fakeReviewAggregate{}, nil)

	est, err := svc.EstimateAbility(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("EstimateAbility: %v", err)
	}
	if est.Source != AbilitySourceDefault {
		t.Fatalf("source: want=%q got=%q", AbilitySourceDefault, est.Source)
	}
	if est.Value != 0 {
		t.Fatalf("value: want=0 got=%v", est.Value)
	}
	if est.Confidence != 0 {
		t.Fatalf("confidence: want=0 got=%v", est.Confidence)
	}
	if est.DataPoints != 0 {
		t.Fatalf("data points: want=0 got=%d", est.DataPoints)
	}
}

func TestEstimateAbilityColdStartSeedsFromDifficultyHint(t *testing.T) {
	wordID := uuid.New()
	vocab := vocabstore.NewStatic(map[uuid.UUID]vocabstore.WordProfile{
		wordID: {DifficultyHint: 0.8},
	})
	svc := newTestSelectionService(t, newFakeItemRepo(), newFakeCardRepo(), &fakeLogRepo{}, newFakeAbilityRepo(), vocab, &fakeReviewAggregate{}, nil)

	est, err := svc.EstimateAbility(context.Background(), uuid.New(), wordID)
	if err != nil {
		t.Fatalf("EstimateAbility: %v", err)
	}
	if est.Source != AbilitySourceColdStart {
		t.Fatalf("source: want=%q got=%q", AbilitySourceColdStart, est.Source)
	}
	// Hint 0.8 is harder than neutral, so the seed sits below zero.
	if want := (0.5 - 0.8) * 2; est.Value != want {
		t.Fatalf("value: want=%v got=%v", want, est.Value)
	}
	if est.Confidence != 0 {
		t.Fatalf("cold start confidence: want=0 got=%v", est.Confidence)
	}
}

func TestEstimateAbilityNeutralHintStaysDefault(t *testing.T) {
	wordID := uuid.New()
	vocab := vocabstore.NewStatic(map[uuid.UUID]vocabstore.WordProfile{
		wordID: {DifficultyHint: vocabstore.DefaultDifficultyHint},
	})
	svc := newTestSelectionService(t, newFakeItemRepo(), newFakeCardRepo(), &fakeLogRepo{}, newFakeAbilityRepo(), vocab, &fakeReviewAggregate{}, nil)

	est, err := svc.EstimateAbility(context.Background(), uuid.New(), wordID)
	if err != nil {
		t.Fatalf("EstimateAbility: %v", err)
	}
	if est.Source != AbilitySourceDefault {
		t.Fatalf("source: want=%q got=%q", AbilitySourceDefault, est.Source)
	}
	if est.Value != 0 {
		t.Fatalf("value: want=0 got=%v", est.Value)
	}
}

func TestEstimateAbilityHistoryDrivesValue(t *testing.T) {
	learnerID := uuid.New()
	wordID := uuid.New()
	base := time.Now().UTC()

	strong := &fakeLogRepo{}
	weak := &fakeLogRepo{}
	for i := 0; i < 6; i++ {
		at := base.Add(time.Duration(-i) * time.Hour)
		strong.rows = append(strong.rows, &types.ReviewLog{
			LearnerID: learnerID, WordID: wordID,
			Rating: srs.RatingPerfect.String(), WasCorrect: true, ReviewedAt: at,
		})
		weak.rows = append(weak.rows, &types.ReviewLog{
			LearnerID: learnerID, WordID: wordID,
			Rating: srs.RatingAgain.String(), WasCorrect: false, ReviewedAt: at,
		})
	}

	strongSvc := newTestSelectionService(t, newFakeItemRepo(), newFakeCardRepo(), strong, newFakeAbilityRepo(), nil, &fakeReviewAggregate{}, nil)
	weakSvc := newTestSelectionService(t, newFakeItemRepo(), newFakeCardRepo(), weak, newFakeAbilityRepo(), nil, &fakeReviewAggregate{}, nil)

	strongEst, err := strongSvc.EstimateAbility(context.Background(), learnerID, wordID)
	if err != nil {
		t.Fatalf("EstimateAbility strong: %v", err)
	}
	weakEst, err := weakSvc.EstimateAbility(context.Background(), learnerID, wordID)
	if err != nil {
		t.Fatalf("EstimateAbility weak: %v", err)
	}

	if strongEst.Source != AbilitySourceHistory {
		t.Fatalf("strong source: want=%q got=%q", AbilitySourceHistory, strongEst.Source)
	}
	if strongEst.Value <= 0 {
		t.Fatalf("all-perfect history should estimate above zero, got=%v", strongEst.Value)
	}
	if weakEst.Value >= 0 {
		t.Fatalf("all-again history should estimate below zero, got=%v", weakEst.Value)
	}
	if strongEst.Value <= weakEst.Value {
		t.Fatalf("ordering: strong=%v should exceed weak=%v", strongEst.Value, weakEst.Value)
	}
}

func TestEstimateAbilityUsesSchedulerStateWithoutHistory(t *testing.T) {
	learnerID := uuid.New()
	wordID := uuid.New()
	cardRepo := newFakeCardRepo(&types.CardState{
		LearnerID:    learnerID,
		WordID:       wordID,
		Algorithm:    types.AlgorithmSM2,
		EaseFactor:   2.5,
		TotalReviews: 7,
	})
	svc := newTestSelectionService(t, newFakeItemRepo(), cardRepo, &fakeLogRepo{}, newFakeAbilityRepo(), nil, &fakeReviewAggregate{}, nil)

	est, err := svc.EstimateAbility(context.Background(), learnerID, wordID)
	if err != nil {
		t.Fatalf("EstimateAbility: %v", err)
	}
	if est.Source != AbilitySourceState {
		t.Fatalf("source: want=%q got=%q", AbilitySourceState, est.Source)
	}
	if est.DataPoints != 7 {
		t.Fatalf("data points: want=7 got=%d", est.DataPoints)
	}
	if est.Value <= 0 {
		t.Fatalf("ease 2.5 sits above the midpoint, want value > 0 got=%v", est.Value)
	}
}

func TestEstimateAbilityConfidenceGrowsAndStaysBelowOne(t *testing.T) {
	learnerID := uuid.New()
	wordID := uuid.New()
	logRepo := &fakeLogRepo{}
	svc := newTestSelectionService(t, newFakeItemRepo(), newFakeCardRepo(), logRepo, newFakeAbilityRepo(), nil, &fakeReviewAggregate{}, nil)

	base := time.Now().UTC()
	prev := -1.0
	for i := 0; i < 30; i++ {
		logRepo.rows = append(logRepo.rows, &types.ReviewLog{
			LearnerID: learnerID, WordID: wordID,
			Rating: srs.RatingGood.String(), WasCorrect: true,
			ReviewedAt: base.Add(time.Duration(i) * time.Minute),
		})
		est, err := svc.EstimateAbility(context.Background(), learnerID, wordID)
		if err != nil {
			t.Fatalf("EstimateAbility after %d reviews: %v", i+1, err)
		}
		if est.Confidence < prev {
			t.Fatalf("confidence dropped after %d reviews: prev=%v got=%v", i+1, prev, est.Confidence)
		}
		if est.Confidence >= 1 {
			t.Fatalf("confidence must stay below 1, got=%v", est.Confidence)
		}
		prev = est.Confidence
	}
	if prev <= 0 {
		t.Fatalf("confidence never rose above zero: %v", prev)
	}
}

func TestEstimateAbilityRejectsMissingIDs(t *testing.T) {
	svc := newTestSelectionService(t, newFakeItemRepo(), newFakeCardRepo(), &fakeLogRepo{}, newFakeAbilityRepo(), nil, &fakeReviewAggregate{}, nil)

	if _, err := svc.EstimateAbility(context.Background(), uuid.Nil, uuid.New()); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("missing learner_id: want validation error, got %v", err)
	}
	if _, err := svc.EstimateAbility(context.Background(), uuid.New(), uuid.Nil); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("missing word_id: want validation error, got %v", err)
	}
}

func TestSelectItemPrefersClosestCalibratedDifficulty(t *testing.T) {
	wordID := uuid.New()
	far := &types.TestItem{
		WordID: wordID, IsActive: true, QualityTier: types.TierGood,
		Difficulty: -2.0, Options: datatypes.JSON(twoChoiceOptions),
	}
	near := &types.TestItem{
		WordID: wordID, IsActive: true, QualityTier: types.TierGood,
		Difficulty: 0.1, Options: datatypes.JSON(twoChoiceOptions),
	}
	uncalibrated := &types.TestItem{
		WordID: wordID, IsActive: true, QualityTier: types.TierUnrated,
		Difficulty: 0.0, Options: datatypes.JSON(twoChoiceOptions),
	}
	itemRepo := newFakeItemRepo(far, near, uncalibrated)
	svc := newTestSelectionService(t, itemRepo, newFakeCardRepo(), &fakeLogRepo{}, newFakeAbilityRepo(), nil, &fakeReviewAggregate{}, nil)

	sel, err := svc.SelectItem(context.Background(), uuid.New(), wordID)
	if err != nil {
		t.Fatalf("SelectItem: %v", err)
	}
	if sel.Item.ID != near.ID {
		t.Fatalf("selected item: want=%s got=%s", near.ID, sel.Item.ID)
	}
	if sel.Reason != SelectReasonDifficultyMatch {
		t.Fatalf("reason: want=%q got=%q", SelectReasonDifficultyMatch, sel.Reason)
	}
	if sel.ItemDifficulty != near.Difficulty {
		t.Fatalf("item difficulty: want=%v got=%v", near.Difficulty, sel.ItemDifficulty)
	}
}

func TestSelectItemColdPoolServesLeastAttempted(t *testing.T) {
	wordID := uuid.New()
	warm := &types.TestItem{
		WordID: wordID, IsActive: true, QualityTier: types.TierUnrated,
		AttemptCount: 9, Options: datatypes.JSON(twoChoiceOptions),
	}
	cold := &types.TestItem{
		WordID: wordID, IsActive: true, QualityTier: types.TierUnrated,
		AttemptCount: 2, Options: datatypes.JSON(twoChoiceOptions),
	}
	itemRepo := newFakeItemRepo(warm, cold)
	svc := newTestSelectionService(t, itemRepo, newFakeCardRepo(), &fakeLogRepo{}, newFakeAbilityRepo(), nil, &fakeReviewAggregate{}, nil)

	sel, err := svc.SelectItem(context.Background(), uuid.New(), wordID)
	if err != nil {
		t.Fatalf("SelectItem: %v", err)
	}
	if sel.Item.ID != cold.ID {
		t.Fatalf("selected item: want=%s got=%s", cold.ID, sel.Item.ID)
	}
	if sel.Reason != SelectReasonColdPool {
		t.Fatalf("reason: want=%q got=%q", SelectReasonColdPool, sel.Reason)
	}
}

func TestSelectItemSkipsMalformedItems(t *testing.T) {
	wordID := uuid.New()
	malformed := &types.TestItem{
		WordID: wordID, IsActive: true, QualityTier: types.TierUnrated,
		AttemptCount: 0, Options: datatypes.JSON(`[{"text":"only","is_correct":true}]`),
	}
	healthy := &types.TestItem{
		WordID: wordID, IsActive: true, QualityTier: types.TierUnrated,
		AttemptCount: 50, Options: datatypes.JSON(twoChoiceOptions),
	}
	itemRepo := newFakeItemRepo(malformed, healthy)
	svc := newTestSelectionService(t, itemRepo, newFakeCardRepo(), &fakeLogRepo{}, newFakeAbilityRepo(), nil, &fakeReviewAggregate{}, nil)

	sel, err := svc.SelectItem(context.Background(), uuid.New(), wordID)
	if err != nil {
		t.Fatalf("SelectItem: %v", err)
	}
	if sel.Item.ID != healthy.ID {
		t.Fatalf("selected item: want=%s got=%s", healthy.ID, sel.Item.ID)
	}
}

func TestSelectItemNoServableItemsIsNotFound(t *testing.T) {
	svc := newTestSelectionService(t, newFakeItemRepo(), newFakeCardRepo(), &fakeLogRepo{}, newFakeAbilityRepo(), nil, &fakeReviewAggregate{}, nil)

	_, err := svc.SelectItem(context.Background(), uuid.New(), uuid.New())
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("want not_found error, got %v", err)
	}
}

func TestSelectItemNeverServesInactiveOrFlagged(t *testing.T) {
	wordID := uuid.New()
	inactive := &types.TestItem{
		WordID: wordID, IsActive: false, QualityTier: types.TierGood,
		Options: datatypes.JSON(twoChoiceOptions),
	}
	flagged := &types.TestItem{
		WordID: wordID, IsActive: true, NeedsReview: true, QualityTier: types.TierGood,
		Options: datatypes.JSON(twoChoiceOptions),
	}
	healthy := &types.TestItem{
		WordID: wordID, IsActive: true, QualityTier: types.TierGood,
		AttemptCount: 400, Options: datatypes.JSON(twoChoiceOptions),
	}
	itemRepo := newFakeItemRepo(inactive, flagged, healthy)
	svc := newTestSelectionService(t, itemRepo, newFakeCardRepo(), &fakeLogRepo{}, newFakeAbilityRepo(), nil, &fakeReviewAggregate{}, nil)

	sel, err := svc.SelectItem(context.Background(), uuid.New(), wordID)
	if err != nil {
		t.Fatalf("SelectItem: %v", err)
	}
	if sel.Item.ID != healthy.ID {
		t.Fatalf("selected item: want=%s got=%s", healthy.ID, sel.Item.ID)
	}
}

func TestSelectItemDeterministicForFixedPool(t *testing.T) {
	wordID := uuid.New()
	left := &types.TestItem{
		WordID: wordID, IsActive: true, QualityTier: types.TierGood,
		Difficulty: -0.5, Options: datatypes.JSON(twoChoiceOptions),
	}
	right := &types.TestItem{
		WordID: wordID, IsActive: true, QualityTier: types.TierGood,
		Difficulty: 0.5, Options: datatypes.JSON(twoChoiceOptions),
	}
	itemRepo := newFakeItemRepo(left, right)
	svc := newTestSelectionService(t, itemRepo, newFakeCardRepo(), &fakeLogRepo{}, newFakeAbilityRepo(), nil, &fakeReviewAggregate{}, nil)

	first, err := svc.SelectItem(context.Background(), uuid.New(), wordID)
	if err != nil {
		t.Fatalf("SelectItem first: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := svc.SelectItem(context.Background(), uuid.New(), wordID)
		if err != nil {
			t.Fatalf("SelectItem repeat %d: %v", i, err)
		}
		if again.Item.ID != first.Item.ID {
			t.Fatalf("selection changed between identical calls: first=%s got=%s", first.Item.ID, again.Item.ID)
		}
	}
}

func TestRatingGradeOrdering(t *testing.T) {
	grades := []struct {
		rating string
		want   float64
	}{
		{srs.RatingPerfect.String(), 1.0},
		{srs.RatingGood.String(), 0.75},
		{srs.RatingHard.String(), 0.4},
		{srs.RatingAgain.String(), 0.0},
	}
	for _, g := range grades {
		if got := ratingGrade(g.rating, false); got != g.want {
			t.Fatalf("grade %q: want=%v got=%v", g.rating, g.want, got)
		}
	}
	if got := ratingGrade("unknown", true); got != 0.75 {
		t.Fatalf("unknown rating with correct answer: want=0.75 got=%v", got)
	}
	if got := ratingGrade("unknown", false); got != 0 {
		t.Fatalf("unknown rating with wrong answer: want=0 got=%v", got)
	}
}

func TestAbilityHistoryScoreWeighsRecentReviews(t *testing.T) {
	// Newest row first, as the repo returns them. A recent failure after a
	// run of wins should weigh more than the same failure long ago.
	recentFail := []*types.ReviewLog{
		{Rating: srs.RatingAgain.String(), WasCorrect: false},
		{Rating: srs.RatingPerfect.String(), WasCorrect: true},
		{Rating: srs.RatingPerfect.String(), WasCorrect: true},
	}
	oldFail := []*types.ReviewLog{
		{Rating: srs.RatingPerfect.String(), WasCorrect: true},
		{Rating: srs.RatingPerfect.String(), WasCorrect: true},
		{Rating: srs.RatingAgain.String(), WasCorrect: false},
	}
	recentScore, ok := abilityHistoryScore(recentFail)
	if !ok {
		t.Fatalf("recent history should produce a score")
	}
	oldScore, ok := abilityHistoryScore(oldFail)
	if !ok {
		t.Fatalf("old history should produce a score")
	}
	if recentScore >= oldScore {
		t.Fatalf("recent failure should depress the score more: recent=%v old=%v", recentScore, oldScore)
	}
}

func TestSelectItemAbilityFollowsEstimate(t *testing.T) {
	learnerID := uuid.New()
	wordID := uuid.New()
	logRepo := &fakeLogRepo{}
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		logRepo.rows = append(logRepo.rows, &types.ReviewLog{
			LearnerID: learnerID, WordID: wordID,
			Rating: srs.RatingPerfect.String(), WasCorrect: true,
			ReviewedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	item := &types.TestItem{
		WordID: wordID, IsActive: true, QualityTier: types.TierGood,
		Difficulty: 1.0, Options: datatypes.JSON(twoChoiceOptions),
	}
	svc := newTestSelectionService(t, newFakeItemRepo(item), newFakeCardRepo(), logRepo, newFakeAbilityRepo(), nil, &fakeReviewAggregate{}, nil)

	sel, err := svc.SelectItem(context.Background(), learnerID, wordID)
	if err != nil {
		t.Fatalf("SelectItem: %v", err)
	}
	est, err := svc.EstimateAbility(context.Background(), learnerID, wordID)
	if err != nil {
		t.Fatalf("EstimateAbility: %v", err)
	}
	if sel.Ability != est.Value {
		t.Fatalf("selection ability: want=%v got=%v", est.Value, sel.Ability)
	}
}
