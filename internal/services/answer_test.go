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
	"github.com/wordtrail/wordtrail-engine/internal/platform/dbctx"
	"github.com/wordtrail/wordtrail-engine/internal/srs"
)

func TestRatingForAnswerMapping(t *testing.T) {
	withHistory := &types.TestItem{AvgResponseMS: 5000}
	fresh := &types.TestItem{}
	svc := &selectionService{fastAnswerMS: float64(DefaultFastAnswerMS)}

	cases := []struct {
		name       string
		item       *types.TestItem
		correct    bool
		responseMS int64
		want       srs.Rating
	}{
		{"incorrect is always again", withHistory, false, 100, srs.RatingAgain},
		{"incorrect slow is still again", withHistory, false, 60000, srs.RatingAgain},
		{"correct under item average", withHistory, true, 3000, srs.RatingPerfect},
		{"correct over item average", withHistory, true, 6000, srs.RatingGood},
		{"correct at item average", withHistory, true, 5000, srs.RatingGood},
		{"correct under global cut", fresh, true, 3999, srs.RatingPerfect},
		{"correct at global cut", fresh, true, 4000, srs.RatingGood},
	}
	for _, tc := range cases {
		if got := svc.ratingForAnswer(tc.item, tc.correct, tc.responseMS); got != tc.want {
			t.Fatalf("%s: want=%s got=%s", tc.name, tc.want, got)
		}
	}
}

func TestProcessAnswerAppliesReviewAndCachesAbility(t *testing.T) {
	learnerID := uuid.New()
	wordID := uuid.New()
	item := &types.TestItem{
		WordID: wordID, IsActive: true,
		Options: datatypes.JSON(twoChoiceOptions),
	}
	itemRepo := newFakeItemRepo(item)
	abilityRepo := newFakeAbilityRepo()
	due := time.Now().UTC().Add(72 * time.Hour)
	review := &fakeReviewAggregate{result: domainagg.ApplyReviewResult{
		CardID:           uuid.New(),
		Mastery:          string(types.MasteryFamiliar),
		NextIntervalDays: 3,
		DueAt:            due,
	}}
	svc := newTestSelectionService(t, itemRepo, newFakeCardRepo(), &fakeLogRepo{}, abilityRepo, nil, review, nil)

	out, err := svc.ProcessAnswer(context.Background(), learnerID, item.ID, 0, 2000, AnswerContext{})
	if err != nil {
		t.Fatalf("ProcessAnswer: %v", err)
	}

	if review.applyCalls != 1 {
		t.Fatalf("apply call count: want=1 got=%d", review.applyCalls)
	}
	if review.lastApply.LearnerID != learnerID {
		t.Fatalf("apply learner: want=%s got=%s", learnerID, review.lastApply.LearnerID)
	}
	if review.lastApply.WordID != wordID {
		t.Fatalf("apply word: want=%s got=%s", wordID, review.lastApply.WordID)
	}
	if review.lastApply.ItemID == nil || *review.lastApply.ItemID != item.ID {
		t.Fatalf("apply item: want=%s got=%v", item.ID, review.lastApply.ItemID)
	}
	if review.lastApply.ResponseMS != 2000 {
		t.Fatalf("apply response ms: want=2000 got=%d", review.lastApply.ResponseMS)
	}
	if review.lastApply.Rating != srs.RatingPerfect.String() {
		t.Fatalf("apply rating: want=%s got=%s", srs.RatingPerfect, review.lastApply.Rating)
	}

	if !out.Correct {
		t.Fatalf("outcome correct: want=true")
	}
	if out.Mastery != string(types.MasteryFamiliar) {
		t.Fatalf("outcome mastery: want=%s got=%s", types.MasteryFamiliar, out.Mastery)
	}
	if out.IntervalDays != 3 {
		t.Fatalf("outcome interval: want=3 got=%v", out.IntervalDays)
	}
	if !out.DueAt.Equal(due) {
		t.Fatalf("outcome due: want=%s got=%s", due, out.DueAt)
	}

	if abilityRepo.upserts != 1 {
		t.Fatalf("ability upserts: want=1 got=%d", abilityRepo.upserts)
	}
	cached, err := abilityRepo.GetByLearnerWord(dbctx.Context{Ctx: context.Background()}, learnerID, wordID)
	if err != nil {
		t.Fatalf("cached ability lookup: %v", err)
	}
	if cached == nil {
		t.Fatalf("ability cache row missing after answer")
	}
	if cached.SampleCount != 1 {
		t.Fatalf("cached sample count: want=1 got=%d", cached.SampleCount)
	}
	if cached.Theta != out.AbilityAfter {
		t.Fatalf("cached theta: want=%v got=%v", out.AbilityAfter, cached.Theta)
	}
	if cached.LastAnswerAt == nil {
		t.Fatalf("cached last answer at missing")
	}
}

func TestProcessAnswerCorrectNeverScoresBelowIncorrect(t *testing.T) {
	learnerID := uuid.New()
	itemID := uuid.New()
	wordID := uuid.New()

	run := func(selected int) *AnswerOutcome {
		itemRepo := newFakeItemRepo(&types.TestItem{
			ID: itemID, WordID: wordID, IsActive: true, Difficulty: 0.3,
			Options: datatypes.JSON(twoChoiceOptions),
		})
		svc := newTestSelectionService(t, itemRepo, newFakeCardRepo(), &fakeLogRepo{}, newFakeAbilityRepo(), nil, &fakeReviewAggregate{}, nil)
		out, err := svc.ProcessAnswer(context.Background(), learnerID, itemID, selected, 2000, AnswerContext{})
		if err != nil {
			t.Fatalf("ProcessAnswer(selected=%d): %v", selected, err)
		}
		return out
	}

	correct := run(0)
	incorrect := run(1)

	if !correct.Correct || incorrect.Correct {
		t.Fatalf("grading mixup: correct=%v incorrect=%v", correct.Correct, incorrect.Correct)
	}
	if correct.AbilityAfter <= correct.AbilityBefore {
		t.Fatalf("correct answer must raise ability: before=%v after=%v", correct.AbilityBefore, correct.AbilityAfter)
	}
	if incorrect.AbilityAfter >= incorrect.AbilityBefore {
		t.Fatalf("incorrect answer must lower ability: before=%v after=%v", incorrect.AbilityBefore, incorrect.AbilityAfter)
	}
	if correct.AbilityAfter <= incorrect.AbilityAfter {
		t.Fatalf("ordering: correct=%v must exceed incorrect=%v", correct.AbilityAfter, incorrect.AbilityAfter)
	}
}

func TestProcessAnswerRejectsBadInputBeforeMutation(t *testing.T) {
	wordID := uuid.New()
	active := &types.TestItem{
		WordID: wordID, IsActive: true,
		Options: datatypes.JSON(twoChoiceOptions),
	}
	inactive := &types.TestItem{
		WordID: wordID, IsActive: false,
		Options: datatypes.JSON(twoChoiceOptions),
	}
	itemRepo := newFakeItemRepo(active, inactive)
	abilityRepo := newFakeAbilityRepo()
	review := &fakeReviewAggregate{}
	svc := newTestSelectionService(t, itemRepo, newFakeCardRepo(), &fakeLogRepo{}, abilityRepo, nil, review, nil)

	learnerID := uuid.New()
	cases := []struct {
		name     string
		learner  uuid.UUID
		item     uuid.UUID
		selected int
		ms       int64
		code     domainagg.ErrorCode
	}{
		{"missing learner", uuid.Nil, active.ID, 0, 100, domainagg.CodeValidation},
		{"missing item", learnerID, uuid.Nil, 0, 100, domainagg.CodeValidation},
		{"negative index", learnerID, active.ID, -1, 100, domainagg.CodeValidation},
		{"negative response time", learnerID, active.ID, 0, -5, domainagg.CodeValidation},
		{"unknown item", learnerID, uuid.New(), 0, 100, domainagg.CodeNotFound},
		{"inactive item", learnerID, inactive.ID, 0, 100, domainagg.CodeValidation},
		{"index out of range", learnerID, active.ID, 5, 100, domainagg.CodeValidation},
	}
	for _, tc := range cases {
		_, err := svc.ProcessAnswer(context.Background(), tc.learner, tc.item, tc.selected, tc.ms, AnswerContext{})
		if !domainagg.IsCode(err, tc.code) {
			t.Fatalf("%s: want code=%s got err=%v", tc.name, tc.code, err)
		}
	}
	if review.applyCalls != 0 {
		t.Fatalf("rejected answers must not reach the aggregate, saw %d calls", review.applyCalls)
	}
	if abilityRepo.upserts != 0 {
		t.Fatalf("rejected answers must not touch the ability cache, saw %d upserts", abilityRepo.upserts)
	}
}

func TestProcessAnswerPublishesReviewEvent(t *testing.T) {
	item := &types.TestItem{
		WordID: uuid.New(), IsActive: true,
		Options: datatypes.JSON(twoChoiceOptions),
	}
	itemRepo := newFakeItemRepo(item)
	bus := &fakeEventBus{}
	learnerID := uuid.New()
	svc := newTestSelectionService(t, itemRepo, newFakeCardRepo(), &fakeLogRepo{}, newFakeAbilityRepo(), nil, &fakeReviewAggregate{}, bus)

	_, err := svc.ProcessAnswer(context.Background(), learnerID, item.ID, 0, 2000, AnswerContext{SessionID: "sess-1", Surface: "mobile"})
	if err != nil {
		t.Fatalf("ProcessAnswer: %v", err)
	}

	reviewEvents := bus.byName(events.EventReviewCompleted)
	if len(reviewEvents) != 1 {
		t.Fatalf("review events: want=1 got=%d", len(reviewEvents))
	}
	evt := reviewEvents[0]
	if evt.LearnerID != learnerID {
		t.Fatalf("event learner: want=%s got=%s", learnerID, evt.LearnerID)
	}
	if evt.Data["word_id"] != item.WordID.String() {
		t.Fatalf("event word_id: want=%s got=%v", item.WordID, evt.Data["word_id"])
	}
	if evt.Data["session_id"] != "sess-1" {
		t.Fatalf("event session_id: want=sess-1 got=%v", evt.Data["session_id"])
	}
	if evt.Data["surface"] != "mobile" {
		t.Fatalf("event surface: want=mobile got=%v", evt.Data["surface"])
	}
	if len(bus.byName(events.EventLeechFlagged)) != 0 {
		t.Fatalf("no leech event expected on a clean answer")
	}
}

func TestProcessAnswerPublishesLeechEventOnlyOnFlip(t *testing.T) {
	item := &types.TestItem{
		WordID: uuid.New(), IsActive: true,
		Options: datatypes.JSON(twoChoiceOptions),
	}
	cardID := uuid.New()
	itemRepo := newFakeItemRepo(item)
	bus := &fakeEventBus{}
	review := &fakeReviewAggregate{result: domainagg.ApplyReviewResult{
		CardID:       cardID,
		IsLeech:      true,
		LeechFlagged: true,
	}}
	svc := newTestSelectionService(t, itemRepo, newFakeCardRepo(), &fakeLogRepo{}, newFakeAbilityRepo(), nil, review, bus)

	if _, err := svc.ProcessAnswer(context.Background(), uuid.New(), item.ID, 1, 2000, AnswerContext{}); err != nil {
		t.Fatalf("ProcessAnswer flip: %v", err)
	}
	leechEvents := bus.byName(events.EventLeechFlagged)
	if len(leechEvents) != 1 {
		t.Fatalf("leech events after flip: want=1 got=%d", len(leechEvents))
	}
	if leechEvents[0].Data["card_id"] != cardID.String() {
		t.Fatalf("leech card_id: want=%s got=%v", cardID, leechEvents[0].Data["card_id"])
	}

	// Still a leech, but no longer the flipping review.
	review.result.LeechFlagged = false
	if _, err := svc.ProcessAnswer(context.Background(), uuid.New(), item.ID, 1, 2000, AnswerContext{}); err != nil {
		t.Fatalf("ProcessAnswer repeat: %v", err)
	}
	if got := len(bus.byName(events.EventLeechFlagged)); got != 1 {
		t.Fatalf("leech events must not repeat for an already flagged card: want=1 got=%d", got)
	}
}

func TestProcessAnswerFeedbackOnMiss(t *testing.T) {
	wordID := uuid.New()
	explained := &types.TestItem{
		WordID: wordID, IsActive: true, Explanation: "A cat is the feline.",
		Options: datatypes.JSON(twoChoiceOptions),
	}
	bare := &types.TestItem{
		WordID: wordID, IsActive: true,
		Options: datatypes.JSON(twoChoiceOptions),
	}
	itemRepo := newFakeItemRepo(explained, bare)
	svc := newTestSelectionService(t, itemRepo, newFakeCardRepo(), &fakeLogRepo{}, newFakeAbilityRepo(), nil, &fakeReviewAggregate{}, nil)

	out, err := svc.ProcessAnswer(context.Background(), uuid.New(), explained.ID, 1, 2000, AnswerContext{})
	if err != nil {
		t.Fatalf("ProcessAnswer explained: %v", err)
	}
	if out.Feedback != "A cat is the feline." {
		t.Fatalf("feedback: want explanation, got=%q", out.Feedback)
	}

	out, err = svc.ProcessAnswer(context.Background(), uuid.New(), bare.ID, 1, 2000, AnswerContext{})
	if err != nil {
		t.Fatalf("ProcessAnswer bare: %v", err)
	}
	if out.Feedback != `The correct answer was "cat".` {
		t.Fatalf("fallback feedback: got=%q", out.Feedback)
	}

	out, err = svc.ProcessAnswer(context.Background(), uuid.New(), bare.ID, 0, 2000, AnswerContext{})
	if err != nil {
		t.Fatalf("ProcessAnswer correct: %v", err)
	}
	if out.Feedback != "" {
		t.Fatalf("no feedback expected on a correct answer, got=%q", out.Feedback)
	}
}

func TestProcessAnswerPrefersCachedBaseline(t *testing.T) {
	learnerID := uuid.New()
	wordID := uuid.New()
	item := &types.TestItem{
		WordID: wordID, IsActive: true,
		Options: datatypes.JSON(twoChoiceOptions),
	}
	itemRepo := newFakeItemRepo(item)
	abilityRepo := newFakeAbilityRepo()
	if err := abilityRepo.Upsert(dbctx.Context{Ctx: context.Background()}, &types.LearnerAbilityState{
		LearnerID: learnerID, WordID: wordID, Theta: 1.4, SampleCount: 12,
	}); err != nil {
		t.Fatalf("seed ability cache: %v", err)
	}
	abilityRepo.upserts = 0
	review := &fakeReviewAggregate{}
	svc := newTestSelectionService(t, itemRepo, newFakeCardRepo(), &fakeLogRepo{}, abilityRepo, nil, review, nil)

	out, err := svc.ProcessAnswer(context.Background(), learnerID, item.ID, 0, 2000, AnswerContext{})
	if err != nil {
		t.Fatalf("ProcessAnswer: %v", err)
	}
	if out.AbilityBefore != 1.4 {
		t.Fatalf("baseline: want cached 1.4 got=%v", out.AbilityBefore)
	}
	if review.lastApply.AbilityAtReview != 1.4 {
		t.Fatalf("logged ability: want=1.4 got=%v", review.lastApply.AbilityAtReview)
	}
	cached, _ := abilityRepo.GetByLearnerWord(dbctx.Context{Ctx: context.Background()}, learnerID, wordID)
	if cached.SampleCount != 13 {
		t.Fatalf("sample count: want=13 got=%d", cached.SampleCount)
	}
}

func TestUpdateAbilitySteps(t *testing.T) {
	// Equal learner and item strength means a coin-flip expectation, so a
	// fresh estimate moves by exactly half the new-learner step.
	if got := updateAbility(0, 0, true, 0); got != 0.25 {
		t.Fatalf("new learner step: want=0.25 got=%v", got)
	}
	if got := updateAbility(0, 0, false, 0); got != -0.25 {
		t.Fatalf("new learner miss step: want=-0.25 got=%v", got)
	}

	newStep := updateAbility(0, 0, true, 0)
	warmStep := updateAbility(0, 0, true, abilityKNewBelow)
	stableStep := updateAbility(0, 0, true, abilityKWarmBelow)
	if !(newStep > warmStep && warmStep > stableStep) {
		t.Fatalf("step sizes must shrink as samples accumulate: new=%v warm=%v stable=%v", newStep, warmStep, stableStep)
	}

	if got := updateAbility(abilityThetaMax, abilityThetaMin, true, 0); got != abilityThetaMax {
		t.Fatalf("upper clamp: want=%v got=%v", abilityThetaMax, got)
	}
	if got := updateAbility(abilityThetaMin, abilityThetaMax, false, 0); got != abilityThetaMin {
		t.Fatalf("lower clamp: want=%v got=%v", abilityThetaMin, got)
	}

	// An upset against a much harder item pays out more than beating an
	// easy one.
	upset := updateAbility(0, 2.0, true, 0) - 0
	routine := updateAbility(0, -2.0, true, 0) - 0
	if upset <= routine {
		t.Fatalf("upset gain must exceed routine gain: upset=%v routine=%v", upset, routine)
	}
}
