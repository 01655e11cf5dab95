package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func SeedCardState(tb testing.TB, ctx context.Context, tx *gorm.DB, learnerID, wordID uuid.UUID, algorithm types.Algorithm) *types.CardState {
	tb.Helper()
	cs := &types.CardState{
		ID:           uuid.New(),
		LearnerID:    learnerID,
		WordID:       wordID,
		Algorithm:    algorithm,
		IntervalDays: 0,
		EaseFactor:   2.5,
		MasteryLevel: types.MasteryLearning,
		AlgoState:    datatypes.JSON([]byte("{}")),
		Version:      1,
	}
	if err := tx.WithContext(ctx).Create(cs).Error; err != nil {
		tb.Fatalf("seed card state: %v", err)
	}
	return cs
}

func SeedAssignment(tb testing.TB, ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, algorithm types.Algorithm) *types.AlgorithmAssignment {
	tb.Helper()
	a := &types.AlgorithmAssignment{
		ID:         uuid.New(),
		LearnerID:  learnerID,
		Algorithm:  algorithm,
		AssignedAt: time.Now().UTC(),
		Version:    1,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed assignment: %v", err)
	}
	return a
}

func SeedTestItem(tb testing.TB, ctx context.Context, tx *gorm.DB, wordID uuid.UUID) *types.TestItem {
	tb.Helper()
	it := &types.TestItem{
		ID:          uuid.New(),
		WordID:      wordID,
		ItemType:    "multiple_choice",
		Prompt:      "Which word means \"house\"?",
		Options:     datatypes.JSON([]byte(`[{"text":"hus","is_correct":true},{"text":"bok","is_correct":false},{"text":"stol","is_correct":false}]`)),
		Metadata:    datatypes.JSON([]byte("{}")),
		IsActive:    true,
		Difficulty:  0,
		QualityTier: types.TierUnrated,
	}
	if err := tx.WithContext(ctx).Create(it).Error; err != nil {
		tb.Fatalf("seed test item: %v", err)
	}
	return it
}

func SeedReviewLog(tb testing.TB, ctx context.Context, tx *gorm.DB, cs *types.CardState, rating string, correct bool, reviewedAt time.Time) *types.ReviewLog {
	tb.Helper()
	rl := &types.ReviewLog{
		ID:          uuid.New(),
		CardStateID: cs.ID,
		LearnerID:   cs.LearnerID,
		WordID:      cs.WordID,
		Algorithm:   cs.Algorithm,
		Rating:      rating,
		WasCorrect:  correct,
		ReviewedAt:  reviewedAt,
	}
	if err := tx.WithContext(ctx).Create(rl).Error; err != nil {
		tb.Fatalf("seed review log: %v", err)
	}
	return rl
}

func SeedAbilityState(tb testing.TB, ctx context.Context, tx *gorm.DB, learnerID, wordID uuid.UUID, theta, confidence float64, samples int) *types.LearnerAbilityState {
	tb.Helper()
	st := &types.LearnerAbilityState{
		ID:          uuid.New(),
		LearnerID:   learnerID,
		WordID:      wordID,
		Theta:       theta,
		Confidence:  confidence,
		SampleCount: samples,
	}
	if err := tx.WithContext(ctx).Create(st).Error; err != nil {
		tb.Fatalf("seed ability state: %v", err)
	}
	return st
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
