package learning

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/wordtrail/wordtrail-engine/internal/data/repos/testutil"
	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	"github.com/wordtrail/wordtrail-engine/internal/platform/dbctx"
)

func TestWordRollupRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewWordRollupRepo(db, testutil.Logger(t))

	wordA := uuid.New()
	wordB := uuid.New()
	wordC := uuid.New()

	if got, err := repo.GetByWord(dbc, wordA); err != nil || got != nil {
		t.Fatalf("GetByWord(missing): got=%v err=%v", got, err)
	}
	if err := repo.UpsertBatch(dbc, nil); err != nil {
		t.Fatalf("UpsertBatch(empty): %v", err)
	}

	mkRow := func(wordID uuid.UUID, score float64, reviews, correct int) *types.WordDifficultyRollup {
		return &types.WordDifficultyRollup{
			WordID:          wordID,
			TotalReviews:    reviews,
			TotalCorrect:    correct,
			ErrorRate:       1 - float64(correct)/float64(reviews),
			DifficultyScore: score,
			DifficultyBand:  types.BandForScore(score),
			LearnerCount:    3,
		}
	}
	if err := repo.UpsertBatch(dbc, []*types.WordDifficultyRollup{
		mkRow(wordA, 0.9, 200, 90),
		mkRow(wordB, 0.5, 150, 120),
		mkRow(wordC, 0.7, 180, 110),
	}); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}

	got, err := repo.GetByWord(dbc, wordA)
	if err != nil || got == nil {
		t.Fatalf("GetByWord: got=%v err=%v", got, err)
	}
	if got.DifficultyScore != 0.9 || got.DifficultyBand != types.BandBrutal || got.TotalReviews != 200 {
		t.Fatalf("GetByWord fields: got=%+v", got)
	}
	if got.ComputedAt.IsZero() {
		t.Fatalf("GetByWord: computed_at not stamped")
	}

	hardest, err := repo.ListHardest(dbc, 2)
	if err != nil || len(hardest) != 2 {
		t.Fatalf("ListHardest: n=%d err=%v", len(hardest), err)
	}
	if hardest[0].WordID != wordA || hardest[1].WordID != wordC {
		t.Fatalf("ListHardest order: got=[%s %s]", hardest[0].WordID, hardest[1].WordID)
	}

	moderate, err := repo.ListByBand(dbc, types.BandModerate)
	if err != nil || len(moderate) != 1 || moderate[0].WordID != wordB {
		t.Fatalf("ListByBand: n=%d err=%v", len(moderate), err)
	}

	// A refresh rewrites the word's row in place.
	if err := repo.UpsertBatch(dbc, []*types.WordDifficultyRollup{
		mkRow(wordA, 0.2, 260, 230),
	}); err != nil {
		t.Fatalf("UpsertBatch(refresh): %v", err)
	}
	got, err = repo.GetByWord(dbc, wordA)
	if err != nil || got == nil || got.DifficultyScore != 0.2 || got.DifficultyBand != types.BandEasy {
		t.Fatalf("GetByWord(after refresh): got=%+v err=%v", got, err)
	}
	hardest, err = repo.ListHardest(dbc, 1)
	if err != nil || len(hardest) != 1 || hardest[0].WordID != wordC {
		t.Fatalf("ListHardest(after refresh): n=%d err=%v", len(hardest), err)
	}
}
