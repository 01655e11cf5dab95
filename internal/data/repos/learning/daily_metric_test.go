package learning

import (
	"context"
	"testing"
	"time"

	"github.com/wordtrail/wordtrail-engine/internal/data/repos/testutil"
	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	"github.com/wordtrail/wordtrail-engine/internal/platform/dbctx"
)

func TestDailyMetricRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewDailyMetricRepo(db, testutil.Logger(t))

	day1 := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	// Incomplete rows are ignored rather than erroring.
	if err := repo.Upsert(dbc, nil); err != nil {
		t.Fatalf("Upsert(nil): %v", err)
	}
	if err := repo.Upsert(dbc, &types.AlgorithmDailyMetric{Algorithm: types.AlgorithmSM2}); err != nil {
		t.Fatalf("Upsert(zero day): %v", err)
	}
	if err := repo.Upsert(dbc, &types.AlgorithmDailyMetric{Day: day1, Algorithm: "leitner"}); err != nil {
		t.Fatalf("Upsert(bad algorithm): %v", err)
	}

	if err := repo.Upsert(dbc, &types.AlgorithmDailyMetric{
		Day: day1, Algorithm: types.AlgorithmSM2,
		ActiveLearners: 40, Reviews: 100, Correct: 80, RetentionRate: 0.8,
	}); err != nil {
		t.Fatalf("Upsert(day1 sm2): %v", err)
	}
	if err := repo.Upsert(dbc, &types.AlgorithmDailyMetric{
		Day: day1, Algorithm: types.AlgorithmFSRS,
		ActiveLearners: 35, Reviews: 90, Correct: 81, RetentionRate: 0.9,
	}); err != nil {
		t.Fatalf("Upsert(day1 fsrs): %v", err)
	}
	if err := repo.Upsert(dbc, &types.AlgorithmDailyMetric{
		Day: day2, Algorithm: types.AlgorithmSM2,
		ActiveLearners: 42, Reviews: 110, Correct: 88, RetentionRate: 0.8,
	}); err != nil {
		t.Fatalf("Upsert(day2 sm2): %v", err)
	}

	// Re-running a day replaces that cell instead of appending.
	if err := repo.Upsert(dbc, &types.AlgorithmDailyMetric{
		Day: day1, Algorithm: types.AlgorithmSM2,
		ActiveLearners: 41, Reviews: 120, Correct: 96, RetentionRate: 0.8,
	}); err != nil {
		t.Fatalf("Upsert(day1 rerun): %v", err)
	}

	rows, err := repo.ListRange(dbc, day1, day2.Add(24*time.Hour))
	if err != nil || len(rows) != 3 {
		t.Fatalf("ListRange: n=%d err=%v", len(rows), err)
	}
	// Ordered day ASC then algorithm ASC.
	if rows[0].Algorithm != types.AlgorithmFSRS || rows[1].Algorithm != types.AlgorithmSM2 {
		t.Fatalf("ListRange order: got=[%s %s %s]", rows[0].Algorithm, rows[1].Algorithm, rows[2].Algorithm)
	}
	if rows[1].Reviews != 120 || rows[1].ActiveLearners != 41 {
		t.Fatalf("ListRange rerun cell: got=%+v", rows[1])
	}
	if rows[2].Day.Format("2006-01-02") != "2025-03-11" {
		t.Fatalf("ListRange day: got=%s", rows[2].Day.Format("2006-01-02"))
	}

	sm2Rows, err := repo.ListRangeByAlgorithm(dbc, types.AlgorithmSM2, day1, day2.Add(24*time.Hour))
	if err != nil || len(sm2Rows) != 2 {
		t.Fatalf("ListRangeByAlgorithm: n=%d err=%v", len(sm2Rows), err)
	}
	if sm2Rows[0].Reviews != 120 || sm2Rows[1].Reviews != 110 {
		t.Fatalf("ListRangeByAlgorithm values: got=[%d %d]", sm2Rows[0].Reviews, sm2Rows[1].Reviews)
	}

	// Range end is exclusive.
	if only, err := repo.ListRange(dbc, day1, day2); err != nil || len(only) != 2 {
		t.Fatalf("ListRange(half-open): n=%d err=%v", len(only), err)
	}
}
