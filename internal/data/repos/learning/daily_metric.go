package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	"github.com/wordtrail/wordtrail-engine/internal/platform/dbctx"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
)

type DailyMetricRepo interface {
	// Upsert writes the rollup for one (day, algorithm) cell. Snapshot
	// jobs re-run for late-arriving reviews, so the write replaces any
	// previous values for the cell.
	Upsert(dbc dbctx.Context, row *types.AlgorithmDailyMetric) error

	ListRange(dbc dbctx.Context, from, to time.Time) ([]*types.AlgorithmDailyMetric, error)
	ListRangeByAlgorithm(dbc dbctx.Context, algorithm types.Algorithm, from, to time.Time) ([]*types.AlgorithmDailyMetric, error)
}

type dailyMetricRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDailyMetricRepo(db *gorm.DB, baseLog *logger.Logger) DailyMetricRepo {
	return &dailyMetricRepo{db: db, log: baseLog.With("repo", "DailyMetricRepo")}
}

func (r *dailyMetricRepo) Upsert(dbc dbctx.Context, row *types.AlgorithmDailyMetric) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.Day.IsZero() || !row.Algorithm.Valid() {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.Day = row.Day.UTC().Truncate(24 * time.Hour)
	row.UpdatedAt = time.Now().UTC()
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "day"}, {Name: "algorithm"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"active_learners", "reviews", "correct", "retention_rate",
				"leech_count", "leech_rate", "mastered_cards", "avg_interval_days",
				"updated_at",
			}),
		}).
		Create(row).Error
}

func (r *dailyMetricRepo) ListRange(dbc dbctx.Context, from, to time.Time) ([]*types.AlgorithmDailyMetric, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.AlgorithmDailyMetric
	err := t.WithContext(dbc.Ctx).
		Where("day >= ? AND day < ?", from.UTC(), to.UTC()).
		Order("day ASC, algorithm ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *dailyMetricRepo) ListRangeByAlgorithm(dbc dbctx.Context, algorithm types.Algorithm, from, to time.Time) ([]*types.AlgorithmDailyMetric, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.AlgorithmDailyMetric
	err := t.WithContext(dbc.Ctx).
		Where("algorithm = ? AND day >= ? AND day < ?", algorithm, from.UTC(), to.UTC()).
		Order("day ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
