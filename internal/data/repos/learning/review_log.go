package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	"github.com/wordtrail/wordtrail-engine/internal/platform/dbctx"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
)

// AlgorithmWindowStats aggregates review logs per algorithm over a window.
type AlgorithmWindowStats struct {
	Algorithm      types.Algorithm `gorm:"column:algorithm"`
	Reviews        int64           `gorm:"column:reviews"`
	Correct        int64           `gorm:"column:correct"`
	ActiveLearners int64           `gorm:"column:active_learners"`
}

// ReviewLogRepo is append-only: rows are created once and never updated or
// deleted, so the interface deliberately has no update/delete methods.
type ReviewLogRepo interface {
	Create(dbc dbctx.Context, rows []*types.ReviewLog) ([]*types.ReviewLog, error)

	ListByLearnerWord(dbc dbctx.Context, learnerID, wordID uuid.UUID, limit int) ([]*types.ReviewLog, error)
	ListByItem(dbc dbctx.Context, itemID uuid.UUID, limit int) ([]*types.ReviewLog, error)

	CountByLearner(dbc dbctx.Context, learnerID uuid.UUID) (int64, error)

	WindowStatsByAlgorithm(dbc dbctx.Context, from, to time.Time) ([]*AlgorithmWindowStats, error)
}

type reviewLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewLogRepo(db *gorm.DB, baseLog *logger.Logger) ReviewLogRepo {
	return &reviewLogRepo{db: db, log: baseLog.With("repo", "ReviewLogRepo")}
}

func (r *reviewLogRepo) Create(dbc dbctx.Context, rows []*types.ReviewLog) ([]*types.ReviewLog, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.ReviewLog{}, nil
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *reviewLogRepo) ListByLearnerWord(dbc dbctx.Context, learnerID, wordID uuid.UUID, limit int) ([]*types.ReviewLog, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ReviewLog
	if learnerID == uuid.Nil || wordID == uuid.Nil {
		return out, nil
	}
	q := t.WithContext(dbc.Ctx).
		Where("learner_id = ? AND word_id = ?", learnerID, wordID).
		Order("reviewed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reviewLogRepo) ListByItem(dbc dbctx.Context, itemID uuid.UUID, limit int) ([]*types.ReviewLog, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ReviewLog
	if itemID == uuid.Nil {
		return out, nil
	}
	q := t.WithContext(dbc.Ctx).
		Where("item_id = ?", itemID).
		Order("reviewed_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reviewLogRepo) CountByLearner(dbc dbctx.Context, learnerID uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if learnerID == uuid.Nil {
		return 0, nil
	}
	var count int64
	err := t.WithContext(dbc.Ctx).
		Model(&types.ReviewLog{}).
		Where("learner_id = ?", learnerID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *reviewLogRepo) WindowStatsByAlgorithm(dbc dbctx.Context, from, to time.Time) ([]*AlgorithmWindowStats, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*AlgorithmWindowStats
	err := t.WithContext(dbc.Ctx).
		Model(&types.ReviewLog{}).
		Select(`algorithm,
			COUNT(*) AS reviews,
			SUM(CASE WHEN was_correct THEN 1 ELSE 0 END) AS correct,
			COUNT(DISTINCT learner_id) AS active_learners`).
		Where("reviewed_at >= ? AND reviewed_at < ?", from, to).
		Group("algorithm").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
