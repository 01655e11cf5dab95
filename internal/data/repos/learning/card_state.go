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

// AlgorithmCardStats is the per-algorithm aggregate over live card rows.
type AlgorithmCardStats struct {
	Algorithm       types.Algorithm `gorm:"column:algorithm"`
	TotalCards      int64           `gorm:"column:total_cards"`
	LeechCards      int64           `gorm:"column:leech_cards"`
	MasteredCards   int64           `gorm:"column:mastered_cards"`
	AvgIntervalDays float64         `gorm:"column:avg_interval_days"`
}

// WordCardRollup is the per-word aggregate feeding difficulty rollups.
type WordCardRollup struct {
	WordID       uuid.UUID `gorm:"column:word_id"`
	LearnerCount int64     `gorm:"column:learner_count"`
	TotalReviews int64     `gorm:"column:total_reviews"`
	TotalCorrect int64     `gorm:"column:total_correct"`
	AvgEase      float64   `gorm:"column:avg_ease"`
	AvgStability float64   `gorm:"column:avg_stability"`
	LeechCount   int64     `gorm:"column:leech_count"`
}

// AlgorithmDueCount is the global due-queue depth for one algorithm arm.
type AlgorithmDueCount struct {
	Algorithm types.Algorithm `gorm:"column:algorithm"`
	Due       int64           `gorm:"column:due"`
}

type CardStateRepo interface {
	Create(dbc dbctx.Context, rows []*types.CardState) ([]*types.CardState, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CardState, error)
	GetByLearnerWord(dbc dbctx.Context, learnerID, wordID uuid.UUID) (*types.CardState, error)

	LockByLearnerWord(dbc dbctx.Context, learnerID, wordID uuid.UUID) (*types.CardState, error)

	ListByLearner(dbc dbctx.Context, learnerID uuid.UUID, limit int) ([]*types.CardState, error)
	ListByLearnerAlgorithm(dbc dbctx.Context, learnerID uuid.UUID, algorithm types.Algorithm) ([]*types.CardState, error)
	ListDue(dbc dbctx.Context, learnerID uuid.UUID, asOf time.Time, limit int) ([]*types.CardState, error)
	CountDueByAlgorithm(dbc dbctx.Context, asOf time.Time) ([]*AlgorithmDueCount, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	StatsByAlgorithm(dbc dbctx.Context) ([]*AlgorithmCardStats, error)
	RollupRowsByWord(dbc dbctx.Context) ([]*WordCardRollup, error)
}

type cardStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCardStateRepo(db *gorm.DB, baseLog *logger.Logger) CardStateRepo {
	return &cardStateRepo{db: db, log: baseLog.With("repo", "CardStateRepo")}
}

func (r *cardStateRepo) Create(dbc dbctx.Context, rows []*types.CardState) ([]*types.CardState, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.CardState{}, nil
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

func (r *cardStateRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CardState, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.CardState
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *cardStateRepo) GetByLearnerWord(dbc dbctx.Context, learnerID, wordID uuid.UUID) (*types.CardState, error) {
	if learnerID == uuid.Nil || wordID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.CardState
	err := t.WithContext(dbc.Ctx).
		Where("learner_id = ? AND word_id = ?", learnerID, wordID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *cardStateRepo) LockByLearnerWord(dbc dbctx.Context, learnerID, wordID uuid.UUID) (*types.CardState, error) {
	if learnerID == uuid.Nil || wordID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.CardState
	err := t.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("learner_id = ? AND word_id = ?", learnerID, wordID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *cardStateRepo) ListByLearner(dbc dbctx.Context, learnerID uuid.UUID, limit int) ([]*types.CardState, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.CardState
	if learnerID == uuid.Nil {
		return out, nil
	}
	q := t.WithContext(dbc.Ctx).Where("learner_id = ?", learnerID).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cardStateRepo) ListByLearnerAlgorithm(dbc dbctx.Context, learnerID uuid.UUID, algorithm types.Algorithm) ([]*types.CardState, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.CardState
	if learnerID == uuid.Nil || !algorithm.Valid() {
		return out, nil
	}
	err := t.WithContext(dbc.Ctx).
		Where("learner_id = ? AND algorithm = ?", learnerID, algorithm).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cardStateRepo) ListDue(dbc dbctx.Context, learnerID uuid.UUID, asOf time.Time, limit int) ([]*types.CardState, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.CardState
	if learnerID == uuid.Nil {
		return out, nil
	}
	q := t.WithContext(dbc.Ctx).
		Where("learner_id = ? AND is_leech = ? AND due_at IS NOT NULL AND due_at <= ?", learnerID, false, asOf).
		Order("due_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cardStateRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.CardState{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *cardStateRepo) CountDueByAlgorithm(dbc dbctx.Context, asOf time.Time) ([]*AlgorithmDueCount, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*AlgorithmDueCount
	err := t.WithContext(dbc.Ctx).
		Model(&types.CardState{}).
		Select(`algorithm, COUNT(*) AS due`).
		Where("is_leech = ? AND due_at IS NOT NULL AND due_at <= ?", false, asOf).
		Group("algorithm").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cardStateRepo) StatsByAlgorithm(dbc dbctx.Context) ([]*AlgorithmCardStats, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*AlgorithmCardStats
	err := t.WithContext(dbc.Ctx).
		Model(&types.CardState{}).
		Select(`algorithm,
			COUNT(*) AS total_cards,
			SUM(CASE WHEN is_leech THEN 1 ELSE 0 END) AS leech_cards,
			SUM(CASE WHEN mastery_level IN ? THEN 1 ELSE 0 END) AS mastered_cards,
			COALESCE(AVG(interval_days), 0) AS avg_interval_days`,
			[]types.MasteryLevel{types.MasteryMastered, types.MasteryPermanent}).
		Group("algorithm").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cardStateRepo) RollupRowsByWord(dbc dbctx.Context) ([]*WordCardRollup, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*WordCardRollup
	err := t.WithContext(dbc.Ctx).
		Model(&types.CardState{}).
		Select(`word_id,
			COUNT(*) AS learner_count,
			COALESCE(SUM(total_reviews), 0) AS total_reviews,
			COALESCE(SUM(total_correct), 0) AS total_correct,
			COALESCE(AVG(CASE WHEN algorithm = ? THEN ease_factor END), 0) AS avg_ease,
			COALESCE(AVG(CASE WHEN algorithm = ? THEN stability END), 0) AS avg_stability,
			SUM(CASE WHEN is_leech THEN 1 ELSE 0 END) AS leech_count`,
			types.AlgorithmSM2, types.AlgorithmFSRS).
		Group("word_id").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
