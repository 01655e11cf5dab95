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

type WordRollupRepo interface {
	GetByWord(dbc dbctx.Context, wordID uuid.UUID) (*types.WordDifficultyRollup, error)
	ListHardest(dbc dbctx.Context, limit int) ([]*types.WordDifficultyRollup, error)
	ListByBand(dbc dbctx.Context, band types.DifficultyBand) ([]*types.WordDifficultyRollup, error)
	UpsertBatch(dbc dbctx.Context, rows []*types.WordDifficultyRollup) error
}

type wordRollupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWordRollupRepo(db *gorm.DB, baseLog *logger.Logger) WordRollupRepo {
	return &wordRollupRepo{db: db, log: baseLog.With("repo", "WordRollupRepo")}
}

func (r *wordRollupRepo) GetByWord(dbc dbctx.Context, wordID uuid.UUID) (*types.WordDifficultyRollup, error) {
	if wordID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.WordDifficultyRollup
	err := t.WithContext(dbc.Ctx).
		Where("word_id = ?", wordID).
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

func (r *wordRollupRepo) ListHardest(dbc dbctx.Context, limit int) ([]*types.WordDifficultyRollup, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	var rows []*types.WordDifficultyRollup
	err := t.WithContext(dbc.Ctx).
		Order("difficulty_score DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *wordRollupRepo) ListByBand(dbc dbctx.Context, band types.DifficultyBand) ([]*types.WordDifficultyRollup, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.WordDifficultyRollup
	err := t.WithContext(dbc.Ctx).
		Where("difficulty_band = ?", band).
		Order("difficulty_score DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *wordRollupRepo) UpsertBatch(dbc dbctx.Context, rows []*types.WordDifficultyRollup) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		if row.ComputedAt.IsZero() {
			row.ComputedAt = now
		}
		row.UpdatedAt = now
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "word_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_reviews", "total_correct", "error_rate",
				"avg_ease", "avg_stability", "difficulty_score", "difficulty_band",
				"leech_rate", "learner_count", "computed_at", "updated_at",
			}),
		}).
		CreateInBatches(rows, 200).Error
}
