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

type AbilityStateRepo interface {
	GetByLearnerWord(dbc dbctx.Context, learnerID, wordID uuid.UUID) (*types.LearnerAbilityState, error)
	ListByLearner(dbc dbctx.Context, learnerID uuid.UUID) ([]*types.LearnerAbilityState, error)

	// Upsert writes the cached estimate keyed by (learner, word). The
	// row is a denormalized projection of review history; callers may
	// recompute and overwrite it at any time.
	Upsert(dbc dbctx.Context, row *types.LearnerAbilityState) error
}

type abilityStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAbilityStateRepo(db *gorm.DB, baseLog *logger.Logger) AbilityStateRepo {
	return &abilityStateRepo{db: db, log: baseLog.With("repo", "AbilityStateRepo")}
}

func (r *abilityStateRepo) GetByLearnerWord(dbc dbctx.Context, learnerID, wordID uuid.UUID) (*types.LearnerAbilityState, error) {
	if learnerID == uuid.Nil || wordID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.LearnerAbilityState
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

func (r *abilityStateRepo) ListByLearner(dbc dbctx.Context, learnerID uuid.UUID) ([]*types.LearnerAbilityState, error) {
	if learnerID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.LearnerAbilityState
	err := t.WithContext(dbc.Ctx).
		Where("learner_id = ?", learnerID).
		Order("updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *abilityStateRepo) Upsert(dbc dbctx.Context, row *types.LearnerAbilityState) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.LearnerID == uuid.Nil || row.WordID == uuid.Nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	now := time.Now().UTC()
	row.UpdatedAt = now
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "learner_id"}, {Name: "word_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"theta", "confidence", "sample_count", "last_answer_at", "updated_at",
			}),
		}).
		Create(row).Error
}
