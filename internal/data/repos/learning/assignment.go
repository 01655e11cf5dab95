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

// AlgorithmArmSize counts assigned learners per algorithm.
type AlgorithmArmSize struct {
	Algorithm types.Algorithm `gorm:"column:algorithm"`
	Learners  int64           `gorm:"column:learners"`
}

type AssignmentRepo interface {
	// CreateIgnoreDuplicates inserts the assignment unless the learner
	// already has one; the unique learner index makes concurrent first
	// assignments collapse to a single winner. Returns true when this
	// call inserted the row.
	CreateIgnoreDuplicates(dbc dbctx.Context, row *types.AlgorithmAssignment) (bool, error)

	GetByLearner(dbc dbctx.Context, learnerID uuid.UUID) (*types.AlgorithmAssignment, error)
	LockByLearner(dbc dbctx.Context, learnerID uuid.UUID) (*types.AlgorithmAssignment, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	IncrementReviewCount(dbc dbctx.Context, learnerID uuid.UUID) error

	ArmSizes(dbc dbctx.Context) ([]*AlgorithmArmSize, error)
}

type assignmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) AssignmentRepo {
	return &assignmentRepo{db: db, log: baseLog.With("repo", "AssignmentRepo")}
}

func (r *assignmentRepo) CreateIgnoreDuplicates(dbc dbctx.Context, row *types.AlgorithmAssignment) (bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.LearnerID == uuid.Nil {
		return false, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.AssignedAt.IsZero() {
		row.AssignedAt = time.Now().UTC()
	}
	res := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "learner_id"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *assignmentRepo) GetByLearner(dbc dbctx.Context, learnerID uuid.UUID) (*types.AlgorithmAssignment, error) {
	if learnerID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.AlgorithmAssignment
	err := t.WithContext(dbc.Ctx).
		Where("learner_id = ?", learnerID).
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

func (r *assignmentRepo) LockByLearner(dbc dbctx.Context, learnerID uuid.UUID) (*types.AlgorithmAssignment, error) {
	if learnerID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.AlgorithmAssignment
	err := t.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("learner_id = ?", learnerID).
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

func (r *assignmentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.AlgorithmAssignment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *assignmentRepo) IncrementReviewCount(dbc dbctx.Context, learnerID uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if learnerID == uuid.Nil {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.AlgorithmAssignment{}).
		Where("learner_id = ?", learnerID).
		Updates(map[string]interface{}{
			"review_count": gorm.Expr("review_count + 1"),
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (r *assignmentRepo) ArmSizes(dbc dbctx.Context) ([]*AlgorithmArmSize, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*AlgorithmArmSize
	err := t.WithContext(dbc.Ctx).
		Model(&types.AlgorithmAssignment{}).
		Select("algorithm, COUNT(*) AS learners").
		Group("algorithm").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
