package items

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	"github.com/wordtrail/wordtrail-engine/internal/platform/dbctx"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
)

// TierCount counts items per quality tier.
type TierCount struct {
	QualityTier types.QualityTier `gorm:"column:quality_tier"`
	Items       int64             `gorm:"column:items"`
}

type TestItemRepo interface {
	Create(dbc dbctx.Context, row *types.TestItem) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.TestItem, error)

	// ListActiveByWord returns the servable pool for one word: active,
	// not flagged for review, fewest-attempted first so cold items get
	// exposure. Ties break on id for a stable order.
	ListActiveByWord(dbc dbctx.Context, wordID uuid.UUID) ([]*types.TestItem, error)

	// ListPageAfter pages the full pool by id for calibration sweeps.
	ListPageAfter(dbc dbctx.Context, afterID uuid.UUID, limit int) ([]*types.TestItem, error)
	ListNeedingReview(dbc dbctx.Context, limit int) ([]*types.TestItem, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	// BumpAttemptStats folds one answer into the item counters in a
	// single statement; every expression reads the pre-update row, so
	// the running average uses the old attempt_count.
	BumpAttemptStats(dbc dbctx.Context, id uuid.UUID, correct bool, responseMS int64) error

	CountByTier(dbc dbctx.Context) ([]*TierCount, error)
	CountFlagged(dbc dbctx.Context) (int64, error)
}

type testItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTestItemRepo(db *gorm.DB, baseLog *logger.Logger) TestItemRepo {
	return &testItemRepo{db: db, log: baseLog.With("repo", "TestItemRepo")}
}

func (r *testItemRepo) Create(dbc dbctx.Context, row *types.TestItem) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return t.WithContext(dbc.Ctx).Create(row).Error
}

func (r *testItemRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.TestItem, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.TestItem
	err := t.WithContext(dbc.Ctx).
		Where("id = ?", id).
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

func (r *testItemRepo) ListActiveByWord(dbc dbctx.Context, wordID uuid.UUID) ([]*types.TestItem, error) {
	if wordID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.TestItem
	err := t.WithContext(dbc.Ctx).
		Where("word_id = ? AND is_active = ? AND needs_review = ?", wordID, true, false).
		Order("attempt_count ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *testItemRepo) ListPageAfter(dbc dbctx.Context, afterID uuid.UUID, limit int) ([]*types.TestItem, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 200
	}
	q := t.WithContext(dbc.Ctx).Order("id ASC").Limit(limit)
	if afterID != uuid.Nil {
		q = q.Where("id > ?", afterID)
	}
	var rows []*types.TestItem
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *testItemRepo) ListNeedingReview(dbc dbctx.Context, limit int) ([]*types.TestItem, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	var rows []*types.TestItem
	err := t.WithContext(dbc.Ctx).
		Where("needs_review = ?", true).
		Order("attempt_count DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *testItemRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.TestItem{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *testItemRepo) BumpAttemptStats(dbc dbctx.Context, id uuid.UUID, correct bool, responseMS int64) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	correctDelta := 0
	if correct {
		correctDelta = 1
	}
	if responseMS < 0 {
		responseMS = 0
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.TestItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempt_count":   gorm.Expr("attempt_count + 1"),
			"correct_count":   gorm.Expr("correct_count + ?", correctDelta),
			"avg_response_ms": gorm.Expr("(avg_response_ms * attempt_count + ?) / (attempt_count + 1)", float64(responseMS)),
			"updated_at":      time.Now().UTC(),
		}).Error
}

func (r *testItemRepo) CountByTier(dbc dbctx.Context) ([]*TierCount, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*TierCount
	err := t.WithContext(dbc.Ctx).
		Model(&types.TestItem{}).
		Select("quality_tier, COUNT(*) AS items").
		Group("quality_tier").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *testItemRepo) CountFlagged(dbc dbctx.Context) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	err := t.WithContext(dbc.Ctx).
		Model(&types.TestItem{}).
		Where("needs_review = ?", true).
		Count(&n).Error
	if err != nil {
		return 0, err
	}
	return n, nil
}
