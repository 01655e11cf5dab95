package items

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QualityTier classifies an item after quality recalculation.
type QualityTier string

const (
	TierUnrated   QualityTier = "unrated"
	TierPoor      QualityTier = "poor"
	TierFair      QualityTier = "fair"
	TierGood      QualityTier = "good"
	TierExcellent QualityTier = "excellent"
)

// ItemOption is one answer choice inside a test item's options payload.
type ItemOption struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// TestItem is a pool entry produced by the content pipeline. The pipeline
// guarantees >=2 options with exactly one marked correct; the engine still
// rejects payloads that break that when decoding. Quality statistics
// (attempts through quality_tier) are written only by the selection
// service's recalculation path.
type TestItem struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WordID uuid.UUID `gorm:"type:uuid;not null;index:idx_test_item_word" json:"word_id"`

	SenseRef string `gorm:"column:sense_ref;type:text;not null;default:''" json:"sense_ref"`
	ItemType string `gorm:"column:item_type;type:text;not null;default:'multiple_choice'" json:"item_type"`

	Prompt      string         `gorm:"column:prompt;type:text;not null" json:"prompt"`
	Options     datatypes.JSON `gorm:"column:options;not null" json:"options"`
	Explanation string         `gorm:"column:explanation;type:text;not null;default:''" json:"explanation"`
	Metadata    datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`

	IsActive    bool `gorm:"column:is_active;not null;default:true;index" json:"is_active"`
	NeedsReview bool `gorm:"column:needs_review;not null;default:false" json:"needs_review"`

	AttemptCount  int     `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	CorrectCount  int     `gorm:"column:correct_count;not null;default:0" json:"correct_count"`
	AvgResponseMS float64 `gorm:"column:avg_response_ms;not null;default:0" json:"avg_response_ms"`

	Discrimination float64     `gorm:"column:discrimination;not null;default:0" json:"discrimination"`
	Difficulty     float64     `gorm:"column:difficulty;not null;default:0" json:"difficulty"`
	QualityTier    QualityTier `gorm:"column:quality_tier;type:text;not null;default:'unrated'" json:"quality_tier"`

	QualityCheckedAt *time.Time `gorm:"column:quality_checked_at" json:"quality_checked_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (TestItem) TableName() string { return "test_items" }

// DecodeOptions parses and validates the options payload. An item whose
// payload fails here is malformed and must never be served.
func (t *TestItem) DecodeOptions() ([]ItemOption, error) {
	if t == nil || len(t.Options) == 0 {
		return nil, fmt.Errorf("test item options: empty payload")
	}
	var opts []ItemOption
	if err := json.Unmarshal(t.Options, &opts); err != nil {
		return nil, fmt.Errorf("test item options: %w", err)
	}
	if len(opts) < 2 {
		return nil, fmt.Errorf("test item options: need at least 2, got %d", len(opts))
	}
	correct := 0
	for _, o := range opts {
		if o.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return nil, fmt.Errorf("test item options: need exactly 1 correct, got %d", correct)
	}
	return opts, nil
}

// CorrectIndex returns the position of the correct option.
func CorrectIndex(opts []ItemOption) int {
	for i, o := range opts {
		if o.IsCorrect {
			return i
		}
	}
	return -1
}

// CorrectRate is the observed lifetime correct rate, 0 when unattempted.
func (t *TestItem) CorrectRate() float64 {
	if t == nil || t.AttemptCount <= 0 {
		return 0
	}
	return float64(t.CorrectCount) / float64(t.AttemptCount)
}
