package learning

import (
	"time"

	"github.com/google/uuid"
)

// ReviewLog is the append-only record of a single processed review. Rows are
// write-once: nothing in the engine updates or deletes them, and every
// aggregate metric must be recomputable from this table alone.
type ReviewLog struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CardStateID uuid.UUID  `gorm:"type:uuid;not null;index" json:"card_state_id"`
	LearnerID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_review_log_learner_reviewed,priority:1" json:"learner_id"`
	WordID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"word_id"`
	ItemID      *uuid.UUID `gorm:"type:uuid;index" json:"item_id,omitempty"`

	Algorithm Algorithm `gorm:"column:algorithm;type:text;not null" json:"algorithm"`
	Rating    string    `gorm:"column:rating;type:text;not null" json:"rating"`

	ResponseMS  int     `gorm:"column:response_ms;not null;default:0" json:"response_ms"`
	ElapsedDays float64 `gorm:"column:elapsed_days;not null;default:0" json:"elapsed_days"`

	IntervalBefore float64 `gorm:"column:interval_before;not null;default:0" json:"interval_before"`
	IntervalAfter  float64 `gorm:"column:interval_after;not null;default:0" json:"interval_after"`
	EaseBefore     float64 `gorm:"column:ease_before;not null;default:0" json:"ease_before"`
	EaseAfter      float64 `gorm:"column:ease_after;not null;default:0" json:"ease_after"`

	StabilityBefore  float64 `gorm:"column:stability_before;not null;default:0" json:"stability_before"`
	StabilityAfter   float64 `gorm:"column:stability_after;not null;default:0" json:"stability_after"`
	DifficultyBefore float64 `gorm:"column:difficulty_before;not null;default:0" json:"difficulty_before"`
	DifficultyAfter  float64 `gorm:"column:difficulty_after;not null;default:0" json:"difficulty_after"`

	PredictedRetention float64 `gorm:"column:predicted_retention;not null;default:0" json:"predicted_retention"`
	WasCorrect         bool    `gorm:"column:was_correct;not null" json:"was_correct"`
	AbilityAtReview    float64 `gorm:"column:ability_at_review;not null;default:0" json:"ability_at_review"`

	ReviewedAt time.Time `gorm:"column:reviewed_at;not null;index:idx_review_log_learner_reviewed,priority:2;index" json:"reviewed_at"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ReviewLog) TableName() string { return "review_logs" }
