package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LearnerAbilityState caches the per-(learner, word) ability estimate in IRT
// space. It is a denormalized view over review_logs: the selection service
// refreshes it on every processed answer, and estimates fall back to a full
// recompute when the row is missing, so losing it is never destructive.
type LearnerAbilityState struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID uuid.UUID `gorm:"type:uuid;not null;index:idx_learner_ability_state,unique,priority:1" json:"learner_id"`
	WordID    uuid.UUID `gorm:"type:uuid;not null;index:idx_learner_ability_state,unique,priority:2" json:"word_id"`

	Theta       float64 `gorm:"column:theta;not null;default:0" json:"theta"`
	Confidence  float64 `gorm:"column:confidence;not null;default:0" json:"confidence"`
	SampleCount int     `gorm:"column:sample_count;not null;default:0" json:"sample_count"`

	LastAnswerAt *time.Time     `gorm:"column:last_answer_at;index" json:"last_answer_at,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (LearnerAbilityState) TableName() string { return "learner_ability_states" }
