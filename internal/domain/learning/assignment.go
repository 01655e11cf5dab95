package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AlgorithmAssignment pins a learner to one scheduler. At most one row per
// learner; written only by the assignment service. ReviewCount feeds the
// migration eligibility check and is bumped on every processed review.
type AlgorithmAssignment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_algorithm_assignment_learner" json:"learner_id"`

	Algorithm  Algorithm `gorm:"column:algorithm;type:text;not null" json:"algorithm"`
	AssignedAt time.Time `gorm:"column:assigned_at;not null" json:"assigned_at"`

	ReviewCount int `gorm:"column:review_count;not null;default:0" json:"review_count"`

	MigratedAt   *time.Time `gorm:"column:migrated_at" json:"migrated_at,omitempty"`
	MigratedFrom *Algorithm `gorm:"column:migrated_from;type:text" json:"migrated_from,omitempty"`

	Version int `gorm:"column:version;not null;default:1" json:"version"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (AlgorithmAssignment) TableName() string { return "algorithm_assignments" }
