package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Algorithm identifies which scheduler owns a card's state.
type Algorithm string

const (
	AlgorithmSM2  Algorithm = "sm2"
	AlgorithmFSRS Algorithm = "fsrs"
)

func (a Algorithm) Valid() bool {
	return a == AlgorithmSM2 || a == AlgorithmFSRS
}

// MasteryLevel is the discrete progress tier of a card. Levels are ordered;
// Rank gives the ordering so callers never compare the string forms.
type MasteryLevel string

const (
	MasteryLearning  MasteryLevel = "learning"
	MasteryFamiliar  MasteryLevel = "familiar"
	MasteryKnown     MasteryLevel = "known"
	MasteryMastered  MasteryLevel = "mastered"
	MasteryPermanent MasteryLevel = "permanent"
)

func (m MasteryLevel) Rank() int {
	switch m {
	case MasteryLearning:
		return 0
	case MasteryFamiliar:
		return 1
	case MasteryKnown:
		return 2
	case MasteryMastered:
		return 3
	case MasteryPermanent:
		return 4
	default:
		return -1
	}
}

func (m MasteryLevel) AtLeast(other MasteryLevel) bool {
	return m.Rank() >= other.Rank()
}

// CardState is the per-(learner, word) scheduling state. Exactly one row per
// pair; mutated only by a successful review or a one-time algorithm
// migration, never deleted. Algorithm must match the learner's assignment
// outside the migration transaction. Version guards concurrent reviews.
type CardState struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID uuid.UUID `gorm:"type:uuid;not null;index:idx_card_state_learner_word,unique,priority:1" json:"learner_id"`
	WordID    uuid.UUID `gorm:"type:uuid;not null;index:idx_card_state_learner_word,unique,priority:2;index" json:"word_id"`

	Algorithm Algorithm `gorm:"column:algorithm;type:text;not null;default:'sm2'" json:"algorithm"`

	IntervalDays   float64    `gorm:"column:interval_days;not null;default:0" json:"interval_days"`
	DueAt          *time.Time `gorm:"column:due_at;index" json:"due_at,omitempty"`
	LastReviewedAt *time.Time `gorm:"column:last_reviewed_at" json:"last_reviewed_at,omitempty"`

	TotalReviews int `gorm:"column:total_reviews;not null;default:0" json:"total_reviews"`
	TotalCorrect int `gorm:"column:total_correct;not null;default:0" json:"total_correct"`

	MasteryLevel MasteryLevel `gorm:"column:mastery_level;type:text;not null;default:'learning'" json:"mastery_level"`
	IsLeech      bool         `gorm:"column:is_leech;not null;default:false" json:"is_leech"`

	// Legacy scheduler parameters.
	EaseFactor          float64 `gorm:"column:ease_factor;not null;default:2.5" json:"ease_factor"`
	ConsecutiveCorrect  int     `gorm:"column:consecutive_correct;not null;default:0" json:"consecutive_correct"`
	ConsecutiveFailures int     `gorm:"column:consecutive_failures;not null;default:0" json:"consecutive_failures"`
	RecoveryStreak      int     `gorm:"column:recovery_streak;not null;default:0" json:"recovery_streak"`

	// Modern scheduler parameters.
	Stability      float64        `gorm:"column:stability;not null;default:0" json:"stability"`
	Difficulty     float64        `gorm:"column:difficulty;not null;default:0" json:"difficulty"`
	Retrievability float64        `gorm:"column:retrievability;not null;default:0" json:"retrievability"`
	AlgoState      datatypes.JSON `gorm:"column:algo_state" json:"algo_state,omitempty"`

	AvgResponseMS float64 `gorm:"column:avg_response_ms;not null;default:0" json:"avg_response_ms"`

	Version int `gorm:"column:version;not null;default:1" json:"version"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CardState) TableName() string { return "card_states" }

// Accuracy is the lifetime correct rate, 0 when the card is unreviewed.
func (c *CardState) Accuracy() float64 {
	if c == nil || c.TotalReviews <= 0 {
		return 0
	}
	return float64(c.TotalCorrect) / float64(c.TotalReviews)
}
