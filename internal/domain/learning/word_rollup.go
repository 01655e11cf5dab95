package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DifficultyBand buckets the global difficulty score for display and for the
// word-graph sync.
type DifficultyBand string

const (
	BandEasy     DifficultyBand = "easy"
	BandModerate DifficultyBand = "moderate"
	BandHard     DifficultyBand = "hard"
	BandBrutal   DifficultyBand = "brutal"
)

// WordDifficultyRollup aggregates review outcomes for one word across all
// learners. Recomputed wholesale by the analytics refresh; never written by
// a user-facing action.
type WordDifficultyRollup struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WordID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_word_difficulty_rollup_word" json:"word_id"`

	TotalReviews int     `gorm:"column:total_reviews;not null;default:0" json:"total_reviews"`
	TotalCorrect int     `gorm:"column:total_correct;not null;default:0" json:"total_correct"`
	ErrorRate    float64 `gorm:"column:error_rate;not null;default:0" json:"error_rate"`

	AvgEase      float64 `gorm:"column:avg_ease;not null;default:0" json:"avg_ease"`
	AvgStability float64 `gorm:"column:avg_stability;not null;default:0" json:"avg_stability"`

	DifficultyScore float64        `gorm:"column:difficulty_score;not null;default:0" json:"difficulty_score"`
	DifficultyBand  DifficultyBand `gorm:"column:difficulty_band;type:text;not null;default:'moderate'" json:"difficulty_band"`

	LeechRate    float64 `gorm:"column:leech_rate;not null;default:0" json:"leech_rate"`
	LearnerCount int     `gorm:"column:learner_count;not null;default:0" json:"learner_count"`

	ComputedAt time.Time      `gorm:"column:computed_at;not null" json:"computed_at"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (WordDifficultyRollup) TableName() string { return "word_difficulty_rollups" }

// BandForScore maps a 0-1 difficulty score onto its display band.
func BandForScore(score float64) DifficultyBand {
	switch {
	case score < 0.25:
		return BandEasy
	case score < 0.55:
		return BandModerate
	case score < 0.8:
		return BandHard
	default:
		return BandBrutal
	}
}
