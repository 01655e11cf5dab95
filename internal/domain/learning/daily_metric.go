package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AlgorithmDailyMetric is the per-(day, algorithm) comparison snapshot.
// One row per pair, upserted by the daily snapshot job; re-running the job
// for a day replaces that day's numbers rather than appending.
type AlgorithmDailyMetric struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Day       time.Time `gorm:"column:day;type:date;not null;index:idx_algorithm_daily_metric,unique,priority:1" json:"day"`
	Algorithm Algorithm `gorm:"column:algorithm;type:text;not null;index:idx_algorithm_daily_metric,unique,priority:2" json:"algorithm"`

	ActiveLearners int `gorm:"column:active_learners;not null;default:0" json:"active_learners"`
	Reviews        int `gorm:"column:reviews;not null;default:0" json:"reviews"`
	Correct        int `gorm:"column:correct;not null;default:0" json:"correct"`

	RetentionRate float64 `gorm:"column:retention_rate;not null;default:0" json:"retention_rate"`

	LeechCount int     `gorm:"column:leech_count;not null;default:0" json:"leech_count"`
	LeechRate  float64 `gorm:"column:leech_rate;not null;default:0" json:"leech_rate"`

	MasteredCards   int     `gorm:"column:mastered_cards;not null;default:0" json:"mastered_cards"`
	AvgIntervalDays float64 `gorm:"column:avg_interval_days;not null;default:0" json:"avg_interval_days"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (AlgorithmDailyMetric) TableName() string { return "algorithm_daily_metrics" }
