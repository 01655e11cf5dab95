package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/wordtrail/wordtrail-engine/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// =========================
		// Scheduling state
		// =========================
		&types.CardState{},
		&types.ReviewLog{},
		&types.AlgorithmAssignment{},

		// =========================
		// Item pool + calibration
		// =========================
		&types.TestItem{},
		&types.LearnerAbilityState{},

		// =========================
		// Analytics
		// =========================
		&types.WordDifficultyRollup{},
		&types.AlgorithmDailyMetric{},
	)
}

// EnsureEngineIndexes adds the constraints AutoMigrate cannot express.
// Postgres only; the sqlite dev store lives without the partial indexes.
func EnsureEngineIndexes(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return fmt.Errorf("enable uuid-ossp: %w", err)
	}

	// One live card per (learner, word); soft-deleted rows never count.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_card_state_learner_word_active
		ON card_states(learner_id, word_id)
		WHERE deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_card_state_learner_word_active: %w", err)
	}

	// One live assignment per learner.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_algorithm_assignment_learner_active
		ON algorithm_assignments(learner_id)
		WHERE deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_algorithm_assignment_learner_active: %w", err)
	}

	// Due-queue scan: live, non-leech cards by due date.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_card_state_due_queue
		ON card_states(learner_id, due_at)
		WHERE deleted_at IS NULL AND is_leech = false;
	`).Error; err != nil {
		return fmt.Errorf("create idx_card_state_due_queue: %w", err)
	}

	// Trailing-window analytics reads.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_review_log_algorithm_reviewed
		ON review_logs(algorithm, reviewed_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_review_log_algorithm_reviewed: %w", err)
	}

	// Item pool selection: active items per word.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_test_item_word_active
		ON test_items(word_id, attempt_count)
		WHERE deleted_at IS NULL AND is_active = true AND needs_review = false;
	`).Error; err != nil {
		return fmt.Errorf("create idx_test_item_word_active: %w", err)
	}

	return nil
}
