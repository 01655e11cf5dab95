package repos

import (
	"gorm.io/gorm"

	"github.com/wordtrail/wordtrail-engine/internal/data/repos/items"
	"github.com/wordtrail/wordtrail-engine/internal/data/repos/learning"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
)

type CardStateRepo = learning.CardStateRepo
type ReviewLogRepo = learning.ReviewLogRepo
type AssignmentRepo = learning.AssignmentRepo
type AbilityStateRepo = learning.AbilityStateRepo
type DailyMetricRepo = learning.DailyMetricRepo
type WordRollupRepo = learning.WordRollupRepo

type TestItemRepo = items.TestItemRepo

func NewCardStateRepo(db *gorm.DB, baseLog *logger.Logger) CardStateRepo {
	return learning.NewCardStateRepo(db, baseLog)
}
func NewReviewLogRepo(db *gorm.DB, baseLog *logger.Logger) ReviewLogRepo {
	return learning.NewReviewLogRepo(db, baseLog)
}
func NewAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) AssignmentRepo {
	return learning.NewAssignmentRepo(db, baseLog)
}
func NewAbilityStateRepo(db *gorm.DB, baseLog *logger.Logger) AbilityStateRepo {
	return learning.NewAbilityStateRepo(db, baseLog)
}
func NewDailyMetricRepo(db *gorm.DB, baseLog *logger.Logger) DailyMetricRepo {
	return learning.NewDailyMetricRepo(db, baseLog)
}
func NewWordRollupRepo(db *gorm.DB, baseLog *logger.Logger) WordRollupRepo {
	return learning.NewWordRollupRepo(db, baseLog)
}

func NewTestItemRepo(db *gorm.DB, baseLog *logger.Logger) TestItemRepo {
	return items.NewTestItemRepo(db, baseLog)
}
