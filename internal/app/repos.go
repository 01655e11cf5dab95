package app

import (
	"gorm.io/gorm"

	"github.com/wordtrail/wordtrail-engine/internal/data/repos"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
)

type Repos struct {
	Cards       repos.CardStateRepo
	Logs        repos.ReviewLogRepo
	Assignments repos.AssignmentRepo
	Ability     repos.AbilityStateRepo
	Metrics     repos.DailyMetricRepo
	Rollups     repos.WordRollupRepo
	Items       repos.TestItemRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Cards:       repos.NewCardStateRepo(db, log),
		Logs:        repos.NewReviewLogRepo(db, log),
		Assignments: repos.NewAssignmentRepo(db, log),
		Ability:     repos.NewAbilityStateRepo(db, log),
		Metrics:     repos.NewDailyMetricRepo(db, log),
		Rollups:     repos.NewWordRollupRepo(db, log),
		Items:       repos.NewTestItemRepo(db, log),
	}
}
