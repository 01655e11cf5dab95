package services

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wordtrail/wordtrail-engine/internal/data/repos"
	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	domainagg "github.com/wordtrail/wordtrail-engine/internal/domain/aggregates"
	"github.com/wordtrail/wordtrail-engine/internal/observability"
	"github.com/wordtrail/wordtrail-engine/internal/platform/dbctx"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
)

const (
	// Below this many logged attempts an item stays unrated and unflagged;
	// the numbers are recomputed anyway so the tier can settle the moment
	// the threshold is crossed.
	qualityMinAttempts = 20

	// Items at or past the attempt floor get flagged when discrimination
	// is inside the dead zone or the observed difficulty drifted this far
	// (theta units) from the stored value since the last sweep.
	qualityLowDiscrimination = 0.1
	qualityMiscalibrationGap = 2.0

	// Tier cuts on the discrimination index.
	qualityTierFairAt      = 0.1
	qualityTierGoodAt      = 0.2
	qualityTierExcellentAt = 0.35

	qualityLogWindow = 500
	qualityPageSize  = 200
	qualityWorkers   = 8
)

type ItemQuality struct {
	ItemID         uuid.UUID         `json:"item_id"`
	Attempts       int               `json:"attempts"`
	CorrectRate    float64           `json:"correct_rate"`
	Discrimination float64           `json:"discrimination"`
	Difficulty     float64           `json:"difficulty"`
	Tier           types.QualityTier `json:"tier"`
	NeedsReview    bool              `json:"needs_review"`
}

type QualityRunSummary struct {
	Processed int           `json:"processed"`
	Flagged   int           `json:"flagged"`
	Skipped   int           `json:"skipped"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

type QualityReport struct {
	TotalItems   int64                       `json:"total_items"`
	ByTier       map[types.QualityTier]int64 `json:"by_tier"`
	FlaggedItems int64                       `json:"flagged_items"`
	GeneratedAt  time.Time                   `json:"generated_at"`
}

type QualityService interface {
	// RecalculateAll sweeps the whole pool. Per-item failures are logged
	// and skipped; only failure to reach the store at all aborts the run.
	RecalculateAll(ctx context.Context) (*QualityRunSummary, error)

	// RecalculateItem recomputes one item's statistics from its logged
	// attempts. Pure function of the log, so re-running without new
	// attempts reproduces identical numbers.
	RecalculateItem(ctx context.Context, itemID uuid.UUID) (*ItemQuality, error)

	Report(ctx context.Context) (*QualityReport, error)
	ItemsNeedingReview(ctx context.Context, limit int) ([]*types.TestItem, error)
}

type qualityService struct {
	log   *logger.Logger
	items repos.TestItemRepo
	logs  repos.ReviewLogRepo
}

func NewQualityService(baseLog *logger.Logger, itemsRepo repos.TestItemRepo, logs repos.ReviewLogRepo) QualityService {
	return &qualityService{
		log:   baseLog.With("service", "QualityService"),
		items: itemsRepo,
		logs:  logs,
	}
}

func (s *qualityService) RecalculateItem(ctx context.Context, itemID uuid.UUID) (*ItemQuality, error) {
	if s == nil || s.items == nil || s.logs == nil {
		return nil, fmt.Errorf("quality service not configured")
	}
	const op = "Learning.Quality.RecalculateItem"
	if itemID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing item_id", nil)
	}

	dbc := dbctx.Context{Ctx: ctx}
	item, err := s.items.GetByID(dbc, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op,
			fmt.Sprintf("test item not found: %s", itemID.String()), nil)
	}

	attempts, err := s.logs.ListByItem(dbc, itemID, qualityLogWindow)
	if err != nil {
		return nil, err
	}

	q := computeItemQuality(item, attempts)

	now := time.Now().UTC()
	err = s.items.UpdateFields(dbc, itemID, map[string]interface{}{
		"discrimination":     q.Discrimination,
		"difficulty":         q.Difficulty,
		"quality_tier":       q.Tier,
		"needs_review":       q.NeedsReview,
		"quality_checked_at": now,
		"updated_at":         now,
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *qualityService) RecalculateAll(ctx context.Context) (*QualityRunSummary, error) {
	if s == nil || s.items == nil {
		return nil, fmt.Errorf("quality service not configured")
	}
	started := time.Now().UTC()
	var processed, flagged, skipped int64

	afterID := uuid.Nil
	for {
		page, err := s.items.ListPageAfter(dbctx.Context{Ctx: ctx}, afterID, qualityPageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(qualityWorkers)
		for _, it := range page {
			it := it
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				q, rerr := s.RecalculateItem(gctx, it.ID)
				if rerr != nil {
					// Recoverable: skip the item, keep the sweep going.
					atomic.AddInt64(&skipped, 1)
					s.log.Warn("item quality recalculation failed (skipping)",
						"item_id", it.ID.String(), "error", rerr)
					return nil
				}
				atomic.AddInt64(&processed, 1)
				if q.NeedsReview {
					atomic.AddInt64(&flagged, 1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		afterID = page[len(page)-1].ID
		if len(page) < qualityPageSize {
			break
		}
	}

	summary := &QualityRunSummary{
		Processed: int(processed),
		Flagged:   int(flagged),
		Skipped:   int(skipped),
		StartedAt: started,
		Duration:  time.Since(started),
	}
	observability.Current().ObserveQualitySweep("succeeded", summary.Duration,
		summary.Processed, summary.Skipped, summary.Flagged)
	return summary, nil
}

func (s *qualityService) Report(ctx context.Context) (*QualityReport, error) {
	if s == nil || s.items == nil {
		return nil, fmt.Errorf("quality service not configured")
	}
	dbc := dbctx.Context{Ctx: ctx}
	tiers, err := s.items.CountByTier(dbc)
	if err != nil {
		return nil, err
	}
	flaggedCount, err := s.items.CountFlagged(dbc)
	if err != nil {
		return nil, err
	}

	report := &QualityReport{
		ByTier:       make(map[types.QualityTier]int64, len(tiers)),
		FlaggedItems: flaggedCount,
		GeneratedAt:  time.Now().UTC(),
	}
	for _, tc := range tiers {
		if tc == nil {
			continue
		}
		report.ByTier[tc.QualityTier] = tc.Items
		report.TotalItems += tc.Items
		observability.Current().SetQualityTierItems(string(tc.QualityTier), float64(tc.Items))
	}
	return report, nil
}

func (s *qualityService) ItemsNeedingReview(ctx context.Context, limit int) ([]*types.TestItem, error) {
	if s == nil || s.items == nil {
		return nil, fmt.Errorf("quality service not configured")
	}
	return s.items.ListNeedingReview(dbctx.Context{Ctx: ctx}, limit)
}

// computeItemQuality derives quality statistics from an item's logged
// attempts. Discrimination is the Pearson correlation between correctness
// and the answerer's ability at review time; difficulty is the inverted
// correct rate on the theta scale. An existing needs_review flag survives
// recomputation: only an explicit clear removes an item from the review
// queue, so re-running a sweep reproduces the same result.
func computeItemQuality(item *types.TestItem, attempts []*types.ReviewLog) ItemQuality {
	q := ItemQuality{ItemID: item.ID, Tier: types.TierUnrated, NeedsReview: item.NeedsReview}

	outcomes := make([]float64, 0, len(attempts))
	abilities := make([]float64, 0, len(attempts))
	correct := 0
	for _, a := range attempts {
		if a == nil {
			continue
		}
		outcome := 0.0
		if a.WasCorrect {
			outcome = 1.0
			correct++
		}
		outcomes = append(outcomes, outcome)
		abilities = append(abilities, a.AbilityAtReview)
	}
	q.Attempts = len(outcomes)
	if q.Attempts == 0 {
		return q
	}

	q.CorrectRate = float64(correct) / float64(q.Attempts)
	q.Difficulty = clampTheta((0.5 - q.CorrectRate) * (abilityThetaMax - abilityThetaMin))
	q.Discrimination = pearson(outcomes, abilities)

	if q.Attempts < qualityMinAttempts {
		return q
	}

	switch {
	case q.Discrimination >= qualityTierExcellentAt:
		q.Tier = types.TierExcellent
	case q.Discrimination >= qualityTierGoodAt:
		q.Tier = types.TierGood
	case q.Discrimination >= qualityTierFairAt:
		q.Tier = types.TierFair
	default:
		q.Tier = types.TierPoor
	}

	lowDiscrimination := math.Abs(q.Discrimination) < qualityLowDiscrimination
	miscalibrated := item.QualityCheckedAt != nil &&
		math.Abs(q.Difficulty-item.Difficulty) > qualityMiscalibrationGap
	q.NeedsReview = q.NeedsReview || lowDiscrimination || miscalibrated
	return q
}

func pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	if n == 0 || len(xs) != len(ys) {
		return 0
	}
	var sumX, sumY, sumXY, sumXX, sumYY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
		sumYY += ys[i] * ys[i]
	}
	varX := sumXX - sumX*sumX/n
	varY := sumYY - sumY*sumY/n
	if varX <= 0 || varY <= 0 {
		return 0
	}
	cov := sumXY - sumX*sumY/n
	return cov / math.Sqrt(varX*varY)
}
