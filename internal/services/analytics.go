package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wordtrail/wordtrail-engine/internal/data/graph"
	"github.com/wordtrail/wordtrail-engine/internal/data/repos"
	"github.com/wordtrail/wordtrail-engine/internal/data/repos/learning"
	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	domainagg "github.com/wordtrail/wordtrail-engine/internal/domain/aggregates"
	"github.com/wordtrail/wordtrail-engine/internal/observability"
	"github.com/wordtrail/wordtrail-engine/internal/platform/dbctx"
	"github.com/wordtrail/wordtrail-engine/internal/platform/envutil"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
	"github.com/wordtrail/wordtrail-engine/internal/platform/neo4jdb"
)

// DefaultAnalyticsMinSample is the per-arm review floor below which the
// comparison never recommends either algorithm. Override with
// ANALYTICS_MIN_SAMPLE.
const DefaultAnalyticsMinSample = 1000

// A retention gap inside this band reads as noise, not a winner.
const analyticsRetentionEdge = 0.02

const (
	RecommendationInsufficientData = "insufficient data"
	RecommendationPreferModern     = "prefer fsrs"
	RecommendationPreferLegacy     = "prefer sm2"
	RecommendationNoClearWinner    = "no clear winner"
)

type AlgorithmMetrics struct {
	Algorithm       types.Algorithm `json:"algorithm"`
	ActiveLearners  int64           `json:"active_learners"`
	Reviews         int64           `json:"reviews"`
	Correct         int64           `json:"correct"`
	RetentionRate   float64         `json:"retention_rate"`
	TotalCards      int64           `json:"total_cards"`
	LeechCards      int64           `json:"leech_cards"`
	LeechRate       float64         `json:"leech_rate"`
	MasteredCards   int64           `json:"mastered_cards"`
	AvgIntervalDays float64         `json:"avg_interval_days"`
}

// AdvantageDeltas reads as "how much better is the modern arm": retention and
// mastered are fsrs minus sm2, leech is sm2 minus fsrs so positive always
// favors fsrs.
type AdvantageDeltas struct {
	RetentionRate float64 `json:"retention_rate"`
	LeechRate     float64 `json:"leech_rate"`
	MasteredCards int64   `json:"mastered_cards"`
}

type AlgorithmComparison struct {
	WindowDays       int                 `json:"window_days"`
	From             time.Time           `json:"from"`
	To               time.Time           `json:"to"`
	PerAlgorithm     []*AlgorithmMetrics `json:"per_algorithm"`
	Deltas           AdvantageDeltas     `json:"deltas"`
	MinSamplePerArm  int                 `json:"min_sample_per_arm"`
	SampleSufficient bool                `json:"sample_sufficient"`
	Recommendation   string              `json:"recommendation"`
}

type AnalyticsService interface {
	// Compare rolls up both arms over the trailing window. The
	// recommendation stays neutral until each arm carries the minimum
	// review sample, no matter how large the measured gaps are.
	Compare(ctx context.Context, days int) (*AlgorithmComparison, error)

	// DailyTrend returns stored daily snapshot rows, optionally filtered
	// to one algorithm.
	DailyTrend(ctx context.Context, days int, algorithm string) ([]*types.AlgorithmDailyMetric, error)

	// SnapshotDaily upserts the per-algorithm metric rows for one day.
	// Re-running a day replaces that day's numbers.
	SnapshotDaily(ctx context.Context, day time.Time) ([]*types.AlgorithmDailyMetric, error)

	// RefreshWordRollups recomputes the global per-word difficulty table
	// and pushes bands into the word graph when one is configured.
	RefreshWordRollups(ctx context.Context) (int, error)
}

type analyticsService struct {
	log       *logger.Logger
	logs      repos.ReviewLogRepo
	cards     repos.CardStateRepo
	metrics   repos.DailyMetricRepo
	rollups   repos.WordRollupRepo
	wordGraph *neo4jdb.Client
	minSample int
}

func NewAnalyticsService(
	baseLog *logger.Logger,
	logs repos.ReviewLogRepo,
	cards repos.CardStateRepo,
	metrics repos.DailyMetricRepo,
	rollups repos.WordRollupRepo,
	wordGraph *neo4jdb.Client,
) AnalyticsService {
	return &analyticsService{
		log:       baseLog.With("service", "AnalyticsService"),
		logs:      logs,
		cards:     cards,
		metrics:   metrics,
		rollups:   rollups,
		wordGraph: wordGraph,
		minSample: envutil.Int("ANALYTICS_MIN_SAMPLE", DefaultAnalyticsMinSample),
	}
}

func (s *analyticsService) Compare(ctx context.Context, days int) (*AlgorithmComparison, error) {
	if s == nil || s.logs == nil || s.cards == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	const op = "Learning.Analytics.Compare"
	if days <= 0 {
		return nil, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("days must be > 0, got %d", days), nil)
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)
	dbc := dbctx.Context{Ctx: ctx}

	windowStats, err := s.logs.WindowStatsByAlgorithm(dbc, from, to)
	if err != nil {
		return nil, err
	}
	cardStats, err := s.cards.StatsByAlgorithm(dbc)
	if err != nil {
		return nil, err
	}

	byAlg := map[types.Algorithm]*AlgorithmMetrics{}
	for _, alg := range []types.Algorithm{types.AlgorithmSM2, types.AlgorithmFSRS} {
		byAlg[alg] = &AlgorithmMetrics{Algorithm: alg}
	}
	for _, ws := range windowStats {
		if ws == nil {
			continue
		}
		m, ok := byAlg[ws.Algorithm]
		if !ok {
			continue
		}
		m.ActiveLearners = ws.ActiveLearners
		m.Reviews = ws.Reviews
		m.Correct = ws.Correct
		if ws.Reviews > 0 {
			m.RetentionRate = float64(ws.Correct) / float64(ws.Reviews)
		}
	}
	for _, cs := range cardStats {
		if cs == nil {
			continue
		}
		m, ok := byAlg[cs.Algorithm]
		if !ok {
			continue
		}
		m.TotalCards = cs.TotalCards
		m.LeechCards = cs.LeechCards
		m.MasteredCards = cs.MasteredCards
		m.AvgIntervalDays = cs.AvgIntervalDays
		if cs.TotalCards > 0 {
			m.LeechRate = float64(cs.LeechCards) / float64(cs.TotalCards)
		}
	}

	legacy := byAlg[types.AlgorithmSM2]
	modern := byAlg[types.AlgorithmFSRS]
	deltas := AdvantageDeltas{
		RetentionRate: modern.RetentionRate - legacy.RetentionRate,
		LeechRate:     legacy.LeechRate - modern.LeechRate,
		MasteredCards: modern.MasteredCards - legacy.MasteredCards,
	}

	sufficient := legacy.Reviews >= int64(s.minSample) && modern.Reviews >= int64(s.minSample)
	recommendation := RecommendationInsufficientData
	if sufficient {
		switch {
		case deltas.RetentionRate > analyticsRetentionEdge:
			recommendation = RecommendationPreferModern
		case deltas.RetentionRate < -analyticsRetentionEdge:
			recommendation = RecommendationPreferLegacy
		default:
			recommendation = RecommendationNoClearWinner
		}
	}

	return &AlgorithmComparison{
		WindowDays:       days,
		From:             from,
		To:               to,
		PerAlgorithm:     []*AlgorithmMetrics{legacy, modern},
		Deltas:           deltas,
		MinSamplePerArm:  s.minSample,
		SampleSufficient: sufficient,
		Recommendation:   recommendation,
	}, nil
}

func (s *analyticsService) DailyTrend(ctx context.Context, days int, algorithm string) ([]*types.AlgorithmDailyMetric, error) {
	if s == nil || s.metrics == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	const op = "Learning.Analytics.DailyTrend"
	if days <= 0 {
		return nil, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("days must be > 0, got %d", days), nil)
	}

	now := time.Now().UTC()
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -days)
	dbc := dbctx.Context{Ctx: ctx}

	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	if algorithm == "" {
		return s.metrics.ListRange(dbc, from, to)
	}
	alg := types.Algorithm(algorithm)
	if !alg.Valid() {
		return nil, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("unknown algorithm %q", algorithm), nil)
	}
	return s.metrics.ListRangeByAlgorithm(dbc, alg, from, to)
}

func (s *analyticsService) SnapshotDaily(ctx context.Context, day time.Time) ([]*types.AlgorithmDailyMetric, error) {
	rows, err := s.snapshotDaily(ctx, day)
	if err != nil {
		observability.Current().IncSnapshot("failed")
		return nil, err
	}
	observability.Current().IncSnapshot("succeeded")
	return rows, nil
}

func (s *analyticsService) snapshotDaily(ctx context.Context, day time.Time) ([]*types.AlgorithmDailyMetric, error) {
	if s == nil || s.logs == nil || s.cards == nil || s.metrics == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	if day.IsZero() {
		day = time.Now().UTC().AddDate(0, 0, -1)
	}
	day = day.UTC()
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	dbc := dbctx.Context{Ctx: ctx}
	windowStats, err := s.logs.WindowStatsByAlgorithm(dbc, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	cardStats, err := s.cards.StatsByAlgorithm(dbc)
	if err != nil {
		return nil, err
	}

	windowByAlg := map[types.Algorithm]*learning.AlgorithmWindowStats{}
	for _, ws := range windowStats {
		if ws != nil {
			windowByAlg[ws.Algorithm] = ws
		}
	}
	cardsByAlg := map[types.Algorithm]*learning.AlgorithmCardStats{}
	for _, cs := range cardStats {
		if cs != nil {
			cardsByAlg[cs.Algorithm] = cs
		}
	}

	out := make([]*types.AlgorithmDailyMetric, 0, 2)
	for _, alg := range []types.Algorithm{types.AlgorithmSM2, types.AlgorithmFSRS} {
		row := &types.AlgorithmDailyMetric{Day: dayStart, Algorithm: alg}
		if ws := windowByAlg[alg]; ws != nil {
			row.ActiveLearners = int(ws.ActiveLearners)
			row.Reviews = int(ws.Reviews)
			row.Correct = int(ws.Correct)
			if ws.Reviews > 0 {
				row.RetentionRate = float64(ws.Correct) / float64(ws.Reviews)
			}
		}
		if cs := cardsByAlg[alg]; cs != nil {
			row.LeechCount = int(cs.LeechCards)
			row.MasteredCards = int(cs.MasteredCards)
			row.AvgIntervalDays = cs.AvgIntervalDays
			if cs.TotalCards > 0 {
				row.LeechRate = float64(cs.LeechCards) / float64(cs.TotalCards)
			}
		}
		if err := s.metrics.Upsert(dbc, row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *analyticsService) RefreshWordRollups(ctx context.Context) (int, error) {
	n, err := s.refreshWordRollups(ctx)
	if err != nil {
		observability.Current().ObserveRollupRefresh("failed", 0)
		return 0, err
	}
	observability.Current().ObserveRollupRefresh("succeeded", n)
	return n, nil
}

func (s *analyticsService) refreshWordRollups(ctx context.Context) (int, error) {
	if s == nil || s.cards == nil || s.rollups == nil {
		return 0, fmt.Errorf("analytics service not configured")
	}

	dbc := dbctx.Context{Ctx: ctx}
	perWord, err := s.cards.RollupRowsByWord(dbc)
	if err != nil {
		return 0, err
	}
	if len(perWord) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([]*types.WordDifficultyRollup, 0, len(perWord))
	for _, w := range perWord {
		if w == nil || w.WordID == uuid.Nil {
			continue
		}
		row := &types.WordDifficultyRollup{
			WordID:       w.WordID,
			TotalReviews: int(w.TotalReviews),
			TotalCorrect: int(w.TotalCorrect),
			AvgEase:      w.AvgEase,
			AvgStability: w.AvgStability,
			LearnerCount: int(w.LearnerCount),
			ComputedAt:   now,
		}
		if w.TotalReviews > 0 {
			row.ErrorRate = 1 - float64(w.TotalCorrect)/float64(w.TotalReviews)
		}
		if w.LearnerCount > 0 {
			row.LeechRate = float64(w.LeechCount) / float64(w.LearnerCount)
		}
		score := 0.7*row.ErrorRate + 0.3*row.LeechRate
		row.DifficultyScore = clampUnit(score)
		row.DifficultyBand = types.BandForScore(row.DifficultyScore)
		rows = append(rows, row)
	}

	if err := s.rollups.UpsertBatch(dbc, rows); err != nil {
		return 0, err
	}

	// Graph sync is decoration, not bookkeeping; a failure only delays the
	// next difficulty hint.
	if s.wordGraph != nil {
		if gerr := graph.SyncWordDifficulty(ctx, s.wordGraph, s.log, rows); gerr != nil {
			s.log.Warn("word graph difficulty sync failed (continuing)", "error", gerr)
		}
	}
	return len(rows), nil
}
