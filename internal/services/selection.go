package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/wordtrail/wordtrail-engine/internal/data/repos"
	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	domainagg "github.com/wordtrail/wordtrail-engine/internal/domain/aggregates"
	"github.com/wordtrail/wordtrail-engine/internal/events"
	"github.com/wordtrail/wordtrail-engine/internal/observability"
	"github.com/wordtrail/wordtrail-engine/internal/platform/dbctx"
	"github.com/wordtrail/wordtrail-engine/internal/platform/envutil"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
	"github.com/wordtrail/wordtrail-engine/internal/platform/vocabstore"
	"github.com/wordtrail/wordtrail-engine/internal/srs"
)

// Ability estimates live on the IRT theta scale.
const (
	abilityThetaMin = -3.0
	abilityThetaMax = 3.0

	// Confidence saturates toward the cap as samples accumulate:
	// cap * n / (n + half). Never reaches 1; an estimate is always revisable.
	abilityConfidenceCap  = 0.95
	abilityConfidenceHalf = 5.0

	// How much review history feeds one estimate, and how fast older
	// reviews fade inside that window.
	abilityHistoryWindow = 20
	abilityRecencyDecay  = 0.9

	// Blend weights when both history and scheduler state are present.
	abilityHistoryWeight = 0.7
	abilityStateWeight   = 0.3

	// Stability at or beyond this many days reads as full strength when
	// normalizing fsrs state into the blend.
	abilityStabilityCeiling = 90.0
)

// Ability estimate sources, in rough order of trustworthiness.
const (
	AbilitySourceDefault   = "default"
	AbilitySourceColdStart = "cold_start"
	AbilitySourceState     = "scheduler_state"
	AbilitySourceHistory   = "history"
)

// Selection reasons returned by SelectItem.
const (
	SelectReasonDifficultyMatch = "difficulty_match"
	SelectReasonColdPool        = "cold_pool"
)

// DefaultFastAnswerMS is the global fast/slow cut for items that have no
// response-time history of their own. Override with FAST_ANSWER_MS.
const DefaultFastAnswerMS = 4000

type AbilityEstimate struct {
	LearnerID  uuid.UUID `json:"learner_id"`
	WordID     uuid.UUID `json:"word_id"`
	Value      float64   `json:"value"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	DataPoints int       `json:"data_points"`
}

type ItemSelection struct {
	Item           *types.TestItem `json:"item"`
	Ability        float64         `json:"ability"`
	ItemDifficulty float64         `json:"item_difficulty"`
	Reason         string          `json:"reason"`
}

type AnswerContext struct {
	SessionID string `json:"session_id,omitempty"`
	Surface   string `json:"surface,omitempty"`
}

type AnswerOutcome struct {
	Correct        bool      `json:"correct"`
	Rating         string    `json:"rating"`
	AbilityBefore  float64   `json:"ability_before"`
	AbilityAfter   float64   `json:"ability_after"`
	ItemDifficulty float64   `json:"item_difficulty"`
	Feedback       string    `json:"feedback,omitempty"`
	Mastery        string    `json:"mastery"`
	IsLeech        bool      `json:"is_leech"`
	IntervalDays   float64   `json:"interval_days"`
	DueAt          time.Time `json:"due_at"`
}

type SelectionService interface {
	// EstimateAbility recomputes the learner's per-word ability from review
	// history and scheduler state. Empty history is not an error; the
	// estimate falls back to a documented default (optionally seeded from
	// the word graph's difficulty hint).
	EstimateAbility(ctx context.Context, learnerID, wordID uuid.UUID) (*AbilityEstimate, error)

	// SelectItem picks the servable item whose stored difficulty sits
	// closest to the learner's estimated ability. Selection is
	// deterministic for a fixed pool and history.
	SelectItem(ctx context.Context, learnerID, wordID uuid.UUID) (*ItemSelection, error)

	// ProcessAnswer grades one answer, applies the scheduled review, and
	// moves the learner's ability estimate.
	ProcessAnswer(ctx context.Context, learnerID, itemID uuid.UUID, selectedIndex int, responseMS int64, answerCtx AnswerContext) (*AnswerOutcome, error)
}

type selectionService struct {
	log     *logger.Logger
	params  srs.Params
	items   repos.TestItemRepo
	cards   repos.CardStateRepo
	logs    repos.ReviewLogRepo
	ability repos.AbilityStateRepo
	vocab   vocabstore.Client
	review  domainagg.ReviewAggregate
	bus     events.Bus

	fastAnswerMS float64
}

func NewSelectionService(
	baseLog *logger.Logger,
	params srs.Params,
	items repos.TestItemRepo,
	cards repos.CardStateRepo,
	logs repos.ReviewLogRepo,
	ability repos.AbilityStateRepo,
	vocab vocabstore.Client,
	review domainagg.ReviewAggregate,
	bus events.Bus,
) SelectionService {
	if vocab == nil {
		vocab = vocabstore.NewStatic(nil)
	}
	if bus == nil {
		bus = events.NewNoop()
	}
	return &selectionService{
		log:          baseLog.With("service", "SelectionService"),
		params:       params,
		items:        items,
		cards:        cards,
		logs:         logs,
		ability:      ability,
		vocab:        vocab,
		review:       review,
		bus:          bus,
		fastAnswerMS: float64(envutil.Int("FAST_ANSWER_MS", DefaultFastAnswerMS)),
	}
}

func (s *selectionService) EstimateAbility(ctx context.Context, learnerID, wordID uuid.UUID) (*AbilityEstimate, error) {
	if s == nil || s.logs == nil || s.cards == nil {
		return nil, fmt.Errorf("selection service not configured")
	}
	const op = "Learning.Selection.EstimateAbility"
	if learnerID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing learner_id", nil)
	}
	if wordID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing word_id", nil)
	}

	dbc := dbctx.Context{Ctx: ctx}
	history, err := s.logs.ListByLearnerWord(dbc, learnerID, wordID, abilityHistoryWindow)
	if err != nil {
		return nil, err
	}
	card, err := s.cards.GetByLearnerWord(dbc, learnerID, wordID)
	if err != nil {
		return nil, err
	}

	est := &AbilityEstimate{LearnerID: learnerID, WordID: wordID}

	if len(history) == 0 && card == nil {
		est.Source = AbilitySourceDefault
		profile, verr := s.vocab.WordProfile(ctx, wordID)
		if verr != nil {
			s.log.Warn("word profile lookup failed (using neutral default)",
				"word_id", wordID.String(), "error", verr)
			return est, nil
		}
		if profile.DifficultyHint != vocabstore.DefaultDifficultyHint {
			// A harder word predicts a rougher first encounter.
			est.Value = (vocabstore.DefaultDifficultyHint - profile.DifficultyHint) * 2
			est.Source = AbilitySourceColdStart
		}
		return est, nil
	}

	historyScore, hasHistory := abilityHistoryScore(history)
	stateScore, hasState := s.abilityStateScore(card)

	var blended float64
	switch {
	case hasHistory && hasState:
		blended = abilityHistoryWeight*historyScore + abilityStateWeight*stateScore
		est.Source = AbilitySourceHistory
	case hasHistory:
		blended = historyScore
		est.Source = AbilitySourceHistory
	default:
		blended = stateScore
		est.Source = AbilitySourceState
	}

	est.DataPoints = len(history)
	if card != nil && card.TotalReviews > est.DataPoints {
		est.DataPoints = card.TotalReviews
	}
	est.Value = thetaFromScore(blended)
	est.Confidence = abilityConfidence(est.DataPoints)
	return est, nil
}

func (s *selectionService) SelectItem(ctx context.Context, learnerID, wordID uuid.UUID) (*ItemSelection, error) {
	if s == nil || s.items == nil {
		return nil, fmt.Errorf("selection service not configured")
	}
	const op = "Learning.Selection.SelectItem"
	if learnerID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing learner_id", nil)
	}
	if wordID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing word_id", nil)
	}

	est, err := s.EstimateAbility(ctx, learnerID, wordID)
	if err != nil {
		return nil, err
	}

	pool, err := s.items.ListActiveByWord(dbctx.Context{Ctx: ctx}, wordID)
	if err != nil {
		return nil, err
	}

	// The pool arrives fewest-attempts-first with id tie-break, so keeping
	// the first best candidate below stays deterministic.
	servable := make([]*types.TestItem, 0, len(pool))
	for _, it := range pool {
		if it == nil {
			continue
		}
		if _, derr := it.DecodeOptions(); derr != nil {
			s.log.Warn("skipping malformed test item",
				"item_id", it.ID.String(), "word_id", wordID.String(), "error", derr)
			continue
		}
		servable = append(servable, it)
	}
	if len(servable) == 0 {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op,
			fmt.Sprintf("no servable items for word %s", wordID.String()), nil)
	}

	var calibrated []*types.TestItem
	for _, it := range servable {
		if it.QualityTier != types.TierUnrated {
			calibrated = append(calibrated, it)
		}
	}

	if len(calibrated) == 0 {
		chosen := servable[0]
		observability.Current().ObserveSelection(est.Source, SelectReasonColdPool, est.Value)
		return &ItemSelection{
			Item:           chosen,
			Ability:        est.Value,
			ItemDifficulty: chosen.Difficulty,
			Reason:         SelectReasonColdPool,
		}, nil
	}

	chosen := calibrated[0]
	bestGap := math.Abs(chosen.Difficulty - est.Value)
	for _, it := range calibrated[1:] {
		if gap := math.Abs(it.Difficulty - est.Value); gap < bestGap {
			chosen, bestGap = it, gap
		}
	}
	observability.Current().ObserveSelection(est.Source, SelectReasonDifficultyMatch, est.Value)
	return &ItemSelection{
		Item:           chosen,
		Ability:        est.Value,
		ItemDifficulty: chosen.Difficulty,
		Reason:         SelectReasonDifficultyMatch,
	}, nil
}

// abilityHistoryScore folds recent reviews into a 0..1 success score.
// Newer reviews count more; the rating grade refines plain correctness.
func abilityHistoryScore(history []*types.ReviewLog) (float64, bool) {
	if len(history) == 0 {
		return 0, false
	}
	var num, den float64
	weight := 1.0
	for _, row := range history {
		if row == nil {
			continue
		}
		num += weight * ratingGrade(row.Rating, row.WasCorrect)
		den += weight
		weight *= abilityRecencyDecay
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}

// abilityStateScore normalizes the card's scheduler parameters into 0..1.
func (s *selectionService) abilityStateScore(card *types.CardState) (float64, bool) {
	if card == nil {
		return 0, false
	}
	switch card.Algorithm {
	case types.AlgorithmSM2:
		span := s.params.SM2.MaxEase - s.params.SM2.MinEase
		if span <= 0 {
			return 0, false
		}
		return clampUnit((card.EaseFactor - s.params.SM2.MinEase) / span), true
	case types.AlgorithmFSRS:
		if card.Stability <= 0 {
			return 0, true
		}
		return clampUnit(card.Stability / abilityStabilityCeiling), true
	default:
		return 0, false
	}
}

func ratingGrade(rating string, wasCorrect bool) float64 {
	switch srs.Rating(rating) {
	case srs.RatingPerfect:
		return 1.0
	case srs.RatingGood:
		return 0.75
	case srs.RatingHard:
		return 0.4
	case srs.RatingAgain:
		return 0.0
	}
	if wasCorrect {
		return 0.75
	}
	return 0.0
}

func thetaFromScore(score float64) float64 {
	theta := (score - 0.5) * (abilityThetaMax - abilityThetaMin)
	return clampTheta(theta)
}

func abilityConfidence(dataPoints int) float64 {
	if dataPoints <= 0 {
		return 0
	}
	n := float64(dataPoints)
	return abilityConfidenceCap * n / (n + abilityConfidenceHalf)
}

func clampTheta(v float64) float64 {
	if v < abilityThetaMin {
		return abilityThetaMin
	}
	if v > abilityThetaMax {
		return abilityThetaMax
	}
	return v
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
