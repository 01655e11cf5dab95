package srs

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	gofsrs "github.com/open-spaced-repetition/go-fsrs"
	"gorm.io/datatypes"

	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	domainagg "github.com/wordtrail/wordtrail-engine/internal/domain/aggregates"
	"github.com/wordtrail/wordtrail-engine/internal/platform/envutil"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
)

// FSRSEnvEnabled reports the deploy-time capability switch for the modern
// scheduler.
func FSRSEnvEnabled() bool {
	return envutil.Bool("FSRS_ENABLED", true)
}

// FSRSScheduler wraps the go-fsrs stability/difficulty model behind the
// shared contract. The full library card travels in the algo_state blob;
// stability, difficulty and retrievability are mirrored into columns for
// rollups. Sub-day learning steps are floored to one day: the engine
// schedules at day granularity.
type FSRSScheduler struct {
	params     Params
	fsrsParams gofsrs.Parameters
	log        *logger.Logger
}

// NewFSRSScheduler fails at construction when the capability is switched
// off, so callers branch once at wiring time instead of per review.
func NewFSRSScheduler(params Params, baseLog *logger.Logger) (*FSRSScheduler, error) {
	const op = "srs.fsrs.new"
	if !FSRSEnvEnabled() {
		return nil, domainagg.NewError(domainagg.CodeCapabilityUnavailable, op,
			"fsrs scheduler disabled (FSRS_ENABLED=false)", nil)
	}
	fp := gofsrs.DefaultParam()
	if params.FSRS.RequestRetention > 0 {
		fp.RequestRetention = params.FSRS.RequestRetention
	}
	if params.FSRS.MaximumIntervalDays > 0 {
		fp.MaximumInterval = params.FSRS.MaximumIntervalDays
	}
	return &FSRSScheduler{
		params:     params,
		fsrsParams: fp,
		log:        baseLog.With("scheduler", "fsrs"),
	}, nil
}

func (s *FSRSScheduler) Algorithm() types.Algorithm { return types.AlgorithmFSRS }

func (s *FSRSScheduler) InitializeCard(learnerID, wordID uuid.UUID, now time.Time) *types.CardState {
	now = now.UTC()
	blob := encodeFSRSCard(gofsrs.Card{Due: now, State: gofsrs.New})
	return &types.CardState{
		LearnerID:    learnerID,
		WordID:       wordID,
		Algorithm:    types.AlgorithmFSRS,
		IntervalDays: 0,
		DueAt:        &now,
		MasteryLevel: types.MasteryLearning,
		AlgoState:    blob,
		Version:      1,
	}
}

func (s *FSRSScheduler) ProcessReview(card *types.CardState, rating Rating, responseMS int64, now time.Time) (*ReviewResult, error) {
	const op = "srs.fsrs.process_review"
	if card == nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "card is required", nil)
	}
	if card.Algorithm != types.AlgorithmFSRS {
		return nil, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("card belongs to %q, not fsrs", card.Algorithm), nil)
	}
	if !rating.Valid() {
		return nil, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("unknown rating %q", rating), nil)
	}

	now = now.UTC()
	fc, ok := decodeFSRSCard(card.AlgoState)
	if !ok {
		s.log.Warn("fsrs: algo_state blob unreadable; rebuilding from columns",
			"learner_id", card.LearnerID, "word_id", card.WordID)
		fc = rebuildFSRSCard(card, now)
	}

	predicted := fsrsRetention(fc.Stability, elapsedDays(card, now))

	chosen := s.fsrsParams.Repeat(fc, now)[fsrsRatingFor(rating)].Card

	next := *card
	correct := rating.Correct()

	next.Stability = chosen.Stability
	next.Difficulty = chosen.Difficulty
	next.IntervalDays = math.Max(1, float64(chosen.ScheduledDays))
	next.AlgoState = encodeFSRSCard(chosen)

	if correct {
		next.ConsecutiveCorrect = card.ConsecutiveCorrect + 1
		next.ConsecutiveFailures = 0
	} else {
		next.ConsecutiveCorrect = 0
		next.ConsecutiveFailures = card.ConsecutiveFailures + 1
		next.RecoveryStreak = 0
		if next.Difficulty >= s.params.FSRS.LeechDifficultyAbove &&
			next.ConsecutiveFailures >= s.params.SM2.LeechFailureThreshold {
			next.IsLeech = true
		}
	}
	if card.IsLeech && correct {
		next.RecoveryStreak = card.RecoveryStreak + 1
		if next.RecoveryStreak >= s.params.SM2.LeechRecoveryRun {
			next.IsLeech = false
			next.RecoveryStreak = 0
		}
	}

	next.TotalReviews = card.TotalReviews + 1
	if correct {
		next.TotalCorrect = card.TotalCorrect + 1
	}
	foldResponseTime(&next, responseMS)
	next.LastReviewedAt = &now
	due := now.Add(time.Duration(next.IntervalDays * 24 * float64(time.Hour)))
	next.DueAt = &due
	next.Retrievability = predicted
	next.MasteryLevel = MasteryFor(next.ConsecutiveCorrect, next.IntervalDays, s.params.Mastery)

	return &ReviewResult{
		State:              &next,
		NextIntervalDays:   next.IntervalDays,
		WasCorrect:         correct,
		PredictedRetention: predicted,
		Algorithm:          types.AlgorithmFSRS,
	}, nil
}

// AdoptLegacyCard converts an sm2 card into fsrs parameters: stability
// approximates the proven interval scaled by 0.9, and ease in [min,max]
// maps inverse-linearly onto difficulty in [10,1] (low ease = hard word).
// The mapping is a heuristic: it seeds the modern model, which then
// recalibrates through normal reviews.
func (s *FSRSScheduler) AdoptLegacyCard(card *types.CardState, now time.Time) (*types.CardState, error) {
	const op = "srs.fsrs.adopt_legacy_card"
	if card == nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "card is required", nil)
	}
	if card.Algorithm != types.AlgorithmSM2 {
		return nil, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("card belongs to %q, not sm2", card.Algorithm), nil)
	}

	now = now.UTC()
	p := s.params.SM2

	next := *card
	next.Algorithm = types.AlgorithmFSRS

	if card.TotalReviews == 0 || card.IntervalDays <= 0 {
		next.Stability = 0
		next.Difficulty = 0
		next.Retrievability = 0
		next.AlgoState = encodeFSRSCard(gofsrs.Card{Due: now, State: gofsrs.New})
		return &next, nil
	}

	next.Stability = math.Max(0.1, card.IntervalDays*0.9)
	easeSpan := p.MaxEase - p.MinEase
	frac := clamp01((card.EaseFactor - p.MinEase) / easeSpan)
	next.Difficulty = clampRange(10-9*frac, 1, 10)
	next.Retrievability = fsrsRetention(next.Stability, elapsedDays(card, now))

	fc := gofsrs.Card{
		Stability:     next.Stability,
		Difficulty:    next.Difficulty,
		ScheduledDays: uint64(math.Round(card.IntervalDays)),
		Reps:          uint64(card.TotalReviews),
		Lapses:        uint64(card.TotalReviews - card.TotalCorrect),
		State:         gofsrs.Review,
	}
	if card.DueAt != nil {
		fc.Due = card.DueAt.UTC()
	} else {
		fc.Due = now.Add(time.Duration(card.IntervalDays * 24 * float64(time.Hour)))
	}
	if card.LastReviewedAt != nil {
		fc.LastReview = card.LastReviewedAt.UTC()
	}
	next.AlgoState = encodeFSRSCard(fc)
	return &next, nil
}

func fsrsRatingFor(r Rating) gofsrs.Rating {
	switch r {
	case RatingAgain:
		return gofsrs.Again
	case RatingHard:
		return gofsrs.Hard
	case RatingGood:
		return gofsrs.Good
	default:
		return gofsrs.Easy
	}
}

// fsrsRetention is the library's forgetting curve R = 1/(1 + t/(9S)). Zero
// stability means no memory trace yet.
func fsrsRetention(stability, elapsed float64) float64 {
	if stability <= 0 {
		return 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return clamp01(1.0 / (1.0 + elapsed/(9.0*stability)))
}

type fsrsCardBlob struct {
	Due           time.Time `json:"due"`
	Stability     float64   `json:"stability"`
	Difficulty    float64   `json:"difficulty"`
	ElapsedDays   uint64    `json:"elapsed_days"`
	ScheduledDays uint64    `json:"scheduled_days"`
	Reps          uint64    `json:"reps"`
	Lapses        uint64    `json:"lapses"`
	State         int8      `json:"state"`
	LastReview    time.Time `json:"last_review"`
}

func encodeFSRSCard(fc gofsrs.Card) datatypes.JSON {
	blob := fsrsCardBlob{
		Due:           fc.Due,
		Stability:     fc.Stability,
		Difficulty:    fc.Difficulty,
		ElapsedDays:   fc.ElapsedDays,
		ScheduledDays: fc.ScheduledDays,
		Reps:          fc.Reps,
		Lapses:        fc.Lapses,
		State:         int8(fc.State),
		LastReview:    fc.LastReview,
	}
	raw, err := json.Marshal(blob)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(raw)
}

func decodeFSRSCard(raw datatypes.JSON) (gofsrs.Card, bool) {
	if len(raw) == 0 {
		return gofsrs.Card{}, false
	}
	var blob fsrsCardBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return gofsrs.Card{}, false
	}
	if blob.Due.IsZero() && blob.Reps == 0 && blob.Stability == 0 {
		return gofsrs.Card{}, false
	}
	return gofsrs.Card{
		Due:           blob.Due,
		Stability:     blob.Stability,
		Difficulty:    blob.Difficulty,
		ElapsedDays:   blob.ElapsedDays,
		ScheduledDays: blob.ScheduledDays,
		Reps:          blob.Reps,
		Lapses:        blob.Lapses,
		State:         gofsrs.State(blob.State),
		LastReview:    blob.LastReview,
	}, true
}

// rebuildFSRSCard recovers a usable library card from the mirrored columns
// when the blob is missing or corrupt.
func rebuildFSRSCard(card *types.CardState, now time.Time) gofsrs.Card {
	fc := gofsrs.Card{
		Stability:  card.Stability,
		Difficulty: card.Difficulty,
		Reps:       uint64(card.TotalReviews),
		State:      gofsrs.New,
	}
	if card.TotalReviews > 0 {
		fc.State = gofsrs.Review
		fc.ScheduledDays = uint64(math.Round(math.Max(1, card.IntervalDays)))
		if lapses := card.TotalReviews - card.TotalCorrect; lapses > 0 {
			fc.Lapses = uint64(lapses)
		}
	}
	if card.DueAt != nil {
		fc.Due = card.DueAt.UTC()
	} else {
		fc.Due = now
	}
	if card.LastReviewedAt != nil {
		fc.LastReview = card.LastReviewedAt.UTC()
	}
	return fc
}
