package srs

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	domainagg "github.com/wordtrail/wordtrail-engine/internal/domain/aggregates"
)

// Rating is the learner's graded outcome for one review.
type Rating string

const (
	RatingAgain   Rating = "again"
	RatingHard    Rating = "hard"
	RatingGood    Rating = "good"
	RatingPerfect Rating = "perfect"
)

func (r Rating) Valid() bool {
	switch r {
	case RatingAgain, RatingHard, RatingGood, RatingPerfect:
		return true
	default:
		return false
	}
}

// Correct reports whether the rating counts as a successful recall.
func (r Rating) Correct() bool {
	return r.Valid() && r != RatingAgain
}

func (r Rating) String() string { return string(r) }

func ParseRating(s string) (Rating, error) {
	r := Rating(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", domainagg.NewError(domainagg.CodeValidation, "srs.rating.parse",
			fmt.Sprintf("unknown rating %q", s), nil)
	}
	return r, nil
}

// ReviewResult is the outcome of applying one rated review to a card. State
// is a fresh copy; the input card is never mutated, so a caller that loses a
// write race can safely recompute from a re-read.
type ReviewResult struct {
	State              *types.CardState
	NextIntervalDays   float64
	WasCorrect         bool
	PredictedRetention float64
	Algorithm          types.Algorithm
}

// Scheduler is the contract both algorithms implement. Implementations are
// pure in-memory transforms; persistence belongs to the data aggregates.
type Scheduler interface {
	Algorithm() types.Algorithm
	InitializeCard(learnerID, wordID uuid.UUID, now time.Time) *types.CardState
	ProcessReview(card *types.CardState, rating Rating, responseMS int64, now time.Time) (*ReviewResult, error)
}

// CardAdopter is implemented by schedulers that can take over a card written
// by a different algorithm, deriving their own parameters from its history.
type CardAdopter interface {
	AdoptLegacyCard(card *types.CardState, now time.Time) (*types.CardState, error)
}

// Registry holds the schedulers that were actually constructed; an algorithm
// missing here was unavailable at wiring time, not merely unknown.
type Registry struct {
	byAlgorithm map[types.Algorithm]Scheduler
}

func NewRegistry(scheds ...Scheduler) *Registry {
	r := &Registry{byAlgorithm: map[types.Algorithm]Scheduler{}}
	for _, s := range scheds {
		if s == nil {
			continue
		}
		r.byAlgorithm[s.Algorithm()] = s
	}
	return r
}

func (r *Registry) ForAlgorithm(alg types.Algorithm) (Scheduler, error) {
	const op = "srs.registry.for_algorithm"
	if !alg.Valid() {
		return nil, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("unknown algorithm %q", alg), nil)
	}
	s, ok := r.byAlgorithm[alg]
	if !ok {
		return nil, domainagg.NewError(domainagg.CodeCapabilityUnavailable, op,
			fmt.Sprintf("scheduler %q not available", alg), nil)
	}
	return s, nil
}

// Available lists registered algorithms in stable order.
func (r *Registry) Available() []types.Algorithm {
	out := make([]types.Algorithm, 0, len(r.byAlgorithm))
	for _, alg := range []types.Algorithm{types.AlgorithmSM2, types.AlgorithmFSRS} {
		if _, ok := r.byAlgorithm[alg]; ok {
			out = append(out, alg)
		}
	}
	return out
}

func (r *Registry) Has(alg types.Algorithm) bool {
	_, ok := r.byAlgorithm[alg]
	return ok
}

func elapsedDays(card *types.CardState, now time.Time) float64 {
	if card == nil || card.LastReviewedAt == nil {
		return 0
	}
	d := now.Sub(*card.LastReviewedAt).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

// foldResponseTime updates the rolling average after the review counters have
// been bumped. A non-positive sample means the caller had no timing.
func foldResponseTime(next *types.CardState, responseMS int64) {
	if responseMS <= 0 || next.TotalReviews <= 0 {
		return
	}
	n := float64(next.TotalReviews)
	next.AvgResponseMS = (next.AvgResponseMS*(n-1) + float64(responseMS)) / n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
