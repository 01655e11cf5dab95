package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
)

var ReviewAggregateContract = Contract{
	Name:             "Learning.ReviewAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes: "Owns the review write boundary: card scheduling state, review log append, " +
		"assignment counters, and item attempt stats move together or not at all.",
}

// ReviewAggregate owns per-card scheduling invariants.
//
// Write method failures should return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeInvariantViolation, CodeRetryable,
// CodeCapabilityUnavailable, CodeInternal.
type ReviewAggregate interface {
	Aggregate

	// ApplyReview atomically grades one recall attempt: resolves the learner's
	// algorithm, advances the card under version guard, appends the review log,
	// and bumps assignment and item counters. First contact with a word creates
	// the card in the same transaction.
	ApplyReview(ctx context.Context, in ApplyReviewInput) (ApplyReviewResult, error)

	// EnsureCard atomically creates the scheduling card for a learner/word pair
	// if it does not exist yet. Safe to call repeatedly.
	EnsureCard(ctx context.Context, in EnsureCardInput) (EnsureCardResult, error)
}

type ApplyReviewInput struct {
	LearnerID  uuid.UUID
	WordID     uuid.UUID
	ItemID     *uuid.UUID
	Rating     string
	ResponseMS int64
	// AbilityAtReview is the caller's ability estimate at answer time; it is
	// recorded on the review log for item quality recalculation.
	AbilityAtReview float64
	ReviewedAt      time.Time
}

type ApplyReviewResult struct {
	CardID             uuid.UUID
	ReviewLogID        uuid.UUID
	Algorithm          string
	Rating             string
	WasCorrect         bool
	NextIntervalDays   float64
	DueAt              time.Time
	PredictedRetention float64
	Mastery            string
	IsLeech            bool
	// LeechFlagged is set only on the review that tips the card into leech
	// state, so callers can alert without tracking the previous flag.
	LeechFlagged       bool
	ConsecutiveCorrect int
	CardVersion        int
	CardCreated        bool
	ReviewedAt         time.Time
}

type EnsureCardInput struct {
	LearnerID uuid.UUID
	WordID    uuid.UUID
	Now       time.Time
}

type EnsureCardResult struct {
	CardID    uuid.UUID
	Algorithm string
	DueAt     time.Time
	Created   bool
}
