package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
)

var AssignmentAggregateContract = Contract{
	Name:             "Learning.AssignmentAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes: "Owns the learner-to-algorithm binding. Assignment is write-once outside " +
		"migration; migration flips the arm and converts every card in one transaction.",
}

// AssignmentAggregate owns algorithm-arm invariants for a learner.
//
// Write method failures should return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeInvariantViolation, CodeRetryable,
// CodePreconditionFailed, CodeCapabilityUnavailable, CodeInternal.
type AssignmentAggregate interface {
	Aggregate

	// Assign atomically binds a learner to an algorithm arm. Repeated calls for
	// the same learner return the existing binding unchanged.
	Assign(ctx context.Context, in AssignLearnerInput) (AssignLearnerResult, error)

	// Migrate atomically moves a learner between algorithm arms, converting all
	// of the learner's cards to the target algorithm's state model. Cards whose
	// conversion fails are left on their current state and reported, never
	// aborting the migration.
	Migrate(ctx context.Context, in MigrateLearnerInput) (MigrateLearnerResult, error)
}

type AssignLearnerInput struct {
	LearnerID uuid.UUID
	// Algorithm pins the arm instead of randomizing; empty means draw one.
	Algorithm  string
	AssignedAt time.Time
}

type AssignLearnerResult struct {
	AssignmentID uuid.UUID
	LearnerID    uuid.UUID
	Algorithm    string
	AssignedAt   time.Time
	Created      bool
}

type MigrateLearnerInput struct {
	LearnerID uuid.UUID
	Target    string
	// Force skips the review-count eligibility gate.
	Force      bool
	MigratedAt time.Time
}

type MigrateLearnerResult struct {
	AssignmentID   uuid.UUID
	LearnerID      uuid.UUID
	FromAlgorithm  string
	ToAlgorithm    string
	CardsConverted int
	CardsSkipped   int
	SkippedWordIDs []uuid.UUID
	MigratedAt     time.Time
}
