package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event names carried on the bus. Downstream surfaces (XP, streaks, coach
// nudges) subscribe to these; the engine only ever publishes.
const (
	EventReviewCompleted    = "review.completed"
	EventMigrationCompleted = "migration.completed"
	EventLeechFlagged       = "leech.flagged"
)

type Event struct {
	Name       string         `json:"name"`
	LearnerID  uuid.UUID      `json:"learner_id"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Bus interface {
	Publish(ctx context.Context, evt Event) error
	StartForwarder(ctx context.Context, onEvent func(evt Event)) error
	Close() error
}

// NewEvent stamps the event with the current time.
func NewEvent(name string, learnerID uuid.UUID, data map[string]any) Event {
	return Event{
		Name:       name,
		LearnerID:  learnerID,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}
