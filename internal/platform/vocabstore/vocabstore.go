package vocabstore

import (
	"context"

	"github.com/google/uuid"
)

// DefaultDifficultyHint is the neutral prior used when nothing is known
// about a word. Hints live on a 0..1 scale (0 trivial, 1 brutal).
const DefaultDifficultyHint = 0.5

// WordProfile is the engine-facing slice of the vocabulary catalog: a prior
// difficulty estimate plus the word's neighborhood for cold-start seeding.
type WordProfile struct {
	WordID         uuid.UUID
	DifficultyHint float64
	RelatedWordIDs []uuid.UUID
}

// Client resolves word profiles. The vocabulary catalog itself is owned by
// the content pipeline; the engine only reads from it.
type Client interface {
	WordProfile(ctx context.Context, wordID uuid.UUID) (WordProfile, error)
}

// Static serves profiles from an in-memory map. It is the default store when
// no word graph is configured, and the seed store in tests.
type Static struct {
	profiles map[uuid.UUID]WordProfile
}

// NewStatic copies the given profiles. A nil map is fine; every lookup then
// returns the neutral profile.
func NewStatic(profiles map[uuid.UUID]WordProfile) *Static {
	cp := make(map[uuid.UUID]WordProfile, len(profiles))
	for id, p := range profiles {
		p.WordID = id
		cp[id] = p
	}
	return &Static{profiles: cp}
}

func (s *Static) WordProfile(_ context.Context, wordID uuid.UUID) (WordProfile, error) {
	if s != nil {
		if p, ok := s.profiles[wordID]; ok {
			return p, nil
		}
	}
	return WordProfile{WordID: wordID, DifficultyHint: DefaultDifficultyHint}, nil
}
