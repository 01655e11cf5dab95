package graph

import (
	"context"

	"github.com/google/uuid"

	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
	"github.com/wordtrail/wordtrail-engine/internal/platform/neo4jdb"
	"github.com/wordtrail/wordtrail-engine/internal/platform/vocabstore"
)

const relatedWordLimit = 25

// GraphVocabStore backs vocabstore.Client with the neo4j word graph. When
// the graph holds no difficulty for a word it falls back to the neutral hint,
// so callers never need to special-case a half-synced graph.
type GraphVocabStore struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewVocabStore(client *neo4jdb.Client, log *logger.Logger) *GraphVocabStore {
	if log != nil {
		log = log.With("service", "GraphVocabStore")
	}
	return &GraphVocabStore{client: client, log: log}
}

func (s *GraphVocabStore) WordProfile(ctx context.Context, wordID uuid.UUID) (vocabstore.WordProfile, error) {
	out := vocabstore.WordProfile{WordID: wordID, DifficultyHint: vocabstore.DefaultDifficultyHint}
	if s == nil || s.client == nil {
		return out, nil
	}

	score, ok, err := WordDifficultyHint(ctx, s.client, wordID)
	if err != nil {
		return out, err
	}
	if ok {
		out.DifficultyHint = clamp01(score)
	}

	related, err := RelatedWordIDs(ctx, s.client, s.log, wordID, relatedWordLimit)
	if err != nil {
		return out, err
	}
	out.RelatedWordIDs = related
	return out, nil
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
