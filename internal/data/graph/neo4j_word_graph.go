package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
	"github.com/wordtrail/wordtrail-engine/internal/platform/neo4jdb"
)

// SyncWordDifficulty pushes recomputed difficulty rollups onto Word nodes in
// the vocabulary graph. The graph is owned by the content pipeline; this only
// decorates existing nodes (MERGE keeps it safe when a word is not there yet).
func SyncWordDifficulty(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, rows []*types.WordDifficultyRollup) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	wordRows := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		if r == nil || r.WordID == uuid.Nil {
			continue
		}
		wordRows = append(wordRows, map[string]any{
			"word_id":          r.WordID.String(),
			"difficulty_score": r.DifficultyScore,
			"difficulty_band":  string(r.DifficultyBand),
			"error_rate":       r.ErrorRate,
			"leech_rate":       r.LeechRate,
			"total_reviews":    int64(r.TotalReviews),
			"learner_count":    int64(r.LearnerCount),
			"computed_at":      r.ComputedAt.UTC().Format(time.RFC3339Nano),
			"synced_at":        now,
		})
	}
	if len(wordRows) == 0 {
		return nil
	}

	session := client.WriteSession(ctx)
	defer session.Close(ctx)

	// Best-effort schema init.
	if res, err := session.Run(ctx, `CREATE CONSTRAINT word_id_unique IF NOT EXISTS FOR (w:Word) REQUIRE w.id IS UNIQUE`, nil); err != nil {
		if log != nil {
			log.Warn("neo4j schema init failed (continuing)", "error", err)
		}
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
UNWIND $rows AS r
MERGE (w:Word {id: r.word_id})
SET w.difficulty_score = r.difficulty_score,
    w.difficulty_band = r.difficulty_band,
    w.error_rate = r.error_rate,
    w.leech_rate = r.leech_rate,
    w.total_reviews = r.total_reviews,
    w.learner_count = r.learner_count,
    w.difficulty_computed_at = r.computed_at,
    w.difficulty_synced_at = r.synced_at
`, map[string]any{"rows": wordRows})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

// RelatedWordIDs walks RELATED_TO edges (seeded by the content pipeline) one
// hop out from the given word. Returns nil when the graph is not configured.
func RelatedWordIDs(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, wordID uuid.UUID, limit int) ([]uuid.UUID, error) {
	if client == nil || client.Driver == nil {
		return nil, nil
	}
	if wordID == uuid.Nil {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 25
	}

	session := client.ReadSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (w:Word {id: $word_id})-[:RELATED_TO]-(o:Word)
RETURN DISTINCT o.id AS id
LIMIT $limit
`, map[string]any{"word_id": wordID.String(), "limit": limit})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, 0, len(records))
		for _, rec := range records {
			raw, ok := rec.Get("id")
			if !ok {
				continue
			}
			s, ok := raw.(string)
			if !ok {
				continue
			}
			id, perr := uuid.Parse(s)
			if perr != nil {
				if log != nil {
					log.Warn("word graph returned non-uuid id (skipping)", "raw", s, "error", perr)
				}
				continue
			}
			ids = append(ids, id)
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	ids, _ := out.([]uuid.UUID)
	return ids, nil
}

// WordDifficultyHint reads the last synced difficulty score for one word.
// Second return reports whether the node carried a score at all.
func WordDifficultyHint(ctx context.Context, client *neo4jdb.Client, wordID uuid.UUID) (float64, bool, error) {
	if client == nil || client.Driver == nil {
		return 0, false, nil
	}
	if wordID == uuid.Nil {
		return 0, false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	session := client.ReadSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (w:Word {id: $word_id})
RETURN w.difficulty_score AS score
LIMIT 1
`, map[string]any{"word_id": wordID.String()})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			// No row means the word is not in the graph yet.
			return nil, nil
		}
		raw, ok := rec.Get("score")
		if !ok || raw == nil {
			return nil, nil
		}
		score, ok := raw.(float64)
		if !ok {
			return nil, nil
		}
		return score, nil
	})
	if err != nil {
		return 0, false, err
	}
	score, ok := out.(float64)
	return score, ok, nil
}
