package app

import (
	"github.com/wordtrail/wordtrail-engine/internal/data/graph"
	"github.com/wordtrail/wordtrail-engine/internal/events"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
	"github.com/wordtrail/wordtrail-engine/internal/platform/neo4jdb"
	"github.com/wordtrail/wordtrail-engine/internal/platform/vocabstore"
)

type Clients struct {
	Bus       events.Bus
	WordGraph *neo4jdb.Client
	Vocab     vocabstore.Client
}

// wireClients builds the optional outward connections. Both redis and neo4j
// are env-gated; a missing address degrades to in-process fallbacks rather
// than failing startup.
func wireClients(log *logger.Logger) Clients {
	log.Info("Wiring clients...")

	bus, err := events.NewFromEnv(log)
	if err != nil {
		log.Warn("event bus init failed; engine events disabled", "error", err)
		bus = events.NewNoop()
	}

	wordGraph, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Warn("neo4j init failed; word graph disabled", "error", err)
		wordGraph = nil
	}

	var vocab vocabstore.Client
	if wordGraph != nil {
		vocab = graph.NewVocabStore(wordGraph, log)
	} else {
		vocab = vocabstore.NewStatic(nil)
	}

	return Clients{Bus: bus, WordGraph: wordGraph, Vocab: vocab}
}
