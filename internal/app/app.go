package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/wordtrail/wordtrail-engine/internal/data/db"
	"github.com/wordtrail/wordtrail-engine/internal/observability"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
)

// App is the shared bootstrap for every engine binary: logger, store,
// clients, repos, and services, wired once.
type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services

	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig(log)

	// Metrics first so aggregate hooks bind the live registry.
	observability.Init(log)
	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "wordtrail-engine",
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	store, err := db.NewFromEnv(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := store.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("store automigrate: %w", err)
	}
	theDB := store.DB()

	clients := wireClients(log)
	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, reposet, clients)
	if err != nil {
		log.Sync()
		return nil, err
	}

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		otelShutdown: otelShutdown,
	}, nil
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if a.Clients.WordGraph != nil {
		if err := a.Clients.WordGraph.Close(ctx); err != nil {
			a.Log.Warn("neo4j close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
