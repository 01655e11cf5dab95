package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/wordtrail/wordtrail-engine/internal/platform/envutil"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
)

// SQLiteService is the local-development store. Entity ids are assigned
// app-side (repos fill uuids) so the same models migrate cleanly here and
// on Postgres; the partial indexes from EnsureEngineIndexes are skipped.
type SQLiteService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSQLiteService(logg *logger.Logger) (*SQLiteService, error) {
	serviceLog := logg.With("service", "SQLiteService")

	path := envutil.String("SQLITE_PATH", "wordtrail.db")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite at %s: %w", path, err)
	}

	return &SQLiteService{db: db, log: serviceLog}, nil
}

func (s *SQLiteService) DB() *gorm.DB { return s.db }

func (s *SQLiteService) AutoMigrateAll() error {
	s.log.Info("Auto migrating sqlite tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}
