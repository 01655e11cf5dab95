package db

import (
	"strings"

	"gorm.io/gorm"

	"github.com/wordtrail/wordtrail-engine/internal/platform/envutil"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
)

// Service is what cmd wiring needs from either store flavor.
type Service interface {
	DB() *gorm.DB
	AutoMigrateAll() error
}

// NewFromEnv picks the store by DB_DRIVER (postgres default, sqlite for
// local development).
func NewFromEnv(logg *logger.Logger) (Service, error) {
	switch strings.ToLower(envutil.String("DB_DRIVER", "postgres")) {
	case "sqlite":
		return NewSQLiteService(logg)
	default:
		return NewPostgresService(logg)
	}
}
