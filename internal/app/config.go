package app

import (
	"github.com/wordtrail/wordtrail-engine/internal/platform/envutil"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
)

type Config struct {
	Environment string
	Version     string

	// MetricsAddr is where the jobrunner exposes /metrics. The CLI never
	// binds it.
	MetricsAddr string
	RedisAddr   string

	// Local wall-clock times for the daily maintenance jobs, "HH:MM".
	QualityRecalcAt string
	SnapshotAt      string
	RollupRefreshAt string
}

func LoadConfig(log *logger.Logger) Config {
	log.Info("Loading configuration...")
	return Config{
		Environment:     envutil.String("APP_ENV", "development"),
		Version:         envutil.String("APP_VERSION", "dev"),
		MetricsAddr:     envutil.String("METRICS_ADDR", ":9100"),
		RedisAddr:       envutil.String("REDIS_ADDR", ""),
		QualityRecalcAt: envutil.String("JOB_QUALITY_RECALC_AT", "03:30"),
		SnapshotAt:      envutil.String("JOB_SNAPSHOT_AT", "00:20"),
		RollupRefreshAt: envutil.String("JOB_ROLLUP_REFRESH_AT", "04:10"),
	}
}
