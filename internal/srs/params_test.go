package srs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsAreValid(t *testing.T) {
	p := Defaults()
	if err := validateParams(p); err != nil {
		t.Fatalf("validateParams(Defaults()): %v", err)
	}
}

func TestEmbeddedTuningMatchesDefaults(t *testing.T) {
	loaded, err := loadParams()
	if err != nil {
		t.Fatalf("loadParams: %v", err)
	}
	def := Defaults()
	if loaded.SM2 != def.SM2 {
		t.Fatalf("sm2 tuning drifted from defaults: embedded=%+v defaults=%+v", loaded.SM2, def.SM2)
	}
	if loaded.FSRS != def.FSRS {
		t.Fatalf("fsrs tuning drifted from defaults: embedded=%+v defaults=%+v", loaded.FSRS, def.FSRS)
	}
	if loaded.Mastery != def.Mastery {
		t.Fatalf("mastery tuning drifted from defaults: embedded=%+v defaults=%+v", loaded.Mastery, def.Mastery)
	}
}

func TestLoadParamsRejectsBadOverride(t *testing.T) {
	dir := t.TempDir()

	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return path
	}

	t.Run("wrong engine kind", func(t *testing.T) {
		t.Setenv(tuningEnv, write("wrong.yaml", "engine: other\nversion: 1\n"))
		if _, err := loadParams(); err == nil {
			t.Fatalf("expected error for wrong engine kind")
		}
	})

	t.Run("ease floor above start", func(t *testing.T) {
		t.Setenv(tuningEnv, write("ease.yaml", `engine: srs_tuning
version: 1
sm2:
  initial_ease: 1.2
  min_ease: 1.3
  max_ease: 3.0
  ease_delta_again: -0.2
  ease_delta_hard: -0.15
  ease_delta_good: 0.05
  ease_delta_perfect: 0.15
  hard_interval_multiplier: 1.2
  leech_ease_below: 1.8
  leech_failure_threshold: 2
  leech_recovery_run: 3
fsrs:
  request_retention: 0.9
  maximum_interval_days: 36500
  leech_difficulty_above: 9.0
mastery:
  familiar_streak: 2
  known_interval_days: 14
  mastered_interval_days: 45
  permanent_interval_days: 120
`))
		if _, err := loadParams(); err == nil {
			t.Fatalf("expected error for initial ease below floor")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Setenv(tuningEnv, filepath.Join(dir, "does-not-exist.yaml"))
		if _, err := loadParams(); err == nil {
			t.Fatalf("expected error for missing override file")
		}
	})
}
