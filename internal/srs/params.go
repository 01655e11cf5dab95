package srs

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
)

const tuningEnv = "SRS_TUNING_YAML"

//go:embed tuning.yaml
var tuningFS embed.FS

// Params holds the scheduler tunables. They ship embedded; SRS_TUNING_YAML
// points at an override file. Invalid documents fall back to Defaults with a
// warning rather than failing startup.
type Params struct {
	SM2     SM2Params     `yaml:"sm2"`
	FSRS    FSRSParams    `yaml:"fsrs"`
	Mastery MasteryParams `yaml:"mastery"`
}

type SM2Params struct {
	InitialEase            float64 `yaml:"initial_ease"`
	MinEase                float64 `yaml:"min_ease"`
	MaxEase                float64 `yaml:"max_ease"`
	EaseDeltaAgain         float64 `yaml:"ease_delta_again"`
	EaseDeltaHard          float64 `yaml:"ease_delta_hard"`
	EaseDeltaGood          float64 `yaml:"ease_delta_good"`
	EaseDeltaPerfect       float64 `yaml:"ease_delta_perfect"`
	HardIntervalMultiplier float64 `yaml:"hard_interval_multiplier"`
	LeechEaseBelow         float64 `yaml:"leech_ease_below"`
	LeechFailureThreshold  int     `yaml:"leech_failure_threshold"`
	LeechRecoveryRun       int     `yaml:"leech_recovery_run"`
}

type FSRSParams struct {
	RequestRetention     float64 `yaml:"request_retention"`
	MaximumIntervalDays  float64 `yaml:"maximum_interval_days"`
	LeechDifficultyAbove float64 `yaml:"leech_difficulty_above"`
}

type MasteryParams struct {
	FamiliarStreak        int     `yaml:"familiar_streak"`
	KnownIntervalDays     float64 `yaml:"known_interval_days"`
	MasteredIntervalDays  float64 `yaml:"mastered_interval_days"`
	PermanentIntervalDays float64 `yaml:"permanent_interval_days"`
}

type yamlTuningSpec struct {
	Engine  string `yaml:"engine"`
	Version int    `yaml:"version"`
	Params  `yaml:",inline"`
}

// Defaults mirrors tuning.yaml so a broken override never strands the engine.
func Defaults() Params {
	return Params{
		SM2: SM2Params{
			InitialEase:            2.5,
			MinEase:                1.3,
			MaxEase:                3.0,
			EaseDeltaAgain:         -0.20,
			EaseDeltaHard:          -0.15,
			EaseDeltaGood:          0.05,
			EaseDeltaPerfect:       0.15,
			HardIntervalMultiplier: 1.2,
			LeechEaseBelow:         1.8,
			LeechFailureThreshold:  2,
			LeechRecoveryRun:       3,
		},
		FSRS: FSRSParams{
			RequestRetention:     0.9,
			MaximumIntervalDays:  36500,
			LeechDifficultyAbove: 9.0,
		},
		Mastery: MasteryParams{
			FamiliarStreak:        2,
			KnownIntervalDays:     14,
			MasteredIntervalDays:  45,
			PermanentIntervalDays: 120,
		},
	}
}

var paramsOnce sync.Once
var paramsCache Params
var paramsErr error

// CurrentParams loads tuning once per process. On load or validation failure
// it logs and serves Defaults.
func CurrentParams(log *logger.Logger) Params {
	paramsOnce.Do(func() {
		paramsCache, paramsErr = loadParams()
	})
	if paramsErr != nil {
		if log != nil {
			log.Warn("srs: tuning load failed; using defaults", "error", paramsErr)
		}
		return Defaults()
	}
	return paramsCache
}

func loadParams() (Params, error) {
	data, err := readTuningSpec()
	if err != nil {
		return Params{}, err
	}

	var spec yamlTuningSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return Params{}, err
	}
	if strings.TrimSpace(spec.Engine) != "srs_tuning" {
		return Params{}, fmt.Errorf("unexpected tuning document: %s", spec.Engine)
	}
	if err := validateParams(spec.Params); err != nil {
		return Params{}, err
	}
	return spec.Params, nil
}

func readTuningSpec() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(tuningEnv)); path != "" {
		return os.ReadFile(path)
	}
	return tuningFS.ReadFile("tuning.yaml")
}

func validateParams(p Params) error {
	if p.SM2.MinEase <= 0 {
		return errors.New("sm2.min_ease must be positive")
	}
	if p.SM2.MaxEase <= p.SM2.MinEase {
		return errors.New("sm2.max_ease must exceed sm2.min_ease")
	}
	if p.SM2.InitialEase < p.SM2.MinEase || p.SM2.InitialEase > p.SM2.MaxEase {
		return errors.New("sm2.initial_ease outside [min_ease, max_ease]")
	}
	if p.SM2.EaseDeltaAgain >= 0 {
		return errors.New("sm2.ease_delta_again must be negative")
	}
	if p.SM2.EaseDeltaGood <= 0 || p.SM2.EaseDeltaPerfect <= 0 {
		return errors.New("sm2 good/perfect ease deltas must be positive")
	}
	if p.SM2.HardIntervalMultiplier <= 1.0 {
		return errors.New("sm2.hard_interval_multiplier must exceed 1.0")
	}
	if p.SM2.LeechEaseBelow <= p.SM2.MinEase {
		return errors.New("sm2.leech_ease_below must exceed min_ease")
	}
	if p.SM2.LeechFailureThreshold < 1 {
		return errors.New("sm2.leech_failure_threshold must be >= 1")
	}
	if p.SM2.LeechRecoveryRun < 1 {
		return errors.New("sm2.leech_recovery_run must be >= 1")
	}
	if p.FSRS.RequestRetention <= 0 || p.FSRS.RequestRetention >= 1 {
		return errors.New("fsrs.request_retention must be in (0,1)")
	}
	if p.FSRS.MaximumIntervalDays < 1 {
		return errors.New("fsrs.maximum_interval_days must be >= 1")
	}
	if p.FSRS.LeechDifficultyAbove <= 1 {
		return errors.New("fsrs.leech_difficulty_above must exceed 1")
	}
	if p.Mastery.FamiliarStreak < 1 {
		return errors.New("mastery.familiar_streak must be >= 1")
	}
	// Each interval gate strictly above the previous keeps the ladder ordered.
	if !(p.Mastery.KnownIntervalDays > 0 &&
		p.Mastery.MasteredIntervalDays > p.Mastery.KnownIntervalDays &&
		p.Mastery.PermanentIntervalDays > p.Mastery.MasteredIntervalDays) {
		return errors.New("mastery interval gates must be strictly increasing")
	}
	return nil
}
