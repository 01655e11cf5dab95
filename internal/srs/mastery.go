package srs

import (
	types "github.com/wordtrail/wordtrail-engine/internal/domain"
)

// MasteryFor derives the progress tier from the correct streak and the
// current interval. Pure: re-running it over stored state reproduces the
// stored level exactly. A failed review drops the streak to zero and the
// card back to learning regardless of how long its interval grew.
func MasteryFor(consecutiveCorrect int, intervalDays float64, p MasteryParams) types.MasteryLevel {
	if consecutiveCorrect < p.FamiliarStreak {
		return types.MasteryLearning
	}
	switch {
	case intervalDays >= p.PermanentIntervalDays:
		return types.MasteryPermanent
	case intervalDays >= p.MasteredIntervalDays:
		return types.MasteryMastered
	case intervalDays >= p.KnownIntervalDays:
		return types.MasteryKnown
	default:
		return types.MasteryFamiliar
	}
}
