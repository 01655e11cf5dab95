package domain

import (
	"github.com/wordtrail/wordtrail-engine/internal/domain/items"
	"github.com/wordtrail/wordtrail-engine/internal/domain/learning"
)

const (
	AlgorithmSM2  = learning.AlgorithmSM2
	AlgorithmFSRS = learning.AlgorithmFSRS

	MasteryLearning  = learning.MasteryLearning
	MasteryFamiliar  = learning.MasteryFamiliar
	MasteryKnown     = learning.MasteryKnown
	MasteryMastered  = learning.MasteryMastered
	MasteryPermanent = learning.MasteryPermanent

	BandEasy     = learning.BandEasy
	BandModerate = learning.BandModerate
	BandHard     = learning.BandHard
	BandBrutal   = learning.BandBrutal

	TierUnrated   = items.TierUnrated
	TierPoor      = items.TierPoor
	TierFair      = items.TierFair
	TierGood      = items.TierGood
	TierExcellent = items.TierExcellent
)

type Algorithm = learning.Algorithm
type MasteryLevel = learning.MasteryLevel
type DifficultyBand = learning.DifficultyBand

type CardState = learning.CardState
type ReviewLog = learning.ReviewLog
type AlgorithmAssignment = learning.AlgorithmAssignment
type LearnerAbilityState = learning.LearnerAbilityState
type WordDifficultyRollup = learning.WordDifficultyRollup
type AlgorithmDailyMetric = learning.AlgorithmDailyMetric

type QualityTier = items.QualityTier
type ItemOption = items.ItemOption
type TestItem = items.TestItem

func BandForScore(score float64) learning.DifficultyBand { return learning.BandForScore(score) }

func CorrectIndex(opts []items.ItemOption) int { return items.CorrectIndex(opts) }
