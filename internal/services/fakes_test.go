package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wordtrail/wordtrail-engine/internal/data/repos/items"
	"github.com/wordtrail/wordtrail-engine/internal/data/repos/learning"
	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	domainagg "github.com/wordtrail/wordtrail-engine/internal/domain/aggregates"
	"github.com/wordtrail/wordtrail-engine/internal/events"
	"github.com/wordtrail/wordtrail-engine/internal/platform/dbctx"
	"github.com/wordtrail/wordtrail-engine/internal/srs"
)

var errListUnavailable = errors.New("review log store unavailable")

type fakeItemRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*types.TestItem

	bumpCalls int
}

func newFakeItemRepo(rows ...*types.TestItem) *fakeItemRepo {
	f := &fakeItemRepo{items: map[uuid.UUID]*types.TestItem{}}
	for _, r := range rows {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		f.items[r.ID] = r
	}
	return f
}

func (f *fakeItemRepo) Create(_ dbctx.Context, row *types.TestItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	f.items[row.ID] = row
	return nil
}

func (f *fakeItemRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.TestItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	cp := *it
	return &cp, nil
}

func (f *fakeItemRepo) ListActiveByWord(_ dbctx.Context, wordID uuid.UUID) ([]*types.TestItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.TestItem
	for _, it := range f.items {
		if it.WordID == wordID && it.IsActive && !it.NeedsReview {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AttemptCount != out[j].AttemptCount {
			return out[i].AttemptCount < out[j].AttemptCount
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (f *fakeItemRepo) ListPageAfter(_ dbctx.Context, afterID uuid.UUID, limit int) ([]*types.TestItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*types.TestItem
	for _, it := range f.items {
		cp := *it
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })
	var out []*types.TestItem
	for _, it := range all {
		if afterID != uuid.Nil && it.ID.String() <= afterID.String() {
			continue
		}
		out = append(out, it)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeItemRepo) ListNeedingReview(_ dbctx.Context, limit int) ([]*types.TestItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.TestItem
	for _, it := range f.items {
		if it.NeedsReview {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptCount > out[j].AttemptCount })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeItemRepo) UpdateFields(_ dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return nil
	}
	for k, v := range updates {
		switch k {
		case "discrimination":
			it.Discrimination = v.(float64)
		case "difficulty":
			it.Difficulty = v.(float64)
		case "quality_tier":
			it.QualityTier = v.(types.QualityTier)
		case "needs_review":
			it.NeedsReview = v.(bool)
		case "quality_checked_at":
			ts := v.(time.Time)
			it.QualityCheckedAt = &ts
		case "is_active":
			it.IsActive = v.(bool)
		case "updated_at":
			it.UpdatedAt = v.(time.Time)
		}
	}
	return nil
}

func (f *fakeItemRepo) BumpAttemptStats(_ dbctx.Context, id uuid.UUID, correct bool, responseMS int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bumpCalls++
	it, ok := f.items[id]
	if !ok {
		return nil
	}
	prev := float64(it.AttemptCount)
	it.AvgResponseMS = (it.AvgResponseMS*prev + float64(responseMS)) / (prev + 1)
	it.AttemptCount++
	if correct {
		it.CorrectCount++
	}
	return nil
}

func (f *fakeItemRepo) CountByTier(_ dbctx.Context) ([]*items.TierCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[types.QualityTier]int64{}
	for _, it := range f.items {
		counts[it.QualityTier]++
	}
	var out []*items.TierCount
	for tier, n := range counts {
		out = append(out, &items.TierCount{QualityTier: tier, Items: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QualityTier < out[j].QualityTier })
	return out, nil
}

func (f *fakeItemRepo) CountFlagged(_ dbctx.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, it := range f.items {
		if it.NeedsReview {
			n++
		}
	}
	return n, nil
}

type fakeLogRepo struct {
	mu   sync.Mutex
	rows []*types.ReviewLog

	// failListForItem makes ListByItem fail for one item id, for sweep
	// skip-and-continue coverage.
	failListForItem uuid.UUID
}

func (f *fakeLogRepo) Create(_ dbctx.Context, rows []*types.ReviewLog) ([]*types.ReviewLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		f.rows = append(f.rows, r)
	}
	return rows, nil
}

func (f *fakeLogRepo) ListByLearnerWord(_ dbctx.Context, learnerID, wordID uuid.UUID, limit int) ([]*types.ReviewLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.ReviewLog
	for _, r := range f.rows {
		if r.LearnerID == learnerID && r.WordID == wordID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReviewedAt.After(out[j].ReviewedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeLogRepo) ListByItem(_ dbctx.Context, itemID uuid.UUID, limit int) ([]*types.ReviewLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failListForItem != uuid.Nil && itemID == f.failListForItem {
		return nil, errListUnavailable
	}
	var out []*types.ReviewLog
	for _, r := range f.rows {
		if r.ItemID != nil && *r.ItemID == itemID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReviewedAt.Before(out[j].ReviewedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeLogRepo) CountByLearner(_ dbctx.Context, learnerID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if r.LearnerID == learnerID {
			n++
		}
	}
	return n, nil
}

func (f *fakeLogRepo) WindowStatsByAlgorithm(_ dbctx.Context, from, to time.Time) ([]*learning.AlgorithmWindowStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	type bucket struct {
		reviews  int64
		correct  int64
		learners map[uuid.UUID]bool
	}
	buckets := map[types.Algorithm]*bucket{}
	for _, r := range f.rows {
		if r.ReviewedAt.Before(from) || !r.ReviewedAt.Before(to) {
			continue
		}
		b := buckets[r.Algorithm]
		if b == nil {
			b = &bucket{learners: map[uuid.UUID]bool{}}
			buckets[r.Algorithm] = b
		}
		b.reviews++
		if r.WasCorrect {
			b.correct++
		}
		b.learners[r.LearnerID] = true
	}
	var out []*learning.AlgorithmWindowStats
	for alg, b := range buckets {
		out = append(out, &learning.AlgorithmWindowStats{
			Algorithm:      alg,
			Reviews:        b.reviews,
			Correct:        b.correct,
			ActiveLearners: int64(len(b.learners)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Algorithm < out[j].Algorithm })
	return out, nil
}

type fakeCardRepo struct {
	mu    sync.Mutex
	cards map[uuid.UUID]*types.CardState

	statsByAlgorithm []*learning.AlgorithmCardStats
	rollupRows       []*learning.WordCardRollup
}

func newFakeCardRepo(rows ...*types.CardState) *fakeCardRepo {
	f := &fakeCardRepo{cards: map[uuid.UUID]*types.CardState{}}
	for _, r := range rows {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		f.cards[r.ID] = r
	}
	return f
}

func (f *fakeCardRepo) Create(_ dbctx.Context, rows []*types.CardState) ([]*types.CardState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		f.cards[r.ID] = r
	}
	return rows, nil
}

func (f *fakeCardRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.CardState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cards[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCardRepo) GetByLearnerWord(_ dbctx.Context, learnerID, wordID uuid.UUID) (*types.CardState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.cards {
		if c.LearnerID == learnerID && c.WordID == wordID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeCardRepo) LockByLearnerWord(dbc dbctx.Context, learnerID, wordID uuid.UUID) (*types.CardState, error) {
	return f.GetByLearnerWord(dbc, learnerID, wordID)
}

func (f *fakeCardRepo) ListByLearner(_ dbctx.Context, learnerID uuid.UUID, limit int) ([]*types.CardState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.CardState
	for _, c := range f.cards {
		if c.LearnerID == learnerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCardRepo) ListByLearnerAlgorithm(_ dbctx.Context, learnerID uuid.UUID, algorithm types.Algorithm) ([]*types.CardState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.CardState
	for _, c := range f.cards {
		if c.LearnerID == learnerID && c.Algorithm == algorithm {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeCardRepo) ListDue(_ dbctx.Context, learnerID uuid.UUID, asOf time.Time, limit int) ([]*types.CardState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.CardState
	for _, c := range f.cards {
		if c.LearnerID == learnerID && c.DueAt != nil && !c.DueAt.After(asOf) {
			cp := *c
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCardRepo) UpdateFields(_ dbctx.Context, id uuid.UUID, _ map[string]interface{}) error {
	return nil
}

func (f *fakeCardRepo) CountDueByAlgorithm(_ dbctx.Context, asOf time.Time) ([]*learning.AlgorithmDueCount, error) {
	byAlg := map[types.Algorithm]int64{}
	f.mu.Lock()
	for _, c := range f.cards {
		if !c.IsLeech && c.DueAt != nil && !c.DueAt.After(asOf) {
			byAlg[c.Algorithm]++
		}
	}
	f.mu.Unlock()
	out := make([]*learning.AlgorithmDueCount, 0, len(byAlg))
	for alg, due := range byAlg {
		out = append(out, &learning.AlgorithmDueCount{Algorithm: alg, Due: due})
	}
	return out, nil
}

func (f *fakeCardRepo) StatsByAlgorithm(_ dbctx.Context) ([]*learning.AlgorithmCardStats, error) {
	return f.statsByAlgorithm, nil
}

func (f *fakeCardRepo) RollupRowsByWord(_ dbctx.Context) ([]*learning.WordCardRollup, error) {
	return f.rollupRows, nil
}

type fakeAbilityRepo struct {
	mu   sync.Mutex
	rows map[string]*types.LearnerAbilityState

	upserts int
}

func abilityKey(learnerID, wordID uuid.UUID) string {
	return learnerID.String() + "/" + wordID.String()
}

func newFakeAbilityRepo() *fakeAbilityRepo {
	return &fakeAbilityRepo{rows: map[string]*types.LearnerAbilityState{}}
}

func (f *fakeAbilityRepo) GetByLearnerWord(_ dbctx.Context, learnerID, wordID uuid.UUID) (*types.LearnerAbilityState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[abilityKey(learnerID, wordID)]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (f *fakeAbilityRepo) ListByLearner(_ dbctx.Context, learnerID uuid.UUID) ([]*types.LearnerAbilityState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.LearnerAbilityState
	for _, r := range f.rows {
		if r.LearnerID == learnerID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAbilityRepo) Upsert(_ dbctx.Context, row *types.LearnerAbilityState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	cp := *row
	f.rows[abilityKey(row.LearnerID, row.WordID)] = &cp
	return nil
}

type fakeAssignmentRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.AlgorithmAssignment
}

func newFakeAssignmentRepo(rows ...*types.AlgorithmAssignment) *fakeAssignmentRepo {
	f := &fakeAssignmentRepo{rows: map[uuid.UUID]*types.AlgorithmAssignment{}}
	for _, r := range rows {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		f.rows[r.LearnerID] = r
	}
	return f
}

func (f *fakeAssignmentRepo) CreateIgnoreDuplicates(_ dbctx.Context, row *types.AlgorithmAssignment) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[row.LearnerID]; ok {
		return false, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	f.rows[row.LearnerID] = row
	return true, nil
}

func (f *fakeAssignmentRepo) GetByLearner(_ dbctx.Context, learnerID uuid.UUID) (*types.AlgorithmAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[learnerID]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (f *fakeAssignmentRepo) LockByLearner(dbc dbctx.Context, learnerID uuid.UUID) (*types.AlgorithmAssignment, error) {
	return f.GetByLearner(dbc, learnerID)
}

func (f *fakeAssignmentRepo) UpdateFields(_ dbctx.Context, _ uuid.UUID, _ map[string]interface{}) error {
	return nil
}

func (f *fakeAssignmentRepo) IncrementReviewCount(_ dbctx.Context, learnerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[learnerID]; ok {
		row.ReviewCount++
	}
	return nil
}

func (f *fakeAssignmentRepo) ArmSizes(_ dbctx.Context) ([]*learning.AlgorithmArmSize, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[types.Algorithm]int64{}
	for _, r := range f.rows {
		counts[r.Algorithm]++
	}
	var out []*learning.AlgorithmArmSize
	for alg, n := range counts {
		out = append(out, &learning.AlgorithmArmSize{Algorithm: alg, Learners: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Algorithm < out[j].Algorithm })
	return out, nil
}

type fakeDailyMetricRepo struct {
	mu   sync.Mutex
	rows map[string]*types.AlgorithmDailyMetric
}

func newFakeDailyMetricRepo() *fakeDailyMetricRepo {
	return &fakeDailyMetricRepo{rows: map[string]*types.AlgorithmDailyMetric{}}
}

func metricKey(day time.Time, alg types.Algorithm) string {
	return day.UTC().Format("2006-01-02") + "/" + string(alg)
}

func (f *fakeDailyMetricRepo) Upsert(_ dbctx.Context, row *types.AlgorithmDailyMetric) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	cp := *row
	f.rows[metricKey(row.Day, row.Algorithm)] = &cp
	return nil
}

func (f *fakeDailyMetricRepo) ListRange(_ dbctx.Context, from, to time.Time) ([]*types.AlgorithmDailyMetric, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.AlgorithmDailyMetric
	for _, r := range f.rows {
		if !r.Day.Before(from) && r.Day.Before(to) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (f *fakeDailyMetricRepo) ListRangeByAlgorithm(dbc dbctx.Context, algorithm types.Algorithm, from, to time.Time) ([]*types.AlgorithmDailyMetric, error) {
	all, err := f.ListRange(dbc, from, to)
	if err != nil {
		return nil, err
	}
	var out []*types.AlgorithmDailyMetric
	for _, r := range all {
		if r.Algorithm == algorithm {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeRollupRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.WordDifficultyRollup

	upsertBatches int
}

func newFakeRollupRepo() *fakeRollupRepo {
	return &fakeRollupRepo{rows: map[uuid.UUID]*types.WordDifficultyRollup{}}
}

func (f *fakeRollupRepo) GetByWord(_ dbctx.Context, wordID uuid.UUID) (*types.WordDifficultyRollup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[wordID]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (f *fakeRollupRepo) ListHardest(_ dbctx.Context, limit int) ([]*types.WordDifficultyRollup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.WordDifficultyRollup
	for _, r := range f.rows {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DifficultyScore > out[j].DifficultyScore })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRollupRepo) ListByBand(_ dbctx.Context, band types.DifficultyBand) ([]*types.WordDifficultyRollup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.WordDifficultyRollup
	for _, r := range f.rows {
		if r.DifficultyBand == band {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRollupRepo) UpsertBatch(_ dbctx.Context, rows []*types.WordDifficultyRollup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertBatches++
	for _, r := range rows {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		cp := *r
		f.rows[r.WordID] = &cp
	}
	return nil
}

// fakeReviewAggregate scripts ApplyReview results so service tests can run
// without a database.
type fakeReviewAggregate struct {
	mu         sync.Mutex
	applyCalls int
	lastApply  domainagg.ApplyReviewInput
	applyErr   error
	result     domainagg.ApplyReviewResult

	// onApply lets tests derive the result from the input.
	onApply func(in domainagg.ApplyReviewInput) domainagg.ApplyReviewResult
}

func (f *fakeReviewAggregate) Contract() domainagg.Contract {
	return domainagg.ReviewAggregateContract
}

func (f *fakeReviewAggregate) ApplyReview(_ context.Context, in domainagg.ApplyReviewInput) (domainagg.ApplyReviewResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyCalls++
	f.lastApply = in
	if f.applyErr != nil {
		return domainagg.ApplyReviewResult{}, f.applyErr
	}
	if f.onApply != nil {
		return f.onApply(in), nil
	}
	res := f.result
	res.Rating = in.Rating
	res.WasCorrect = srs.Rating(in.Rating).Correct()
	return res, nil
}

func (f *fakeReviewAggregate) EnsureCard(_ context.Context, _ domainagg.EnsureCardInput) (domainagg.EnsureCardResult, error) {
	return domainagg.EnsureCardResult{CardID: uuid.New(), Algorithm: string(types.AlgorithmSM2), Created: true}, nil
}

type fakeAssignmentAggregate struct {
	mu           sync.Mutex
	assignCalls  int
	migrateCalls int
	lastAssign   domainagg.AssignLearnerInput
	lastMigrate  domainagg.MigrateLearnerInput
	assignResult domainagg.AssignLearnerResult
	migrateRes   domainagg.MigrateLearnerResult
	migrateErr   error
}

func (f *fakeAssignmentAggregate) Contract() domainagg.Contract {
	return domainagg.AssignmentAggregateContract
}

func (f *fakeAssignmentAggregate) Assign(_ context.Context, in domainagg.AssignLearnerInput) (domainagg.AssignLearnerResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignCalls++
	f.lastAssign = in
	res := f.assignResult
	if res.LearnerID == uuid.Nil {
		res.LearnerID = in.LearnerID
	}
	return res, nil
}

func (f *fakeAssignmentAggregate) Migrate(_ context.Context, in domainagg.MigrateLearnerInput) (domainagg.MigrateLearnerResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.migrateCalls++
	f.lastMigrate = in
	if f.migrateErr != nil {
		return domainagg.MigrateLearnerResult{}, f.migrateErr
	}
	res := f.migrateRes
	if res.LearnerID == uuid.Nil {
		res.LearnerID = in.LearnerID
	}
	return res, nil
}

type fakeEventBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (f *fakeEventBus) Publish(_ context.Context, evt events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, evt)
	return nil
}

func (f *fakeEventBus) StartForwarder(_ context.Context, _ func(events.Event)) error { return nil }

func (f *fakeEventBus) Close() error { return nil }

func (f *fakeEventBus) byName(name string) []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.Event
	for _, e := range f.published {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
