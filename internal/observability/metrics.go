package observability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
)

type Metrics struct {
	reviews       *CounterVec
	reviewLatency *HistogramVec
	reviewTotal   *Counter
	reviewError   *Counter
	reviewGood    *Counter
	leechFlagged  *CounterVec

	selections  *CounterVec
	abilityEst  *HistogramVec
	assignments *CounterVec

	migrations     *CounterVec
	migrationCards *CounterVec

	aggOps       *CounterVec
	aggLatency   *HistogramVec
	aggConflicts *CounterVec
	aggRetries   *CounterVec

	qualitySweep     *HistogramVec
	qualityProcessed *Counter
	qualitySkipped   *Counter
	qualityFlagged   *Counter
	qualityTiers     *GaugeVec
	itemQuality      *CounterVec

	snapshots     *CounterVec
	rollupRefresh *CounterVec
	rollupWords   *Gauge

	eventsPublished *CounterVec

	jobRuns    *CounterVec
	jobLatency *HistogramVec
	jobTotal   *Counter
	jobError   *Counter

	queueDue    *GaugeVec
	armLearners *GaugeVec
	pgStats     *GaugeVec
	redisUp     *Gauge
	redisPing   *Gauge

	sloCompliance *GaugeVec
	sloBudget     *GaugeVec
	sloBurn       *GaugeVec

	reviewLatencyThreshold float64
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))
	if v == "" {
		return 10 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n) * time.Second
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		reviewThreshold := 0.25
		if v := strings.TrimSpace(os.Getenv("SLO_REVIEW_LATENCY_THRESHOLD_SECONDS")); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				reviewThreshold = f
			}
		}
		instance = &Metrics{
			reviews: NewCounterVec("wt_reviews_total", "Reviews processed by algorithm/rating.", []string{"algorithm", "rating"}),
			reviewLatency: NewHistogramVec(
				"wt_review_duration_seconds",
				"Review processing latency in seconds by algorithm/status.",
				[]string{"algorithm", "status"},
				[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			),
			reviewTotal:  NewCounter("wt_reviews_total_all", "Total reviews processed (all)."),
			reviewError:  NewCounter("wt_reviews_error_total", "Total reviews that failed."),
			reviewGood:   NewCounter("wt_reviews_good_latency_total", "Total reviews under SLO latency threshold."),
			leechFlagged: NewCounterVec("wt_leech_flagged_total", "Cards newly flagged as leeches by algorithm.", []string{"algorithm"}),
			selections:   NewCounterVec("wt_selections_total", "Item selections by ability source/selection reason.", []string{"source", "reason"}),
			abilityEst: NewHistogramVec(
				"wt_ability_estimate",
				"Ability estimate distribution by source.",
				[]string{"source"},
				[]float64{-3, -2, -1, -0.5, 0, 0.5, 1, 2, 3},
			),
			assignments: NewCounterVec("wt_assignments_total", "New algorithm assignments by algorithm.", []string{"algorithm"}),
			migrations:  NewCounterVec("wt_migrations_total", "Algorithm migrations by from/to/status.", []string{"from", "to", "status"}),
			migrationCards: NewCounterVec(
				"wt_migration_cards_total",
				"Cards handled during migration by outcome (converted, skipped).",
				[]string{"outcome"},
			),
			aggOps: NewCounterVec("wt_aggregate_operation_total", "Aggregate operations by operation/status.", []string{"operation", "status"}),
			aggLatency: NewHistogramVec(
				"wt_aggregate_operation_duration_seconds",
				"Aggregate operation latency in seconds by operation/status.",
				[]string{"operation", "status"},
				[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			),
			aggConflicts: NewCounterVec("wt_aggregate_conflict_total", "Optimistic-concurrency conflicts by operation.", []string{"operation"}),
			aggRetries:   NewCounterVec("wt_aggregate_retry_total", "Conflict retries by operation.", []string{"operation"}),
			qualitySweep: NewHistogramVec(
				"wt_quality_sweep_duration_seconds",
				"Item quality sweep duration in seconds by status.",
				[]string{"status"},
				[]float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
			),
			qualityProcessed: NewCounter("wt_quality_items_processed_total", "Items recalculated across quality sweeps."),
			qualitySkipped:   NewCounter("wt_quality_items_skipped_total", "Items skipped across quality sweeps."),
			qualityFlagged:   NewCounter("wt_quality_items_flagged_total", "Items flagged for review across quality sweeps."),
			qualityTiers:     NewGaugeVec("wt_item_quality_tier_items", "Active items by quality tier.", []string{"tier"}),
			itemQuality:      NewCounterVec("wt_item_quality_issues_total", "Item quality issues by stage/issue.", []string{"stage", "issue"}),
			snapshots:        NewCounterVec("wt_metric_snapshots_total", "Daily metric snapshot runs by status.", []string{"status"}),
			rollupRefresh:    NewCounterVec("wt_word_rollup_refresh_total", "Word difficulty rollup refreshes by status.", []string{"status"}),
			rollupWords:      NewGauge("wt_word_rollup_words", "Words covered by the latest rollup refresh."),
			eventsPublished:  NewCounterVec("wt_events_published_total", "Engine events published by event/status.", []string{"event", "status"}),
			jobRuns:          NewCounterVec("wt_job_runs_total", "Maintenance job runs by job/status.", []string{"job", "status"}),
			jobLatency: NewHistogramVec(
				"wt_job_duration_seconds",
				"Maintenance job duration in seconds by job/status.",
				[]string{"job", "status"},
				[]float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
			),
			jobTotal:               NewCounter("wt_job_runs_total_all", "Total maintenance job runs."),
			jobError:               NewCounter("wt_job_runs_error_total", "Total maintenance job runs that failed."),
			queueDue:               NewGaugeVec("wt_cards_due", "Due cards by algorithm.", []string{"algorithm"}),
			armLearners:            NewGaugeVec("wt_assignment_arm_learners", "Assigned learners per algorithm arm.", []string{"algorithm"}),
			pgStats:                NewGaugeVec("wt_postgres_stats", "Postgres connection stats.", []string{"metric"}),
			redisUp:                NewGauge("wt_redis_up", "Redis connectivity (1=up, 0=down)."),
			redisPing:              NewGauge("wt_redis_ping_seconds", "Redis ping latency in seconds."),
			sloCompliance:          NewGaugeVec("wt_slo_compliance", "SLO compliance (SLI) over window.", []string{"slo", "window"}),
			sloBudget:              NewGaugeVec("wt_slo_error_budget_remaining", "Error budget remaining (0-1).", []string{"slo", "window"}),
			sloBurn:                NewGaugeVec("wt_slo_burn_rate", "Error budget burn rate.", []string{"slo", "window"}),
			reviewLatencyThreshold: reviewThreshold,
		}
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	if err := m.reviews.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.reviewLatency.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.reviewTotal.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.reviewError.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.reviewGood.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.leechFlagged.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.selections.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.abilityEst.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.assignments.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.migrations.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.migrationCards.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.aggOps.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.aggLatency.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.aggConflicts.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.aggRetries.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.qualitySweep.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.qualityProcessed.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.qualitySkipped.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.qualityFlagged.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.qualityTiers.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.itemQuality.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.snapshots.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.rollupRefresh.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.rollupWords.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.eventsPublished.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.jobRuns.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.jobLatency.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.jobTotal.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.jobError.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.queueDue.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.armLearners.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.pgStats.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.redisUp.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.redisPing.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.sloCompliance.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.sloBudget.WritePrometheus(w); err != nil {
		return err
	}
	return m.sloBurn.WritePrometheus(w)
}

func (m *Metrics) ObserveReview(algorithm, rating, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if algorithm == "" {
		algorithm = "unknown"
	}
	if rating == "" {
		rating = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.reviewLatency.Observe(dur.Seconds(), algorithm, status)
	m.reviewTotal.Inc()
	if isFailureStatus(status) {
		m.reviewError.Inc()
	} else {
		m.reviews.Inc(algorithm, rating)
	}
	if m.reviewLatencyThreshold > 0 && dur.Seconds() <= m.reviewLatencyThreshold {
		m.reviewGood.Inc()
	}
}

func (m *Metrics) IncLeechFlagged(algorithm string) {
	if m == nil {
		return
	}
	if algorithm == "" {
		algorithm = "unknown"
	}
	m.leechFlagged.Inc(algorithm)
}

func (m *Metrics) ObserveSelection(source, reason string, ability float64) {
	if m == nil {
		return
	}
	source = strings.TrimSpace(source)
	if source == "" {
		source = "unknown"
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	m.selections.Inc(source, reason)
	m.abilityEst.Observe(ability, source)
}

func (m *Metrics) IncAssignment(algorithm string) {
	if m == nil {
		return
	}
	if algorithm == "" {
		algorithm = "unknown"
	}
	m.assignments.Inc(algorithm)
}

func (m *Metrics) ObserveMigration(from, to, status string, converted, skipped int) {
	if m == nil {
		return
	}
	if from == "" {
		from = "unknown"
	}
	if to == "" {
		to = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.migrations.Inc(from, to, status)
	if converted > 0 {
		m.migrationCards.Add(float64(converted), "converted")
	}
	if skipped > 0 {
		m.migrationCards.Add(float64(skipped), "skipped")
	}
}

func (m *Metrics) ObserveAggregateOperation(operation, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.aggOps.Inc(operation, status)
	if dur > 0 {
		m.aggLatency.Observe(dur.Seconds(), operation, status)
	}
}

func (m *Metrics) IncAggregateConflict(operation string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	m.aggConflicts.Inc(operation)
}

func (m *Metrics) IncAggregateRetry(operation string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	m.aggRetries.Inc(operation)
}

func (m *Metrics) ObserveQualitySweep(status string, dur time.Duration, processed, skipped, flagged int) {
	if m == nil {
		return
	}
	status = strings.TrimSpace(strings.ToLower(status))
	if status == "" {
		status = "unknown"
	}
	secs := dur.Seconds()
	if secs < 0 {
		secs = 0
	}
	m.qualitySweep.Observe(secs, status)
	if processed > 0 {
		m.qualityProcessed.Add(float64(processed))
	}
	if skipped > 0 {
		m.qualitySkipped.Add(float64(skipped))
	}
	if flagged > 0 {
		m.qualityFlagged.Add(float64(flagged))
	}
}

func (m *Metrics) SetQualityTierItems(tier string, items float64) {
	if m == nil {
		return
	}
	tier = strings.TrimSpace(tier)
	if tier == "" {
		tier = "unknown"
	}
	m.qualityTiers.Set(items, tier)
}

func (m *Metrics) IncItemQualityIssue(stage, issue string) {
	if m == nil {
		return
	}
	stage = strings.TrimSpace(stage)
	if stage == "" {
		stage = "unknown"
	}
	issue = strings.TrimSpace(issue)
	if issue == "" {
		issue = "unknown"
	}
	m.itemQuality.Inc(stage, issue)
}

func (m *Metrics) IncSnapshot(status string) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.snapshots.Inc(status)
}

func (m *Metrics) ObserveRollupRefresh(status string, words int) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.rollupRefresh.Inc(status)
	if words >= 0 {
		m.rollupWords.Set(float64(words))
	}
}

func (m *Metrics) IncEventPublished(event, status string) {
	if m == nil {
		return
	}
	if event == "" {
		event = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.eventsPublished.Inc(event, status)
}

func (m *Metrics) ObserveJobRun(job, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if job == "" {
		job = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.jobRuns.Inc(job, status)
	m.jobTotal.Inc()
	if isFailureStatus(status) {
		m.jobError.Inc()
	}
	if dur > 0 {
		m.jobLatency.Observe(dur.Seconds(), job, status)
	}
}

func (m *Metrics) SetCardsDue(algorithm string, due float64) {
	if m == nil {
		return
	}
	if algorithm == "" {
		algorithm = "unknown"
	}
	m.queueDue.Set(due, algorithm)
}

func (m *Metrics) SetArmLearners(algorithm string, learners float64) {
	if m == nil {
		return
	}
	if algorithm == "" {
		algorithm = "unknown"
	}
	m.armLearners.Set(learners, algorithm)
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: postgres stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
				m.pgStats.Set(float64(stats.MaxIdleClosed), "max_idle_closed")
				m.pgStats.Set(float64(stats.MaxIdleTimeClosed), "max_idle_time_closed")
				m.pgStats.Set(float64(stats.MaxLifetimeClosed), "max_lifetime_closed")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	interval := scrapeInterval()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = rdb.Close()
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

// ---- lightweight metric primitives (Prometheus exposition) ----

type CounterVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}

func (c *CounterVec) Inc(values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl]++
	c.mu.Unlock()
}

func (c *CounterVec) Add(v float64, values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl] += v
	c.mu.Unlock()
}

func (c *CounterVec) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s counter\n", c.name); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.values {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", c.name, k, v); err != nil {
			return err
		}
	}
	return nil
}

type Counter struct {
	name string
	help string
	mu   sync.RWMutex
	val  float64
}

func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Inc() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.val++
	c.mu.Unlock()
}

func (c *Counter) Add(v float64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.val += v
	c.mu.Unlock()
}

func (c *Counter) Value() float64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.val
}

func (c *Counter) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s counter\n", c.name); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, err := fmt.Fprintf(w, "%s %f\n", c.name, c.val)
	return err
}

type Gauge struct {
	name string
	help string
	mu   sync.RWMutex
	val  float64
}

func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) Set(v float64) {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val = v
	g.mu.Unlock()
}

func (g *Gauge) Inc() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val++
	g.mu.Unlock()
}

func (g *Gauge) Dec() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val--
	g.mu.Unlock()
}

func (g *Gauge) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s gauge\n", g.name); err != nil {
		return err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, err := fmt.Fprintf(w, "%s %f\n", g.name, g.val)
	return err
}

type GaugeVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewGaugeVec(name, help string, labels []string) *GaugeVec {
	return &GaugeVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}

func (g *GaugeVec) Set(v float64, values ...string) {
	if g == nil {
		return
	}
	lbl := labelString(g.labelNames, values)
	g.mu.Lock()
	g.values[lbl] = v
	g.mu.Unlock()
}

func (g *GaugeVec) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s gauge\n", g.name); err != nil {
		return err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for k, v := range g.values {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", g.name, k, v); err != nil {
			return err
		}
	}
	return nil
}

type HistogramVec struct {
	name       string
	help       string
	labelNames []string
	buckets    []float64
	mu         sync.RWMutex
	values     map[string]*histogram
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	total   uint64
}

func NewHistogramVec(name, help string, labels []string, buckets []float64) *HistogramVec {
	if len(buckets) == 0 {
		buckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
	}
	return &HistogramVec{name: name, help: help, labelNames: labels, buckets: buckets, values: map[string]*histogram{}}
}

func (h *HistogramVec) Observe(v float64, values ...string) {
	if h == nil {
		return
	}
	lbl := labelString(h.labelNames, values)
	h.mu.Lock()
	defer h.mu.Unlock()
	hist, ok := h.values[lbl]
	if !ok {
		hist = &histogram{
			buckets: h.buckets,
			counts:  make([]uint64, len(h.buckets)+1),
		}
		h.values[lbl] = hist
	}
	hist.sum += v
	hist.total++
	for i, b := range hist.buckets {
		if v <= b {
			hist.counts[i]++
		}
	}
	hist.counts[len(hist.counts)-1]++
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	if h == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", h.name, h.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s histogram\n", h.name); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for k, v := range h.values {
		for i, b := range v.buckets {
			if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, fmt.Sprintf("%g", b)), v.counts[i]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, "+Inf"), v.counts[len(v.counts)-1]); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_sum%s %f\n", h.name, k, v.sum); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_count%s %d\n", h.name, k, v.total); err != nil {
			return err
		}
	}
	return nil
}

func labelString(names []string, values []string) string {
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("{")
	for i, name := range names {
		if i > 0 {
			b.WriteString(",")
		}
		val := "unknown"
		if i < len(values) {
			val = values[i]
		}
		b.WriteString(name)
		b.WriteString("=\"")
		b.WriteString(escapeLabel(val))
		b.WriteString("\"")
	}
	b.WriteString("}")
	return b.String()
}

func escapeLabel(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	v = strings.ReplaceAll(v, "\n", "\\n")
	return v
}

func withLe(labels string, le string) string {
	le = escapeLabel(le)
	if labels == "" || labels == "{}" {
		return "{le=\"" + le + "\"}"
	}
	if strings.HasSuffix(labels, "}") {
		return strings.TrimSuffix(labels, "}") + ",le=\"" + le + "\"}"
	}
	return "{le=\"" + le + "\"}"
}

func isFailureStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "failed", "error", "timeout", "panic":
		return true
	default:
		return false
	}
}
