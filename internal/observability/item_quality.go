package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
)

type iqAlertState struct {
	mu   sync.Mutex
	last map[string]time.Time
}

var iqAlerts iqAlertState

// ReportItemQualityIssues records problems surfaced by a quality sweep and
// fans out a webhook alert when alerting is enabled. issues maps issue kind
// (low_discrimination, miscalibrated, recompute_failed) to occurrence count.
func ReportItemQualityIssues(ctx context.Context, log *logger.Logger, stage string, issues map[string]int, meta map[string]any) {
	if len(issues) == 0 {
		return
	}
	stage = strings.TrimSpace(stage)
	if stage == "" {
		stage = "unknown"
	}
	meta = withTraceMeta(ctx, meta)

	for issue, n := range issues {
		issue = strings.TrimSpace(issue)
		if issue == "" || n <= 0 {
			continue
		}
		if m := Current(); m != nil {
			m.itemQuality.Add(float64(n), stage, issue)
		}
	}

	if log != nil {
		log.Warn("item quality issues detected", "stage", stage, "issues", issues, "meta", meta)
	}
	sendItemQualityAlert(stage, issues, meta, log)
}

func withTraceMeta(ctx context.Context, meta map[string]any) map[string]any {
	if meta == nil {
		meta = map[string]any{}
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		meta["trace_id"] = sc.TraceID().String()
	}
	return meta
}

func itemQualityAlertsEnabled() bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv("ITEM_QUALITY_ALERTS_ENABLED")))
	if v == "" {
		return false
	}
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func itemQualityAlertWebhook() string {
	val := strings.TrimSpace(os.Getenv("ITEM_QUALITY_ALERT_WEBHOOK_URL"))
	if val != "" {
		return val
	}
	return strings.TrimSpace(os.Getenv("SLO_ALERT_WEBHOOK_URL"))
}

func itemQualityAlertMinInterval() time.Duration {
	raw := strings.TrimSpace(os.Getenv("ITEM_QUALITY_ALERT_MIN_INTERVAL_SECONDS"))
	if raw == "" {
		return 5 * time.Minute
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(seconds) * time.Second
}

func sendItemQualityAlert(stage string, issues map[string]int, meta map[string]any, log *logger.Logger) {
	if !itemQualityAlertsEnabled() {
		return
	}
	webhook := itemQualityAlertWebhook()
	if webhook == "" || len(issues) == 0 {
		return
	}
	key := stage
	iqAlerts.mu.Lock()
	if iqAlerts.last == nil {
		iqAlerts.last = map[string]time.Time{}
	}
	last := iqAlerts.last[key]
	minInterval := itemQualityAlertMinInterval()
	if !last.IsZero() && time.Since(last) < minInterval {
		iqAlerts.mu.Unlock()
		return
	}
	iqAlerts.last[key] = time.Now()
	iqAlerts.mu.Unlock()

	payload := map[string]any{
		"title":     "Item quality issue",
		"stage":     stage,
		"issues":    issues,
		"meta":      meta,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		if log != nil {
			log.Warn("item quality alert request build failed", "error", err, "stage", stage)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if log != nil {
			log.Warn("item quality alert post failed", "error", err, "stage", stage)
		}
		return
	}
	_ = resp.Body.Close()
	if log != nil {
		log.Info("item quality alert sent", "stage", stage, "status", resp.StatusCode)
	}
}
