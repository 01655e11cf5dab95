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

	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
)

// CalibrationDriftMetric describes one drifting measurement: items whose
// stored difficulty no longer matches observed answer data.
type CalibrationDriftMetric struct {
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	Value     float64        `json:"value"`
	Threshold float64        `json:"threshold"`
	Meta      map[string]any `json:"meta,omitempty"`
}

type driftAlertState struct {
	mu   sync.Mutex
	last map[string]time.Time
}

var driftAlerts driftAlertState

func ReportCalibrationDrift(ctx context.Context, log *logger.Logger, metrics []CalibrationDriftMetric, meta map[string]any) {
	if len(metrics) == 0 {
		return
	}
	if !calibrationDriftAlertsEnabled() {
		return
	}
	meta = withTraceMeta(ctx, meta)

	webhook := calibrationDriftAlertWebhook()
	if webhook == "" {
		return
	}
	key := "calibration_drift"
	driftAlerts.mu.Lock()
	if driftAlerts.last == nil {
		driftAlerts.last = map[string]time.Time{}
	}
	last := driftAlerts.last[key]
	minInterval := calibrationDriftAlertMinInterval()
	if !last.IsZero() && time.Since(last) < minInterval {
		driftAlerts.mu.Unlock()
		return
	}
	driftAlerts.last[key] = time.Now()
	driftAlerts.mu.Unlock()

	payload := map[string]any{
		"title":     "Item calibration drift detected",
		"metrics":   metrics,
		"meta":      meta,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		if log != nil {
			log.Warn("calibration drift alert request build failed", "error", err)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if log != nil {
			log.Warn("calibration drift alert post failed", "error", err)
		}
		return
	}
	_ = resp.Body.Close()
	if log != nil {
		log.Info("calibration drift alert sent", "status", resp.StatusCode)
	}
}

func calibrationDriftAlertsEnabled() bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv("CALIBRATION_DRIFT_ALERTS_ENABLED")))
	if v == "" {
		return false
	}
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func calibrationDriftAlertWebhook() string {
	val := strings.TrimSpace(os.Getenv("CALIBRATION_DRIFT_ALERT_WEBHOOK_URL"))
	if val != "" {
		return val
	}
	return strings.TrimSpace(os.Getenv("SLO_ALERT_WEBHOOK_URL"))
}

func calibrationDriftAlertMinInterval() time.Duration {
	raw := strings.TrimSpace(os.Getenv("CALIBRATION_DRIFT_ALERT_MIN_INTERVAL_SECONDS"))
	if raw == "" {
		return 10 * time.Minute
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(seconds) * time.Second
}
