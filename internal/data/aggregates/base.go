package aggregates

import (
	"context"
	"strings"
	"time"

	domainagg "github.com/wordtrail/wordtrail-engine/internal/domain/aggregates"
	"github.com/wordtrail/wordtrail-engine/internal/platform/dbctx"
	"github.com/wordtrail/wordtrail-engine/internal/platform/logger"
	"gorm.io/gorm"
)

type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	Hooks    Hooks
	CASGuard CASGuard
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	return d
}

func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}
	err := deps.Runner.InTx(ctx, fn)
	mapped := MapError(op, err)

	status := "success"
	if mapped != nil {
		status = aggregateErrorStatus(mapped)
		if domainagg.IsCode(mapped, domainagg.CodeConflict) {
			deps.Hooks.IncConflict(op)
		}
		if domainagg.IsCode(mapped, domainagg.CodeRetryable) {
			deps.Hooks.IncRetry(op)
		}
	}
	deps.Hooks.ObserveOperation(op, status, time.Since(start))
	return mapped
}

// executeWriteRetry re-runs the write in a fresh transaction exactly once
// when the first attempt loses a version race or hits a transient failure.
// Each attempt re-reads its inputs, so the retry recomputes against the
// committed winner. A second failure surfaces unchanged.
func executeWriteRetry(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	err := executeWrite(ctx, deps, op, fn)
	if err == nil {
		return nil
	}
	if !domainagg.IsCode(err, domainagg.CodeConflict) && !domainagg.IsCode(err, domainagg.CodeRetryable) {
		return err
	}
	return executeWrite(ctx, deps, op, fn)
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(domainagg.CodeOf(err)))
	if code == "" {
		code = strings.TrimSpace(string(domainagg.CodeOf(MapError("aggregate.status", err))))
	}
	if code == "" {
		return "failure"
	}
	return code
}
