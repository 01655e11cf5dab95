package aggregates

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	domainagg "github.com/wordtrail/wordtrail-engine/internal/domain/aggregates"
	"gorm.io/gorm"
)

func TestMapError_Validation(t *testing.T) {
	err := MapError("op", ValidationError("bad input"))
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_Conflict(t *testing.T) {
	err := MapError("op", ConflictError("stale"))
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("expected conflict code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_NotFound(t *testing.T) {
	err := MapError("op", gorm.ErrRecordNotFound)
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_UniqueViolation(t *testing.T) {
	err := MapError("op", &pgconn.PgError{Code: "23505"})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("expected conflict code for 23505, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_Deadlock(t *testing.T) {
	err := MapError("op", &pgconn.PgError{Code: "40P01"})
	if !domainagg.IsCode(err, domainagg.CodeRetryable) {
		t.Fatalf("expected retryable code for 40P01, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_PassthroughAggregateError(t *testing.T) {
	in := domainagg.NewError(domainagg.CodeRetryable, "op", "retry", errors.New("boom"))
	out := MapError("other", in)
	if out != in {
		t.Fatalf("expected passthrough aggregate error")
	}
}
