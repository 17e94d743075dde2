package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassifyWriteError_MapsPostgresCodesToSentinels(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{"foreign key violation", "23503", ErrForeignKeyViolation},
		{"not null violation", "23502", ErrConstraintViolation},
		{"check violation", "23514", ErrConstraintViolation},
		{"serialization failure", "40001", ErrSerializationConflict},
		{"deadlock detected", "40P01", ErrSerializationConflict},
		{"undefined table", "42P01", ErrRelationMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &pgconn.PgError{Code: tt.code, Message: "boom", ConstraintName: "fk_x", ColumnName: "x"}
			got := classifyWriteError(in)
			if !errors.Is(got, tt.want) {
				t.Fatalf("code %s: expected %v, got %v", tt.code, tt.want, got)
			}
			var pgErr *pgconn.PgError
			if errors.As(got, &pgErr) {
				t.Fatal("classified error must not expose the raw driver error")
			}
		})
	}
}

func TestClassifyWriteError_WrappedDriverErrorsStillClassify(t *testing.T) {
	wrapped := fmt.Errorf("insert ledger entry: %w", &pgconn.PgError{Code: "40001"})
	if got := classifyWriteError(wrapped); !errors.Is(got, ErrSerializationConflict) {
		t.Fatalf("expected ErrSerializationConflict, got %v", got)
	}
}

func TestClassifyWriteError_SentinelsPassThroughUnchanged(t *testing.T) {
	sentinels := []error{
		ErrProjectNotFound,
		ErrApplicationNotFound,
		ErrProjectIntakeClosed,
		ErrSchemaIncompatible,
	}
	for _, sentinel := range sentinels {
		wrapped := fmt.Errorf("gate: %w", sentinel)
		if got := classifyWriteError(wrapped); !errors.Is(got, sentinel) {
			t.Fatalf("expected %v to pass through, got %v", sentinel, got)
		}
	}
}

func TestClassifyWriteError_UnknownErrorsAreReturnedAsIs(t *testing.T) {
	if got := classifyWriteError(nil); got != nil {
		t.Fatalf("nil must stay nil, got %v", got)
	}

	plain := errors.New("connection reset")
	if got := classifyWriteError(plain); got != plain {
		t.Fatalf("unrecognized error must be returned as-is, got %v", got)
	}

	unknownCode := &pgconn.PgError{Code: "22P02", Message: "invalid input syntax"}
	got := classifyWriteError(unknownCode)
	var pgErr *pgconn.PgError
	if !errors.As(got, &pgErr) || pgErr.Code != "22P02" {
		t.Fatalf("unmapped driver error must be returned as-is, got %v", got)
	}
}
