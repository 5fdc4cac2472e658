package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestLogFieldsClassifiesPostgresErrors(t *testing.T) {
	pgErr := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "coupons_code_key", TableName: "coupons"}
	err := Wrap(CodeConflict, fmt.Errorf("insert coupon: %w", pgErr), "coupon code taken")

	fields := LogFields(err)

	if fields["error_code"] != CodeConflict {
		t.Fatalf("expected conflict code, got %v", fields["error_code"])
	}
	if fields["pg_class"] != "integrity" || fields["pg_constraint"] != "coupons_code_key" {
		t.Fatalf("unexpected pg fields %v", fields)
	}
	if chain, ok := fields["error_chain"].([]string); !ok || len(chain) < 2 {
		t.Fatalf("expected wrap chain, got %v", fields["error_chain"])
	}
}

func TestLogFieldsReadsLibPQErrors(t *testing.T) {
	fields := LogFields(&pq.Error{Code: pgerrcode.SerializationFailure, Table: "orders"})

	if fields["pg_class"] != "rollback" || fields["pg_table"] != "orders" {
		t.Fatalf("unexpected pq fields %v", fields)
	}
	if _, ok := fields["error_chain"]; ok {
		t.Fatalf("single error has no chain")
	}
}

func TestLogFieldsPlainError(t *testing.T) {
	fields := LogFields(stdErrors.New("boom"))
	if fields["error"] != "boom" || fields["pg_code"] != nil {
		t.Fatalf("unexpected fields %v", fields)
	}
	if len(LogFields(nil)) != 0 {
		t.Fatal("nil error has no fields")
	}
}
