package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// LogFields flattens err for structured logs: the typed code, the wrap chain
// and, when a Postgres error is underneath, its SQLSTATE class and location.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{"error": err.Error()}
	if typed := As(err); typed != nil {
		fields["error_code"] = typed.Code()
	}

	var chain []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	if len(chain) > 1 {
		fields["error_chain"] = chain
	}

	if pg := postgresDetail(err); pg != nil {
		for k, v := range pg {
			fields[k] = v
		}
	}
	return fields
}

func postgresDetail(err error) map[string]any {
	var code, constraint, table, detail string

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		code, constraint, table, detail = pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.Detail
	case errors.As(err, &pqErr):
		code, constraint, table, detail = string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Detail
	default:
		return nil
	}

	out := map[string]any{"pg_code": code, "pg_class": pgClass(code)}
	if constraint != "" {
		out["pg_constraint"] = constraint
	}
	if table != "" {
		out["pg_table"] = table
	}
	if detail != "" {
		out["pg_detail"] = detail
	}
	return out
}

func pgClass(code string) string {
	switch {
	case pgerrcode.IsIntegrityConstraintViolation(code):
		return "integrity"
	case pgerrcode.IsTransactionRollback(code):
		return "rollback"
	case pgerrcode.IsConnectionException(code):
		return "connection"
	case pgerrcode.IsDataException(code):
		return "data"
	}
	return "other"
}
