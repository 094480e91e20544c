package repository

import (
	stderrors "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	derr "github.com/epeers/datamart/internal/errors"
)

// PostgreSQL SQLSTATE codes this layer distinguishes
const (
	pgUniqueViolation = "23505"
	pgFKViolation     = "23503"
	pgCheckViolation  = "23514"
)

// classifyPgError maps a store-level rejection to the error taxonomy.
// A row routed to a nonexistent partition surfaces as a check violation
// with a "no partition of relation" message; that is a partition gap, not
// a data problem.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if !stderrors.As(err, &pgErr) {
		return derr.ErrConstraintViolation
	}
	switch pgErr.Code {
	case pgCheckViolation:
		if strings.Contains(pgErr.Message, "no partition of relation") {
			return derr.ErrPartitionGap
		}
		return derr.ErrPayloadInvalid
	case pgFKViolation, pgUniqueViolation:
		return derr.ErrConstraintViolation
	default:
		return derr.ErrConstraintViolation
	}
}
