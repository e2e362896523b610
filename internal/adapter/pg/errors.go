package pg

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/olyamironova/escrow-engine/internal/domain"
)

// SQLSTATE codes that mean another transaction won the race.
var conflictCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"23505": true, // unique_violation
}

func mapErr(err error, what, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFound("%s %s not found", what, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if conflictCodes[pgErr.Code] {
			return domain.Conflict(err, "%s %s: concurrent update", what, id)
		}
		if pgErr.Code == "23514" {
			return &domain.Error{Kind: domain.KindInternal, Message: fmt.Sprintf("%s %s violates %s", what, id, pgErr.ConstraintName), Err: err}
		}
	}
	return fmt.Errorf("pg: %s %s: %w", what, id, err)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
