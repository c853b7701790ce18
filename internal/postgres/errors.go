package postgres

import (
	"database/sql"

	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/lib/pq"
)

// postgres SQLSTATE codes the ledger reacts to
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// MapError marks a driver error with the ledger taxonomy. op names what was attempted.
func MapError(err error, op string) error {
	if err == nil {
		return nil
	}

	if err == sql.ErrNoRows {
		return ierr.WithError(err).
			WithMessagef("%s: no rows", op).
			Mark(ierr.ErrNotFound)
	}

	var pqErr *pq.Error
	if ierr.As(err, &pqErr) {
		details := map[string]any{
			"op":         op,
			"code":       string(pqErr.Code),
			"constraint": pqErr.Constraint,
		}
		switch string(pqErr.Code) {
		case codeUniqueViolation:
			return ierr.WithError(err).
				WithMessage(op).
				WithHint("A record with the same identity already exists").
				WithReportableDetails(details).
				Mark(ierr.ErrAlreadyExists)
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return ierr.WithError(err).
				WithMessage(op).
				WithHint("Concurrent update, please retry").
				WithReportableDetails(details).
				Mark(ierr.ErrVersionConflict)
		case codeForeignKeyViolation, codeCheckViolation:
			return ierr.WithError(err).
				WithMessage(op).
				WithHint("The record references missing data or breaks a constraint").
				WithReportableDetails(details).
				Mark(ierr.ErrValidation)
		}
	}

	return ierr.WithError(err).
		WithMessage(op).
		WithHint("Database operation failed").
		Mark(ierr.ErrDatabase)
}

// IsConstraint reports whether err is a unique violation of the named constraint
func IsConstraint(err error, constraint string) bool {
	var pqErr *pq.Error
	if !ierr.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == codeUniqueViolation && pqErr.Constraint == constraint
}
