package postgres

import (
	"database/sql"
	"errors"
	"testing"

	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"no rows", sql.ErrNoRows, ierr.IsNotFound},
		{"unique violation", &pq.Error{Code: "23505", Constraint: "idx_charges_period"}, ierr.IsAlreadyExists},
		{"serialization failure", &pq.Error{Code: "40001"}, ierr.IsVersionConflict},
		{"deadlock", &pq.Error{Code: "40P01"}, ierr.IsVersionConflict},
		{"lock timeout", &pq.Error{Code: "55P03"}, ierr.IsVersionConflict},
		{"foreign key", &pq.Error{Code: "23503"}, ierr.IsValidation},
		{"anything else", errors.New("connection reset by peer"), ierr.IsDatabase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapError(tt.err, "test")
			assert.True(t, tt.check(mapped), "unexpected mark on %v", mapped)
		})
	}

	assert.NoError(t, MapError(nil, "test"))
}

func TestIsConstraint(t *testing.T) {
	err := MapError(&pq.Error{Code: "23505", Constraint: "idx_payments_idempotency_key"}, "create payment")
	assert.True(t, IsConstraint(err, "idx_payments_idempotency_key"))
	assert.False(t, IsConstraint(err, "idx_charges_period"))
	assert.False(t, IsConstraint(errors.New("x"), "idx_charges_period"))
}
