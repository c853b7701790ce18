package postgres

import (
	"context"

	"github.com/flexprice/ispledger/internal/domain/credit"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/logger"
	"github.com/flexprice/ispledger/internal/postgres"
	sentryService "github.com/flexprice/ispledger/internal/sentry"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/shopspring/decimal"
)

const creditColumns = `
	id, tenant_id, client_id, original_amount, available_amount, origin_payment_id, active,
	status, created_at, updated_at, created_by, updated_by`

type creditRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewCreditRepository creates a new instance of credit balance repository
func NewCreditRepository(db *postgres.DB, logger *logger.Logger) credit.Repository {
	return &creditRepository{
		db:     db,
		logger: logger,
	}
}

func (r *creditRepository) Create(ctx context.Context, c *credit.CreditBalance) error {
	if err := c.Validate(); err != nil {
		return err
	}

	span := sentryService.StartRepositorySpan(ctx, "credit", "create", map[string]interface{}{
		"client_id":         c.ClientID,
		"origin_payment_id": c.OriginPaymentID,
	})
	defer sentryService.FinishSpan(span)

	query := `
		INSERT INTO credit_balances (` + creditColumns + `)
		VALUES (
			:id, :tenant_id, :client_id, :original_amount, :available_amount, :origin_payment_id, :active,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating credit balance",
		"credit_id", c.ID,
		"client_id", c.ClientID,
		"amount", c.OriginalAmount,
		"origin_payment_id", c.OriginPaymentID,
	)

	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		err = postgres.MapError(err, "create credit balance")
		sentryService.SetSpanError(span, err)
		return err
	}

	sentryService.SetSpanSuccess(span)
	return nil
}

func (r *creditRepository) GetByOriginPayment(ctx context.Context, paymentID string) (*credit.CreditBalance, error) {
	query := `
		SELECT ` + creditColumns + ` FROM credit_balances
		WHERE origin_payment_id = :origin_payment_id
		AND tenant_id = :tenant_id
		AND status = :status`

	params := map[string]interface{}{
		"origin_payment_id": paymentID,
		"tenant_id":         types.GetTenantID(ctx),
		"status":            types.StatusPublished,
	}

	var c credit.CreditBalance
	if err := r.db.NamedGetContext(ctx, &c, query, params); err != nil {
		return nil, postgres.MapError(err, "get credit balance by payment")
	}
	return &c, nil
}

func (r *creditRepository) ListActiveByClient(ctx context.Context, clientID string) ([]*credit.CreditBalance, error) {
	query := `
		SELECT ` + creditColumns + ` FROM credit_balances
		WHERE client_id = :client_id
		AND active = TRUE
		AND tenant_id = :tenant_id
		AND status = :status
		ORDER BY created_at ASC, id ASC`

	params := map[string]interface{}{
		"client_id": clientID,
		"tenant_id": types.GetTenantID(ctx),
		"status":    types.StatusPublished,
	}

	credits := []*credit.CreditBalance{}
	if err := r.db.NamedSelectContext(ctx, &credits, query, params); err != nil {
		return nil, postgres.MapError(err, "list credit balances")
	}
	return credits, nil
}

func (r *creditRepository) SumAvailable(ctx context.Context, clientID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(available_amount), 0) FROM credit_balances
		WHERE client_id = :client_id
		AND active = TRUE
		AND tenant_id = :tenant_id
		AND status = :status`

	params := map[string]interface{}{
		"client_id": clientID,
		"tenant_id": types.GetTenantID(ctx),
		"status":    types.StatusPublished,
	}

	var total decimal.Decimal
	if err := r.db.NamedGetContext(ctx, &total, query, params); err != nil {
		return decimal.Zero, postgres.MapError(err, "sum available credit")
	}
	return total, nil
}

func (r *creditRepository) Update(ctx context.Context, c *credit.CreditBalance) error {
	if err := c.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE credit_balances
		SET
			available_amount = :available_amount,
			active = :active,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id
		AND tenant_id = :tenant_id
		AND status = :status`

	params := map[string]interface{}{
		"id":               c.ID,
		"available_amount": c.AvailableAmount,
		"active":           c.Active,
		"updated_at":       c.UpdatedAt,
		"updated_by":       c.UpdatedBy,
		"tenant_id":        types.GetTenantID(ctx),
		"status":           types.StatusPublished,
	}

	r.logger.Debugw("updating credit balance",
		"credit_id", c.ID,
		"available_amount", c.AvailableAmount,
		"active", c.Active,
	)

	result, err := r.db.NamedExecContext(ctx, query, params)
	if err != nil {
		return postgres.MapError(err, "update credit balance")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return postgres.MapError(err, "update credit balance")
	}
	if rows == 0 {
		return ierr.NewError("credit balance not found").
			WithHintf("Credit balance %s not found", c.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
