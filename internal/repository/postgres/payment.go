package postgres

import (
	"context"

	"github.com/flexprice/ispledger/internal/domain/payment"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/logger"
	"github.com/flexprice/ispledger/internal/postgres"
	sentryService "github.com/flexprice/ispledger/internal/sentry"
	"github.com/flexprice/ispledger/internal/types"
)

const (
	paymentIdempotencyIndex = "idx_payments_idempotency_key"

	paymentColumns = `
		id, tenant_id, client_id, receipt_number, total_amount, payment_method, reference,
		idempotency_key, paid_at, payment_state, cancelled_at, status,
		created_at, updated_at, created_by, updated_by`

	allocationColumns = `
		id, tenant_id, payment_id, charge_id, amount_applied, status,
		created_at, updated_at, created_by, updated_by`
)

type paymentRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewPaymentRepository creates a new instance of payment repository
func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}

	span := sentryService.StartRepositorySpan(ctx, "payment", "create", map[string]interface{}{
		"client_id":      p.ClientID,
		"receipt_number": p.ReceiptNumber,
	})
	defer sentryService.FinishSpan(span)

	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (
			:id, :tenant_id, :client_id, :receipt_number, :total_amount, :payment_method, :reference,
			:idempotency_key, :paid_at, :payment_state, :cancelled_at, :status,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating payment",
		"payment_id", p.ID,
		"client_id", p.ClientID,
		"receipt_number", p.ReceiptNumber,
		"total_amount", p.TotalAmount,
	)

	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		sentryService.SetSpanError(span, err)
		if postgres.IsConstraint(err, paymentIdempotencyIndex) {
			return ierr.WithError(err).
				WithHint("A payment with this idempotency key was already recorded").
				WithReportableDetails(map[string]any{
					"idempotency_key": p.IdempotencyKey,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return postgres.MapError(err, "create payment")
	}

	sentryService.SetSpanSuccess(span)
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	return r.getBy(ctx, "id", id)
}

func (r *paymentRepository) GetByReceiptNumber(ctx context.Context, receiptNumber string) (*payment.Payment, error) {
	return r.getBy(ctx, "receipt_number", receiptNumber)
}

func (r *paymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	return r.getBy(ctx, "idempotency_key", key)
}

// getBy loads one payment by a unique column together with its allocations
func (r *paymentRepository) getBy(ctx context.Context, column, value string) (*payment.Payment, error) {
	span := sentryService.StartRepositorySpan(ctx, "payment", "get_by_"+column, map[string]interface{}{
		column: value,
	})
	defer sentryService.FinishSpan(span)

	query := `
		SELECT ` + paymentColumns + ` FROM payments
		WHERE ` + column + ` = :value
		AND tenant_id = :tenant_id
		AND status = :status`

	params := map[string]interface{}{
		"value":     value,
		"tenant_id": types.GetTenantID(ctx),
		"status":    types.StatusPublished,
	}

	var p payment.Payment
	if err := r.db.NamedGetContext(ctx, &p, query, params); err != nil {
		err = postgres.MapError(err, "get payment")
		sentryService.SetSpanError(span, err)
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).
				WithHintf("Payment with %s %s not found", column, value).
				WithReportableDetails(map[string]any{column: value}).
				Mark(ierr.ErrNotFound)
		}
		return nil, err
	}

	allocations, err := r.ListAllocations(ctx, p.ID)
	if err != nil {
		sentryService.SetSpanError(span, err)
		return nil, err
	}
	p.Allocations = allocations

	sentryService.SetSpanSuccess(span)
	return &p, nil
}

func (r *paymentRepository) NextReceiptNumber(ctx context.Context) (string, error) {
	var seq int64
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &seq, `SELECT nextval('payment_receipt_seq')`); err != nil {
		return "", postgres.MapError(err, "next receipt number")
	}
	return types.FormatReceiptNumber(seq), nil
}

func (r *paymentRepository) MarkCancelled(ctx context.Context, p *payment.Payment) error {
	query := `
		UPDATE payments
		SET
			payment_state = :payment_state,
			cancelled_at = :cancelled_at,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id
		AND tenant_id = :tenant_id
		AND status = :status
		AND payment_state = :applied_state`

	params := map[string]interface{}{
		"id":            p.ID,
		"payment_state": p.PaymentState,
		"cancelled_at":  p.CancelledAt,
		"updated_at":    p.UpdatedAt,
		"updated_by":    p.UpdatedBy,
		"tenant_id":     types.GetTenantID(ctx),
		"status":        types.StatusPublished,
		"applied_state": types.PaymentStateApplied,
	}

	r.logger.Debugw("cancelling payment",
		"payment_id", p.ID,
		"receipt_number", p.ReceiptNumber,
	)

	result, err := r.db.NamedExecContext(ctx, query, params)
	if err != nil {
		return postgres.MapError(err, "cancel payment")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return postgres.MapError(err, "cancel payment")
	}
	if rows == 0 {
		return ierr.NewError("payment not in applied state").
			WithHintf("Payment %s was changed concurrently", p.ReceiptNumber).
			WithReportableDetails(map[string]any{"payment_id": p.ID}).
			Mark(ierr.ErrVersionConflict)
	}
	return nil
}

func (r *paymentRepository) CreateAllocation(ctx context.Context, a *payment.Allocation) error {
	if err := a.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO payment_allocations (` + allocationColumns + `)
		VALUES (
			:id, :tenant_id, :payment_id, :charge_id, :amount_applied, :status,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating payment allocation",
		"payment_id", a.PaymentID,
		"charge_id", a.ChargeID,
		"amount_applied", a.AmountApplied,
	)

	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return postgres.MapError(err, "create payment allocation")
	}
	return nil
}

func (r *paymentRepository) ListAllocations(ctx context.Context, paymentID string) ([]*payment.Allocation, error) {
	return r.listAllocations(ctx, "payment_id", paymentID)
}

func (r *paymentRepository) ListAllocationsByCharge(ctx context.Context, chargeID string) ([]*payment.Allocation, error) {
	return r.listAllocations(ctx, "charge_id", chargeID)
}

func (r *paymentRepository) listAllocations(ctx context.Context, column, value string) ([]*payment.Allocation, error) {
	query := `
		SELECT ` + allocationColumns + ` FROM payment_allocations
		WHERE ` + column + ` = :value
		AND tenant_id = :tenant_id
		AND status = :status
		ORDER BY created_at ASC, id ASC`

	params := map[string]interface{}{
		"value":     value,
		"tenant_id": types.GetTenantID(ctx),
		"status":    types.StatusPublished,
	}

	allocations := []*payment.Allocation{}
	if err := r.db.NamedSelectContext(ctx, &allocations, query, params); err != nil {
		return nil, postgres.MapError(err, "list payment allocations")
	}
	return allocations, nil
}
