package postgres

import (
	"context"
	"time"

	"github.com/flexprice/ispledger/internal/catalog"
	"github.com/flexprice/ispledger/internal/domain/charge"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/logger"
	"github.com/flexprice/ispledger/internal/postgres"
	sentryService "github.com/flexprice/ispledger/internal/sentry"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// name of the partial unique index guarding one live charge per period slot
const chargePeriodIndex = "idx_charges_period"

const chargeColumns = `
	id, tenant_id, client_id, subscription_id, charge_type_id, concept,
	amount, amount_paid, balance, issue_date, due_date, period_month, period_year,
	charge_state_id, cancelled_at, status, created_at, updated_at, created_by, updated_by`

// chargeRow is the charges table layout, type and state are catalog ids
type chargeRow struct {
	ID             string          `db:"id"`
	ClientID       string          `db:"client_id"`
	SubscriptionID string          `db:"subscription_id"`
	ChargeTypeID   int             `db:"charge_type_id"`
	Concept        string          `db:"concept"`
	Amount         decimal.Decimal `db:"amount"`
	AmountPaid     decimal.Decimal `db:"amount_paid"`
	Balance        decimal.Decimal `db:"balance"`
	IssueDate      time.Time       `db:"issue_date"`
	DueDate        time.Time       `db:"due_date"`
	PeriodMonth    *int            `db:"period_month"`
	PeriodYear     *int            `db:"period_year"`
	ChargeStateID  int             `db:"charge_state_id"`
	CancelledAt    *time.Time      `db:"cancelled_at"`

	types.BaseModel
}

type chargeRepository struct {
	db      *postgres.DB
	catalog *catalog.Catalog
	logger  *logger.Logger
}

// NewChargeRepository creates a new instance of charge repository
func NewChargeRepository(db *postgres.DB, catalog *catalog.Catalog, logger *logger.Logger) charge.Repository {
	return &chargeRepository{
		db:      db,
		catalog: catalog,
		logger:  logger,
	}
}

func (r *chargeRepository) Create(ctx context.Context, c *charge.Charge) error {
	if err := c.Validate(); err != nil {
		return err
	}

	span := sentryService.StartRepositorySpan(ctx, "charge", "create", map[string]interface{}{
		"subscription_id": c.SubscriptionID,
		"charge_type":     c.ChargeType,
	})
	defer sentryService.FinishSpan(span)

	row, err := r.toRow(c)
	if err != nil {
		sentryService.SetSpanError(span, err)
		return err
	}

	query := `
		INSERT INTO charges (` + chargeColumns + `)
		VALUES (
			:id, :tenant_id, :client_id, :subscription_id, :charge_type_id, :concept,
			:amount, :amount_paid, :balance, :issue_date, :due_date, :period_month, :period_year,
			:charge_state_id, :cancelled_at, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating charge",
		"charge_id", c.ID,
		"subscription_id", c.SubscriptionID,
		"charge_type", c.ChargeType,
		"amount", c.Amount,
	)

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		sentryService.SetSpanError(span, err)
		if postgres.IsConstraint(err, chargePeriodIndex) {
			return ierr.WithError(err).
				WithHintf("A %s charge for period %s already exists", c.ChargeType, c.Period).
				WithReportableDetails(map[string]any{
					"subscription_id": c.SubscriptionID,
					"charge_type":     c.ChargeType,
					"period":          c.Period.String(),
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return postgres.MapError(err, "create charge")
	}

	sentryService.SetSpanSuccess(span)
	return nil
}

func (r *chargeRepository) Get(ctx context.Context, id string) (*charge.Charge, error) {
	return r.get(ctx, id, false)
}

func (r *chargeRepository) GetForUpdate(ctx context.Context, id string) (*charge.Charge, error) {
	return r.get(ctx, id, true)
}

func (r *chargeRepository) get(ctx context.Context, id string, forUpdate bool) (*charge.Charge, error) {
	span := sentryService.StartRepositorySpan(ctx, "charge", "get", map[string]interface{}{
		"charge_id":  id,
		"for_update": forUpdate,
	})
	defer sentryService.FinishSpan(span)

	query := `
		SELECT ` + chargeColumns + ` FROM charges
		WHERE id = :id
		AND tenant_id = :tenant_id
		AND status = :status`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	params := map[string]interface{}{
		"id":        id,
		"tenant_id": types.GetTenantID(ctx),
		"status":    types.StatusPublished,
	}

	var row chargeRow
	if err := r.db.NamedGetContext(ctx, &row, query, params); err != nil {
		err = postgres.MapError(err, "get charge")
		sentryService.SetSpanError(span, err)
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).
				WithHintf("Charge %s not found", id).
				WithReportableDetails(map[string]any{"charge_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, err
	}

	sentryService.SetSpanSuccess(span)
	return r.toDomain(&row)
}

func (r *chargeRepository) FindPeriodCharge(ctx context.Context, subscriptionID string, chargeType types.ChargeType, period types.BillingPeriod) (*charge.Charge, error) {
	typeID, err := r.catalog.ChargeTypeID(chargeType)
	if err != nil {
		return nil, err
	}
	cancelledID, err := r.catalog.ChargeStateID(types.ChargeStateCancelled)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + chargeColumns + ` FROM charges
		WHERE subscription_id = :subscription_id
		AND charge_type_id = :charge_type_id
		AND period_year = :period_year
		AND period_month = :period_month
		AND charge_state_id <> :cancelled_state_id
		AND tenant_id = :tenant_id
		AND status = :status
		LIMIT 1`

	params := map[string]interface{}{
		"subscription_id":    subscriptionID,
		"charge_type_id":     typeID,
		"period_year":        period.Year,
		"period_month":       period.Month,
		"cancelled_state_id": cancelledID,
		"tenant_id":          types.GetTenantID(ctx),
		"status":             types.StatusPublished,
	}

	var row chargeRow
	if err := r.db.NamedGetContext(ctx, &row, query, params); err != nil {
		return nil, postgres.MapError(err, "find period charge")
	}
	return r.toDomain(&row)
}

func (r *chargeRepository) ListOutstanding(ctx context.Context, clientID string) ([]*charge.Charge, error) {
	cancelledID, err := r.catalog.ChargeStateID(types.ChargeStateCancelled)
	if err != nil {
		return nil, err
	}

	span := sentryService.StartRepositorySpan(ctx, "charge", "list_outstanding", map[string]interface{}{
		"client_id": clientID,
	})
	defer sentryService.FinishSpan(span)

	query := `
		SELECT ` + chargeColumns + ` FROM charges
		WHERE client_id = :client_id
		AND charge_state_id <> :cancelled_state_id
		AND balance > 0
		AND tenant_id = :tenant_id
		AND status = :status
		ORDER BY due_date ASC, id ASC`

	params := map[string]interface{}{
		"client_id":          clientID,
		"cancelled_state_id": cancelledID,
		"tenant_id":          types.GetTenantID(ctx),
		"status":             types.StatusPublished,
	}

	r.logger.Debugw("listing outstanding charges",
		"client_id", clientID,
		"tenant_id", types.GetTenantID(ctx),
	)

	var rows []*chargeRow
	if err := r.db.NamedSelectContext(ctx, &rows, query, params); err != nil {
		err = postgres.MapError(err, "list outstanding charges")
		sentryService.SetSpanError(span, err)
		return nil, err
	}

	sentryService.SetSpanSuccess(span)
	return r.toDomainList(rows)
}

func (r *chargeRepository) ListByIDs(ctx context.Context, ids []string) ([]*charge.Charge, error) {
	if len(ids) == 0 {
		return []*charge.Charge{}, nil
	}

	query := `
		SELECT ` + chargeColumns + ` FROM charges
		WHERE id = ANY(:ids)
		AND tenant_id = :tenant_id
		AND status = :status
		ORDER BY due_date ASC, id ASC`

	params := map[string]interface{}{
		"ids":       pq.Array(lo.Uniq(ids)),
		"tenant_id": types.GetTenantID(ctx),
		"status":    types.StatusPublished,
	}

	var rows []*chargeRow
	if err := r.db.NamedSelectContext(ctx, &rows, query, params); err != nil {
		return nil, postgres.MapError(err, "list charges by ids")
	}
	return r.toDomainList(rows)
}

func (r *chargeRepository) ListBySubscription(ctx context.Context, subscriptionID string, chargeType types.ChargeType) ([]*charge.Charge, error) {
	typeID, err := r.catalog.ChargeTypeID(chargeType)
	if err != nil {
		return nil, err
	}
	cancelledID, err := r.catalog.ChargeStateID(types.ChargeStateCancelled)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + chargeColumns + ` FROM charges
		WHERE subscription_id = :subscription_id
		AND charge_type_id = :charge_type_id
		AND charge_state_id <> :cancelled_state_id
		AND tenant_id = :tenant_id
		AND status = :status
		ORDER BY issue_date ASC, id ASC`

	params := map[string]interface{}{
		"subscription_id":    subscriptionID,
		"charge_type_id":     typeID,
		"cancelled_state_id": cancelledID,
		"tenant_id":          types.GetTenantID(ctx),
		"status":             types.StatusPublished,
	}

	var rows []*chargeRow
	if err := r.db.NamedSelectContext(ctx, &rows, query, params); err != nil {
		return nil, postgres.MapError(err, "list subscription charges")
	}
	return r.toDomainList(rows)
}

func (r *chargeRepository) UpdateBalance(ctx context.Context, c *charge.Charge, expectedAmountPaid decimal.Decimal) error {
	if err := c.Validate(); err != nil {
		return err
	}

	stateID, err := r.catalog.ChargeStateID(c.ChargeState)
	if err != nil {
		return err
	}

	span := sentryService.StartRepositorySpan(ctx, "charge", "update_balance", map[string]interface{}{
		"charge_id": c.ID,
	})
	defer sentryService.FinishSpan(span)

	query := `
		UPDATE charges
		SET
			amount_paid = :amount_paid,
			balance = :balance,
			charge_state_id = :charge_state_id,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id
		AND tenant_id = :tenant_id
		AND status = :status
		AND amount_paid = :expected_amount_paid`

	params := map[string]interface{}{
		"id":                   c.ID,
		"amount_paid":          c.AmountPaid,
		"balance":              c.Balance,
		"charge_state_id":      stateID,
		"updated_at":           c.UpdatedAt,
		"updated_by":           c.UpdatedBy,
		"tenant_id":            types.GetTenantID(ctx),
		"status":               types.StatusPublished,
		"expected_amount_paid": expectedAmountPaid,
	}

	r.logger.Debugw("updating charge balance",
		"charge_id", c.ID,
		"amount_paid", c.AmountPaid,
		"expected_amount_paid", expectedAmountPaid,
		"charge_state", c.ChargeState,
	)

	if err := r.execOne(ctx, query, params, "update charge balance"); err != nil {
		sentryService.SetSpanError(span, err)
		return err
	}

	sentryService.SetSpanSuccess(span)
	return nil
}

func (r *chargeRepository) Cancel(ctx context.Context, c *charge.Charge) error {
	cancelledID, err := r.catalog.ChargeStateID(types.ChargeStateCancelled)
	if err != nil {
		return err
	}

	query := `
		UPDATE charges
		SET
			charge_state_id = :cancelled_state_id,
			cancelled_at = :cancelled_at,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id
		AND tenant_id = :tenant_id
		AND status = :status
		AND charge_state_id <> :cancelled_state_id`

	params := map[string]interface{}{
		"id":                 c.ID,
		"cancelled_state_id": cancelledID,
		"cancelled_at":       c.CancelledAt,
		"updated_at":         c.UpdatedAt,
		"updated_by":         c.UpdatedBy,
		"tenant_id":          types.GetTenantID(ctx),
		"status":             types.StatusPublished,
	}

	r.logger.Debugw("cancelling charge",
		"charge_id", c.ID,
		"tenant_id", types.GetTenantID(ctx),
	)

	return r.execOne(ctx, query, params, "cancel charge")
}

func (r *chargeRepository) LockClient(ctx context.Context, clientID string) error {
	if !r.db.InTx(ctx) {
		return ierr.NewError("client lock outside a transaction").
			WithHint("Balance changes must run inside a transaction").
			Mark(ierr.ErrSystem)
	}

	key := types.GetTenantID(ctx) + ":" + clientID
	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	if err != nil {
		return postgres.MapError(err, "lock client")
	}
	return nil
}

// execOne runs a guarded update and reports a version conflict when no row matched
func (r *chargeRepository) execOne(ctx context.Context, query string, params map[string]interface{}, op string) error {
	result, err := r.db.NamedExecContext(ctx, query, params)
	if err != nil {
		return postgres.MapError(err, op)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return postgres.MapError(err, op)
	}
	if rows == 0 {
		return ierr.NewErrorf("%s: no row matched", op).
			WithHint("The charge was changed concurrently, please retry").
			WithReportableDetails(map[string]any{"id": params["id"]}).
			Mark(ierr.ErrVersionConflict)
	}
	return nil
}

func (r *chargeRepository) toRow(c *charge.Charge) (*chargeRow, error) {
	typeID, err := r.catalog.ChargeTypeID(c.ChargeType)
	if err != nil {
		return nil, err
	}
	stateID, err := r.catalog.ChargeStateID(c.ChargeState)
	if err != nil {
		return nil, err
	}

	row := &chargeRow{
		ID:             c.ID,
		ClientID:       c.ClientID,
		SubscriptionID: c.SubscriptionID,
		ChargeTypeID:   typeID,
		Concept:        c.Concept,
		Amount:         c.Amount,
		AmountPaid:     c.AmountPaid,
		Balance:        c.Balance,
		IssueDate:      c.IssueDate,
		DueDate:        c.DueDate,
		ChargeStateID:  stateID,
		CancelledAt:    c.CancelledAt,
		BaseModel:      c.BaseModel,
	}
	if c.Period != nil {
		row.PeriodMonth = lo.ToPtr(c.Period.Month)
		row.PeriodYear = lo.ToPtr(c.Period.Year)
	}
	return row, nil
}

func (r *chargeRepository) toDomain(row *chargeRow) (*charge.Charge, error) {
	chargeType, err := r.catalog.ChargeType(row.ChargeTypeID)
	if err != nil {
		return nil, err
	}
	state, err := r.catalog.ChargeState(row.ChargeStateID)
	if err != nil {
		return nil, err
	}

	c := &charge.Charge{
		ID:             row.ID,
		ClientID:       row.ClientID,
		SubscriptionID: row.SubscriptionID,
		ChargeType:     chargeType,
		Concept:        row.Concept,
		Amount:         row.Amount,
		AmountPaid:     row.AmountPaid,
		Balance:        row.Balance,
		IssueDate:      types.DateOnly(row.IssueDate),
		DueDate:        types.DateOnly(row.DueDate),
		ChargeState:    state,
		CancelledAt:    row.CancelledAt,
		BaseModel:      row.BaseModel,
	}
	if row.PeriodMonth != nil && row.PeriodYear != nil {
		c.Period = &types.BillingPeriod{Month: *row.PeriodMonth, Year: *row.PeriodYear}
	}
	return c, nil
}

func (r *chargeRepository) toDomainList(rows []*chargeRow) ([]*charge.Charge, error) {
	charges := make([]*charge.Charge, 0, len(rows))
	for _, row := range rows {
		c, err := r.toDomain(row)
		if err != nil {
			return nil, err
		}
		charges = append(charges, c)
	}
	return charges, nil
}
