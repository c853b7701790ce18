package postgres

import (
	"context"

	"github.com/flexprice/ispledger/internal/cache"
	"github.com/flexprice/ispledger/internal/domain/subscription"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/logger"
	"github.com/flexprice/ispledger/internal/postgres"
	sentryService "github.com/flexprice/ispledger/internal/sentry"
	"github.com/flexprice/ispledger/internal/types"
)

const subscriptionColumns = `
	id, tenant_id, client_id, monthly_price, cutoff_day, installed_at, subscription_status`

// subscriptionRepository reads the subscriptions owned by the service administration system.
// Single lookups are cached; the billing run always reads the table.
type subscriptionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
	cache  cache.Cache
}

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger, cache cache.Cache) subscription.Repository {
	return &subscriptionRepository{db: db, logger: logger, cache: cache}
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	tenantID := types.GetTenantID(ctx)
	key := cache.GenerateKey(cache.PrefixSubscription, tenantID, id)
	if cached, ok := r.cache.Get(ctx, key); ok {
		if s, ok := cached.(*subscription.Subscription); ok {
			return s, nil
		}
	}

	span := sentryService.StartRepositorySpan(ctx, "subscription", "get", map[string]interface{}{
		"subscription_id": id,
	})
	defer sentryService.FinishSpan(span)

	query := `
		SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE id = :id
		AND tenant_id = :tenant_id
		AND status = :status`

	params := map[string]interface{}{
		"id":        id,
		"tenant_id": tenantID,
		"status":    types.StatusPublished,
	}

	var s subscription.Subscription
	if err := r.db.NamedGetContext(ctx, &s, query, params); err != nil {
		err = postgres.MapError(err, "get subscription")
		sentryService.SetSpanError(span, err)
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).
				WithHintf("Subscription %s not found", id).
				WithReportableDetails(map[string]any{"subscription_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, err
	}

	sentryService.SetSpanSuccess(span)
	r.cache.Set(ctx, key, &s, 0)
	return &s, nil
}

func (r *subscriptionRepository) ListByClient(ctx context.Context, clientID string) ([]*subscription.Subscription, error) {
	tenantID := types.GetTenantID(ctx)
	key := cache.GenerateKey(cache.PrefixClientSubscription, tenantID, clientID)
	if cached, ok := r.cache.Get(ctx, key); ok {
		if subs, ok := cached.([]*subscription.Subscription); ok {
			return subs, nil
		}
	}

	query := `
		SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE client_id = :client_id
		AND tenant_id = :tenant_id
		AND status = :status
		ORDER BY id ASC`

	params := map[string]interface{}{
		"client_id": clientID,
		"tenant_id": tenantID,
		"status":    types.StatusPublished,
	}

	subs := []*subscription.Subscription{}
	if err := r.db.NamedSelectContext(ctx, &subs, query, params); err != nil {
		return nil, postgres.MapError(err, "list client subscriptions")
	}

	r.cache.Set(ctx, key, subs, 0)
	return subs, nil
}

func (r *subscriptionRepository) ListBillable(ctx context.Context, period types.BillingPeriod) ([]*subscription.Subscription, error) {
	span := sentryService.StartRepositorySpan(ctx, "subscription", "list_billable", map[string]interface{}{
		"period": period.String(),
	})
	defer sentryService.FinishSpan(span)

	query := `
		SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE subscription_status = :subscription_status
		AND installed_at IS NOT NULL
		AND installed_at < :next_period_start
		AND tenant_id = :tenant_id
		AND status = :status
		ORDER BY id ASC`

	params := map[string]interface{}{
		"subscription_status": types.SubscriptionStatusActive,
		"next_period_start":   period.Next().Start(),
		"tenant_id":           types.GetTenantID(ctx),
		"status":              types.StatusPublished,
	}

	r.logger.Debugw("listing billable subscriptions",
		"period", period.String(),
		"tenant_id", types.GetTenantID(ctx),
	)

	subs := []*subscription.Subscription{}
	if err := r.db.NamedSelectContext(ctx, &subs, query, params); err != nil {
		err = postgres.MapError(err, "list billable subscriptions")
		sentryService.SetSpanError(span, err)
		return nil, err
	}

	sentryService.SetSpanSuccess(span)
	return subs, nil
}
