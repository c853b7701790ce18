package repository

import (
	"context"

	"github.com/flexprice/ispledger/internal/cache"
	"github.com/flexprice/ispledger/internal/catalog"
	"github.com/flexprice/ispledger/internal/domain/charge"
	"github.com/flexprice/ispledger/internal/domain/credit"
	"github.com/flexprice/ispledger/internal/domain/payment"
	"github.com/flexprice/ispledger/internal/domain/subscription"
	"github.com/flexprice/ispledger/internal/logger"
	"github.com/flexprice/ispledger/internal/postgres"
	postgresRepo "github.com/flexprice/ispledger/internal/repository/postgres"
)

// NewCatalog loads the charge catalogs once at startup
func NewCatalog(db *postgres.DB, logger *logger.Logger) (*catalog.Catalog, error) {
	return catalog.Load(context.Background(), postgresRepo.NewCatalogRepository(db, logger))
}

func NewChargeRepository(db *postgres.DB, cat *catalog.Catalog, logger *logger.Logger) charge.Repository {
	return postgresRepo.NewChargeRepository(db, cat, logger)
}

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return postgresRepo.NewPaymentRepository(db, logger)
}

func NewCreditRepository(db *postgres.DB, logger *logger.Logger) credit.Repository {
	return postgresRepo.NewCreditRepository(db, logger)
}

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger, cache cache.Cache) subscription.Repository {
	return postgresRepo.NewSubscriptionRepository(db, logger, cache)
}
