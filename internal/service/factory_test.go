package service

import (
	"github.com/flexprice/ispledger/internal/domain/proration"
	"github.com/flexprice/ispledger/internal/idempotency"
	"github.com/flexprice/ispledger/internal/testutil"
)

// testServiceParams wires every service dependency to the suite's in-memory doubles
func testServiceParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:      s.GetLogger(),
		Config:      s.GetConfig(),
		DB:          s.GetDB(),
		Metrics:     s.GetMetrics(),
		Publisher:   s.GetPublisher(),
		Idempotency: idempotency.NewGenerator(),
		Calculator:  proration.NewCalculator(),
		ChargeRepo:  stores.ChargeRepo,
		PaymentRepo: stores.PaymentRepo,
		CreditRepo:  stores.CreditRepo,
		SubRepo:     stores.SubscriptionRepo,
	}
}
