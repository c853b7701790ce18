package testutil

import (
	"context"
	"time"

	"github.com/flexprice/ispledger/internal/config"
	"github.com/flexprice/ispledger/internal/domain/charge"
	"github.com/flexprice/ispledger/internal/domain/subscription"
	"github.com/flexprice/ispledger/internal/logger"
	"github.com/flexprice/ispledger/internal/metrics"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/flexprice/ispledger/internal/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// Stores holds the in-memory repositories for testing
type Stores struct {
	ChargeRepo       *InMemoryChargeStore
	PaymentRepo      *InMemoryPaymentStore
	CreditRepo       *InMemoryCreditStore
	SubscriptionRepo *InMemorySubscriptionStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	publisher *InMemoryEventPublisher
	db        *MockPostgresClient
	logger    *logger.Logger
	config    *config.Configuration
	metrics   *metrics.Metrics
	now       time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	s.config = config.GetDefaultConfig()
	s.config.Ledger.AllocationRetryMaxElapsed = 5 * time.Second
	s.logger = logger.NewNopLogger()
	s.metrics = metrics.NewMetrics(s.config)
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.ClearStores()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		ChargeRepo:       NewInMemoryChargeStore(),
		PaymentRepo:      NewInMemoryPaymentStore(),
		CreditRepo:       NewInMemoryCreditStore(),
		SubscriptionRepo: NewInMemorySubscriptionStore(),
	}
	s.db = NewMockPostgresClient(s.logger,
		s.stores.ChargeRepo,
		s.stores.PaymentRepo,
		s.stores.CreditRepo,
	)
	s.publisher = NewInMemoryEventPublisher()
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.stores.ChargeRepo.Clear()
	s.stores.PaymentRepo.Clear()
	s.stores.CreditRepo.Clear()
	s.stores.SubscriptionRepo.Clear()
	s.publisher.Clear()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetPublisher returns the test event publisher
func (s *BaseServiceTestSuite) GetPublisher() *InMemoryEventPublisher {
	return s.publisher
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetMetrics returns the test metrics
func (s *BaseServiceTestSuite) GetMetrics() *metrics.Metrics {
	return s.metrics
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// Date returns midnight UTC of the given day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CreateSubscription seeds an active subscription installed at installedAt
func (s *BaseServiceTestSuite) CreateSubscription(clientID string, monthlyPrice string, cutoffDay int, installedAt time.Time) *subscription.Subscription {
	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix("sub"),
		TenantID:           types.DefaultTenantID,
		ClientID:           clientID,
		MonthlyPrice:       decimal.RequireFromString(monthlyPrice),
		CutoffDay:          cutoffDay,
		InstalledAt:        &installedAt,
		SubscriptionStatus: types.SubscriptionStatusActive,
	}
	s.stores.SubscriptionRepo.Put(s.ctx, sub)
	return sub
}

// CreateCharge stores a pending charge of sub directly, bypassing the services
func (s *BaseServiceTestSuite) CreateCharge(sub *subscription.Subscription, chargeType types.ChargeType, amount string, dueDate time.Time, period *types.BillingPeriod) *charge.Charge {
	c := charge.NewCharge(s.ctx, sub.ClientID, sub.ID, chargeType, "test "+chargeType.String(),
		decimal.RequireFromString(amount), dueDate.AddDate(0, 0, -10), dueDate, period)
	s.Require().NoError(s.stores.ChargeRepo.Create(s.ctx, c))
	return c
}
