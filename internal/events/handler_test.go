package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/ispledger/internal/api/dto"
	"github.com/flexprice/ispledger/internal/config"
	"github.com/flexprice/ispledger/internal/domain/charge"
	"github.com/flexprice/ispledger/internal/domain/payment"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/logger"
	"github.com/flexprice/ispledger/internal/metrics"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type stubInstallation struct {
	calls  []*dto.CompleteInstallationRequest
	tenant string
	err    error
}

func (s *stubInstallation) CompleteInstallation(ctx context.Context, req *dto.CompleteInstallationRequest) (*dto.CompleteInstallationResponse, error) {
	s.calls = append(s.calls, req)
	s.tenant = types.GetTenantID(ctx)
	if s.err != nil {
		return nil, s.err
	}
	return &dto.CompleteInstallationResponse{SubscriptionID: req.SubscriptionID}, nil
}

type stubRecurring struct {
	periods []types.BillingPeriod
}

func (s *stubRecurring) GenerateMonthlyCharge(ctx context.Context, subscriptionID string, month, year int) (*charge.Charge, error) {
	return nil, nil
}

func (s *stubRecurring) RunBillingPeriod(ctx context.Context, period types.BillingPeriod) (*dto.BillingRunResponse, error) {
	s.periods = append(s.periods, period)
	return &dto.BillingRunResponse{RunID: "run_1", Period: period.String()}, nil
}

type stubAllocator struct {
	calls []*dto.AllocatePaymentRequest
}

func (s *stubAllocator) Allocate(ctx context.Context, req *dto.AllocatePaymentRequest) (*dto.AllocationResponse, error) {
	s.calls = append(s.calls, req)
	return &dto.AllocationResponse{
		Payment:       &payment.Payment{ID: "pay_1", ReceiptNumber: "REC-000001"},
		ReceiptNumber: "REC-000001",
	}, nil
}

func (s *stubAllocator) CancelPayment(ctx context.Context, paymentID string) (*payment.Payment, error) {
	return nil, nil
}

func (s *stubAllocator) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	return nil, nil
}

func (s *stubAllocator) GetPaymentByReceipt(ctx context.Context, receiptNumber string) (*payment.Payment, error) {
	return nil, nil
}

type HandlerSuite struct {
	suite.Suite
	installation *stubInstallation
	recurring    *stubRecurring
	allocator    *stubAllocator
	handler      *handler
}

func TestHandler(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.installation = &stubInstallation{}
	s.recurring = &stubRecurring{}
	s.allocator = &stubAllocator{}
	s.handler = NewHandler(
		nil,
		s.installation,
		s.recurring,
		s.allocator,
		metrics.NewMetrics(config.GetDefaultConfig()),
		logger.NewNopLogger(),
	).(*handler)
}

func (s *HandlerSuite) newMessage(payload any) *message.Message {
	data, err := json.Marshal(payload)
	s.Require().NoError(err)
	return message.NewMessage(watermill.NewUUID(), data)
}

func (s *HandlerSuite) TestInstallationCompleted() {
	msg := s.newMessage(dto.CompleteInstallationRequest{
		SubscriptionID:  "sub_1",
		InstalledAt:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		InstallationFee: decimal.NewFromInt(500),
	})
	msg.Metadata.Set("tenant_id", "tenant_isp")

	s.NoError(s.handler.processInstallationCompleted(msg))
	s.Require().Len(s.installation.calls, 1)
	s.Equal("sub_1", s.installation.calls[0].SubscriptionID)
	s.True(decimal.NewFromInt(500).Equal(s.installation.calls[0].InstallationFee))
	s.Equal("tenant_isp", s.installation.tenant)
}

func (s *HandlerSuite) TestDefaultTenant() {
	msg := s.newMessage(dto.CompleteInstallationRequest{SubscriptionID: "sub_1"})

	s.NoError(s.handler.processInstallationCompleted(msg))
	s.Equal(types.DefaultTenantID, s.installation.tenant)
}

func (s *HandlerSuite) TestMalformedPayloadIsDropped() {
	msg := message.NewMessage(watermill.NewUUID(), []byte("{not json"))

	s.NoError(s.handler.processInstallationCompleted(msg))
	s.NoError(s.handler.processPaymentReceived(msg))
	s.Empty(s.installation.calls)
	s.Empty(s.allocator.calls)
}

func (s *HandlerSuite) TestServiceErrorIsReturned() {
	s.installation.err = ierr.NewError("subscription cancelled").Mark(ierr.ErrInvalidOperation)
	msg := s.newMessage(dto.CompleteInstallationRequest{SubscriptionID: "sub_1"})

	err := s.handler.processInstallationCompleted(msg)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *HandlerSuite) TestPeriodRollover() {
	s.NoError(s.handler.processPeriodRollover(s.newMessage(dto.PeriodRolloverRequest{Month: 2, Year: 2024})))
	s.Require().Len(s.recurring.periods, 1)
	s.Equal(types.BillingPeriod{Month: 2, Year: 2024}, s.recurring.periods[0])

	err := s.handler.processPeriodRollover(s.newMessage(dto.PeriodRolloverRequest{Month: 13, Year: 2024}))
	s.Error(err)
	s.True(ierr.IsValidation(err))
	s.Len(s.recurring.periods, 1)
}

func (s *HandlerSuite) TestPaymentReceivedUsesMessageKey() {
	msg := s.newMessage(dto.AllocatePaymentRequest{
		ClientID:      "client_1",
		Amount:        decimal.NewFromInt(180),
		PaymentMethod: types.PaymentMethodCash,
	})

	s.NoError(s.handler.processPaymentReceived(msg))
	s.Require().Len(s.allocator.calls, 1)
	s.Require().NotNil(s.allocator.calls[0].IdempotencyKey)
	s.Equal("msg_"+msg.UUID, *s.allocator.calls[0].IdempotencyKey)

	key := "bank-123"
	msg = s.newMessage(dto.AllocatePaymentRequest{
		ClientID:       "client_1",
		Amount:         decimal.NewFromInt(180),
		PaymentMethod:  types.PaymentMethodCash,
		IdempotencyKey: &key,
	})
	s.NoError(s.handler.processPaymentReceived(msg))
	s.Equal("bank-123", *s.allocator.calls[1].IdempotencyKey)
}
