package service

import (
	"sync"
	"testing"

	"github.com/flexprice/ispledger/internal/api/dto"
	"github.com/flexprice/ispledger/internal/domain/charge"
	"github.com/flexprice/ispledger/internal/domain/subscription"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/testutil"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PaymentAllocatorServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  PaymentAllocatorService
	ledger   ChargeLedgerService
	testData struct {
		sub     *subscription.Subscription
		chargeA *charge.Charge
		chargeB *charge.Charge
	}
}

func TestPaymentAllocatorService(t *testing.T) {
	suite.Run(t, new(PaymentAllocatorServiceSuite))
}

func (s *PaymentAllocatorServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := testServiceParams(&s.BaseServiceTestSuite)
	s.service = NewPaymentAllocatorService(params)
	s.ledger = NewChargeLedgerService(params)

	s.testData.sub = s.CreateSubscription("client_1", "150", 10, testutil.Date(2024, 1, 1))
	otherSub := s.CreateSubscription("client_1", "100", 10, testutil.Date(2024, 1, 1))
	s.testData.chargeB = s.CreateCharge(s.testData.sub, types.ChargeTypeOther, "150", testutil.Date(2024, 2, 10), nil)
	s.testData.chargeA = s.CreateCharge(otherSub, types.ChargeTypeOther, "100", testutil.Date(2024, 1, 10), nil)
}

func (s *PaymentAllocatorServiceSuite) allocate(amount string) (*dto.AllocationResponse, error) {
	return s.service.Allocate(s.GetContext(), &dto.AllocatePaymentRequest{
		ClientID:      "client_1",
		Amount:        decimal.RequireFromString(amount),
		PaymentMethod: types.PaymentMethodCash,
	})
}

func (s *PaymentAllocatorServiceSuite) getCharge(id string) *charge.Charge {
	c, err := s.GetStores().ChargeRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return c
}

// assertBalanced checks that every charge's amount paid is the sum of its allocations
func (s *PaymentAllocatorServiceSuite) assertBalanced(ids ...string) {
	for _, id := range ids {
		c := s.getCharge(id)
		allocations, err := s.GetStores().PaymentRepo.ListAllocationsByCharge(s.GetContext(), id)
		s.Require().NoError(err)

		applied := decimal.Zero
		for _, a := range allocations {
			p, err := s.GetStores().PaymentRepo.Get(s.GetContext(), a.PaymentID)
			s.Require().NoError(err)
			if !p.IsCancelled() {
				applied = applied.Add(a.AmountApplied)
			}
		}
		s.True(applied.Equal(c.AmountPaid), "charge %s paid %s allocated %s", id, c.AmountPaid, applied)
		s.True(c.Balance.Equal(c.Amount.Sub(c.AmountPaid)))
		s.False(c.AmountPaid.GreaterThan(c.Amount))
	}
}

func (s *PaymentAllocatorServiceSuite) TestAllocateFIFO() {
	resp, err := s.allocate("180")
	s.Require().NoError(err)

	s.Equal("REC-000001", resp.ReceiptNumber)
	s.Equal(types.PaymentStateApplied, resp.Payment.PaymentState)
	s.True(resp.CreditCreated.IsZero())
	s.False(resp.Replayed)
	s.Require().Len(resp.Allocations, 2)

	s.Equal(s.testData.chargeA.ID, resp.Allocations[0].ChargeID)
	s.True(resp.Allocations[0].AmountApplied.Equal(decimal.NewFromInt(100)))
	s.Equal(types.ChargeStatePaid, resp.Allocations[0].ChargeState)

	s.Equal(s.testData.chargeB.ID, resp.Allocations[1].ChargeID)
	s.True(resp.Allocations[1].AmountApplied.Equal(decimal.NewFromInt(80)))
	s.True(resp.Allocations[1].Balance.Equal(decimal.NewFromInt(70)))
	s.Equal(types.ChargeStatePartial, resp.Allocations[1].ChargeState)

	s.Equal(types.ChargeStatePaid, s.getCharge(s.testData.chargeA.ID).ChargeState)
	b := s.getCharge(s.testData.chargeB.ID)
	s.Equal(types.ChargeStatePartial, b.ChargeState)
	s.True(b.Balance.Equal(decimal.NewFromInt(70)))

	stored, err := s.service.GetPaymentByReceipt(s.GetContext(), "REC-000001")
	s.Require().NoError(err)
	s.Len(stored.Allocations, 2)
	s.True(stored.AllocatedAmount().Equal(stored.TotalAmount))

	s.assertBalanced(s.testData.chargeA.ID, s.testData.chargeB.ID)
	s.Len(s.GetPublisher().EventsNamed(types.EventPaymentAllocated), 1)
	s.Empty(s.GetPublisher().EventsNamed(types.EventCreditRecorded))
}

func (s *PaymentAllocatorServiceSuite) TestAllocateOverpayment() {
	_, err := s.allocate("250")
	s.Require().NoError(err)

	resp, err := s.allocate("50")
	s.Require().NoError(err)
	s.Empty(resp.Allocations)
	s.True(resp.CreditCreated.Equal(decimal.NewFromInt(50)))
	s.Equal("REC-000002", resp.ReceiptNumber)

	credit, err := NewCreditBalanceService(testServiceParams(&s.BaseServiceTestSuite)).AvailableCredit(s.GetContext(), "client_1")
	s.NoError(err)
	s.True(credit.Equal(decimal.NewFromInt(50)))
	s.Len(s.GetPublisher().EventsNamed(types.EventCreditRecorded), 1)
}

func (s *PaymentAllocatorServiceSuite) TestAllocateSplitsIntoCredit() {
	resp, err := s.allocate("300.50")
	s.Require().NoError(err)
	s.Len(resp.Allocations, 2)
	s.True(resp.TotalApplied().Equal(decimal.NewFromInt(250)))
	s.True(resp.CreditCreated.Equal(decimal.RequireFromString("50.50")))
	s.True(resp.TotalApplied().Add(resp.CreditCreated).Equal(resp.Payment.TotalAmount))

	cr, err := s.GetStores().CreditRepo.GetByOriginPayment(s.GetContext(), resp.Payment.ID)
	s.Require().NoError(err)
	s.True(cr.OriginalAmount.Equal(cr.AvailableAmount))
	s.True(cr.Active)
}

func (s *PaymentAllocatorServiceSuite) TestAllocateClientWithoutHistory() {
	resp, err := s.service.Allocate(s.GetContext(), &dto.AllocatePaymentRequest{
		ClientID:      "client_unknown",
		Amount:        decimal.NewFromInt(75),
		PaymentMethod: types.PaymentMethodTransfer,
	})
	s.Require().NoError(err)
	s.Empty(resp.Allocations)
	s.True(resp.CreditCreated.Equal(decimal.NewFromInt(75)))
}

func (s *PaymentAllocatorServiceSuite) TestAllocateSkipsCancelledCharges() {
	_, err := s.ledger.CancelCharge(s.GetContext(), s.testData.chargeA.ID)
	s.Require().NoError(err)

	resp, err := s.allocate("100")
	s.Require().NoError(err)
	s.Require().Len(resp.Allocations, 1)
	s.Equal(s.testData.chargeB.ID, resp.Allocations[0].ChargeID)
	s.True(s.getCharge(s.testData.chargeA.ID).AmountPaid.IsZero())
}

func (s *PaymentAllocatorServiceSuite) TestAllocateValidation() {
	for _, amount := range []string{"0", "-10", "10.001"} {
		_, err := s.allocate(amount)
		s.True(ierr.IsValidation(err), "amount %s", amount)
	}

	_, err := s.service.Allocate(s.GetContext(), &dto.AllocatePaymentRequest{
		ClientID:      "client_1",
		Amount:        decimal.NewFromInt(10),
		PaymentMethod: types.PaymentMethod("cheque"),
	})
	s.True(ierr.IsValidation(err))

	s.Equal(0, s.GetStores().PaymentRepo.Count(s.GetContext()))
}

func (s *PaymentAllocatorServiceSuite) TestAllocateRollsBackOnCreditFailure() {
	s.GetStores().CreditRepo.SetCreateError(ierr.NewError("disk full").Mark(ierr.ErrDatabase))

	_, err := s.allocate("300")
	s.Error(err)
	s.True(ierr.IsDatabase(err))

	s.Equal(0, s.GetStores().PaymentRepo.Count(s.GetContext()))
	for _, id := range []string{s.testData.chargeA.ID, s.testData.chargeB.ID} {
		c := s.getCharge(id)
		s.True(c.AmountPaid.IsZero())
		s.Equal(types.ChargeStatePending, c.ChargeState)
		allocations, err := s.GetStores().PaymentRepo.ListAllocationsByCharge(s.GetContext(), id)
		s.NoError(err)
		s.Empty(allocations)
	}
	s.Empty(s.GetPublisher().GetEvents())
}

func (s *PaymentAllocatorServiceSuite) TestAllocateRetriesOnConflict() {
	s.GetStores().ChargeRepo.SetUpdateConflicts(1)

	resp, err := s.allocate("180")
	s.Require().NoError(err)
	// the rolled back attempt consumed REC-000001
	s.Equal("REC-000002", resp.ReceiptNumber)
	s.Equal(1, s.GetStores().PaymentRepo.Count(s.GetContext()))
	s.True(s.getCharge(s.testData.chargeB.ID).Balance.Equal(decimal.NewFromInt(70)))
	s.assertBalanced(s.testData.chargeA.ID, s.testData.chargeB.ID)
}

func (s *PaymentAllocatorServiceSuite) TestAllocateGivesUpAfterRetries() {
	s.GetStores().ChargeRepo.SetUpdateConflicts(100)

	_, err := s.allocate("180")
	s.Error(err)
	s.True(ierr.IsVersionConflict(err))
	s.Equal(0, s.GetStores().PaymentRepo.Count(s.GetContext()))
	s.True(s.getCharge(s.testData.chargeA.ID).AmountPaid.IsZero())
}

func (s *PaymentAllocatorServiceSuite) TestAllocateIdempotencyKey() {
	req := &dto.AllocatePaymentRequest{
		ClientID:       "client_1",
		Amount:         decimal.NewFromInt(120),
		PaymentMethod:  types.PaymentMethodTransfer,
		IdempotencyKey: lo.ToPtr("bank-tx-991"),
	}

	first, err := s.service.Allocate(s.GetContext(), req)
	s.Require().NoError(err)
	s.False(first.Replayed)

	second, err := s.service.Allocate(s.GetContext(), req)
	s.Require().NoError(err)
	s.True(second.Replayed)
	s.Equal(first.ReceiptNumber, second.ReceiptNumber)
	s.Equal(first.Payment.ID, second.Payment.ID)
	s.Require().Len(second.Allocations, 2)
	s.True(second.TotalApplied().Equal(decimal.NewFromInt(120)))

	s.Equal(1, s.GetStores().PaymentRepo.Count(s.GetContext()))
	s.True(s.getCharge(s.testData.chargeB.ID).AmountPaid.Equal(decimal.NewFromInt(20)))
	s.Len(s.GetPublisher().EventsNamed(types.EventPaymentAllocated), 1)
}

func (s *PaymentAllocatorServiceSuite) TestAllocateDerivedKeyFromReference() {
	req := &dto.AllocatePaymentRequest{
		ClientID:      "client_1",
		Amount:        decimal.NewFromInt(300),
		PaymentMethod: types.PaymentMethodDeposit,
		Reference:     lo.ToPtr("DEP-2024-001"),
	}

	first, err := s.service.Allocate(s.GetContext(), req)
	s.Require().NoError(err)
	s.Require().NotNil(first.Payment.IdempotencyKey)

	second, err := s.service.Allocate(s.GetContext(), req)
	s.Require().NoError(err)
	s.True(second.Replayed)
	s.True(second.CreditCreated.Equal(decimal.NewFromInt(50)))

	// without a reference the same payment is recorded twice
	_, err = s.allocate("10")
	s.Require().NoError(err)
	_, err = s.allocate("10")
	s.Require().NoError(err)
	s.Equal(3, s.GetStores().PaymentRepo.Count(s.GetContext()))
}

func (s *PaymentAllocatorServiceSuite) TestConcurrentAllocationsNeverOverApply() {
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.allocate("20")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	s.Equal(20, s.GetStores().PaymentRepo.Count(s.GetContext()))
	s.Equal(types.ChargeStatePaid, s.getCharge(s.testData.chargeA.ID).ChargeState)
	s.Equal(types.ChargeStatePaid, s.getCharge(s.testData.chargeB.ID).ChargeState)
	s.assertBalanced(s.testData.chargeA.ID, s.testData.chargeB.ID)

	credit, err := s.GetStores().CreditRepo.SumAvailable(s.GetContext(), "client_1")
	s.NoError(err)
	s.True(credit.Equal(decimal.NewFromInt(150)), credit.String())
}

func (s *PaymentAllocatorServiceSuite) TestCancelPayment() {
	resp, err := s.allocate("300")
	s.Require().NoError(err)

	cancelled, err := s.service.CancelPayment(s.GetContext(), resp.Payment.ID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStateCancelled, cancelled.PaymentState)
	s.NotNil(cancelled.CancelledAt)

	for _, id := range []string{s.testData.chargeA.ID, s.testData.chargeB.ID} {
		c := s.getCharge(id)
		s.True(c.AmountPaid.IsZero())
		s.Equal(types.ChargeStatePending, c.ChargeState)
	}
	s.assertBalanced(s.testData.chargeA.ID, s.testData.chargeB.ID)

	cr, err := s.GetStores().CreditRepo.GetByOriginPayment(s.GetContext(), resp.Payment.ID)
	s.Require().NoError(err)
	s.False(cr.Active)
	s.True(cr.AvailableAmount.IsZero())

	_, err = s.service.CancelPayment(s.GetContext(), resp.Payment.ID)
	s.True(ierr.IsInvalidOperation(err))

	// the charges can be paid again
	again, err := s.allocate("100")
	s.Require().NoError(err)
	s.Equal(s.testData.chargeA.ID, again.Allocations[0].ChargeID)
	s.Len(s.GetPublisher().EventsNamed(types.EventPaymentCancelled), 1)
}

func (s *PaymentAllocatorServiceSuite) TestCancelPaymentOfCancelledCharge() {
	resp, err := s.allocate("40")
	s.Require().NoError(err)
	_, err = s.ledger.CancelCharge(s.GetContext(), s.testData.chargeA.ID)
	s.Require().NoError(err)

	_, err = s.service.CancelPayment(s.GetContext(), resp.Payment.ID)
	s.Require().NoError(err)

	a := s.getCharge(s.testData.chargeA.ID)
	s.Equal(types.ChargeStateCancelled, a.ChargeState)
	s.True(a.AmountPaid.IsZero())
}

func (s *PaymentAllocatorServiceSuite) TestGetPayment() {
	_, err := s.service.GetPayment(s.GetContext(), "pay_missing")
	s.True(ierr.IsNotFound(err))

	_, err = s.service.GetPaymentByReceipt(s.GetContext(), "")
	s.True(ierr.IsValidation(err))
}
