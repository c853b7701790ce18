package service

import (
	"testing"

	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/testutil"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type CreditBalanceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service CreditBalanceService
}

func TestCreditBalanceService(t *testing.T) {
	suite.Run(t, new(CreditBalanceServiceSuite))
}

func (s *CreditBalanceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewCreditBalanceService(testServiceParams(&s.BaseServiceTestSuite))
}

func (s *CreditBalanceServiceSuite) TestRecordAndQueryCredit() {
	available, err := s.service.AvailableCredit(s.GetContext(), "client_1")
	s.NoError(err)
	s.True(available.IsZero())

	first, err := s.service.RecordCredit(s.GetContext(), "client_1", decimal.NewFromInt(50), "pay_1")
	s.Require().NoError(err)
	s.True(first.Active)
	s.True(first.AvailableAmount.Equal(first.OriginalAmount))

	_, err = s.service.RecordCredit(s.GetContext(), "client_1", decimal.RequireFromString("12.25"), "pay_2")
	s.Require().NoError(err)
	_, err = s.service.RecordCredit(s.GetContext(), "client_2", decimal.NewFromInt(99), "pay_3")
	s.Require().NoError(err)

	available, err = s.service.AvailableCredit(s.GetContext(), "client_1")
	s.NoError(err)
	s.True(available.Equal(decimal.RequireFromString("62.25")), available.String())

	credits, err := s.service.ListActiveCredits(s.GetContext(), "client_1")
	s.NoError(err)
	s.Len(credits, 2)
	s.Len(s.GetPublisher().EventsNamed(types.EventCreditRecorded), 3)
}

func (s *CreditBalanceServiceSuite) TestRecordCreditValidation() {
	_, err := s.service.RecordCredit(s.GetContext(), "client_1", decimal.Zero, "pay_1")
	s.True(ierr.IsValidation(err))

	_, err = s.service.RecordCredit(s.GetContext(), "", decimal.NewFromInt(10), "pay_1")
	s.True(ierr.IsValidation(err))

	_, err = s.service.RecordCredit(s.GetContext(), "client_1", decimal.NewFromInt(10), "pay_1")
	s.Require().NoError(err)
	_, err = s.service.RecordCredit(s.GetContext(), "client_1", decimal.NewFromInt(10), "pay_1")
	s.True(ierr.IsAlreadyExists(err))

	_, err = s.service.AvailableCredit(s.GetContext(), "")
	s.True(ierr.IsValidation(err))
}
