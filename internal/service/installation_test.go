package service

import (
	"testing"

	"github.com/flexprice/ispledger/internal/api/dto"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/testutil"
	"github.com/flexprice/ispledger/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type InstallationServiceSuite struct {
	testutil.BaseServiceTestSuite
	service InstallationService
}

func TestInstallationService(t *testing.T) {
	suite.Run(t, new(InstallationServiceSuite))
}

func (s *InstallationServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewInstallationService(testServiceParams(&s.BaseServiceTestSuite))
}

func (s *InstallationServiceSuite) TestCompleteInstallation() {
	sub := s.CreateSubscription("client_1", "300", 10, testutil.Date(2024, 6, 1))
	req := &dto.CompleteInstallationRequest{
		SubscriptionID:  sub.ID,
		InstalledAt:     testutil.Date(2024, 6, 1),
		InstallationFee: decimal.NewFromInt(500),
	}

	resp, err := s.service.CompleteInstallation(s.GetContext(), req)
	s.Require().NoError(err)
	s.Require().NotNil(resp.InstallationCharge)
	s.Require().NotNil(resp.ProrationCharge)

	fee := resp.InstallationCharge
	s.Equal(types.ChargeTypeInstallation, fee.ChargeType)
	s.Equal("Installation", fee.Concept)
	s.True(fee.Amount.Equal(decimal.NewFromInt(500)))
	s.Equal(testutil.Date(2024, 6, 1), fee.DueDate)
	s.Nil(fee.Period)

	s.True(resp.ProrationCharge.Amount.Equal(decimal.NewFromInt(90)))
	s.Len(s.GetPublisher().EventsNamed(types.EventChargeCreated), 2)

	// repeated delivery bills nothing new
	again, err := s.service.CompleteInstallation(s.GetContext(), req)
	s.Require().NoError(err)
	s.Nil(again.InstallationCharge)
	s.Nil(again.ProrationCharge)

	outstanding, err := s.GetStores().ChargeRepo.ListOutstanding(s.GetContext(), "client_1")
	s.NoError(err)
	s.Len(outstanding, 2)
	s.Len(s.GetPublisher().EventsNamed(types.EventChargeCreated), 2)
}

func (s *InstallationServiceSuite) TestCompleteInstallationWithoutCharges() {
	sub := s.CreateSubscription("client_1", "600", 10, testutil.Date(2024, 6, 10))

	resp, err := s.service.CompleteInstallation(s.GetContext(), &dto.CompleteInstallationRequest{
		SubscriptionID:  sub.ID,
		InstalledAt:     testutil.Date(2024, 6, 10),
		InstallationFee: decimal.Zero,
		Concept:         "Fiber drop",
	})
	s.Require().NoError(err)
	s.Nil(resp.InstallationCharge)
	s.Nil(resp.ProrationCharge)
	s.Empty(s.GetPublisher().GetEvents())
}

func (s *InstallationServiceSuite) TestCompleteInstallationRejected() {
	sub := s.CreateSubscription("client_1", "300", 10, testutil.Date(2024, 6, 1))
	sub.SubscriptionStatus = types.SubscriptionStatusCancelled
	s.GetStores().SubscriptionRepo.Put(s.GetContext(), sub)

	_, err := s.service.CompleteInstallation(s.GetContext(), &dto.CompleteInstallationRequest{
		SubscriptionID:  sub.ID,
		InstalledAt:     testutil.Date(2024, 6, 1),
		InstallationFee: decimal.NewFromInt(500),
	})
	s.True(ierr.IsInvalidOperation(err))

	_, err = s.service.CompleteInstallation(s.GetContext(), &dto.CompleteInstallationRequest{
		SubscriptionID:  sub.ID,
		InstalledAt:     testutil.Date(2024, 6, 1),
		InstallationFee: decimal.NewFromInt(-1),
	})
	s.True(ierr.IsValidation(err))

	charges, err := s.GetStores().ChargeRepo.ListBySubscription(s.GetContext(), sub.ID, types.ChargeTypeInstallation)
	s.NoError(err)
	s.Empty(charges)
}

func (s *InstallationServiceSuite) TestCompleteInstallationRollsBack() {
	// a subscription with a broken cutoff day fails the proration after the fee was inserted
	sub := s.CreateSubscription("client_1", "300", 0, testutil.Date(2024, 6, 1))

	_, err := s.service.CompleteInstallation(s.GetContext(), &dto.CompleteInstallationRequest{
		SubscriptionID:  sub.ID,
		InstalledAt:     testutil.Date(2024, 6, 1),
		InstallationFee: decimal.NewFromInt(500),
	})
	s.True(ierr.IsValidation(err))

	charges, err := s.GetStores().ChargeRepo.ListBySubscription(s.GetContext(), sub.ID, types.ChargeTypeInstallation)
	s.NoError(err)
	s.Empty(charges)
	s.Empty(s.GetPublisher().GetEvents())
}
