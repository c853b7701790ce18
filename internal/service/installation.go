package service

import (
	"context"
	"time"

	"github.com/flexprice/ispledger/internal/api/dto"
	"github.com/flexprice/ispledger/internal/domain/charge"
	"github.com/flexprice/ispledger/internal/domain/subscription"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/types"
)

const defaultInstallationConcept = "Installation"

// InstallationService bills a subscription whose service was just installed
type InstallationService interface {
	// CompleteInstallation creates the installation fee and the proration of the installation month
	// in one transaction. Repeating it for the same subscription creates nothing new.
	CompleteInstallation(ctx context.Context, req *dto.CompleteInstallationRequest) (*dto.CompleteInstallationResponse, error)
}

type installationService struct {
	ServiceParams
}

func NewInstallationService(params ServiceParams) InstallationService {
	return &installationService{
		ServiceParams: params,
	}
}

func (s *installationService) CompleteInstallation(ctx context.Context, req *dto.CompleteInstallationRequest) (resp *dto.CompleteInstallationResponse, err error) {
	defer func(start time.Time) { s.Metrics.ObserveOperation("complete_installation", start, err) }(time.Now())

	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if !sub.IsActive() {
		return nil, ierr.NewError("subscription not active").
			WithHintf("Subscription %s is %s", sub.ID, sub.SubscriptionStatus).
			WithReportableDetails(map[string]any{
				"subscription_id":     sub.ID,
				"subscription_status": sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	resp = &dto.CompleteInstallationResponse{SubscriptionID: sub.ID}
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.ChargeRepo.LockClient(ctx, sub.ClientID); err != nil {
			return err
		}

		fee, err := s.createInstallationFee(ctx, sub, req)
		if err != nil {
			return err
		}
		resp.InstallationCharge = fee

		prorated, err := s.createProration(ctx, sub, req.InstalledAt)
		if err != nil {
			return err
		}
		resp.ProrationCharge = prorated
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, c := range []*charge.Charge{resp.InstallationCharge, resp.ProrationCharge} {
		if c == nil {
			continue
		}
		s.Metrics.IncrChargeCreated(c.ChargeType.String())
		s.publish(ctx, types.EventChargeCreated, c.ClientID, c)
	}

	s.Logger.Infow("completed installation billing",
		"subscription_id", sub.ID,
		"client_id", sub.ClientID,
		"installed_at", req.InstalledAt,
		"installation_charge", resp.InstallationCharge != nil,
		"proration_charge", resp.ProrationCharge != nil,
	)
	return resp, nil
}

// createInstallationFee returns nil when there is no fee or the subscription already has one.
// The caller holds the client lock.
func (s *installationService) createInstallationFee(ctx context.Context, sub *subscription.Subscription, req *dto.CompleteInstallationRequest) (*charge.Charge, error) {
	if !req.InstallationFee.IsPositive() {
		return nil, nil
	}

	existing, err := s.ChargeRepo.ListBySubscription(ctx, sub.ID, types.ChargeTypeInstallation)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		s.Logger.Infow("installation already billed",
			"subscription_id", sub.ID,
			"charge_id", existing[0].ID,
		)
		return nil, nil
	}

	concept := req.Concept
	if concept == "" {
		concept = defaultInstallationConcept
	}

	c := charge.NewCharge(ctx, sub.ClientID, sub.ID, types.ChargeTypeInstallation, concept,
		req.InstallationFee.Round(2), req.InstalledAt, req.InstalledAt, nil)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.insertCharge(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
