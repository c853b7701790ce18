package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/flexprice/ispledger/internal/api/dto"
	"github.com/flexprice/ispledger/internal/logger"
	"github.com/flexprice/ispledger/internal/metrics"
	"github.com/flexprice/ispledger/internal/pubsub"
	pubsubRouter "github.com/flexprice/ispledger/internal/pubsub/router"
	"github.com/flexprice/ispledger/internal/service"
	"github.com/flexprice/ispledger/internal/types"
)

const (
	statusProcessed = "processed"
	statusFailed    = "failed"
	statusDropped   = "dropped"
)

// Handler consumes the commands other systems send to the ledger
type Handler interface {
	RegisterHandlers(router *pubsubRouter.Router)
}

type handler struct {
	pubSub       pubsub.PubSub
	installation service.InstallationService
	recurring    service.RecurringChargeService
	allocator    service.PaymentAllocatorService
	metrics      *metrics.Metrics
	logger       *logger.Logger
}

func NewHandler(
	pubSub pubsub.PubSub,
	installation service.InstallationService,
	recurring service.RecurringChargeService,
	allocator service.PaymentAllocatorService,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) Handler {
	return &handler{
		pubSub:       pubSub,
		installation: installation,
		recurring:    recurring,
		allocator:    allocator,
		metrics:      metrics,
		logger:       logger,
	}
}

func (h *handler) RegisterHandlers(router *pubsubRouter.Router) {
	router.AddNoPublishHandler(
		"installation_completed_handler",
		types.TopicInstallationCompleted,
		h.pubSub,
		h.processInstallationCompleted,
	)
	router.AddNoPublishHandler(
		"period_rollover_handler",
		types.TopicPeriodRollover,
		h.pubSub,
		h.processPeriodRollover,
	)
	router.AddNoPublishHandler(
		"payment_received_handler",
		types.TopicPaymentReceived,
		h.pubSub,
		h.processPaymentReceived,
	)

	h.logger.Infow("registered ledger event handlers",
		"topics", []string{
			types.TopicInstallationCompleted,
			types.TopicPeriodRollover,
			types.TopicPaymentReceived,
		},
	)
}

func (h *handler) processInstallationCompleted(msg *message.Message) error {
	var req dto.CompleteInstallationRequest
	if !h.decode(msg, types.TopicInstallationCompleted, &req) {
		return nil
	}

	ctx := h.messageContext(msg)
	resp, err := h.installation.CompleteInstallation(ctx, &req)
	if err != nil {
		return h.failed(msg, types.TopicInstallationCompleted, err)
	}

	h.metrics.IncrEventProcessed(types.TopicInstallationCompleted, statusProcessed)
	h.logger.Infow("processed installation completed event",
		"message_uuid", msg.UUID,
		"subscription_id", resp.SubscriptionID,
		"installation_charge", resp.InstallationCharge != nil,
		"proration_charge", resp.ProrationCharge != nil,
	)
	return nil
}

func (h *handler) processPeriodRollover(msg *message.Message) error {
	var req dto.PeriodRolloverRequest
	if !h.decode(msg, types.TopicPeriodRollover, &req) {
		return nil
	}
	if err := req.Validate(); err != nil {
		return h.failed(msg, types.TopicPeriodRollover, err)
	}

	ctx := h.messageContext(msg)
	resp, err := h.recurring.RunBillingPeriod(ctx, req.Period())
	if err != nil {
		return h.failed(msg, types.TopicPeriodRollover, err)
	}

	h.metrics.IncrEventProcessed(types.TopicPeriodRollover, statusProcessed)
	h.logger.Infow("processed period rollover event",
		"message_uuid", msg.UUID,
		"run_id", resp.RunID,
		"period", resp.Period,
		"created", resp.Created,
		"skipped", resp.Skipped,
		"failed", resp.Failed,
	)
	return nil
}

func (h *handler) processPaymentReceived(msg *message.Message) error {
	var req dto.AllocatePaymentRequest
	if !h.decode(msg, types.TopicPaymentReceived, &req) {
		return nil
	}

	// a redelivered message must not record the payment twice; payments with a reference
	// already get a key derived from it
	if req.IdempotencyKey == nil && req.Reference == nil && msg.UUID != "" {
		key := "msg_" + msg.UUID
		req.IdempotencyKey = &key
	}

	ctx := h.messageContext(msg)
	resp, err := h.allocator.Allocate(ctx, &req)
	if err != nil {
		return h.failed(msg, types.TopicPaymentReceived, err)
	}

	h.metrics.IncrEventProcessed(types.TopicPaymentReceived, statusProcessed)
	h.logger.Infow("processed payment received event",
		"message_uuid", msg.UUID,
		"payment_id", resp.Payment.ID,
		"receipt_number", resp.ReceiptNumber,
		"replayed", resp.Replayed,
	)
	return nil
}

// decode reports false when the payload is unusable; such messages are acked and dropped
func (h *handler) decode(msg *message.Message, topic string, into any) bool {
	if err := json.Unmarshal(msg.Payload, into); err != nil {
		h.logger.Errorw("failed to unmarshal ledger event",
			"error", err,
			"topic", topic,
			"message_uuid", msg.UUID,
		)
		h.metrics.IncrEventProcessed(topic, statusDropped)
		// Don't retry on unmarshal errors
		return false
	}
	return true
}

func (h *handler) failed(msg *message.Message, topic string, err error) error {
	h.metrics.IncrEventProcessed(topic, statusFailed)
	h.logger.Errorw("failed to process ledger event",
		"error", err,
		"topic", topic,
		"message_uuid", msg.UUID,
	)
	return err
}

func (h *handler) messageContext(msg *message.Message) context.Context {
	ctx := msg.Context()
	if tenantID := msg.Metadata.Get("tenant_id"); tenantID != "" {
		ctx = types.SetTenantID(ctx, tenantID)
	}
	if correlationID := middleware.MessageCorrelationID(msg); correlationID != "" {
		ctx = types.SetRequestID(ctx, correlationID)
	}
	return types.WithDefaultTenant(ctx)
}
