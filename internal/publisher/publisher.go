package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/flexprice/ispledger/internal/config"
	"github.com/flexprice/ispledger/internal/logger"
	"github.com/flexprice/ispledger/internal/pubsub"
	"github.com/flexprice/ispledger/internal/pubsub/kafka"
	"github.com/flexprice/ispledger/internal/types"
)

// LedgerEvent is the envelope of an outbound ledger notification
type LedgerEvent struct {
	ID        string                `json:"id"`
	Name      types.LedgerEventName `json:"event_name"`
	TenantID  string                `json:"tenant_id"`
	ClientID  string                `json:"client_id"`
	Timestamp time.Time             `json:"timestamp"`
	Payload   json.RawMessage       `json:"payload"`
}

// NewLedgerEvent wraps payload in an envelope stamped from the context
func NewLedgerEvent(ctx context.Context, name types.LedgerEventName, clientID string, payload interface{}) (*LedgerEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &LedgerEvent{
		ID:        types.GenerateUUID(),
		Name:      name,
		TenantID:  types.GetTenantID(ctx),
		ClientID:  clientID,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

// EventPublisher sends ledger notifications once the transaction that produced them committed
type EventPublisher interface {
	Publish(ctx context.Context, event *LedgerEvent) error
}

type eventPublisher struct {
	pubsub pubsub.Publisher
	topic  string
	logger *logger.Logger
}

// NewEventPublisher returns a publisher writing to the notification topic, or one that drops
// every event when notifications are disabled
func NewEventPublisher(cfg *config.Configuration, logger *logger.Logger, ps pubsub.PubSub) EventPublisher {
	if !cfg.Event.PublishNotifications {
		logger.Infow("ledger notifications disabled")
		return NewNoopPublisher()
	}
	return &eventPublisher{
		pubsub: ps,
		topic:  cfg.Event.NotificationTopic,
		logger: logger,
	}
}

func (p *eventPublisher) Publish(ctx context.Context, event *LedgerEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_name", event.Name.String())
	msg.Metadata.Set("tenant_id", event.TenantID)
	msg.Metadata.Set(kafka.PartitionKeyMetadata, event.TenantID+":"+event.ClientID)
	if requestID := types.GetRequestID(ctx); requestID != "" {
		middleware.SetCorrelationID(requestID, msg)
	}

	p.logger.Debugw("publishing ledger event",
		"event_id", event.ID,
		"event_name", event.Name,
		"client_id", event.ClientID,
		"topic", p.topic,
	)

	return p.pubsub.Publish(ctx, p.topic, msg)
}

type noopPublisher struct{}

func NewNoopPublisher() EventPublisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, *LedgerEvent) error {
	return nil
}
