package router

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/flexprice/ispledger/internal/config"
	"github.com/flexprice/ispledger/internal/logger"
	"github.com/flexprice/ispledger/internal/pubsub"
	"github.com/flexprice/ispledger/internal/sentry"
)

// Router manages all message routing
type Router struct {
	router *message.Router
	logger *logger.Logger
	sentry *sentry.Service
	config *config.EventConfig
}

// NewRouter creates the ledger message router. Messages that still fail after the retries,
// or fail with an error retrying cannot fix, go to the poison topic.
func NewRouter(cfg *config.Configuration, logger *logger.Logger, sentry *sentry.Service, ps pubsub.PubSub) (*Router, error) {
	router, err := message.NewRouter(
		message.RouterConfig{},
		logger.GetWatermillLogger(),
	)
	if err != nil {
		return nil, err
	}

	poisonQueue, err := middleware.PoisonQueue(publisherAdapter{ps}, cfg.Event.PoisonTopic)
	if err != nil {
		return nil, err
	}

	maxRetries, initialInterval := cfg.Event.RetryPolicy()

	// Add middleware in correct order
	router.AddMiddleware(
		poisonQueue,
		middleware.Recoverer,     // Recover from panics
		middleware.CorrelationID, // Add correlation IDs
		retryMiddleware(logger, maxRetries, initialInterval),
	)

	return &Router{
		router: router,
		logger: logger,
		sentry: sentry,
		config: &cfg.Event,
	}, nil
}

// AddNoPublishHandler adds a handler that doesn't publish messages
func (r *Router) AddNoPublishHandler(
	handlerName string,
	topicName string,
	subscriber message.Subscriber,
	handlerFunc func(msg *message.Message) error,
	middlewares ...message.HandlerMiddleware,
) {
	handler := r.router.AddNoPublisherHandler(
		handlerName,
		topicName,
		subscriber,
		func(msg *message.Message) error {
			ctx, cancel := context.WithTimeout(msg.Context(), handlerTimeout)
			defer cancel()
			msg.SetContext(ctx)

			err := handlerFunc(msg)
			if err != nil {
				r.sentry.CaptureException(err)
				r.logger.Errorw("handler failed",
					"handler", handlerName,
					"topic", topicName,
					"error", err,
					"correlation_id", middleware.MessageCorrelationID(msg),
					"message_uuid", msg.UUID,
				)
			}
			return err
		},
	)

	for _, middleware := range middlewares {
		handler.AddMiddleware(middleware)
	}
}

// Run starts the router and blocks until ctx is cancelled or Close is called
func (r *Router) Run(ctx context.Context) error {
	r.logger.Info("starting router")
	return r.router.Run(ctx)
}

// Running is closed once all handlers are subscribed
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

// Close gracefully shuts down the router
func (r *Router) Close() error {
	r.logger.Info("closing router")
	return r.router.Close()
}

// publisherAdapter lets the poison queue publish through a pubsub.Publisher
type publisherAdapter struct {
	publisher pubsub.Publisher
}

func (a publisherAdapter) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		ctx := msg.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := a.publisher.Publish(ctx, topic, msg); err != nil {
			return err
		}
	}
	return nil
}

func (a publisherAdapter) Close() error {
	return nil
}

// handlerTimeout bounds one delivery of a message, retries included
const handlerTimeout = 2 * time.Minute
