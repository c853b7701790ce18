package router

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/cenkalti/backoff/v4"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/logger"
)

func shouldRetry(logger *logger.Logger, err error) bool {
	// Business outcomes never change on a retry
	if ierr.IsValidation(err) ||
		ierr.IsNotFound(err) ||
		ierr.IsAlreadyExists(err) ||
		ierr.IsInvalidOperation(err) ||
		ierr.IsInvariantViolation(err) {
		logger.Debugw("non-retryable error", "error", err, "code", ierr.Code(err))
		return false
	}

	// Lost races, database and unknown errors
	return true
}

// retryMiddleware retries a failing handler with exponential backoff, giving up at once on
// errors that retrying cannot fix so the poison queue receives them immediately
func retryMiddleware(logger *logger.Logger, maxRetries int, initialInterval time.Duration) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initialInterval
			b.MaxElapsedTime = handlerTimeout

			var produced []*message.Message
			attempt := 0
			err := backoff.Retry(func() error {
				var err error
				produced, err = h(msg)
				if err == nil {
					return nil
				}
				if !shouldRetry(logger, err) {
					return backoff.Permanent(err)
				}
				attempt++
				if attempt <= maxRetries {
					logger.Infow("retrying message",
						"retry_number", attempt,
						"max_retries", maxRetries,
						"correlation_id", middleware.MessageCorrelationID(msg),
						"error", err,
					)
				}
				return err
			}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), msg.Context()))

			return produced, err
		}
	}
}
