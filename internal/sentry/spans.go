package sentry

import (
	"context"

	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/getsentry/sentry-go"
)

// StartRepositorySpan creates a new span for a repository operation.
// Returns nil when no Sentry hub is bound to the context.
func StartRepositorySpan(ctx context.Context, repository, operation string, params map[string]interface{}) *sentry.Span {
	if sentry.GetHubFromContext(ctx) == nil {
		return nil
	}

	span := sentry.StartSpan(ctx, "repository."+repository+"."+operation)
	span.Description = "repository." + repository + "." + operation
	span.Op = "db.postgres"
	span.SetData("repository", repository)
	span.SetData("operation", operation)
	for k, v := range params {
		span.SetData(k, v)
	}

	return span
}

// FinishSpan safely finishes a span, handling nil spans
func FinishSpan(span *sentry.Span) {
	if span != nil {
		span.Finish()
	}
}

// SetSpanError marks a span as failed and adds error information
func SetSpanError(span *sentry.Span, err error) {
	if span == nil || err == nil {
		return
	}

	span.Status = sentry.SpanStatusInternalError
	// a missing record or a lost race is an expected outcome, not a failure of the store
	if ierr.IsNotFound(err) {
		span.Status = sentry.SpanStatusNotFound
	} else if ierr.IsConflict(err) {
		span.Status = sentry.SpanStatusAborted
	}
	span.SetData("error", err.Error())
	span.SetData("error.code", ierr.Code(err))
}

// SetSpanSuccess marks a span as successful
func SetSpanSuccess(span *sentry.Span) {
	if span != nil {
		span.Status = sentry.SpanStatusOK
	}
}
