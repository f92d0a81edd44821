package errutil

import (
	"context"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
)

// Handle logs the error with a message and reports it to Sentry when a client
// is bound to the current hub. The error is returned unchanged.
func Handle(ctx context.Context, err error, msg string) error {
	if err == nil {
		return nil
	}

	logger := logging.From(ctx)

	var ge *goerr.Error
	if errors.As(err, &ge) {
		logger.Error(msg,
			"error", err.Error(),
			"values", ge.Values(),
			"stack", ge.Stacks(),
		)
	} else {
		logger.Error(msg, "error", err.Error())
	}

	report(ctx, err, msg)
	return err
}

// HandleHTTP logs a failed request. Only 5xx statuses are forwarded to Sentry;
// 4xx are caller mistakes and logged at warn level.
func HandleHTTP(ctx context.Context, err error, statusCode int) {
	if err == nil {
		return
	}

	logger := logging.From(ctx)
	attrs := []any{"status", statusCode, "error", err.Error()}

	var ge *goerr.Error
	if errors.As(err, &ge) {
		attrs = append(attrs, "values", ge.Values())
		if statusCode >= http.StatusInternalServerError {
			attrs = append(attrs, "stack", ge.Stacks())
		}
	}

	if statusCode < http.StatusInternalServerError {
		logger.Warn("HTTP request rejected", attrs...)
		return
	}

	logger.Error("HTTP error", attrs...)
	report(ctx, err, "HTTP error")
}

func report(ctx context.Context, err error, msg string) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}

	hub = hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("message", msg)
		if ge := goerr.Unwrap(err); ge != nil {
			ctxValues := sentry.Context{}
			for k, v := range ge.Values() {
				ctxValues[k] = v
			}
			scope.SetContext("goerr", ctxValues)
		}
	})
	hub.CaptureException(err)
}
