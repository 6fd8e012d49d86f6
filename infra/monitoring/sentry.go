// Package monitoring reports CLI errors to Sentry.
package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/evcharge/config"
	coremon "github.com/kilianp07/evcharge/core/monitoring"
)

// NewSentryReporter initializes Sentry from cfg. An empty DSN yields the
// no-op reporter.
func NewSentryReporter(cfg config.SentryConfig) (coremon.Reporter, error) {
	if cfg.DSN == "" {
		return coremon.NopReporter{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
	})
	if err != nil {
		return nil, err
	}
	return sentryReporter{}, nil
}

type sentryReporter struct{}

func (sentryReporter) CaptureError(err error, tags map[string]string) {
	if len(tags) == 0 {
		sentry.CaptureException(err)
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

func (sentryReporter) Flush(timeout time.Duration) { sentry.Flush(timeout) }
