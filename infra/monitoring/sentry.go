// Package monitoring reports harvest planning failures to Sentry. The
// service captures solver errors (module "optimizer"), run log and
// workbook failures (modules "planlog" and "store") and API errors that end
// in a 500 (module "api").
package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/keilos1/harvestplan/config"
	coremon "github.com/keilos1/harvestplan/core/monitoring"
)

// runTag is kept out of the indexed tags; every solve has its own run id.
const runTag = "run_id"

// NewSentryMonitor initializes Sentry from cfg. Without a DSN it returns a
// NopMonitor.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
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
	return &sentryMonitor{}, nil
}

type sentryMonitor struct{}

// CaptureException groups events by module so that every failed solve of
// the same kind lands in one issue. The run id goes to the "run" context.
func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			if k == runTag {
				scope.SetContext("run", sentry.Context{"id": v})
				continue
			}
			scope.SetTag(k, v)
		}
		if module, ok := tags["module"]; ok {
			scope.SetFingerprint([]string{"{{ default }}", module})
		}
		sentry.CaptureException(err)
	})
}

func (s *sentryMonitor) CapturePanic(v any) {
	sentry.CurrentHub().Recover(v)
}

func (s *sentryMonitor) Flush(timeout time.Duration) { sentry.Flush(timeout) }
