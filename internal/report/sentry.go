package report

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// SetupSentry initializes the Sentry client. An empty dsn leaves reporting
// disabled; every report call is then a no-op.
func SetupSentry(dsn, env string) error {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      env,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
	}); err != nil {
		return err
	}
	sentry.CaptureMessage("busesareus started")
	return nil
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
