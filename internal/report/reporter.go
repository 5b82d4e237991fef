package report

import (
	"context"
	"errors"
	"os"
	"runtime"

	"github.com/getsentry/sentry-go"
)

// ConfigureScope tags every event with the deployment and the host it came from.
func ConfigureScope(env, version string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("service", "busesareus")
		scope.SetTag("env", env)
		scope.SetTag("app_version", version)
		scope.SetTag("go_version", runtime.Version())
		scope.SetContext("host_info", map[string]interface{}{
			"hostname": hostname(),
			"goos":     runtime.GOOS,
			"goarch":   runtime.GOARCH,
			"num_cpu":  runtime.NumCPU(),
		})
	})
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}

// reportable is false for nil errors and for requests the client abandoned.
func reportable(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// ReportError reports err at the given level, sentry.LevelError by default.
func ReportError(err error, levels ...sentry.Level) {
	opts := SentryReportOptions{Level: sentry.LevelError}
	if len(levels) > 0 {
		opts.Level = levels[0]
	}
	ReportErrorWithSentryOptions(err, opts)
}

// SentryReportOptions provides optional data for reporting.
type SentryReportOptions struct {
	ExtraContext map[string]interface{}
	Tags         map[string]string
	Level        sentry.Level
}

func (o SentryReportOptions) apply(scope *sentry.Scope) {
	if o.ExtraContext != nil {
		scope.SetContext("extra", o.ExtraContext)
	}
	scope.SetTags(o.Tags)
	if o.Level != "" {
		scope.SetLevel(o.Level)
	}
}

// ReportErrorWithSentryOptions reports err with the given tags, context and level.
func ReportErrorWithSentryOptions(err error, opts SentryReportOptions) {
	if !reportable(err) {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		opts.apply(scope)
		sentry.CaptureException(err)
	})
}
