package metrics

import (
	"context"
	"fmt"

	"busesareus.org/internal/report"
	"busesareus.org/internal/utils"
)

// Pinger checks that an upstream server answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerPing pings the OneBusAway server at baseURL and records the result
// in ObaApiStatus.
func ServerPing(ctx context.Context, pinger Pinger, baseURL string) error {
	if err := pinger.Ping(ctx); err != nil {
		err = fmt.Errorf("failed to ping OBA server %s: %w", baseURL, err)
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags: utils.MakeMap("oba_base_url", baseURL),
		})
		ObaApiStatus.WithLabelValues(baseURL).Set(0)
		return err
	}
	ObaApiStatus.WithLabelValues(baseURL).Set(1)
	return nil
}
