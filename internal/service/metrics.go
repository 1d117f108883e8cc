package service

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/meep1w/pocket/pkg/telemetry"
)

var (
	ingestMetricOnce sync.Once
	ingestCounter    *telemetry.Counter
)

// countIngest records one postback ingestion outcome. When metric
// creation fails the counter stays nil and counts are dropped.
func countIngest(ctx context.Context, outcome string) {
	ingestMetricOnce.Do(func() {
		ingestCounter, _ = telemetry.NewCounter(telemetry.MetricOpts{
			Name:        "postbacks_ingested_total",
			Description: "Postbacks received, by outcome",
			Unit:        "{postback}",
		})
	})
	if ingestCounter == nil {
		return
	}
	ingestCounter.Inc(ctx, attribute.String("outcome", outcome))
}
