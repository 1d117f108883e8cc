package supervisor

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/meep1w/pocket/pkg/telemetry"
)

var (
	workerMetricOnce sync.Once
	workerGauge      *telemetry.Gauge
)

// recordWorkerGauge publishes the worker counts per state. When metric
// creation fails the gauge stays nil and values are dropped.
func recordWorkerGauge(stats Stats) {
	workerMetricOnce.Do(func() {
		workerGauge, _ = telemetry.NewGauge(telemetry.MetricOpts{
			Name:        "bot_workers",
			Description: "Bot workers by state",
			Unit:        "{worker}",
		})
	})
	if workerGauge == nil {
		return
	}
	ctx := context.Background()
	workerGauge.Record(ctx, int64(stats.Running), attribute.String("state", "running"))
	workerGauge.Record(ctx, int64(stats.Backoff), attribute.String("state", "backoff"))
	workerGauge.Record(ctx, int64(stats.Degraded), attribute.String("state", "degraded"))
}
