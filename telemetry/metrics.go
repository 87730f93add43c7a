package telemetry

import (
	"fmt"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics exposed in watch mode, following OTEL naming conventions
var (
	Meter = otel.Meter("github.com/yairfalse/tila")

	ReconcileCycles   metric.Int64Counter
	ReconcileDuration metric.Float64Histogram
	RecordsPruned     metric.Int64Counter
	DriftFindings     metric.Int64Counter
	TrackedInstances  metric.Int64Gauge
)

// InitMetrics wires a Prometheus exporter into the global meter
// provider and creates the instruments. The returned registry is what
// the metrics endpoint scrapes.
func InitMetrics() (*promclient.Registry, error) {
	registry := promclient.NewRegistry()

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	Meter = otel.Meter("github.com/yairfalse/tila")

	if err := initInstruments(); err != nil {
		return nil, err
	}
	return registry, nil
}

func initInstruments() error {
	var err error

	ReconcileCycles, err = Meter.Int64Counter(
		"tila.reconcile.cycles",
		metric.WithDescription("Number of reconcile cycles run"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return fmt.Errorf("create reconcile cycles counter: %w", err)
	}

	ReconcileDuration, err = Meter.Float64Histogram(
		"tila.reconcile.duration",
		metric.WithDescription("Duration of reconcile cycles"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create reconcile duration histogram: %w", err)
	}

	RecordsPruned, err = Meter.Int64Counter(
		"tila.records.pruned",
		metric.WithDescription("Stale records removed from the state store"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return fmt.Errorf("create records pruned counter: %w", err)
	}

	DriftFindings, err = Meter.Int64Counter(
		"tila.drift.findings",
		metric.WithDescription("Instance type drift findings reported"),
		metric.WithUnit("{finding}"),
	)
	if err != nil {
		return fmt.Errorf("create drift findings counter: %w", err)
	}

	TrackedInstances, err = Meter.Int64Gauge(
		"tila.instances.tracked",
		metric.WithDescription("Instances currently tracked in the state store"),
		metric.WithUnit("{instance}"),
	)
	if err != nil {
		return fmt.Errorf("create tracked instances gauge: %w", err)
	}

	return nil
}
