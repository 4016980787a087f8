package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/tablemut/logger"
	"github.com/kbukum/tablemut/table"
)

// MeterName is the instrumentation scope of the row and run instruments.
const MeterName = "github.com/kbukum/tablemut"

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider and installs it
// globally. The provider must be shut down on exit to flush the last export.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.WithComponent("observability").Info("Meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the row, run and request instruments. It implements
// table.Observer, so it can be handed to table.WithObserver directly.
type Metrics struct {
	rows            map[table.EventKind]metric.Int64Counter
	runTotal        metric.Int64Counter
	runDuration     metric.Float64Histogram
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestActive   metric.Int64UpDownCounter
}

var _ table.Observer = (*Metrics)(nil)

var rowCounters = []struct {
	kind table.EventKind
	name string
	desc string
}{
	{table.EventPulled, "tablemut.rows.pulled", "Rows pulled from a stage source"},
	{table.EventEmitted, "tablemut.rows.emitted", "Rows emitted by a stage"},
	{table.EventSuppressed, "tablemut.rows.suppressed", "Rows a stage produced no value for"},
	{table.EventFlushed, "tablemut.rows.flushed", "Rows emitted at end of rows"},
	{table.EventShapeMismatch, "tablemut.rows.shape_mismatch", "Emitted rows whose length differed from the header"},
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{rows: make(map[table.EventKind]metric.Int64Counter, len(rowCounters))}
	for _, rc := range rowCounters {
		c, err := meter.Int64Counter(rc.name, metric.WithDescription(rc.desc), metric.WithUnit("{row}"))
		if err != nil {
			return nil, fmt.Errorf("creating %s counter: %w", rc.name, err)
		}
		m.rows[rc.kind] = c
	}

	var err error
	m.runTotal, err = meter.Int64Counter("tablemut.runs",
		metric.WithDescription("Recipe runs by recipe and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tablemut.runs counter: %w", err)
	}

	m.runDuration, err = meter.Float64Histogram("tablemut.run.duration",
		metric.WithDescription("Duration of recipe runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tablemut.run.duration histogram: %w", err)
	}

	m.requestTotal, err = meter.Int64Counter("http.server.requests",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http.server.requests counter: %w", err)
	}

	m.requestDuration, err = meter.Float64Histogram("http.server.duration",
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http.server.duration histogram: %w", err)
	}

	m.requestActive, err = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http.server.active_requests counter: %w", err)
	}

	return m, nil
}

// Observe counts a row event under its stage.
func (m *Metrics) Observe(ctx context.Context, ev table.Event) {
	c, ok := m.rows[ev.Kind]
	if !ok {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStage, ev.Stage)))
}

// RecordRun records a finished recipe run.
func (m *Metrics) RecordRun(ctx context.Context, recipe, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrRecipe, recipe),
		attribute.String(AttrStatus, status),
	)
	m.runTotal.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrRecipe, recipe)))
}

// RecordRequestStart increments the active request count.
func (m *Metrics) RecordRequestStart(ctx context.Context) {
	m.requestActive.Add(ctx, 1)
}

// RecordRequestEnd decrements active requests and records the completed request.
func (m *Metrics) RecordRequestEnd(ctx context.Context, route, method string, status int, duration time.Duration) {
	m.requestActive.Add(ctx, -1)
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.route", route),
		attribute.String("http.method", method),
		attribute.Int("http.status_code", status),
	))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("http.route", route),
		attribute.String("http.method", method),
	))
}
