package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// MetricsConfig controls whether and where metrics are exposed.
type MetricsConfig struct {
	// Enabled toggles metrics collection and the /metrics endpoint.
	Enabled bool
	// PrometheusPort is the port the /metrics endpoint listens on.
	PrometheusPort int
}

// EngineStats is the subset of internal/storage.Engine's counters the
// buffer pool gauges observe. Kept as a function type so that this
// package does not import the storage package.
type EngineStats func() (hits, misses, evictions int64)

// DiskIOStats is the subset of internal/storage.Engine's counters the
// page I/O gauges observe. Kept as a function type for the same reason
// as EngineStats.
type DiskIOStats func() (reads, writes int64)

// Metrics holds the active meter and the instruments the TCP server and
// the interactive shell report through: QueriesHandled is incremented
// after every statement internal/sql.Execute runs successfully,
// RowsInserted by the row count of each successful INSERT, and
// Connections once per accepted TCP connection.
type Metrics struct {
	MeterProvider *sdkmetric.MeterProvider
	Meter         metric.Meter

	RowsInserted   metric.Int64Counter
	QueriesHandled metric.Int64Counter
	Connections    metric.Int64Counter
}

// ShutdownFunc flushes and tears down the meter provider.
type ShutdownFunc func(ctx context.Context) error

// New initializes the metrics pipeline: a Prometheus exporter reachable
// at /metrics on PrometheusPort, and the application-level instruments
// the server and engine report through. If disabled, every instrument
// is a no-op.
func New(config MetricsConfig) (*Metrics, ShutdownFunc, error) {
	if !config.Enabled {
		noopMeter := noop.NewMeterProvider().Meter("")
		m := &Metrics{Meter: noopMeter}
		mustNoopInstruments(m)
		return m, func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName("matidb")),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", config.PrometheusPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			otel.Handle(fmt.Errorf("prometheus http server failed: %w", err))
		}
	}()

	meter := meterProvider.Meter("matidb")
	m := &Metrics{MeterProvider: meterProvider, Meter: meter}
	if err := m.buildInstruments(); err != nil {
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return meterProvider.Shutdown(ctx)
	}
	return m, shutdown, nil
}

func (m *Metrics) buildInstruments() error {
	var err error
	m.RowsInserted, err = m.Meter.Int64Counter(
		"matidb_rows_inserted_total",
		metric.WithDescription("Total rows inserted across all tables"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rows_inserted counter: %w", err)
	}

	m.QueriesHandled, err = m.Meter.Int64Counter(
		"matidb_queries_handled_total",
		metric.WithDescription("Total SQL statements executed"),
	)
	if err != nil {
		return fmt.Errorf("failed to create queries_handled counter: %w", err)
	}

	m.Connections, err = m.Meter.Int64Counter(
		"matidb_connections_total",
		metric.WithDescription("Total TCP client connections accepted"),
	)
	if err != nil {
		return fmt.Errorf("failed to create connections counter: %w", err)
	}

	return nil
}

func mustNoopInstruments(m *Metrics) {
	m.RowsInserted, _ = m.Meter.Int64Counter("matidb_rows_inserted_total")
	m.QueriesHandled, _ = m.Meter.Int64Counter("matidb_queries_handled_total")
	m.Connections, _ = m.Meter.Int64Counter("matidb_connections_total")
}

// RegisterBufferPoolGauges registers asynchronous gauges that sample
// stats on every collection, reporting the buffer pool's cumulative
// hit/miss/eviction counters.
func (m *Metrics) RegisterBufferPoolGauges(stats EngineStats) error {
	hits, err := m.Meter.Int64ObservableGauge(
		"matidb_buffer_pool_hits_total",
		metric.WithDescription("Cumulative buffer pool cache hits"),
	)
	if err != nil {
		return fmt.Errorf("failed to create buffer_pool_hits gauge: %w", err)
	}
	misses, err := m.Meter.Int64ObservableGauge(
		"matidb_buffer_pool_misses_total",
		metric.WithDescription("Cumulative buffer pool cache misses"),
	)
	if err != nil {
		return fmt.Errorf("failed to create buffer_pool_misses gauge: %w", err)
	}
	evictions, err := m.Meter.Int64ObservableGauge(
		"matidb_buffer_pool_evictions_total",
		metric.WithDescription("Cumulative buffer pool page evictions"),
	)
	if err != nil {
		return fmt.Errorf("failed to create buffer_pool_evictions gauge: %w", err)
	}

	_, err = m.Meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		h, miss, evict := stats()
		o.ObserveInt64(hits, h)
		o.ObserveInt64(misses, miss)
		o.ObserveInt64(evictions, evict)
		return nil
	}, hits, misses, evictions)
	if err != nil {
		return fmt.Errorf("failed to register buffer pool callback: %w", err)
	}
	return nil
}

// RegisterPageIOGauges registers asynchronous gauges that sample stats
// on every collection, reporting the data file's cumulative page
// read/write counters.
func (m *Metrics) RegisterPageIOGauges(stats DiskIOStats) error {
	reads, err := m.Meter.Int64ObservableGauge(
		"matidb_disk_reads_total",
		metric.WithDescription("Cumulative page reads from the data file"),
	)
	if err != nil {
		return fmt.Errorf("failed to create disk_reads gauge: %w", err)
	}
	writes, err := m.Meter.Int64ObservableGauge(
		"matidb_disk_writes_total",
		metric.WithDescription("Cumulative page writes to the data file"),
	)
	if err != nil {
		return fmt.Errorf("failed to create disk_writes gauge: %w", err)
	}

	_, err = m.Meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		r, w := stats()
		o.ObserveInt64(reads, r)
		o.ObserveInt64(writes, w)
		return nil
	}, reads, writes)
	if err != nil {
		return fmt.Errorf("failed to register page I/O callback: %w", err)
	}
	return nil
}
