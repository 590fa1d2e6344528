package providers

import (
	"fmt"
	"net/http"
	"time"

	prometheusmetrics "github.com/deathowl/go-metrics-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/viper"
	otelprom "go.opentelemetry.io/otel/exporters/metric/prometheus"
	"go.opentelemetry.io/otel/metric/global"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Metrics config keys.
const (
	ConfMetricsListen = "metrics.listen_addr"
)

func init() {
	viper.SetDefault(ConfMetricsListen, ":9100")
}

// GOMPrometheusSync specifies the time interval to sync go-metrics to Prometheus.
var GOMPrometheusSync = 5 * time.Second

// SetupPrometheus configures the OpenTelemetry and go-metrics Prometheus exporters.
// Returns the Prometheus exporter HTTP handler.
func SetupPrometheus() (http.Handler, error) {
	// Setup go-metrics Prometheus exporter.
	gomProvder := prometheusmetrics.NewPrometheusProvider(
		metrics.DefaultRegistry,
		"calcjobs", "",
		prometheus.DefaultRegisterer,
		GOMPrometheusSync)
	go gomProvder.UpdatePrometheusMetrics()
	// Set up OpenTelemetry Prometheus exporter.
	exporter, err := otelprom.NewExportPipeline(otelprom.Config{
		Registerer: prometheus.DefaultRegisterer,
		Gatherer:   prometheus.DefaultGatherer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build OpenTelemetry Prometheus exporter: %w", err)
	}
	global.SetMeterProvider(exporter.MeterProvider())
	return exporter, nil
}

// ServeMetrics exposes the Prometheus scrape endpoint on the metrics
// listener for the lifetime of the app.
func ServeMetrics(lc fx.Lifecycle, log *zap.Logger, handler http.Handler) {
	sock := MustListen(log, "tcp", viper.GetString(ConfMetricsListen))
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{Handler: mux}
	LifecycleServe(log, lc, sock, HTTPServer{server})
}
