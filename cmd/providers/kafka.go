package providers

import (
	"github.com/spf13/viper"
	"go.calcjobs.dev/calcjobs/pkg/kafkatrace"
	"go.calcjobs.dev/calcjobs/pkg/publish"
	"go.opentelemetry.io/otel/metric"
)

// Kafka topic config keys.
const (
	ConfKafkaRequestTopic = "kafka.request_topic"
	ConfKafkaResultTopic  = "kafka.result_topic"
)

func init() {
	viper.SetDefault(ConfKafkaRequestTopic, "application.operation.request")
	viper.SetDefault(ConfKafkaResultTopic, "application.operation.result")
}

// NewPropagator builds the process-wide Kafka trace propagator.
func NewPropagator() *kafkatrace.Propagator {
	return kafkatrace.NewPropagator()
}

// NewPublishMetrics registers the shared publisher counters.
func NewPublishMetrics(meter metric.Meter) (*publish.Metrics, error) {
	return publish.NewMetrics(meter)
}
