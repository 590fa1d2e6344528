// Package publish sends wire messages to a Kafka topic without
// blocking the caller.
package publish

import (
	"context"

	"github.com/Shopify/sarama"
	"go.calcjobs.dev/calcjobs/pkg/kafkatrace"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Payload is a message that can serialize itself for the wire.
type Payload interface {
	Encode() ([]byte, error)
}

// Publisher emits messages on one Kafka topic.
//
// Publish returns before the network send runs. By the time the send
// fails the caller has already answered its own client, so failures
// are logged and counted here and the caller receives no signal.
// Delivery is best-effort beyond this point; there is no
// application-level retry.
type Publisher struct {
	Producer   sarama.SyncProducer
	Topic      string
	Propagator *kafkatrace.Propagator
	Log        *zap.Logger
	Metrics    *Metrics

	tracer trace.Tracer
}

// NewPublisher builds a publisher for one topic.
func NewPublisher(
	producer sarama.SyncProducer,
	topic string,
	propagator *kafkatrace.Propagator,
	log *zap.Logger,
	metrics *Metrics,
) *Publisher {
	return &Publisher{
		Producer:   producer,
		Topic:      topic,
		Propagator: propagator,
		Log:        log,
		Metrics:    metrics,
		tracer:     otel.Tracer("publish"),
	}
}

// Publish serializes msg and dispatches the broker send onto a
// detached task. The call returns immediately.
func (p *Publisher) Publish(ctx context.Context, msg Payload) {
	go p.send(ctx, msg)
}

// send is the synchronous core of Publish.
// The queue timeout is carried by the producer configuration.
func (p *Publisher) send(ctx context.Context, msg Payload) {
	ctx, span := p.tracer.Start(ctx, "messaging.send",
		trace.WithAttributes(attribute.String("topic", p.Topic)))
	defer span.End()
	buf, err := msg.Encode()
	if err != nil {
		p.fail(ctx, err)
		return
	}
	pm := &sarama.ProducerMessage{
		Topic:   p.Topic,
		Value:   sarama.ByteEncoder(buf),
		Headers: p.Propagator.Inject(ctx),
	}
	if _, _, err := p.Producer.SendMessage(pm); err != nil {
		p.fail(ctx, err)
		return
	}
	p.Log.Debug("Message sent", zap.String("topic", p.Topic))
	p.Metrics.sent.Add(ctx, 1, attribute.String("topic", p.Topic))
}

func (p *Publisher) fail(ctx context.Context, err error) {
	p.Log.Error("Failed to send message",
		zap.String("topic", p.Topic), zap.Error(err))
	p.Metrics.errors.Add(ctx, 1, attribute.String("topic", p.Topic))
}

// Metrics counts publisher outcomes.
type Metrics struct {
	sent   metric.Int64Counter
	errors metric.Int64Counter
}

// NewMetrics registers the publisher counters.
func NewMetrics(m metric.Meter) (*Metrics, error) {
	metrics := new(Metrics)
	var err error
	metrics.sent, err = m.NewInt64Counter("producer_messages_sent")
	if err != nil {
		return nil, err
	}
	metrics.errors, err = m.NewInt64Counter("producer_messages_error")
	if err != nil {
		return nil, err
	}
	return metrics, nil
}
