// Package worker consumes operation requests from the broker,
// evaluates them, and republishes results.
package worker

import (
	"github.com/Shopify/sarama"
	"go.calcjobs.dev/calcjobs/pkg/evaluate"
	"go.calcjobs.dev/calcjobs/pkg/kafkatrace"
	"go.calcjobs.dev/calcjobs/pkg/publish"
	"go.calcjobs.dev/calcjobs/pkg/wire"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Handler processes one claimed partition of the request topic,
// one message at a time.
//
// Offset handling is explicit: only MarkMessage after the result is
// dispatched stores a consumption offset, and the broker client's
// periodic auto-commit flushes whatever was stored. A message that
// fails to decode is dropped without storing its offset, leaving it to
// whatever the auto-commit flushes around it. Because the result
// publish is fire-and-forget, a crash between dispatch and network
// delivery can lose a result while the request still counts as
// consumed: at-least-once on the receive side, best-effort on the
// send side.
type Handler struct {
	Results    *publish.Publisher
	Propagator *kafkatrace.Propagator
	Log        *zap.Logger
	Metrics    *Metrics

	tracer trace.Tracer
}

// NewHandler builds the consumer handler for the worker pool.
func NewHandler(
	results *publish.Publisher,
	propagator *kafkatrace.Propagator,
	log *zap.Logger,
	metrics *Metrics,
) *Handler {
	return &Handler{
		Results:    results,
		Propagator: propagator,
		Log:        log,
		Metrics:    metrics,
		tracer:     otel.Tracer("worker"),
	}
}

// Setup is called by sarama when the consumer group member starts.
func (h *Handler) Setup(_ sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is called by sarama after the consumer group member stops.
func (h *Handler) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim runs the receive loop until the session closes.
func (h *Handler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.handle(session, msg)
	}
	return nil
}

func (h *Handler) handle(session sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage) {
	ctx := h.Propagator.Extract(session.Context(), msg.Headers)
	ctx, span := h.tracer.Start(ctx, "messaging.receive",
		trace.WithAttributes(attribute.String("topic", msg.Topic)))
	defer span.End()
	topicAttr := attribute.String("topic", msg.Topic)
	h.Metrics.received.Add(ctx, 1, topicAttr)
	req, err := wire.DecodeRequest(msg.Value)
	if err != nil {
		// Dropped, not retried. The offset is not stored here.
		h.Log.Error("Dropping undecodable message",
			zap.String("topic", msg.Topic),
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		h.Metrics.errors.Add(ctx, 1, topicAttr)
		return
	}
	// Evaluation errors are data: the error text becomes the result.
	result := evaluate.Evaluate(req.Request)
	h.Results.Publish(ctx, &wire.OperationResult{
		JobID:       req.JobID,
		OperationID: req.OperationID,
		Result:      result,
	})
	session.MarkMessage(msg, "")
}

// Metrics counts consumer outcomes.
type Metrics struct {
	received metric.Int64Counter
	errors   metric.Int64Counter
}

// NewMetrics registers the consumer counters.
func NewMetrics(m metric.Meter) (*Metrics, error) {
	metrics := new(Metrics)
	var err error
	metrics.received, err = m.NewInt64Counter("consumer_messages_received")
	if err != nil {
		return nil, err
	}
	metrics.errors, err = m.NewInt64Counter("consumer_messages_error")
	if err != nil {
		return nil, err
	}
	return metrics, nil
}
