// Package reporter merges evaluated results back into operation
// records.
package reporter

import (
	"errors"

	"github.com/Shopify/sarama"
	"go.calcjobs.dev/calcjobs/pkg/kafkatrace"
	"go.calcjobs.dev/calcjobs/pkg/store"
	"go.calcjobs.dev/calcjobs/pkg/wire"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Worker consumes the result topic and updates the store.
//
// Updates address operations by the compound (job, operation) key, so
// a duplicate delivery re-sets the same result and is harmless. A
// result for a job deleted mid-flight misses the compound key and is
// dropped; that is the expected tail of an asynchronous cascade
// delete, not a failure.
type Worker struct {
	Store      *store.Store
	Propagator *kafkatrace.Propagator
	Log        *zap.Logger
	Metrics    *Metrics

	tracer trace.Tracer
}

// NewWorker builds the result sink handler.
func NewWorker(
	st *store.Store,
	propagator *kafkatrace.Propagator,
	log *zap.Logger,
	metrics *Metrics,
) *Worker {
	return &Worker{
		Store:      st,
		Propagator: propagator,
		Log:        log,
		Metrics:    metrics,
		tracer:     otel.Tracer("reporter"),
	}
}

// Setup is called by sarama when the consumer group member starts.
func (w *Worker) Setup(_ sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is called by sarama after the consumer group member stops.
func (w *Worker) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim runs the merge loop until the session closes.
func (w *Worker) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		w.handle(session, msg)
	}
	return nil
}

func (w *Worker) handle(session sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage) {
	ctx := w.Propagator.Extract(session.Context(), msg.Headers)
	ctx, span := w.tracer.Start(ctx, "messaging.receive",
		trace.WithAttributes(attribute.String("topic", msg.Topic)))
	defer span.End()
	topicAttr := attribute.String("topic", msg.Topic)
	w.Metrics.received.Add(ctx, 1, topicAttr)
	res, err := wire.DecodeResult(msg.Value)
	if err != nil {
		w.Log.Error("Dropping undecodable result",
			zap.String("topic", msg.Topic),
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		w.Metrics.errors.Add(ctx, 1, topicAttr)
		return
	}
	err = w.Store.UpdateOperationResult(ctx, res.JobID, res.OperationID, res.Result)
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrInvalidID):
		w.Log.Warn("Dropping result for unknown operation",
			zap.String("job_id", res.JobID),
			zap.String("operation_id", res.OperationID))
		w.Metrics.dropped.Add(ctx, 1, topicAttr)
	case err != nil:
		// Transient store failure: keep the offset unstored so the
		// result is redelivered.
		w.Log.Error("Failed to merge result",
			zap.String("job_id", res.JobID),
			zap.String("operation_id", res.OperationID),
			zap.Error(err))
		w.Metrics.errors.Add(ctx, 1, topicAttr)
		return
	}
	session.MarkMessage(msg, "")
}

// Metrics counts result sink outcomes.
type Metrics struct {
	received metric.Int64Counter
	errors   metric.Int64Counter
	dropped  metric.Int64Counter
}

// NewMetrics registers the result sink counters.
func NewMetrics(m metric.Meter) (*Metrics, error) {
	metrics := new(Metrics)
	var err error
	metrics.received, err = m.NewInt64Counter("result_sink_messages_received")
	if err != nil {
		return nil, err
	}
	metrics.errors, err = m.NewInt64Counter("result_sink_messages_error")
	if err != nil {
		return nil, err
	}
	metrics.dropped, err = m.NewInt64Counter("result_sink_messages_dropped")
	if err != nil {
		return nil, err
	}
	return metrics, nil
}
