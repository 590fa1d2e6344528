package worker

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.calcjobs.dev/calcjobs/pkg/kafkatrace"
	"go.calcjobs.dev/calcjobs/pkg/publish"
	"go.calcjobs.dev/calcjobs/pkg/saramamock"
	"go.calcjobs.dev/calcjobs/pkg/wire"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap/zaptest"
)

const testRequestTopic = "application.operation.request"

func newTestHandler(t *testing.T, producer *mocks.SyncProducer) *Handler {
	propagator := &kafkatrace.Propagator{
		TextMap: propagation.TraceContext{},
		Enable:  false,
	}
	pubMetrics, err := publish.NewMetrics(metric.Meter{})
	require.NoError(t, err)
	results := publish.NewPublisher(
		producer, "application.operation.result",
		propagator, zaptest.NewLogger(t), pubMetrics)
	metrics, err := NewMetrics(metric.Meter{})
	require.NoError(t, err)
	return NewHandler(results, propagator, zaptest.NewLogger(t), metrics)
}

func requestMessage(t *testing.T, offset int64, req *wire.OperationRequest) *sarama.ConsumerMessage {
	buf, err := req.Encode()
	require.NoError(t, err)
	return &sarama.ConsumerMessage{
		Topic:  testRequestTopic,
		Offset: offset,
		Value:  buf,
	}
}

func TestHandlerEvaluate(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	var sent int32
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		res, err := wire.DecodeResult(val)
		if err != nil {
			return err
		}
		if res.JobID != "7" || res.OperationID != "9" || res.Result != "2" {
			return fmt.Errorf("unexpected result: %+v", res)
		}
		atomic.AddInt32(&sent, 1)
		return nil
	})
	handler := newTestHandler(t, producer)
	session := new(saramamock.ConsumerGroupSession)
	claim := saramamock.NewConsumerGroupClaim(testRequestTopic, []*sarama.ConsumerMessage{
		requestMessage(t, 4, &wire.OperationRequest{JobID: "7", OperationID: "9", Request: "1+1"}),
	})
	require.NoError(t, handler.ConsumeClaim(session, claim))
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&sent) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []int64{5}, session.Marked())
	require.NoError(t, producer.Close())
}

func TestHandlerEvaluationFailure(t *testing.T) {
	// A failing expression still produces a result message.
	producer := mocks.NewSyncProducer(t, nil)
	var sent int32
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		res, err := wire.DecodeResult(val)
		if err != nil {
			return err
		}
		if res.Result == "" {
			return fmt.Errorf("empty result for failed evaluation")
		}
		atomic.AddInt32(&sent, 1)
		return nil
	})
	handler := newTestHandler(t, producer)
	session := new(saramamock.ConsumerGroupSession)
	claim := saramamock.NewConsumerGroupClaim(testRequestTopic, []*sarama.ConsumerMessage{
		requestMessage(t, 0, &wire.OperationRequest{JobID: "7", OperationID: "9", Request: "10/0"}),
	})
	require.NoError(t, handler.ConsumeClaim(session, claim))
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&sent) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []int64{1}, session.Marked())
	require.NoError(t, producer.Close())
}

func TestHandlerDuplicateDelivery(t *testing.T) {
	// Redelivered requests are evaluated again; the merge downstream is
	// idempotent, so the second result is harmless.
	producer := mocks.NewSyncProducer(t, nil)
	var sent int32
	checker := func(val []byte) error {
		if _, err := wire.DecodeResult(val); err != nil {
			return err
		}
		atomic.AddInt32(&sent, 1)
		return nil
	}
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(checker)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(checker)
	handler := newTestHandler(t, producer)
	session := new(saramamock.ConsumerGroupSession)
	req := &wire.OperationRequest{JobID: "7", OperationID: "9", Request: "1+1"}
	claim := saramamock.NewConsumerGroupClaim(testRequestTopic, []*sarama.ConsumerMessage{
		requestMessage(t, 6, req),
		requestMessage(t, 7, req),
	})
	require.NoError(t, handler.ConsumeClaim(session, claim))
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&sent) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []int64{7, 8}, session.Marked())
	require.NoError(t, producer.Close())
}

func TestHandlerDropsUndecodable(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	handler := newTestHandler(t, producer)
	session := new(saramamock.ConsumerGroupSession)
	claim := saramamock.NewConsumerGroupClaim(testRequestTopic, []*sarama.ConsumerMessage{
		{Topic: testRequestTopic, Offset: 3, Value: []byte(`{"unknown_field":true}`)},
		{Topic: testRequestTopic, Offset: 4, Value: nil},
	})
	require.NoError(t, handler.ConsumeClaim(session, claim))
	// No result published, no offset stored.
	assert.Empty(t, session.Marked())
	require.NoError(t, producer.Close())
}
