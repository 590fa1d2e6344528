package reporter

import (
	"context"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.calcjobs.dev/calcjobs/pkg/job"
	"go.calcjobs.dev/calcjobs/pkg/kafkatrace"
	"go.calcjobs.dev/calcjobs/pkg/mysqltest"
	"go.calcjobs.dev/calcjobs/pkg/saramamock"
	"go.calcjobs.dev/calcjobs/pkg/store"
	"go.calcjobs.dev/calcjobs/pkg/wire"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap/zaptest"
)

const testResultTopic = "application.operation.result"

func resultMessage(t *testing.T, offset int64, res *wire.OperationResult) *sarama.ConsumerMessage {
	buf, err := res.Encode()
	require.NoError(t, err)
	return &sarama.ConsumerMessage{
		Topic:  testResultTopic,
		Offset: offset,
		Value:  buf,
	}
}

func TestWorkerMerge(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Docker test in short mode")
	}
	docker := mysqltest.New(t)
	defer docker.Close(t)
	storeMetrics, err := store.NewMetrics(metric.Meter{})
	require.NoError(t, err)
	st := &store.Store{
		DB:      docker.DB,
		Log:     zaptest.NewLogger(t),
		Metrics: storeMetrics,
	}
	ctx := context.Background()
	require.NoError(t, st.CreateTables(ctx))

	jobID, err := st.InsertJob(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, st.InsertOperations(ctx, []job.Operation{
		job.NewOperation(jobID, "1+1"),
	}))
	_, ops, err := st.ListOperations(ctx, jobID, store.PageOf(1, 30))
	require.NoError(t, err)
	require.Len(t, ops, 1)
	opID := ops[0].ID

	metrics, err := NewMetrics(metric.Meter{})
	require.NoError(t, err)
	propagator := &kafkatrace.Propagator{
		TextMap: propagation.TraceContext{},
		Enable:  false,
	}
	worker := NewWorker(st, propagator, zaptest.NewLogger(t), metrics)

	session := new(saramamock.ConsumerGroupSession)
	claim := saramamock.NewConsumerGroupClaim(testResultTopic, []*sarama.ConsumerMessage{
		// Merges into the store.
		resultMessage(t, 10, &wire.OperationResult{JobID: jobID, OperationID: opID, Result: "2"}),
		// Duplicate delivery of the same result is harmless.
		resultMessage(t, 11, &wire.OperationResult{JobID: jobID, OperationID: opID, Result: "2"}),
		// Unknown operation, dropped but still marked.
		resultMessage(t, 12, &wire.OperationResult{JobID: "999999", OperationID: "1", Result: "2"}),
		// Undecodable, dropped without storing the offset.
		{Topic: testResultTopic, Offset: 13, Value: []byte(`{"unknown_field":true}`)},
	})
	require.NoError(t, worker.ConsumeClaim(session, claim))

	op, err := st.GetOperation(ctx, jobID, opID)
	require.NoError(t, err)
	assert.True(t, op.HasResult)
	assert.Equal(t, "2", op.Result)

	n, err := st.CountCompleted(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, []int64{11, 12, 13}, session.Marked())
}
