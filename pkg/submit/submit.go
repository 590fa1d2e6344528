// Package submit orchestrates job submission and deletion.
//
// Submission is store-then-stream: the job and its operations are made
// durable first, then a detached task re-reads them from the store in
// chunks and hands each one to the request publisher. Publishing from
// the re-read rather than the in-memory list guarantees that only
// durably stored operations ever reach the broker.
package submit

import (
	"context"
	"strings"

	"go.calcjobs.dev/calcjobs/pkg/job"
	"go.calcjobs.dev/calcjobs/pkg/publish"
	"go.calcjobs.dev/calcjobs/pkg/store"
	"go.calcjobs.dev/calcjobs/pkg/wire"
	"go.uber.org/zap"
)

// DefaultChunkSize bounds the fan-out working set per store round trip.
const DefaultChunkSize = 128

// Pipeline persists jobs and fans their operations out to the broker.
type Pipeline struct {
	Store     *store.Store
	Requests  *publish.Publisher
	ChunkSize int
	Log       *zap.Logger
}

// Receipt reports a submitted job back to the caller.
type Receipt struct {
	JobID          string
	OperationCount int
}

// Submit persists a job with one operation per input line, then fans
// the operations out to the request topic off the caller's path.
//
// If the bulk operation insert fails, the job record is deleted as a
// best-effort compensation. Operations that partially persisted before
// the failure are not retracted; the partial-failure window can leave
// orphaned operations behind and is accepted as such.
//
// The fan-out is not awaited: the receipt returns as soon as the
// durable writes settle, and the job reads as in-progress until
// results arrive.
func (p *Pipeline) Submit(ctx context.Context, body string) (*Receipt, error) {
	lines := splitLines(body)
	jobID, err := p.Store.InsertJob(ctx, len(lines))
	if err != nil {
		return nil, err
	}
	ops := make([]job.Operation, len(lines))
	for i, line := range lines {
		ops[i] = job.NewOperation(jobID, line)
	}
	if err := p.Store.InsertOperations(ctx, ops); err != nil {
		p.Log.Error("Failed to insert operations",
			zap.String("job_id", jobID), zap.Error(err))
		if err := p.Store.DeleteJob(ctx, jobID); err != nil {
			return nil, err
		}
	}
	go p.fanOut(ctx, jobID)
	return &Receipt{JobID: jobID, OperationCount: len(lines)}, nil
}

// fanOut streams the job's stored operations to the request topic.
// Runs detached from the submitting request; errors are logged, never
// surfaced, because the caller already received its response.
func (p *Pipeline) fanOut(ctx context.Context, jobID string) {
	chunk := p.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	// The caller's context dies with the HTTP response; the stream
	// runs on its own context while ctx still parents the publish
	// spans.
	err := p.Store.StreamOperations(context.Background(), jobID, chunk, func(op job.Operation) {
		p.Requests.Publish(ctx, &wire.OperationRequest{
			JobID:       op.JobID,
			OperationID: op.ID,
			Request:     op.Request,
		})
	})
	if err != nil {
		p.Log.Error("Failed to stream operations for job",
			zap.String("job_id", jobID), zap.Error(err))
	}
}

// Delete removes the job synchronously and cascades to its operations
// in the background. Cascade failures are logged only.
func (p *Pipeline) Delete(ctx context.Context, jobID string) error {
	if err := p.Store.DeleteJob(ctx, jobID); err != nil {
		return err
	}
	go func() {
		if err := p.Store.DeleteOperations(context.Background(), jobID); err != nil {
			p.Log.Error("Failed to delete operations for job",
				zap.String("job_id", jobID), zap.Error(err))
		}
	}()
	return nil
}

func splitLines(body string) []string {
	body = strings.TrimSuffix(body, "\n")
	if body == "" {
		return nil
	}
	lines := strings.Split(body, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	return lines
}
