// Package job holds the domain model for batch jobs and their operations.
package job

// Status describes the progress of a job.
//
// Status is never stored. It is derived by comparing the number of
// operations that carry a non-empty result against the operation count
// recorded at submission time.
type Status string

// Job statuses.
const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// Job is a unit of work submitted by a client,
// decomposed into independently evaluable operations.
type Job struct {
	// ID is assigned by the store on insert. Empty before insertion.
	ID string
	// OperationCount is the number of operations the job was split into.
	// It is fixed at creation and never recalculated from the store.
	OperationCount int
}

// Status derives the job status from the completed-operation count.
func (j *Job) Status(completed int) Status {
	if completed == j.OperationCount {
		return StatusCompleted
	}
	return StatusInProgress
}

// Operation is one evaluable unit (one input line) belonging to a job.
type Operation struct {
	// ID is assigned by the store on insert. Empty before insertion.
	ID string
	// JobID references the owning job.
	JobID string
	// Request is the literal input line. Immutable.
	Request string
	// Result is empty until a worker produced one.
	Result string
	// HasResult reports whether a result has been set.
	// An empty result string set by a worker still counts as unset,
	// matching the completed-count query.
	HasResult bool
}

// NewOperation builds a not-yet-persisted operation for a job.
func NewOperation(jobID, request string) Operation {
	return Operation{
		JobID:   jobID,
		Request: request,
	}
}
