package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatus(t *testing.T) {
	j := Job{ID: "1", OperationCount: 3}
	assert.Equal(t, StatusInProgress, j.Status(0))
	assert.Equal(t, StatusInProgress, j.Status(2))
	assert.Equal(t, StatusCompleted, j.Status(3))
}

func TestJobStatusEmpty(t *testing.T) {
	j := Job{ID: "2", OperationCount: 0}
	assert.Equal(t, StatusCompleted, j.Status(0))
}

func TestNewOperation(t *testing.T) {
	op := NewOperation("7", "1+1")
	assert.Equal(t, Operation{JobID: "7", Request: "1+1"}, op)
	assert.False(t, op.HasResult)
}
