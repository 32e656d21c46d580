package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobStatus_Values(t *testing.T) {
	assert.Equal(t, JobStatus("pending"), StatusPending)
	assert.Equal(t, JobStatus("running"), StatusRunning)
	assert.Equal(t, JobStatus("completed"), StatusCompleted)
	assert.Equal(t, JobStatus("failed"), StatusFailed)
}

func TestJob_Defaults(t *testing.T) {
	job := &Job{}
	assert.Empty(t, job.ID)
	assert.Empty(t, job.Type)
	assert.Empty(t, job.Queue)
	assert.Equal(t, JobStatus(""), job.Status)
	assert.Nil(t, job.Output)
}

func TestJob_WithValues(t *testing.T) {
	now := time.Now()
	job := &Job{
		ID:         "test-123",
		Type:       "fetch-report",
		Args:       []byte(`{"month":"2026-08"}`),
		Queue:      "reports",
		Priority:   10,
		Status:     StatusPending,
		MaxRetries: 3,
		RunAt:      &now,
		Output:     []byte(`{"rows":42}`),
	}

	assert.Equal(t, "test-123", job.ID)
	assert.Equal(t, "fetch-report", job.Type)
	assert.Equal(t, "reports", job.Queue)
	assert.Equal(t, 10, job.Priority)
	assert.Equal(t, StatusPending, job.Status)
	assert.NotNil(t, job.RunAt)
	assert.JSONEq(t, `{"rows":42}`, string(job.Output))
}
