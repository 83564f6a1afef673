package work

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnqueueIn(t *testing.T) {
	workerPool := NewWorkerPool(MAX_CONCURRENCY)

	err := workerPool.enqueueIn(time.Hour, JobParams{
		Name:    "suits",
		Handler: "donna",
		Args: map[string]interface{}{
			"first_name": "mike",
			"last_name":  "ross",
		},
	})
	assert.Nil(t, err)

	// not due yet
	assert.Nil(t, workerPool.queue.claim(time.Now()))

	job := workerPool.queue.claim(time.Now().Add(2 * time.Hour))
	if assert.NotNil(t, job) {
		assert.Equal(t, "suits", job.Name, "The job name should match the expected job name")
		assert.Equal(t, "mike", job.Args["first_name"], "Should contain the correct arg values")
		assert.Equal(t, IN_PROGRESS_JOB, job.Status, "The job should be claimed")
	}
}

func TestEnqueueUniqueJob(t *testing.T) {
	workerPool := NewWorkerPool(MAX_CONCURRENCY)
	job := JobParams{Name: "backup", Handler: "backup", Unique: true}

	assert.Nil(t, workerPool.enqueue(job))
	assert.ErrorIs(t, workerPool.enqueue(job), ErrDuplicateJob)

	job.Unique = false
	assert.Nil(t, workerPool.enqueue(job), "Non unique jobs may repeat")
	assert.Equal(t, 2, workerPool.queue.len())
}

func TestEnqueueRequiresNameAndHandler(t *testing.T) {
	workerPool := NewWorkerPool(MAX_CONCURRENCY)

	assert.NotNil(t, workerPool.enqueue(JobParams{Name: " ", Handler: "x"}))
	assert.NotNil(t, workerPool.enqueue(JobParams{Name: "x"}))
}
