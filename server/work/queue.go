package work

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrDuplicateJob = errors.New("a job with the same name is already queued or in progress")

// Job is a unit of work held by the in-process queue.
type Job struct {
	ID        string
	Name      string
	Handler   string
	Args      map[string]interface{}
	Unique    bool
	Status    string
	Fails     int
	LastError string
	RunAt     time.Time
}

// jobQueue is a FIFO of jobs, each runnable from its RunAt on. Unique jobs are
// tracked by name from enqueue until they succeed or die.
type jobQueue struct {
	mu     sync.Mutex
	jobs   []*Job
	active map[string]bool
	dead   []*Job
	ready  chan struct{}
}

func newJobQueue() *jobQueue {
	return &jobQueue{
		active: map[string]bool{},
		ready:  make(chan struct{}, 1),
	}
}

func (q *jobQueue) push(params JobParams, runAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if params.Unique && q.active[params.Name] {
		return ErrDuplicateJob
	}

	if params.Unique {
		q.active[params.Name] = true
	}

	q.jobs = append(q.jobs, &Job{
		ID:      uuid.NewString(),
		Name:    params.Name,
		Handler: params.Handler,
		Args:    params.Args,
		Unique:  params.Unique,
		Status:  ENQUEUED_JOB,
		RunAt:   runAt,
	})
	q.notify()
	return nil
}

// claim removes and returns the first job that is due, nil when none is.
func (q *jobQueue) claim(now time.Time) *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, job := range q.jobs {
		if job.RunAt.After(now) {
			continue
		}

		q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
		job.Status = IN_PROGRESS_JOB
		return job
	}
	return nil
}

func (q *jobQueue) requeue(job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job.Status = ENQUEUED_JOB
	q.jobs = append(q.jobs, job)
	q.notify()
}

func (q *jobQueue) finish(job *Job, status string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job.Status = status
	if job.Unique {
		delete(q.active, job.Name)
	}

	if status == DEAD_JOB {
		q.dead = append(q.dead, job)
	}
}

func (q *jobQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *jobQueue) deadJobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	dead := make([]Job, 0, len(q.dead))
	for _, job := range q.dead {
		dead = append(dead, *job)
	}
	return dead
}

// notify wakes one idle worker without blocking. Must be called with the lock
// held.
func (q *jobQueue) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
