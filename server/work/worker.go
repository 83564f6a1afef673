package work

import (
	"errors"
	"fmt"
	"time"

	"github.com/Daskott/relief/colors"
	"github.com/Daskott/relief/server/logger"
	"github.com/google/uuid"
)

const (
	ENQUEUED_JOB    = "enqueued"
	IN_PROGRESS_JOB = "in-progress"
	SUCCESSFUL_JOB  = "successful"
	DEAD_JOB        = "dead"
	MAX_FAILS       = 4
)

var (
	DefaultTickerDuration = 5 * time.Millisecond
	TickerDurationOnError = 10 * time.Millisecond

	ErrDuplicateHandler = errors.New("handler with provided name already mapped")
	ErrUnknownHandler   = errors.New("no handler mapped to job")

	logg = logger.NewLogger()
)

type JobParams struct {
	Name    string
	Handler string
	Unique  bool
	Args    map[string]interface{}
}

type Handler func(map[string]interface{}) error

type worker struct {
	id            string
	handlers      map[string]Handler
	queue         *jobQueue
	stopChan      chan struct{}
	sleepBackoffs []time.Duration
}

func newWorker(queue *jobQueue, sleepBackoffs []time.Duration) *worker {
	return &worker{
		id:            uuid.NewString()[:8],
		handlers:      make(map[string]Handler),
		queue:         queue,
		stopChan:      make(chan struct{}),
		sleepBackoffs: sleepBackoffs,
	}
}

// registerHandler binds a name to a job handler.
func (w *worker) registerHandler(name string, handler Handler) error {
	if _, ok := w.handlers[name]; ok {
		return ErrDuplicateHandler
	}

	w.handlers[name] = handler
	return nil
}

func (w *worker) start() {
	go w.loop()
}

func (w *worker) stop() {
	w.stopChan <- struct{}{}
}

func (w *worker) loop() {
	var consecutiveNoJobs int

	rateLimiter := time.NewTicker(DefaultTickerDuration)
	defer rateLimiter.Stop()

	logg.Debugf("Starting worker %s", w.id)
	for {
		select {
		case <-w.stopChan:
			logg.Debugf("Stopping worker %s", w.id)
			return
		case <-w.queue.ready:
			rateLimiter.Reset(DefaultTickerDuration)
		case <-rateLimiter.C:
			job := w.queue.claim(time.Now())
			if job == nil {
				// If no job is due, slowly increase the wait between claims using
				// 'sleepBackoffs'. An enqueue wakes the worker up early.
				consecutiveNoJobs++
				idx := consecutiveNoJobs
				if idx >= len(w.sleepBackoffs) {
					idx = len(w.sleepBackoffs) - 1
				}
				rateLimiter.Reset(w.sleepBackoffs[idx])
				continue
			}

			w.processJob(job)
			rateLimiter.Reset(DefaultTickerDuration)
			consecutiveNoJobs = 0
		}
	}
}

func (w *worker) processJob(job *Job) {
	handler, ok := w.handlers[job.Handler]
	if !ok {
		w.logError(fmt.Errorf("%w: %v", ErrUnknownHandler, job.Handler))
		job.Fails = MAX_FAILS
		w.queue.finish(job, DEAD_JOB)
		return
	}

	err := handler(job.Args)
	if err != nil {
		w.logError(err)
		w.determineFailedJobFate(job, err)
		return
	}

	w.queue.finish(job, SUCCESSFUL_JOB)
	w.logInfof("job %v with id=%v completed with status=%v", job.Name, job.ID, SUCCESSFUL_JOB)
}

// determineFailedJobFate requeues a failed job until it has failed MAX_FAILS
// times, then marks it dead.
func (w *worker) determineFailedJobFate(job *Job, runError error) {
	job.Fails++
	job.LastError = runError.Error()

	if job.Fails >= MAX_FAILS {
		w.queue.finish(job, DEAD_JOB)
		w.logInfof("job %v with id=%v completed with status=%v", job.Name, job.ID, DEAD_JOB)
		return
	}

	w.queue.requeue(job)
	w.logInfof("job %v with id=%v requeued after %v fail(s)", job.Name, job.ID, job.Fails)
}

func (w *worker) logInfof(template string, args ...interface{}) {
	prefix := colors.Yellow(fmt.Sprintf("[worker %v] ", w.id))
	logg.Infof(prefix+template, args...)
}

func (w *worker) logError(err error) {
	prefix := colors.Red(fmt.Sprintf("[worker %v] ", w.id))
	logg.Errorf("%v%v", prefix, err)
}
