package work

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type WorkerPool struct {
	handlers    map[string]Handler
	workers     []*worker
	queue       *jobQueue
	concurrency int

	mu      sync.Mutex
	started bool
}

func NewWorkerPool(concurrency int) *WorkerPool {
	wp := WorkerPool{
		handlers:    make(map[string]Handler),
		queue:       newJobQueue(),
		concurrency: concurrency,
	}

	backoffs := []time.Duration{DefaultTickerDuration, 100 * time.Millisecond, time.Second, 5 * time.Second}
	for i := 0; i < concurrency; i++ {
		wp.workers = append(wp.workers, newWorker(wp.queue, backoffs))
	}

	return &wp
}

// registerHandler binds a name to a job handler for all workers in pool
func (wp *WorkerPool) registerHandler(name string, handler Handler) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if _, ok := wp.handlers[name]; ok {
		return ErrDuplicateHandler
	}
	wp.handlers[name] = handler

	for _, worker := range wp.workers {
		err := worker.registerHandler(name, handler)

		// Only panic if we get an error that is unexpected i.e !ErrDuplicateHandler
		if err != nil && !errors.Is(err, ErrDuplicateHandler) {
			logg.Panic(err)
		}
	}
	return nil
}

// enqueue adds a job to the queue, to run as soon as a worker is free.
func (wp *WorkerPool) enqueue(job JobParams) error {
	return wp.enqueueIn(0, job)
}

// enqueueIn adds a job to the queue, to run once 'in' has elapsed.
func (wp *WorkerPool) enqueueIn(in time.Duration, job JobParams) error {
	if strings.TrimSpace(job.Name) == "" || strings.TrimSpace(job.Handler) == "" {
		return fmt.Errorf("both a name & handler is required for a job")
	}

	if job.Args == nil {
		job.Args = map[string]interface{}{}
	}

	return wp.queue.push(job, time.Now().Add(in))
}

// start starts all workers in pool i.e the workers can start processing jobs
func (wp *WorkerPool) start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.started {
		return
	}
	wp.started = true

	for _, worker := range wp.workers {
		worker.start()
	}
}

// stop stops all workers in pool i.e jobs will stop being processed
func (wp *WorkerPool) stop() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.started {
		return
	}

	wg := sync.WaitGroup{}
	for _, w := range wp.workers {
		wg.Add(1)
		go func(w *worker) {
			w.stop()
			wg.Done()
		}(w)
	}
	wg.Wait()
	wp.started = false
}
