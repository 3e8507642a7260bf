package systems

import (
	"errors"
	"sync"

	"github.com/spaghettifunk/anima-fx/engine/core"
	"github.com/spaghettifunk/anima-fx/engine/renderer/metadata"
)

/**
 * @brief JobSystem runs JobTask.OnStart on a fixed pool of worker goroutines.
 * Completion and failure callbacks are not run by the workers: they are
 * queued and invoked by Update on the goroutine that calls it, which is the
 * render thread.
 */
type JobSystem struct {
	numWorkers int
	jobQueue   chan metadata.JobTask
	wg         sync.WaitGroup
	pending    sync.WaitGroup

	// qmu guards the queue against being closed during a send
	qmu      sync.RWMutex
	shutdown bool

	mu   sync.Mutex
	done []func()
}

var ErrNoWorkers = errors.New("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")
var ErrJobSystemShutdown = errors.New("job system is shut down")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan metadata.JobTask, channelSize),
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job metadata.JobTask) {
	defer js.pending.Done()

	result, err := job.OnStart(job.InputParams)
	var cb func()
	if err != nil {
		core.LogError("job failed: %s", err.Error())
		if job.OnFailure != nil {
			cb = func() { job.OnFailure(err) }
		}
	} else if job.OnComplete != nil {
		cb = func() { job.OnComplete(result) }
	}
	if cb == nil {
		return
	}
	js.mu.Lock()
	js.done = append(js.done, cb)
	js.mu.Unlock()
}

/**
 * @brief Submits the provided job to be queued for execution.
 * @param jt The description of the job to be executed.
 */
func (js *JobSystem) Submit(jt metadata.JobTask) error {
	if jt.OnStart == nil {
		return errors.New("job has no OnStart")
	}
	js.qmu.RLock()
	defer js.qmu.RUnlock()
	if js.shutdown {
		return ErrJobSystemShutdown
	}
	js.pending.Add(1)
	js.jobQueue <- jt
	return nil
}

/**
 * @brief Invokes the callbacks of finished jobs. Should happen once an update
 * cycle. Returns the number of callbacks run.
 */
func (js *JobSystem) Update() int {
	js.mu.Lock()
	done := js.done
	js.done = nil
	js.mu.Unlock()

	for _, cb := range done {
		cb()
	}
	return len(done)
}

// Wait blocks until every submitted job has finished, then runs their callbacks.
func (js *JobSystem) Wait() int {
	js.pending.Wait()
	return js.Update()
}

/**
 * @brief Shuts the job system down. Queued jobs still run; their callbacks
 * are invoked before Shutdown returns.
 */
func (js *JobSystem) Shutdown() error {
	js.qmu.Lock()
	if js.shutdown {
		js.qmu.Unlock()
		return nil
	}
	js.shutdown = true
	close(js.jobQueue)
	js.qmu.Unlock()

	js.wg.Wait()
	js.Update()
	return nil
}
