package gateway

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultQueueSize    = 100
	concurrencyRecheck  = 50 * time.Millisecond  // re-poll when denied only by the concurrency cap
	defaultWindowMargin = 500 * time.Millisecond // safety margin past the expected window reset
	defaultInterDelay   = 150 * time.Millisecond // pause between admissions to avoid bursts
)

// LimiterConfig holds the quota parameters enforced against the backend.
type LimiterConfig struct {
	MaxRequests   int           // request starts allowed per window
	Window        time.Duration // sliding window length
	MaxConcurrent int           // tasks allowed in flight at once
	InterDelay    time.Duration // delay between admissions
	WindowMargin  time.Duration // extra wait past the expected window reset
	QueueSize     int
}

// limiterJob is a queued task awaiting admission.
type limiterJob struct {
	fn       func() (json.RawMessage, error)
	resultCh chan limiterResult
}

// limiterResult is the outcome of one task.
type limiterResult struct {
	data json.RawMessage
	err  error
}

// Limiter admits queued tasks under two conditions: fewer than
// MaxConcurrent tasks running and fewer than MaxRequests started within
// the current window. Admission order is strict FIFO; completion order is
// whatever the backend delivers.
//
// Windows are anchored, not continuously sliding: windowStart is set at
// the first admission after a reset, and the counter applies until
// now-windowStart exceeds Window. The guarantee is at most MaxRequests
// starts per anchored window; WindowMargin pads the reset wait so bursts
// on either side of a boundary stay apart.
type Limiter struct {
	cfg        LimiterConfig
	log        zerolog.Logger
	queue      chan *limiterJob
	settled    chan struct{} // one signal per finished task
	stopChan   chan struct{}
	workerDone chan struct{}
	once       sync.Once

	mu     sync.Mutex
	closed bool
}

// NewLimiter creates a limiter and starts its dispatch worker.
func NewLimiter(cfg LimiterConfig, log zerolog.Logger) *Limiter {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 50
	}
	if cfg.Window <= 0 {
		cfg.Window = 20 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.InterDelay <= 0 {
		cfg.InterDelay = defaultInterDelay
	}
	if cfg.WindowMargin <= 0 {
		cfg.WindowMargin = defaultWindowMargin
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	l := &Limiter{
		cfg:        cfg,
		log:        log.With().Str("component", "limiter").Logger(),
		queue:      make(chan *limiterJob, cfg.QueueSize),
		settled:    make(chan struct{}, cfg.QueueSize+cfg.MaxConcurrent),
		stopChan:   make(chan struct{}),
		workerDone: make(chan struct{}),
	}

	go l.worker()

	return l
}

// Do enqueues a task and blocks until it has run. Returns an error
// without running the task if the limiter is closed or the queue is full.
func (l *Limiter) Do(fn func() (json.RawMessage, error)) (json.RawMessage, error) {
	resultCh := make(chan limiterResult, 1)
	job := &limiterJob{fn: fn, resultCh: resultCh}

	// The closed check and the enqueue happen under the same lock, and
	// Close flips the flag before signalling the worker. Any job that
	// makes it into the queue is therefore visible to the worker's
	// shutdown drain; a job can never be enqueued with nobody left to
	// read it.
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, fmt.Errorf("limiter is closed")
	}

	select {
	case l.queue <- job:
		l.mu.Unlock()
	default:
		l.mu.Unlock()
		return nil, fmt.Errorf("request queue is full")
	}

	result := <-resultCh
	return result.data, result.err
}

// Close stops accepting new tasks and waits until every already-queued
// task has run. Queued tasks are never abandoned; cancellation is not
// supported once a task is enqueued.
func (l *Limiter) Close() {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()

		close(l.stopChan)
		<-l.workerDone
	})
}

// worker is the single dispatcher. It owns the window counters, so no
// locking is needed around them.
func (l *Limiter) worker() {
	defer close(l.workerDone)

	var windowStart time.Time
	windowCount := 0
	running := 0

	// drain consumes buffered settle signals without blocking.
	drain := func() {
		for {
			select {
			case <-l.settled:
				running--
			default:
				return
			}
		}
	}

	// admit blocks until both admission conditions hold.
	admit := func() {
		for {
			drain()
			now := time.Now()

			// Window reset: the counter only applies while the window is open.
			if windowCount > 0 && now.Sub(windowStart) > l.cfg.Window {
				windowCount = 0
			}

			if windowCount >= l.cfg.MaxRequests {
				// Denied by the window quota: nothing can be admitted until
				// the window resets, so sleep through to the expected reset.
				wait := windowStart.Add(l.cfg.Window).Add(l.cfg.WindowMargin).Sub(now)
				if wait < l.cfg.WindowMargin {
					wait = l.cfg.WindowMargin
				}
				l.log.Debug().Dur("wait", wait).Msg("Window quota reached, deferring")
				time.Sleep(wait)
				continue
			}

			if running >= l.cfg.MaxConcurrent {
				// Denied only by concurrency: a settle signal frees a slot.
				select {
				case <-l.settled:
					running--
				case <-time.After(concurrencyRecheck):
				}
				continue
			}

			return
		}
	}

	dispatch := func(job *limiterJob) {
		admit()

		if windowCount == 0 {
			windowStart = time.Now()
		}
		windowCount++
		running++

		go func() {
			data, err := job.fn()
			job.resultCh <- limiterResult{data: data, err: err}
			l.settled <- struct{}{}
		}()

		time.Sleep(l.cfg.InterDelay)
	}

	for {
		select {
		case <-l.stopChan:
			// Drain remaining jobs before exiting; enqueued work always runs.
			for {
				select {
				case job := <-l.queue:
					dispatch(job)
				default:
					// Queue empty: wait for in-flight tasks to settle.
					for running > 0 {
						<-l.settled
						running--
					}
					return
				}
			}
		case job := <-l.queue:
			dispatch(job)
		}
	}
}
