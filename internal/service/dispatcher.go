package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/timmy/talentscore/internal/logger"
)

var (
	ErrQueueFull         = errors.New("dispatch queue is full")
	ErrDispatcherStopped = errors.New("dispatcher is stopped")
)

// ExecuteFunc runs one job. It must tolerate being called for a job that
// another unit has already claimed.
type ExecuteFunc func(ctx context.Context, jobID string)

// DispatcherConfig sizes the worker pool.
type DispatcherConfig struct {
	Concurrency int
	QueueSize   int
}

// DispatcherStats is a point-in-time view of the pool.
type DispatcherStats struct {
	Workers   int   `json:"workers"`
	InFlight  int64 `json:"in_flight"`
	Queued    int   `json:"queued"`
	Capacity  int   `json:"capacity"`
	Processed int64 `json:"processed"`
	Stopped   bool  `json:"stopped"`
}

// Dispatcher runs submitted job IDs on a fixed pool of workers fed by a
// bounded queue. Submit never blocks.
type Dispatcher struct {
	queue       chan string
	concurrency int
	logger      *logger.Logger

	mu      sync.RWMutex
	running bool
	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	baseCtx context.Context
	cancel  context.CancelFunc

	inFlight  atomic.Int64
	processed atomic.Int64
}

// NewDispatcher creates a stopped dispatcher. Jobs submitted before Start
// wait in the queue.
func NewDispatcher(cfg DispatcherConfig, log *logger.Logger) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Concurrency
	}
	if log == nil {
		log = logger.GetDefault()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		queue:       make(chan string, cfg.QueueSize),
		concurrency: cfg.Concurrency,
		logger:      log.WithField(logger.FieldComponent, "dispatcher"),
		stopCh:      make(chan struct{}),
		baseCtx:     ctx,
		cancel:      cancel,
	}
}

// Start launches the workers. Calling it again, or after Stop, is a no-op.
func (d *Dispatcher) Start(handler ExecuteFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running || d.stopped {
		return
	}
	d.running = true

	d.logger.WithFields(logger.Fields{
		"workers":  d.concurrency,
		"capacity": cap(d.queue),
	}).Info("Dispatcher starting")

	for i := 0; i < d.concurrency; i++ {
		d.wg.Add(1)
		go d.worker(i, handler)
	}
}

// Submit enqueues a job ID.
// Returns ErrQueueFull when the queue is at capacity and ErrDispatcherStopped
// once Stop has been called.
func (d *Dispatcher) Submit(jobID string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	select {
	case d.queue <- jobID:
		return nil
	default:
		return fmt.Errorf("%w (capacity %d)", ErrQueueFull, cap(d.queue))
	}
}

func (d *Dispatcher) worker(id int, handler ExecuteFunc) {
	defer d.wg.Done()
	for {
		select {
		case <-d.stopCh:
			return
		case jobID := <-d.queue:
			// Stop may have raced with the receive; leave the job pending.
			select {
			case <-d.stopCh:
				return
			default:
			}
			d.run(id, handler, jobID)
		}
	}
}

func (d *Dispatcher) run(workerID int, handler ExecuteFunc, jobID string) {
	d.inFlight.Add(1)
	defer func() {
		d.inFlight.Add(-1)
		d.processed.Add(1)
		if r := recover(); r != nil {
			d.logger.WithFields(logger.Fields{
				logger.FieldJobID: jobID,
				"worker":          workerID,
				"panic":           fmt.Sprint(r),
			}).Error("Job execution panicked")
		}
	}()
	ctx := logger.SetComponent(d.logger.WithContext(d.baseCtx), fmt.Sprintf("dispatcher.worker-%d", workerID))
	handler(ctx, jobID)
}

// Stop refuses new submissions and waits for in-flight jobs. When ctx ends
// first, running jobs are cancelled and Stop waits for them to return.
// Jobs still queued stay pending in the store.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.stopCh)
	d.mu.Unlock()

	d.logger.WithField("queued", len(d.queue)).Info("Dispatcher stopping")

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.logger.Info("Dispatcher stopped gracefully")
		return nil
	case <-ctx.Done():
		d.logger.WithField("in_flight", d.inFlight.Load()).Warn("Dispatcher shutdown timed out, cancelling running jobs")
		d.cancel()
		<-done
		return ctx.Err()
	}
}

// Stats returns current pool counters.
func (d *Dispatcher) Stats() DispatcherStats {
	d.mu.RLock()
	stopped := d.stopped
	d.mu.RUnlock()
	return DispatcherStats{
		Workers:   d.concurrency,
		InFlight:  d.inFlight.Load(),
		Queued:    len(d.queue),
		Capacity:  cap(d.queue),
		Processed: d.processed.Load(),
		Stopped:   stopped,
	}
}
