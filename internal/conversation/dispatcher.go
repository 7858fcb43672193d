package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/gyn-triage/pkg/logging"
)

// ErrDispatcherClosed indicates the dispatcher is no longer accepting work.
var ErrDispatcherClosed = errors.New("conversation: dispatcher closed")

// Dispatcher routes turns through a queue before running them on the
// orchestrator, so the API can point at LocalStack SQS in development and AWS
// SQS in production without touching the handlers. The caller blocks until
// its own job comes back.
type Dispatcher struct {
	runner TurnRunner
	queue  queueClient
	logger *logging.Logger

	cfg dispatcherConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pending sync.Map // jobID -> *pendingTurn
}

var _ TurnRunner = (*Dispatcher)(nil)

const (
	defaultWorkers          = 2
	defaultReceiveWait      = 2  // seconds
	defaultReceiveMax       = 5  // messages
	maxReceiveWaitSeconds   = 20 // SQS limit
	maxReceiveBatchMessages = 10
)

type dispatcherConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// DispatcherOption configures the dispatcher.
type DispatcherOption func(*dispatcherConfig)

// WithWorkerCount overrides the number of queue polling goroutines.
func WithWorkerCount(workers int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if workers > 0 {
			cfg.workers = workers
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait time for Receive calls.
func WithReceiveWaitSeconds(seconds int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxReceiveWaitSeconds {
			seconds = maxReceiveWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize overrides how many messages each poll should return.
func WithReceiveBatchSize(size int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchMessages {
			size = maxReceiveBatchMessages
		}
		cfg.receiveBatchSize = size
	}
}

// NewDispatcher starts the polling workers. Call Shutdown to stop them.
func NewDispatcher(runner TurnRunner, queue queueClient, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if runner == nil {
		panic("conversation: turn runner cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := dispatcherConfig{
		workers:          defaultWorkers,
		receiveWaitSecs:  defaultReceiveWait,
		receiveBatchSize: defaultReceiveMax,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		runner: runner,
		queue:  queue,
		logger: logger,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < cfg.workers; i++ {
		d.wg.Add(1)
		go d.runWorker(i + 1)
	}

	return d
}

// RunTurn enqueues the turn and blocks until a worker ran it. If ctx ends
// first, the turn is cancelled or skipped so nothing is persisted for it.
func (d *Dispatcher) RunTurn(ctx context.Context, sessionID, message string) (*TurnResult, error) {
	if d.ctx.Err() != nil {
		return nil, ErrDispatcherClosed
	}

	job := turnJob{SessionID: sessionID, Message: message}
	if deadline, ok := ctx.Deadline(); ok {
		job.Deadline = &deadline
	}
	job, body, err := encodeTurnJob(job)
	if err != nil {
		return nil, err
	}

	resultCh := make(chan dispatchResult, 1)
	d.pending.Store(job.ID, &pendingTurn{ctx: ctx, ch: resultCh})
	defer d.pending.Delete(job.ID)

	if err := d.queue.Send(ctx, body); err != nil {
		return nil, fmt.Errorf("conversation: failed to enqueue turn: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		return res.result, res.err
	}
}

// Shutdown stops worker goroutines and fails any callers still waiting.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	d.pending.Range(func(key, value any) bool {
		if p, ok := value.(*pendingTurn); ok {
			select {
			case p.ch <- dispatchResult{err: ErrDispatcherClosed}:
			default:
			}
		}
		d.pending.Delete(key)
		return true
	})

	return nil
}

func (d *Dispatcher) runWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Debug("turn dispatcher worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		if d.ctx.Err() != nil {
			d.logger.Debug("turn dispatcher worker stopping", "worker_id", workerID)
			return
		}

		messages, err := d.queue.Receive(d.ctx, d.cfg.receiveBatchSize, d.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			d.logger.Error("failed to receive turn jobs", "error", err, "worker_id", workerID)
			select {
			case <-d.ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			d.handleQueueMessage(msg)
		}
	}
}

func (d *Dispatcher) handleQueueMessage(msg queueMessage) {
	deleteMsg := func() {
		deleteCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.queue.Delete(deleteCtx, msg.ReceiptHandle); err != nil {
			d.logger.Error("failed to delete turn job", "error", err)
		}
	}

	job, err := decodeTurnJob(msg.Body)
	if err != nil {
		d.logger.Error("dropping undecodable turn job", "error", err, "message_id", msg.ID)
		deleteMsg()
		return
	}

	caller, ok := d.waitingCaller(job.ID)
	if !ok || caller.ctx.Err() != nil {
		d.logger.Debug("skipping turn job with no waiting caller", "job_id", job.ID, "session_id", job.SessionID)
		deleteMsg()
		return
	}

	runCtx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	if job.Deadline != nil {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, *job.Deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(caller.ctx, cancel)
	defer stop()

	result, err := d.runner.RunTurn(runCtx, job.SessionID, job.Message)
	deleteMsg()

	select {
	case caller.ch <- dispatchResult{result: result, err: err}:
	default:
	}
}

func (d *Dispatcher) waitingCaller(jobID string) (*pendingTurn, bool) {
	value, ok := d.pending.Load(jobID)
	if !ok {
		return nil, false
	}
	p, ok := value.(*pendingTurn)
	if !ok {
		d.logger.Error("turn dispatcher pending map corrupted", "job_id", jobID)
		d.pending.Delete(jobID)
		return nil, false
	}
	return p, true
}

// pendingTurn is a RunTurn call still blocked on its result.
type pendingTurn struct {
	ctx context.Context
	ch  chan dispatchResult
}

type dispatchResult struct {
	result *TurnResult
	err    error
}
