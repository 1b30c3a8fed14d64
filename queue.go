package zegemm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"
)

// QueueMode selects whether Execute waits for completion.
type QueueMode int

const (
	// QueueModeSynchronous makes Execute return only once every submitted
	// list is Completed.
	QueueModeSynchronous QueueMode = iota
	// QueueModeAsynchronous makes Execute return as soon as the lists are
	// queued; Synchronize waits for them.
	QueueModeAsynchronous
)

// String returns the mode name
func (m QueueMode) String() string {
	switch m {
	case QueueModeSynchronous:
		return "synchronous"
	case QueueModeAsynchronous:
		return "asynchronous"
	default:
		return fmt.Sprintf("QueueMode(%d)", int(m))
	}
}

// Queue executes closed command lists in submission order on a dedicated
// worker goroutine. Execute and Destroy must be called from one host
// goroutine.
type Queue struct {
	ctx  *Context
	mode QueueMode

	tasks    chan *submission
	done     chan struct{}
	inFlight atomic.Int64

	mu        sync.Mutex
	asyncErr  error
	destroyed bool

	runCtx context.Context
	cancel context.CancelFunc
}

type submission struct {
	lists    []*CommandList
	commands [][]command
	done     chan struct{}
	err      error
}

func (q *Queue) kind() string { return "queue" }

// NewQueue creates a command queue in the given mode.
func (ctx *Context) NewQueue(mode QueueMode) (*Queue, error) {
	if mode != QueueModeSynchronous && mode != QueueModeAsynchronous {
		return nil, newError(ErrInvalidArgument, "NewQueue", "unknown queue mode %s", mode)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		ctx:    ctx,
		mode:   mode,
		tasks:  make(chan *submission, 1000),
		done:   make(chan struct{}),
		runCtx: runCtx,
		cancel: cancel,
	}
	if err := ctx.track("NewQueue", q); err != nil {
		cancel()
		return nil, err
	}
	go q.worker()
	klog.V(1).Infof("%s queue created on context %s", mode, ctx.id)
	return q, nil
}

// NewQueueAndCommandList creates a synchronous queue and an empty command
// list, releasing the queue if the list cannot be created.
func (ctx *Context) NewQueueAndCommandList() (*Queue, *CommandList, error) {
	q, err := ctx.NewQueue(QueueModeSynchronous)
	if err != nil {
		return nil, nil, err
	}
	cl, err := ctx.NewCommandList()
	if err != nil {
		if derr := q.Destroy(); derr != nil {
			klog.Warningf("failed to release queue: %v", derr)
		}
		return nil, nil, err
	}
	return q, cl, nil
}

// Mode returns the queue mode.
func (q *Queue) Mode() QueueMode {
	return q.mode
}

// Execute submits closed command lists for execution as one unit.
//
// In synchronous mode it returns once all lists are Completed, or with
// ErrTimeout when ctx ends or DeviceConfig.SubmitTimeout elapses first;
// device work is not cancelled by a timeout. In asynchronous mode it
// returns once the lists are queued and execution errors surface from
// Synchronize.
func (q *Queue) Execute(ctx context.Context, lists ...*CommandList) error {
	const op = "Execute"
	q.mu.Lock()
	destroyed := q.destroyed
	q.mu.Unlock()
	if destroyed {
		return newError(ErrResourceDestroyed, op, "queue already destroyed")
	}
	if len(lists) == 0 {
		return newError(ErrSubmissionRejected, op, "no command lists")
	}
	for i, cl := range lists {
		if cl == nil || cl.ctx != q.ctx {
			return newError(ErrSubmissionRejected, op, "command list %d does not belong to the queue's context", i)
		}
	}
	if q.ctx.device.Lost() {
		return newError(ErrDeviceLost, op, "device %q is lost", q.ctx.device.props.Name)
	}

	sub := &submission{lists: lists, done: make(chan struct{})}
	for i, cl := range lists {
		cmds, err := cl.submit()
		if err != nil {
			for _, prev := range lists[:i] {
				prev.complete()
			}
			return err
		}
		sub.commands = append(sub.commands, cmds)
	}

	q.inFlight.Add(1)
	q.tasks <- sub
	klog.V(2).Infof("submitted %d command lists to %s queue", len(lists), q.mode)

	if q.mode == QueueModeAsynchronous {
		return nil
	}
	if err := waitFor(ctx, sub.done, q.ctx.config.SubmitTimeout, op); err != nil {
		return err
	}
	return sub.err
}

// Synchronize waits until every submission made so far has completed and
// returns the first execution error since the previous Synchronize. A
// timeout of zero or less waits without limit.
func (q *Queue) Synchronize(ctx context.Context, timeout time.Duration) error {
	q.mu.Lock()
	destroyed := q.destroyed
	q.mu.Unlock()
	if destroyed {
		return newError(ErrResourceDestroyed, "Synchronize", "queue already destroyed")
	}
	// An empty submission completes once everything queued before it has.
	fence := &submission{done: make(chan struct{})}
	q.inFlight.Add(1)
	q.tasks <- fence
	if err := waitFor(ctx, fence.done, timeout, "Synchronize"); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	err := q.asyncErr
	q.asyncErr = nil
	return err
}

func waitFor(ctx context.Context, done <-chan struct{}, timeout time.Duration, op string) error {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case <-done:
		return nil
	case <-expired:
		return newError(ErrTimeout, op, "device work not complete after %s", timeout)
	case <-ctx.Done():
		return wrapError(ErrTimeout, op, ctx.Err(), "stopped waiting for device work")
	}
}

// worker processes submissions in order
func (q *Queue) worker() {
	for sub := range q.tasks {
		sub.err = q.process(sub)
		if sub.err != nil {
			klog.Errorf("queue execution failed: %v", sub.err)
			if q.mode == QueueModeAsynchronous {
				q.mu.Lock()
				if q.asyncErr == nil {
					q.asyncErr = sub.err
				}
				q.mu.Unlock()
			}
		}
		q.inFlight.Add(-1)
		close(sub.done)
	}
	close(q.done)
}

// process runs the lists of a submission in order. Every list ends
// Completed; lists after a failure are not executed.
func (q *Queue) process(sub *submission) error {
	var err error
	for i, cl := range sub.lists {
		if err == nil && q.ctx.device.Lost() {
			err = newError(ErrDeviceLost, "Execute", "device %q is lost", q.ctx.device.props.Name)
		}
		if err == nil {
			err = cl.run(q.runCtx, sub.commands[i])
		}
		cl.complete()
	}
	return err
}

// Destroy stops the queue worker. It fails while submissions are pending.
func (q *Queue) Destroy() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.destroyed {
		return newError(ErrResourceDestroyed, "Queue.Destroy", "queue already destroyed")
	}
	if n := q.inFlight.Load(); n > 0 {
		return newError(ErrResourceInUse, "Queue.Destroy", "%d submissions still executing", n)
	}
	q.destroyed = true
	close(q.tasks)
	<-q.done
	q.cancel()
	q.ctx.untrack(q)
	return nil
}
