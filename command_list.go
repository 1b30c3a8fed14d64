package zegemm

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// CommandListState is the lifecycle state of a CommandList.
type CommandListState int32

const (
	// Recording accepts Append calls.
	Recording CommandListState = iota
	// Closed is ready for submission.
	Closed
	// Submitted is queued or executing on the device.
	Submitted
	// Completed has finished executing; host download targets are valid.
	Completed
)

// String returns the state name
func (s CommandListState) String() string {
	switch s {
	case Recording:
		return "Recording"
	case Closed:
		return "Closed"
	case Submitted:
		return "Submitted"
	case Completed:
		return "Completed"
	default:
		return fmt.Sprintf("CommandListState(%d)", int(s))
	}
}

// command is one recorded device operation.
type command interface {
	execute(ctx context.Context, cl *CommandList) error
	String() string
}

type copyFromMemory struct {
	dst  *Surface
	host []float32
}

func (c *copyFromMemory) execute(_ context.Context, _ *CommandList) error {
	if !c.dst.alive() {
		return newError(ErrResourceDestroyed, "ImageCopyFromMemory", "destination surface destroyed before execution")
	}
	c.dst.copyFrom(c.host)
	return nil
}

func (c *copyFromMemory) String() string {
	return fmt.Sprintf("copy host -> surface %dx%d", c.dst.desc.Width, c.dst.desc.Height)
}

type copyToMemory struct {
	host []float32
	src  *Surface
}

func (c *copyToMemory) execute(_ context.Context, _ *CommandList) error {
	if !c.src.alive() {
		return newError(ErrResourceDestroyed, "ImageCopyToMemory", "source surface destroyed before execution")
	}
	c.src.copyTo(c.host)
	return nil
}

func (c *copyToMemory) String() string {
	return fmt.Sprintf("copy surface %dx%d -> host", c.src.desc.Width, c.src.desc.Height)
}

type barrier struct{}

func (barrier) execute(context.Context, *CommandList) error { return nil }

func (barrier) String() string { return "barrier" }

type launch struct {
	desc DispatchDescriptor
	fn   KernelFunc
}

func (l *launch) execute(ctx context.Context, cl *CommandList) error {
	for i, arg := range l.desc.Args {
		if s, ok := arg.(*Surface); ok && !s.alive() {
			return newError(ErrResourceDestroyed, "LaunchKernel", "%s argument %d: surface destroyed before execution", l.desc.Kernel, i)
		}
	}
	cfg := cl.ctx.config
	printer := &kernelPrinter{w: cfg.PrintfWriter}
	err := launchGrid(ctx, l.fn, l.desc.Grid, l.desc.Block, cfg.Workers, printer, l.desc.Args...)
	if err == nil {
		return nil
	}
	var fault *kernelFault
	if errors.As(err, &fault) {
		cl.ctx.device.markLost(fault)
		return wrapError(ErrDeviceLost, "LaunchKernel", fault, "%s faulted", l.desc)
	}
	return wrapError(ErrTimeout, "LaunchKernel", err, "%s interrupted", l.desc)
}

func (l *launch) String() string {
	return "launch " + l.desc.String()
}

// CommandList records device operations for a single submission. Append
// operations are accepted only while Recording. Barriers split the list
// into segments; segments run in order and the commands inside one
// segment may run concurrently.
type CommandList struct {
	ctx *Context

	mu        sync.Mutex
	state     CommandListState
	commands  []command
	destroyed bool
}

func (cl *CommandList) kind() string { return "command list" }

// NewCommandList creates an empty command list in the Recording state.
func (ctx *Context) NewCommandList() (*CommandList, error) {
	cl := &CommandList{ctx: ctx}
	if err := ctx.track("NewCommandList", cl); err != nil {
		return nil, err
	}
	return cl, nil
}

// State returns the current lifecycle state.
func (cl *CommandList) State() CommandListState {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.state
}

// Len returns the number of recorded commands, barriers included.
func (cl *CommandList) Len() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.commands)
}

// Launches returns the dispatch descriptors recorded so far, in order.
func (cl *CommandList) Launches() []DispatchDescriptor {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	var out []DispatchDescriptor
	for _, c := range cl.commands {
		if l, ok := c.(*launch); ok {
			out = append(out, l.desc)
		}
	}
	return out
}

func (cl *CommandList) append(op string, c command) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.destroyed {
		return newError(ErrResourceDestroyed, op, "command list already destroyed")
	}
	if cl.state != Recording {
		return newError(ErrCommandListClosed, op, "command list is %s", cl.state)
	}
	cl.commands = append(cl.commands, c)
	klog.V(2).Infof("recorded %s", c)
	return nil
}

func (cl *CommandList) checkSurface(op string, s *Surface) error {
	if s == nil || !s.alive() {
		return newError(ErrInvalidSurface, op, "surface is nil or destroyed")
	}
	if s.ctx != cl.ctx {
		return newError(ErrInvalidSurface, op, "surface belongs to another context")
	}
	return nil
}

// AppendImageCopyFromMemory records an upload of host into dst. host is
// read at execution time and must hold at least Width*Height elements.
func (cl *CommandList) AppendImageCopyFromMemory(dst *Surface, host []float32) error {
	const op = "AppendImageCopyFromMemory"
	if err := cl.checkSurface(op, dst); err != nil {
		return err
	}
	if len(host) < dst.elements() {
		return newError(ErrBadHostBuffer, op, "host buffer has %d elements, surface %dx%d needs %d",
			len(host), dst.desc.Width, dst.desc.Height, dst.elements())
	}
	return cl.append(op, &copyFromMemory{dst: dst, host: host})
}

// AppendImageCopyToMemory records a download of src into host. host is
// valid only after the list reaches Completed.
func (cl *CommandList) AppendImageCopyToMemory(host []float32, src *Surface) error {
	const op = "AppendImageCopyToMemory"
	if err := cl.checkSurface(op, src); err != nil {
		return err
	}
	if len(host) < src.elements() {
		return newError(ErrBadHostBuffer, op, "host buffer has %d elements, surface %dx%d needs %d",
			len(host), src.desc.Width, src.desc.Height, src.elements())
	}
	return cl.append(op, &copyToMemory{host: host, src: src})
}

// AppendBarrier records a full fence: every earlier command completes
// and its writes are visible before any later command starts.
func (cl *CommandList) AppendBarrier() error {
	return cl.append("AppendBarrier", barrier{})
}

// AppendLaunchKernel records a launch of kernel over grid work-groups. The
// kernel's arguments and group size are captured now; later rebinding does
// not affect this launch.
func (cl *CommandList) AppendLaunchKernel(kernel *Kernel, grid Dim3) error {
	const op = "AppendLaunchKernel"
	if kernel == nil || kernel.destroyed.Load() {
		return newError(ErrInvalidArgument, op, "kernel is nil or destroyed")
	}
	if kernel.module.ctx != cl.ctx {
		return newError(ErrInvalidArgument, op, "kernel %q belongs to another context", kernel.Name())
	}
	if grid.X < 1 || grid.Y < 1 || grid.Z < 1 {
		return newError(ErrInvalidGroupSize, op, "invalid group count %s", grid)
	}
	args, err := kernel.snapshot()
	if err != nil {
		return err
	}
	desc := DispatchDescriptor{Kernel: kernel.Name(), Grid: grid, Block: kernel.GroupSize(), Args: args}
	return cl.append(op, &launch{desc: desc, fn: kernel.def.Fn})
}

// Close ends recording.
func (cl *CommandList) Close() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.destroyed {
		return newError(ErrResourceDestroyed, "CommandList.Close", "command list already destroyed")
	}
	if cl.state != Recording {
		return newError(ErrCommandListClosed, "CommandList.Close", "command list is %s", cl.state)
	}
	cl.state = Closed
	klog.V(1).Infof("command list closed with %d commands", len(cl.commands))
	return nil
}

// Reset drops all recorded commands and returns the list to Recording.
// A submitted list cannot be reset until it completes.
func (cl *CommandList) Reset() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.destroyed {
		return newError(ErrResourceDestroyed, "CommandList.Reset", "command list already destroyed")
	}
	if cl.state == Submitted {
		return newError(ErrResourceInUse, "CommandList.Reset", "command list is executing")
	}
	cl.commands = nil
	cl.state = Recording
	return nil
}

// Destroy releases the list. It fails while the list is executing.
func (cl *CommandList) Destroy() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.destroyed {
		return newError(ErrResourceDestroyed, "CommandList.Destroy", "command list already destroyed")
	}
	if cl.state == Submitted {
		return newError(ErrResourceInUse, "CommandList.Destroy", "command list is executing")
	}
	cl.destroyed = true
	cl.commands = nil
	cl.ctx.untrack(cl)
	return nil
}

// submit moves a Closed or Completed list to Submitted and returns its
// commands.
func (cl *CommandList) submit() ([]command, error) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.destroyed {
		return nil, newError(ErrSubmissionRejected, "Execute", "command list destroyed")
	}
	if cl.state != Closed && cl.state != Completed {
		return nil, newError(ErrSubmissionRejected, "Execute", "command list is %s, want Closed", cl.state)
	}
	cl.state = Submitted
	return cl.commands, nil
}

func (cl *CommandList) complete() {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.state = Completed
}

// run executes commands segment by segment. Within a segment at most
// CommandConcurrency commands are in flight.
func (cl *CommandList) run(ctx context.Context, commands []command) error {
	segment := make([]command, 0, len(commands))
	for _, c := range commands {
		if _, ok := c.(barrier); ok {
			if err := cl.runSegment(ctx, segment); err != nil {
				return err
			}
			segment = segment[:0]
			continue
		}
		segment = append(segment, c)
	}
	return cl.runSegment(ctx, segment)
}

func (cl *CommandList) runSegment(ctx context.Context, segment []command) error {
	if len(segment) == 0 {
		return nil
	}
	if len(segment) == 1 {
		return segment[0].execute(ctx, cl)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cl.ctx.config.CommandConcurrency)
	for _, c := range segment {
		g.Go(func() error {
			return c.execute(gctx, cl)
		})
	}
	return g.Wait()
}
