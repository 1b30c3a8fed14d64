package zegemm

import (
	"k8s.io/klog/v2"
)

// SessionOptions configures Open.
type SessionOptions struct {
	// Drivers to search. Defaults to Drivers().
	Drivers []*Driver

	// DeviceType to acquire. Defaults to DeviceTypeGPU.
	DeviceType DeviceType

	// Config of the context. Zero fields take their defaults.
	Config DeviceConfig
}

// Session bundles the device setup shared by every offload: a device, a
// context on it, one queue and one command list.
type Session struct {
	Device      *Device
	Context     *Context
	Queue       *Queue
	CommandList *CommandList

	closed bool
}

// Open acquires a device and creates the context, queue and command list.
// On failure everything created so far is released.
func Open(opts SessionOptions) (s *Session, err error) {
	drivers := opts.Drivers
	if drivers == nil {
		drivers = Drivers()
	}
	want := opts.DeviceType
	if want == 0 {
		want = DeviceTypeGPU
	}

	s = &Session{}
	defer func() {
		if err != nil {
			s.release()
			s = nil
		}
	}()

	if s.Device, err = AcquireDevice(drivers, want); err != nil {
		return
	}
	if s.Context, err = NewContextWithConfig(s.Device, opts.Config); err != nil {
		return
	}
	if s.Queue, err = s.Context.NewQueue(s.Context.config.QueueMode); err != nil {
		return
	}
	if s.CommandList, err = s.Context.NewCommandList(); err != nil {
		return
	}
	klog.V(1).Infof("session opened: context %s, %s queue", s.Context.ID(), s.Queue.Mode())
	return
}

// Close releases the command list, queue and context, in that order. Every
// release is attempted; the first failure is returned.
func (s *Session) Close() error {
	if s.closed {
		return newError(ErrResourceDestroyed, "Session.Close", "session already closed")
	}
	s.closed = true
	return s.release()
}

func (s *Session) release() error {
	var first error
	note := func(what string, err error) {
		if err == nil {
			return
		}
		klog.Warningf("failed to release %s: %v", what, err)
		if first == nil {
			first = err
		}
	}
	if s.CommandList != nil {
		note("command list", s.CommandList.Destroy())
	}
	if s.Queue != nil {
		note("queue", s.Queue.Destroy())
	}
	if s.Context != nil {
		note("context", s.Context.Destroy())
	}
	return first
}
