package zegemm

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"
)

// DeviceType identifies the kind of compute device.
type DeviceType int

const (
	DeviceTypeGPU DeviceType = iota + 1
	DeviceTypeCPU
	DeviceTypeFPGA
)

// String returns the device type as a string
func (t DeviceType) String() string {
	switch t {
	case DeviceTypeGPU:
		return "GPU"
	case DeviceTypeCPU:
		return "CPU"
	case DeviceTypeFPGA:
		return "FPGA"
	default:
		return fmt.Sprintf("DeviceType(%d)", int(t))
	}
}

// DeviceProperties describes a device as reported by its driver.
type DeviceProperties struct {
	Type            DeviceType
	Name            string
	TotalMem        uint64 // Device memory budget in bytes
	ExecutionUnits  int    // Work-groups executing concurrently
	MaxGroupSize    Dim3   // Per-dimension work-group size limit
	MaxGroupThreads int    // Limit on the product of the group size
	Features        Features
}

// Device represents a compute device exposed by a driver. A device outlives
// every context created on it.
type Device struct {
	props   DeviceProperties
	driver  *Driver
	ordinal int
	lost    atomic.Bool
}

// Properties returns the device properties.
func (d *Device) Properties() DeviceProperties {
	return d.props
}

// Driver returns the driver exposing the device.
func (d *Device) Driver() *Driver {
	return d.driver
}

// Lost reports whether the device faulted. A lost device rejects all
// further work.
func (d *Device) Lost() bool {
	return d.lost.Load()
}

func (d *Device) markLost(reason error) {
	if d.lost.CompareAndSwap(false, true) {
		klog.Errorf("device %q lost: %v", d.props.Name, reason)
	}
}

// String returns a short description of the device
func (d *Device) String() string {
	return fmt.Sprintf("%s %q (%d EUs, %s, features: %s)", d.props.Type, d.props.Name,
		d.props.ExecutionUnits, humanize.IBytes(d.props.TotalMem), d.props.Features)
}

// Driver groups the devices exposed by one driver instance.
type Driver struct {
	Name    string
	devices []*Device
}

// NewDriver creates a driver exposing one device per properties value.
func NewDriver(name string, props ...DeviceProperties) *Driver {
	drv := &Driver{Name: name}
	for i, p := range props {
		drv.devices = append(drv.devices, &Device{props: p, driver: drv, ordinal: i})
	}
	return drv
}

// Devices returns the devices of the driver.
func (drv *Driver) Devices() []*Device {
	return drv.devices
}

var (
	hostDriver     *Driver
	hostDriverOnce sync.Once
)

// HostDeviceProperties returns the properties of the emulated GPU backed by
// the host CPU.
func HostDeviceProperties() DeviceProperties {
	return DeviceProperties{
		Type:            DeviceTypeGPU,
		Name:            "zegemm emulated GPU",
		TotalMem:        getSystemMemory() / 2,
		ExecutionUnits:  runtime.NumCPU(),
		MaxGroupSize:    Dim3{X: 1024, Y: 1024, Z: 64},
		MaxGroupThreads: 1024,
		Features:        hostFeatures(),
	}
}

// Drivers returns the installed drivers. The host driver, exposing the
// emulated GPU, is always present.
func Drivers() []*Driver {
	hostDriverOnce.Do(func() {
		hostDriver = NewDriver("host", HostDeviceProperties())
	})
	return []*Driver{hostDriver}
}

// AcquireDevice returns the first device of type want, across drivers in
// order, whose features include RequiredFeatures.
func AcquireDevice(drivers []*Driver, want DeviceType) (*Device, error) {
	if len(drivers) == 0 {
		return nil, newError(ErrNoDeviceFound, "AcquireDevice", "unable to locate driver(s)")
	}
	for i, drv := range drivers {
		for d, dev := range drv.devices {
			if dev.props.Type != want || !dev.props.Features.Has(RequiredFeatures) {
				continue
			}
			if dev.Lost() {
				klog.Warningf("skipping lost device driver=%d, device=%d", i, d)
				continue
			}
			klog.V(1).Infof("%s device located driver=%d, device=%d: %s", want, i, d, dev)
			return dev, nil
		}
	}
	return nil, newError(ErrNoDeviceFound, "AcquireDevice",
		"unable to locate driver with %s device supporting %s", want, RequiredFeatures)
}
