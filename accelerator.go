package backdrop

import (
	"context"
	"errors"
	"sync"
)

// GPUBlurOptions controls one accelerated blur.
type GPUBlurOptions struct {
	// Radius is the blur radius in pixels. Zero returns a copy.
	Radius int

	// Diagnostics logs timing and buffer sizes at debug level.
	Diagnostics bool

	// ReturnPadded returns the whole padded working image instead of the
	// centered crop with the input's size.
	ReturnPadded bool
}

// Accelerator is an optional GPU blur provider.
//
// The Pipeline tries the accelerator first. If it returns any error,
// including ErrFallbackToCPU, the pipeline falls back to BlurCPU on the same
// bitmap. Implementations live in GPU backend packages:
//
//	p := backdrop.NewPipeline(backdrop.WithAccelerator(gpu.NewContext()))
type Accelerator interface {
	// Name returns the accelerator name (e.g., "wgpu").
	Name() string

	// BlurBitmap returns a new blurred bitmap. The input is BGRA8
	// premultiplied and is not modified.
	BlurBitmap(ctx context.Context, b *Bitmap, opts GPUBlurOptions) (*Bitmap, error)

	// Close releases the accelerator's resources.
	Close()
}

var (
	accelMu sync.RWMutex
	accel   Accelerator
)

// RegisterAccelerator installs the process-wide default accelerator used by
// pipelines created without WithAccelerator. A previously registered
// accelerator is closed. Passing nil is an error.
func RegisterAccelerator(a Accelerator) error {
	if a == nil {
		return errors.New("backdrop: accelerator must not be nil")
	}
	accelMu.Lock()
	old := accel
	accel = a
	accelMu.Unlock()
	if old != nil && old != a {
		old.Close()
	}
	propagateLogger(a, Logger())
	return nil
}

// RegisteredAccelerator returns the process-wide default accelerator, or nil.
func RegisteredAccelerator() Accelerator {
	accelMu.RLock()
	a := accel
	accelMu.RUnlock()
	return a
}

// UnregisterAccelerator closes and removes the default accelerator.
func UnregisterAccelerator() {
	accelMu.Lock()
	old := accel
	accel = nil
	accelMu.Unlock()
	if old != nil {
		old.Close()
	}
}

// DeviceProviderAware is implemented by accelerators that can adopt a GPU
// device owned by the host application instead of opening their own.
type DeviceProviderAware interface {
	SetDeviceProvider(provider any) error
}

// SetAcceleratorDeviceProvider hands a host device provider to the
// registered accelerator. The provider should implement HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue. It is a no-op when no
// accelerator is registered or the accelerator cannot adopt devices.
func SetAcceleratorDeviceProvider(provider any) error {
	a := RegisteredAccelerator()
	if a == nil {
		return nil
	}
	if dpa, ok := a.(DeviceProviderAware); ok {
		return dpa.SetDeviceProvider(provider)
	}
	return nil
}
