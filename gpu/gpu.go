//go:build !nogpu

// Package gpu registers the GPU blur accelerator.
//
// Import this package to let every backdrop.Pipeline without an explicit
// accelerator blur on the GPU. No device is opened until the first blur; if
// none can be opened (no Vulkan available), blurs fall back to the CPU.
//
// Usage:
//
//	import _ "github.com/gogpu/backdrop/gpu" // enable GPU blur
//
// Hosts that already own a device share it instead of opening a second one:
//
//	p := backdrop.NewPipeline(backdrop.WithAccelerator(
//	    gpu.NewContext(gpu.WithDeviceProvider(provider)),
//	))
package gpu

import (
	"github.com/gogpu/backdrop"
	gpuimpl "github.com/gogpu/backdrop/internal/gpu"
)

func init() {
	if err := backdrop.RegisterAccelerator(gpuimpl.NewContext()); err != nil {
		backdrop.Logger().Warn("GPU accelerator not available", "err", err)
	}
}

// Context is the GPU device and blur resource manager.
type Context = gpuimpl.Context

// Option configures a Context.
type Option = gpuimpl.Option

// OpenedDevice and DeviceOpener customize how a Context opens its own device.
type (
	OpenedDevice = gpuimpl.OpenedDevice
	DeviceOpener = gpuimpl.DeviceOpener
)

// PaddingPixels is the transparent border added around images before a GPU
// blur.
const PaddingPixels = gpuimpl.PaddingPixels

// NewContext creates a GPU context that opens a device lazily.
func NewContext(opts ...Option) *Context {
	return gpuimpl.NewContext(opts...)
}

// Context options.
var (
	WithDevice         = gpuimpl.WithDevice
	WithDeviceProvider = gpuimpl.WithDeviceProvider
	WithDeviceOpener   = gpuimpl.WithDeviceOpener
)

// SetDeviceProvider configures the registered accelerator to use a shared
// GPU device from an external provider (e.g., gogpu). The provider should be
// a gpucontext.DeviceProvider that also implements HalDevice() any and
// HalQueue() any.
func SetDeviceProvider(provider any) error {
	return backdrop.SetAcceleratorDeviceProvider(provider)
}
