// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/backdrop"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// OpenedDevice is a device opened by a DeviceOpener. Instance may be nil
// when the opener does not create one.
type OpenedDevice struct {
	Instance    hal.Instance
	Device      hal.Device
	Queue       hal.Queue
	AdapterName string
}

// DeviceOpener opens a new self-owned device. The default opener picks a
// discrete adapter, then an integrated one, then the first one found.
type DeviceOpener func() (*OpenedDevice, error)

// Option configures a Context.
type Option func(*Context)

// WithDeviceOpener replaces the function used to open a device on first use.
func WithDeviceOpener(open DeviceOpener) Option {
	return func(c *Context) {
		if open != nil {
			c.opener = open
		}
	}
}

// WithDevice makes the context adopt a host-owned device and queue instead
// of opening its own.
func WithDevice(device hal.Device, queue hal.Queue) Option {
	return func(c *Context) {
		c.hostDevice, c.hostQueue = device, queue
	}
}

// WithDeviceProvider makes the context adopt the device of a gogpu host.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(c *Context) {
		c.hostProvider = p
	}
}

// Context is the GPU device and resource manager.
//
// State moves from uninitialized to ready with either a host-owned device
// (Initialize, InitializeFromProvider) or a self-owned one
// (EnsureDeviceInitialized). A host-owned device is never destroyed by the
// context.
type Context struct {
	mu    sync.Mutex
	ready atomic.Bool

	opener   DeviceOpener
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	// ownsDevice is true when the device was opened by this context.
	ownsDevice bool

	// openErr remembers a failed open so later calls fall back immediately.
	openErr error

	res *blurResources

	hostDevice   hal.Device
	hostQueue    hal.Queue
	hostProvider gpucontext.DeviceProvider
}

var (
	_ backdrop.Accelerator         = (*Context)(nil)
	_ backdrop.DeviceProviderAware = (*Context)(nil)
)

// NewContext creates a context. No device is opened until the first blur
// unless a host device is supplied through options. A host device that
// cannot be adopted is logged and the context opens its own on demand.
func NewContext(opts ...Option) *Context {
	c := &Context{opener: openDefaultDevice}
	setLogger(backdrop.Logger())
	for _, opt := range opts {
		opt(c)
	}
	switch {
	case c.hostDevice != nil:
		if err := c.Initialize(c.hostDevice, c.hostQueue); err != nil {
			slogger().Warn("gpu: host device rejected", "err", err)
		}
	case c.hostProvider != nil:
		if err := c.InitializeFromProvider(c.hostProvider); err != nil {
			slogger().Warn("gpu: device provider rejected", "err", err)
		}
	}
	c.hostDevice, c.hostQueue, c.hostProvider = nil, nil, nil
	return c
}

// Name implements backdrop.Accelerator.
func (c *Context) Name() string { return "wgpu" }

// SetLogger sets the logger for the GPU package. Called by backdrop.SetLogger.
func (c *Context) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// Initialize adopts a host-owned device and queue. Passing the pair already
// in use is a no-op. Otherwise any self-owned device is destroyed and cached
// GPU resources are released, to be recreated lazily on the new device.
func (c *Context) Initialize(device hal.Device, queue hal.Queue) error {
	if device == nil || queue == nil {
		return fmt.Errorf("%w: nil device or queue", backdrop.ErrDeviceUnavailable)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if device == c.device && queue == c.queue {
		return nil
	}
	c.releaseLocked()

	c.device = device
	c.queue = queue
	c.ownsDevice = false
	c.openErr = nil
	c.ready.Store(true)
	slogger().Info("gpu: adopted host device")
	return nil
}

// InitializeFromProvider adopts the device of a gogpu DeviceProvider. The
// provider must expose HAL types, either through HalDevice/HalQueue methods
// or by returning hal values from Device and Queue.
func (c *Context) InitializeFromProvider(p gpucontext.DeviceProvider) error {
	if p == nil {
		return fmt.Errorf("%w: nil provider", backdrop.ErrDeviceUnavailable)
	}
	device, queue, err := halFromProvider(p)
	if err != nil {
		return err
	}
	return c.Initialize(device, queue)
}

// SetDeviceProvider implements backdrop.DeviceProviderAware. The provider
// must be a gpucontext.DeviceProvider exposing HAL objects.
func (c *Context) SetDeviceProvider(provider any) error {
	p, ok := provider.(gpucontext.DeviceProvider)
	if !ok {
		return fmt.Errorf("%w: %T is not a gpucontext.DeviceProvider", backdrop.ErrDeviceUnavailable, provider)
	}
	return c.InitializeFromProvider(p)
}

// halFromProvider extracts hal.Device and hal.Queue from a provider.
func halFromProvider(p gpucontext.DeviceProvider) (hal.Device, hal.Queue, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	var dev, q any
	if hp, ok := p.(halProvider); ok {
		dev, q = hp.HalDevice(), hp.HalQueue()
	} else {
		dev, q = p.Device(), p.Queue()
	}
	device, ok := dev.(hal.Device)
	if !ok || device == nil {
		return nil, nil, fmt.Errorf("%w: provider device is not hal.Device", backdrop.ErrDeviceUnavailable)
	}
	queue, ok := q.(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, fmt.Errorf("%w: provider queue is not hal.Queue", backdrop.ErrDeviceUnavailable)
	}
	return device, queue, nil
}

// EnsureDeviceInitialized makes sure a device is available, opening a
// self-owned one on first use. It reports false if no device could be
// opened; callers then use the CPU path. A failed open is remembered until
// Initialize or Close.
func (c *Context) EnsureDeviceInitialized() bool {
	if c.ready.Load() {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureDeviceLocked() == nil
}

func (c *Context) ensureDeviceLocked() error {
	if c.device != nil {
		return nil
	}
	if c.openErr != nil {
		return c.openErr
	}

	opened, err := c.opener()
	if err == nil && (opened == nil || opened.Device == nil || opened.Queue == nil) {
		err = errors.New("opener returned no device")
	}
	if err != nil {
		c.openErr = fmt.Errorf("%w: %w", backdrop.ErrDeviceUnavailable, err)
		slogger().Warn("gpu: device unavailable, using CPU blur", "err", err)
		return c.openErr
	}

	c.instance = opened.Instance
	c.device = opened.Device
	c.queue = opened.Queue
	c.ownsDevice = true
	c.ready.Store(true)
	slogger().Info("gpu: device opened", "adapter", opened.AdapterName)
	return nil
}

// Close releases cached resources and destroys the device if this context
// opened it. The context can be used again afterwards; it reopens lazily.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
	c.openErr = nil
}

// releaseLocked drops cached resources and the current device.
func (c *Context) releaseLocked() {
	c.ready.Store(false)
	if c.res != nil && c.device != nil {
		c.res.destroy(c.device)
	}
	c.res = nil
	if c.ownsDevice {
		if c.device != nil {
			c.device.Destroy()
		}
		if c.instance != nil {
			c.instance.Destroy()
		}
	}
	c.device = nil
	c.queue = nil
	c.instance = nil
	c.ownsDevice = false
}

// OwnsDevice reports whether the current device was opened by the context.
func (c *Context) OwnsDevice() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ownsDevice
}

// openDefaultDevice opens a Vulkan device on the preferred adapter.
func openDefaultDevice() (*OpenedDevice, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, errors.New("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, errors.New("no GPU adapters found")
	}

	selected := selectAdapter(adapters)
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}
	return &OpenedDevice{
		Instance:    instance,
		Device:      openDev.Device,
		Queue:       openDev.Queue,
		AdapterName: selected.Info.Name,
	}, nil
}

// selectAdapter prefers a discrete GPU, then an integrated one, then the
// first adapter.
func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU {
			return &adapters[i]
		}
	}
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return &adapters[i]
		}
	}
	return &adapters[0]
}
