// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// countingDevice wraps a device and counts Destroy calls.
type countingDevice struct {
	hal.Device
	destroys atomic.Int32
}

func (d *countingDevice) Destroy() {
	d.destroys.Add(1)
	d.Device.Destroy()
}

// openNoopDevice opens a noop device and queue for testing. The instance is
// destroyed at test cleanup; the device is left to its owner.
func openNoopDevice(t *testing.T) (*countingDevice, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	t.Cleanup(instance.Destroy)
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return &countingDevice{Device: openDev.Device}, openDev.Queue
}

// faultyDevice fails CreateBuffer for one label while failLabel is set, and
// counts compute pipelines created.
type faultyDevice struct {
	hal.Device
	failLabel atomic.Pointer[string]
	pipelines atomic.Int32
}

func (d *faultyDevice) failBuffer(label string) { d.failLabel.Store(&label) }

func (d *faultyDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	if l := d.failLabel.Load(); l != nil && *l == desc.Label {
		return nil, errors.New("out of device memory")
	}
	return d.Device.CreateBuffer(desc)
}

func (d *faultyDevice) CreateComputePipeline(desc *hal.ComputePipelineDescriptor) (hal.ComputePipeline, error) {
	d.pipelines.Add(1)
	return d.Device.CreateComputePipeline(desc)
}

// overlapDevice records whether two blurs ever held their weight buffers at
// the same time. Each dispatch creates one weights buffer and destroys it
// last.
type overlapDevice struct {
	hal.Device

	mu       sync.Mutex
	live     map[hal.Buffer]bool
	overlaps int
	total    int
}

func (d *overlapDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	buf, err := d.Device.CreateBuffer(desc)
	if err != nil || desc.Label != "blur_weights" {
		return buf, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.live == nil {
		d.live = make(map[hal.Buffer]bool)
	}
	if len(d.live) > 0 {
		d.overlaps++
	}
	d.live[buf] = true
	d.total++
	return buf, nil
}

func (d *overlapDevice) DestroyBuffer(buf hal.Buffer) {
	d.mu.Lock()
	delete(d.live, buf)
	d.mu.Unlock()
	d.Device.DestroyBuffer(buf)
}

// failingQueue rejects every buffer upload.
type failingQueue struct {
	hal.Queue
}

func (failingQueue) WriteBuffer(hal.Buffer, uint64, []byte) error {
	return errors.New("queue lost")
}

// requireBlurShader skips the test when naga cannot compile the blur shader.
func requireBlurShader(t *testing.T) {
	t.Helper()
	if _, err := blurSPIRV(); err != nil {
		t.Skipf("blur shader does not compile here: %v", err)
	}
}

// noopOpener returns a DeviceOpener that hands out noop devices and records
// them along with the number of calls.
type noopOpener struct {
	t       *testing.T
	calls   atomic.Int32
	devices []*countingDevice
	fail    bool
}

func (o *noopOpener) open() (*OpenedDevice, error) {
	o.calls.Add(1)
	if o.fail {
		return nil, errors.New("no adapter")
	}
	dev, q := openNoopDevice(o.t)
	o.devices = append(o.devices, dev)
	return &OpenedDevice{Device: dev, Queue: q, AdapterName: "noop"}, nil
}

// failingOpener always fails.
func failingOpener() (*OpenedDevice, error) {
	return nil, errors.New("no adapter")
}

// mockDevice implements gpucontext.Device for testing.
type mockDevice struct{}

func (m *mockDevice) Poll(wait bool) {}
func (m *mockDevice) Destroy()       {}

// mockQueue implements gpucontext.Queue for testing.
type mockQueue struct{}

// mockAdapter implements gpucontext.Adapter for testing.
type mockAdapter struct{}

// mockProvider implements gpucontext.DeviceProvider without HAL access.
type mockProvider struct{}

func (m *mockProvider) Device() gpucontext.Device             { return &mockDevice{} }
func (m *mockProvider) Queue() gpucontext.Queue               { return &mockQueue{} }
func (m *mockProvider) Adapter() gpucontext.Adapter           { return &mockAdapter{} }
func (m *mockProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }
func (m *mockProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "mock", Type: gpucontext.AdapterTypeUnknown}
}

// halProvider is a DeviceProvider that also exposes HAL objects.
type halProvider struct {
	mockProvider
	device hal.Device
	queue  hal.Queue
}

func (p *halProvider) HalDevice() any { return p.device }
func (p *halProvider) HalQueue() any  { return p.queue }
