// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"context"
	"fmt"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/backdrop"
	"github.com/gogpu/backdrop/internal/pixel"
)

// submitTimeout bounds the wait for one blur submission.
const submitTimeout = 5 * time.Second

// pollInterval is the sleep between completion polls while waiting.
const pollInterval = 200 * time.Microsecond

// maxKernelRadius is the largest number of taps per side the shader runs.
// Larger blurs go to the CPU path, whose cost does not depend on the radius.
const maxKernelRadius = 2 * PaddingPixels

// BlurBitmap implements backdrop.Accelerator. It returns a new bitmap with a
// two-pass Gaussian blur of sigma opts.Radius, computed over a transparent
// padding ring so no edge color is invented. The input is not modified.
//
// Errors wrap backdrop.ErrDeviceUnavailable when no device can be opened and
// backdrop.ErrResourceCreation when a GPU object cannot be created; cached
// shader and pipeline objects survive a failed attempt.
func (c *Context) BlurBitmap(ctx context.Context, b *backdrop.Bitmap, opts backdrop.GPUBlurOptions) (*backdrop.Bitmap, error) {
	if b == nil {
		return nil, backdrop.ErrNilBitmap
	}
	src := backdrop.EnsureBGRA8Premultiplied(b)
	if !src.IsBGRA8Premultiplied() {
		return nil, backdrop.ErrFormatConversion
	}
	if opts.Radius <= 0 {
		return src.Clone()
	}
	if 3*float64(opts.Radius) > maxKernelRadius {
		return nil, fmt.Errorf("%w: radius %d exceeds GPU kernel limit", backdrop.ErrFallbackToCPU, opts.Radius)
	}
	if !c.EnsureDeviceInitialized() {
		return nil, fmt.Errorf("%w: %w", backdrop.ErrFallbackToCPU, backdrop.ErrDeviceUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	w, h := src.Width(), src.Height()
	pw, ph := paddedSize(w, h)
	padded := make([]byte, pw*ph*4)

	l, err := src.Lock(backdrop.LockRead)
	if err != nil {
		return nil, err
	}
	padPlane(padded, lockPlane(l))
	if err := l.Unlock(); err != nil {
		return nil, err
	}

	if err := c.run(padded, pw, ph, opts.Radius); err != nil {
		return nil, err
	}

	var out *backdrop.Bitmap
	if opts.ReturnPadded {
		out, err = backdrop.FromRaw(padded, pw, ph, pw*4, backdrop.FormatBGRA8, backdrop.AlphaPremultiplied)
	} else {
		out, err = cropToBitmap(padded, w, h)
	}
	if err != nil {
		return nil, err
	}

	if opts.Diagnostics {
		slogger().Debug("gpu: blur",
			"width", w, "height", h, "padded_width", pw, "padded_height", ph,
			"radius", opts.Radius, "taps", 2*kernelRadius(float64(opts.Radius))+1,
			"elapsed", time.Since(start))
	}
	return out, nil
}

// run blurs a packed padded buffer in place on the GPU. The whole
// encode-submit-wait-readback sequence holds the context mutex.
func (c *Context) run(padded []byte, pw, ph, radius int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// The device may have been released between the fast-path check and here.
	if err := c.ensureDeviceLocked(); err != nil {
		return fmt.Errorf("%w: %w", backdrop.ErrFallbackToCPU, err)
	}
	if c.res == nil {
		res, err := createBlurResources(c.device)
		if err != nil {
			return err
		}
		c.res = res
	}
	return c.dispatchLocked(padded, pw, ph, radius)
}

// dispatchLocked uploads padded into buffer A, runs the horizontal pass
// A -> B and the vertical pass B -> A, and reads A back into padded.
func (c *Context) dispatchLocked(padded []byte, pw, ph, radius int) error {
	device, queue, res := c.device, c.queue, c.res
	size := uint64(len(padded))
	weights := gaussianWeights(float64(radius))
	wbytes := weightsBytes(weights)
	taps := uint32(len(weights) - 1) //nolint:gosec // kernel radius fits uint32
	w, h := uint32(pw), uint32(ph)   //nolint:gosec // dimensions always fit uint32

	weightsBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "blur_weights", Size: uint64(len(wbytes)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return resourceErr("create weights buffer", err)
	}
	defer device.DestroyBuffer(weightsBuf)

	var ping [2]hal.Buffer
	for i := range ping {
		buf, err := device.CreateBuffer(&hal.BufferDescriptor{
			Label: "blur_target", Size: size,
			Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return resourceErr(fmt.Sprintf("create storage buffer %d", i), err)
		}
		defer device.DestroyBuffer(buf)
		ping[i] = buf
	}

	stagingBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "blur_staging", Size: size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return resourceErr("create staging buffer", err)
	}
	defer device.DestroyBuffer(stagingBuf)

	uploads := []struct {
		name string
		buf  hal.Buffer
		data []byte
	}{
		{"weights", weightsBuf, wbytes},
		{"image", ping[0], padded},
		{"horizontal params", res.uniforms[directionHorizontal], paramsBytes(w, h, taps, directionHorizontal)},
		{"vertical params", res.uniforms[directionVertical], paramsBytes(w, h, taps, directionVertical)},
	}
	for _, u := range uploads {
		if err := queue.WriteBuffer(u.buf, 0, u.data); err != nil {
			return resourceErr("upload "+u.name, err)
		}
	}

	passes := [2]struct {
		dir      uint32
		src, dst hal.Buffer
	}{
		{directionHorizontal, ping[0], ping[1]},
		{directionVertical, ping[1], ping[0]},
	}
	var groups [2]hal.BindGroup
	for i, p := range passes {
		bg, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label: "blur_bind", Layout: res.bindLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{Buffer: res.uniforms[p.dir].NativeHandle(), Offset: 0, Size: paramsSize}},
				{Binding: 1, Resource: gputypes.BufferBinding{Buffer: weightsBuf.NativeHandle(), Offset: 0, Size: uint64(len(wbytes))}},
				{Binding: 2, Resource: gputypes.BufferBinding{Buffer: p.src.NativeHandle(), Offset: 0, Size: size}},
				{Binding: 3, Resource: gputypes.BufferBinding{Buffer: p.dst.NativeHandle(), Offset: 0, Size: size}},
			},
		})
		if err != nil {
			return resourceErr(fmt.Sprintf("create bind group %d", i), err)
		}
		defer device.DestroyBindGroup(bg)
		groups[i] = bg
	}

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "blur_encoder"})
	if err != nil {
		return resourceErr("create command encoder", err)
	}
	if err := encoder.BeginEncoding("blur"); err != nil {
		return resourceErr("begin encoding", err)
	}
	for _, bg := range groups {
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "blur_pass"})
		pass.SetPipeline(res.pipeline)
		pass.SetBindGroup(0, bg, nil)
		pass.Dispatch((w+7)/8, (h+7)/8, 1)
		pass.End()
	}
	encoder.CopyBufferToBuffer(ping[0], stagingBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return resourceErr("end encoding", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	idx, err := queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("gpu: submit: %w", err)
	}
	if err := waitSubmission(device, queue, idx, submitTimeout); err != nil {
		return err
	}

	mapping, err := device.MapBuffer(stagingBuf, 0, size)
	if err != nil {
		return resourceErr("map staging buffer", err)
	}
	copy(padded, unsafe.Slice((*byte)(mapping.Ptr), len(padded)))
	if err := device.UnmapBuffer(stagingBuf); err != nil {
		return resourceErr("unmap staging buffer", err)
	}
	return nil
}

// waitSubmission polls the queue until submission idx completes. On timeout
// it drains the device before returning, so the caller can release buffers
// the GPU may still be reading.
func waitSubmission(device hal.Device, queue hal.Queue, idx uint64, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for queue.PollCompleted() < idx {
		if time.Now().After(deadline) {
			slogger().Warn("gpu: blur submission timed out, waiting for device idle", "timeout", timeout)
			if err := device.WaitIdle(); err != nil {
				return fmt.Errorf("gpu: wait for GPU: %w", err)
			}
			return fmt.Errorf("gpu: wait for GPU: timed out after %v", timeout)
		}
		time.Sleep(pollInterval)
	}
	return nil
}

func resourceErr(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", backdrop.ErrResourceCreation, step, err)
}

// lockPlane views a backdrop lock as a pixel plane.
func lockPlane(l *backdrop.Lock) pixel.Plane {
	return pixel.Plane{Data: l.Data, Width: l.Width, Height: l.Height, Stride: l.Stride, Offset: l.Offset}
}

// cropToBitmap copies the centered w x h region of a padded buffer into a
// new bitmap through the access layer.
func cropToBitmap(padded []byte, w, h int) (*backdrop.Bitmap, error) {
	out, err := backdrop.NewBitmap(w, h)
	if err != nil {
		return nil, err
	}
	l, err := out.Lock(backdrop.LockWrite)
	if err != nil {
		return nil, err
	}
	cropPlane(lockPlane(l), padded)
	if err := l.Unlock(); err != nil {
		return nil, err
	}
	return out, nil
}
