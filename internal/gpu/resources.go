// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/backdrop"
)

// blurSPIRV compiles the blur shader once per process.
var blurSPIRV = sync.OnceValues(func() ([]uint32, error) {
	return compileShaderToSPIRV(blurShaderSource)
})

// blurResources are the device objects reused by every blur on one device.
type blurResources struct {
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline

	// uniforms holds the Params buffer of each pass, indexed by direction.
	uniforms [2]hal.Buffer
}

// createBlurResources builds the shader, layouts, pipeline and uniform
// buffers. On failure everything created so far is destroyed.
func createBlurResources(device hal.Device) (*blurResources, error) {
	r := &blurResources{}
	if err := r.create(device); err != nil {
		r.destroy(device)
		return nil, fmt.Errorf("%w: %w", backdrop.ErrResourceCreation, err)
	}
	return r, nil
}

func (r *blurResources) create(device hal.Device) error {
	spirv, err := blurSPIRV()
	if err != nil {
		return fmt.Errorf("blur shader: %w", err)
	}
	shader, err := createShaderModule(device, "blur_shader", spirv)
	if err != nil {
		return fmt.Errorf("create blur shader module: %w", err)
	}
	r.shader = shader

	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "blur_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 3, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create blur bind group layout: %w", err)
	}
	r.bindLayout = bindLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "blur_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{r.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create blur pipeline layout: %w", err)
	}
	r.pipeLayout = pipeLayout

	pipeline, err := device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "blur_pipeline", Layout: r.pipeLayout,
		Compute: hal.ComputeState{Module: r.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("create blur compute pipeline: %w", err)
	}
	r.pipeline = pipeline

	for i := range r.uniforms {
		ub, err := device.CreateBuffer(&hal.BufferDescriptor{
			Label: "blur_params", Size: paramsSize,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create uniform buffer %d: %w", i, err)
		}
		r.uniforms[i] = ub
	}
	return nil
}

func (r *blurResources) destroy(device hal.Device) {
	for i, ub := range r.uniforms {
		if ub != nil {
			device.DestroyBuffer(ub)
			r.uniforms[i] = nil
		}
	}
	if r.pipeline != nil {
		device.DestroyComputePipeline(r.pipeline)
		r.pipeline = nil
	}
	if r.pipeLayout != nil {
		device.DestroyPipelineLayout(r.pipeLayout)
		r.pipeLayout = nil
	}
	if r.bindLayout != nil {
		device.DestroyBindGroupLayout(r.bindLayout)
		r.bindLayout = nil
	}
	if r.shader != nil {
		device.DestroyShaderModule(r.shader)
		r.shader = nil
	}
}
