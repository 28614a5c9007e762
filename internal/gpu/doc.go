// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpu implements the GPU blur accelerator on top of wgpu/hal.
//
// A Context owns (or borrows) one graphics device and queue and caches the
// compiled blur shader, its pipeline and the per-pass uniform buffers. All
// device and queue use is serialized by the context's mutex, so concurrent
// blurs on different images run their CPU stages in parallel and queue up
// for the GPU.
//
// A blur pads the image with a transparent ring of PaddingPixels, runs a
// horizontal and a vertical Gaussian pass between two ping-pong storage
// buffers, reads the result back and crops the padding away.
package gpu
