// Package backdrop produces blurred, edge-feathered, alpha-correct
// background images from arbitrary source bitmaps.
//
// # Overview
//
// A backdrop is the soft, blurred image placed behind a foreground thumbnail.
// The package normalizes the source to BGRA8 premultiplied alpha, resizes it
// to the target size, optionally composites a mask and a rounded-rect clip,
// blurs it and encodes the result as PNG.
//
// Blurring has two paths. An Accelerator (see the gpu sub-package) runs a
// two-pass Gaussian on the GPU over a transparently padded copy of the image. When no
// accelerator is configured, or any GPU step fails, the pipeline falls back
// to BlurCPU, an O(width*height) prefix-sum box blur that clamps its window
// at the image edges.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/backdrop"
//	    "github.com/gogpu/backdrop/gpu"
//	)
//
//	p := backdrop.NewPipeline(
//	    backdrop.WithAccelerator(gpu.NewContext()),
//	    backdrop.WithCornerRadius(16),
//	)
//	src, _ := backdrop.FromImage(img)
//	stream, err := p.CreateMaskedBlurredImageStream(ctx, src, nil, 640, 360, 144, 24)
//
// # Pixel access
//
// A Bitmap is backed by a Surface. Memory surfaces are locked in place;
// stream surfaces (any io.ReadWriteSeeker) are copied into a pooled buffer
// and written back on Unlock. Every pixel routine runs unchanged on both.
//
// # Errors
//
// No stage panics on bad input. Failures are reported as errors wrapping the
// sentinels in this package, so callers use errors.Is.
//
// # Logging
//
// backdrop is silent by default. Call SetLogger to route its log/slog output.
package backdrop
