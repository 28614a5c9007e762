package backdrop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"time"
)

// Encoder writes a finished backdrop to w.
type Encoder interface {
	Encode(w io.Writer, img image.Image) error
}

// EncoderFunc adapts a function to the Encoder interface.
type EncoderFunc func(w io.Writer, img image.Image) error

// Encode calls f(w, img).
func (f EncoderFunc) Encode(w io.Writer, img image.Image) error { return f(w, img) }

// PNGEncoder encodes with image/png at the given compression level.
type PNGEncoder struct {
	CompressionLevel png.CompressionLevel
}

// Encode implements Encoder.
func (e PNGEncoder) Encode(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: e.CompressionLevel}
	return enc.Encode(w, img)
}

// referenceDPI is the DPI at which one DIP equals one pixel.
const referenceDPI = 96

// BlurRadiusPixels converts a blur radius in device-independent pixels to
// device pixels: round(dip * dpi / 96). A non-positive dpi means 96.
// Negative and NaN radii yield 0.
func BlurRadiusPixels(dip, dpi float64) int {
	if dpi <= 0 || math.IsNaN(dpi) {
		dpi = referenceDPI
	}
	r := math.Round(dip * dpi / referenceDPI)
	if math.IsNaN(r) || r <= 0 {
		return 0
	}
	if r > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(r)
}

// Pipeline produces blurred, masked backdrops. A Pipeline holds only its
// configuration and is safe for concurrent use; concurrent calls run their
// CPU stages in parallel and serialize inside the accelerator.
type Pipeline struct {
	opts pipelineOptions
}

// NewPipeline creates a pipeline with the given options.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Pipeline{opts: o}
}

// accelerator returns the accelerator for this call, or nil for CPU only.
func (p *Pipeline) accelerator() Accelerator {
	if p.opts.accelSet {
		return p.opts.accel
	}
	return RegisteredAccelerator()
}

// CreateMaskedBlurredImageStream runs the full backdrop pipeline:
//
//  1. normalize source to BGRA8 premultiplied
//  2. fill-resize to targetWidth x targetHeight unless already that size
//  3. convert blurDIP to pixels at dpi
//  4. composite the mask and the rounded-rect clip, if any
//  5. blur on the accelerator, falling back to the CPU on any failure
//  6. encode and return the stream positioned at offset 0
//
// ctx is checked between stages; a running blur is not interrupted. The
// source and mask bitmaps are never modified.
func (p *Pipeline) CreateMaskedBlurredImageStream(ctx context.Context, source, mask *Bitmap, targetWidth, targetHeight int, dpi, blurDIP float64) (io.ReadSeeker, error) {
	if source == nil {
		return nil, ErrNilBitmap
	}
	if targetWidth <= 0 || targetHeight <= 0 {
		return nil, fmt.Errorf("%w: target %dx%d", ErrInvalidDimensions, targetWidth, targetHeight)
	}
	log := Logger()
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img := EnsureBGRA8Premultiplied(source)
	if !img.IsBGRA8Premultiplied() {
		return nil, ErrFormatConversion
	}
	img, err := ResizeFill(img, targetWidth, targetHeight)
	if err != nil {
		return nil, fmt.Errorf("backdrop: resize: %w", err)
	}
	radius := BlurRadiusPixels(blurDIP, dpi)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if mask != nil || p.opts.corner > 0 {
		img, err = p.applyMask(img, mask)
		if err != nil {
			return nil, fmt.Errorf("backdrop: mask: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blurred, err := p.blur(ctx, img, radius, img != source)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := blurred.ToRGBA()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	var buf bytes.Buffer
	if err := p.opts.encoder.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	if p.opts.diagnostics {
		log.Debug("backdrop: pipeline done",
			"width", targetWidth, "height", targetHeight,
			"radius", radius, "bytes", buf.Len(), "elapsed", time.Since(start))
	}
	return bytes.NewReader(buf.Bytes()), nil
}

// applyMask intersects mask with the configured rounded-rect clip and
// composites it onto img.
func (p *Pipeline) applyMask(img, mask *Bitmap) (*Bitmap, error) {
	m := mask
	if p.opts.corner > 0 {
		var err error
		m, err = CombineMaskWithRoundedRect(mask, img.width, img.height, p.opts.corner)
		if err != nil {
			return nil, err
		}
	}
	return CompositeWithMask(img, m, p.opts.feather)
}

// BlurBitmap blurs b by radius pixels, trying the accelerator first and the
// CPU second. The result is always a new bitmap; b is not modified.
func (p *Pipeline) BlurBitmap(ctx context.Context, b *Bitmap, radius int) (*Bitmap, error) {
	if b == nil {
		return nil, ErrNilBitmap
	}
	src := EnsureBGRA8Premultiplied(b)
	if !src.IsBGRA8Premultiplied() {
		return nil, ErrFormatConversion
	}
	return p.blur(ctx, src, radius, src != b)
}

// blur runs the accelerator and falls back to BlurCPU. When owned is true the
// CPU path may blur b in place; otherwise it works on a copy.
func (p *Pipeline) blur(ctx context.Context, b *Bitmap, radius int, owned bool) (*Bitmap, error) {
	log := Logger()
	if radius <= 0 {
		if owned {
			return b, nil
		}
		return b.Clone()
	}

	if a := p.accelerator(); a != nil {
		start := time.Now()
		out, err := a.BlurBitmap(ctx, b, GPUBlurOptions{Radius: radius, Diagnostics: p.opts.diagnostics})
		switch {
		case err == nil && out != nil:
			if p.opts.diagnostics {
				log.Debug("backdrop: accelerated blur", "accelerator", a.Name(), "radius", radius, "elapsed", time.Since(start))
			}
			return out, nil
		case errors.Is(err, ErrFallbackToCPU):
			log.Debug("backdrop: accelerator declined blur", "accelerator", a.Name(), "err", err)
		default:
			log.Warn("backdrop: accelerated blur failed, using CPU", "accelerator", a.Name(), "err", err)
		}
	}

	target := b
	if !owned {
		var err error
		if target, err = b.Clone(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoResult, err)
		}
	}
	start := time.Now()
	if !BlurCPU(target, radius) {
		return nil, ErrNoResult
	}
	if p.opts.diagnostics {
		log.Debug("backdrop: cpu blur", "width", target.width, "height", target.height, "radius", radius, "elapsed", time.Since(start))
	}
	return target, nil
}
