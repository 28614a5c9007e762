package backdrop

import (
	"fmt"
	"image"
	"image/color"
	"io"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/backdrop/internal/pixel"
)

// PixelFormat is the byte layout of a Bitmap.
type PixelFormat = pixel.Format

// Pixel formats accepted by the pipeline. Only FormatBGRA8 is used for pixel
// math; the others are converted by EnsureBGRA8Premultiplied.
const (
	FormatBGRA8 = pixel.FormatBGRA8
	FormatRGBA8 = pixel.FormatRGBA8
	FormatGray8 = pixel.FormatGray8
)

// AlphaMode describes how a Bitmap's color channels relate to alpha.
type AlphaMode = pixel.Alpha

// Alpha modes.
const (
	AlphaPremultiplied = pixel.AlphaPremultiplied
	AlphaStraight      = pixel.AlphaStraight
)

// Bitmap is a rectangular pixel buffer with an explicit format, alpha mode
// and row stride. The stride may exceed width*bpp; padding bytes are never
// touched by pixel routines.
//
// Bitmaps are value-like: conversions and resizes return new Bitmaps. Only
// the blur routines edit pixels in place, and only on bitmaps the caller
// exclusively holds for the duration of the call.
//
// Pixels are reached through Lock, which picks the direct or the
// copy-through-stream strategy for the bitmap's Surface.
type Bitmap struct {
	width   int
	height  int
	stride  int
	format  PixelFormat
	alpha   AlphaMode
	surface Surface
}

// NewBitmap creates a zeroed (fully transparent) BGRA8 premultiplied bitmap
// backed by memory.
func NewBitmap(width, height int) (*Bitmap, error) {
	return NewBitmapWithStride(width, height, FormatBGRA8.RowBytes(width), FormatBGRA8, AlphaPremultiplied)
}

// NewBitmapWithStride creates a zeroed memory bitmap with a custom stride.
// Stride must be at least format.RowBytes(width).
func NewBitmapWithStride(width, height, stride int, format PixelFormat, alpha AlphaMode) (*Bitmap, error) {
	if err := checkGeometry(width, height, stride, format); err != nil {
		return nil, err
	}
	return &Bitmap{
		width:   width,
		height:  height,
		stride:  stride,
		format:  format,
		alpha:   alpha,
		surface: &memorySurface{data: make([]byte, stride*height)},
	}, nil
}

// FromRaw wraps existing pixel data without copying. The caller must keep
// data valid and unshared for the lifetime of the Bitmap.
func FromRaw(data []byte, width, height, stride int, format PixelFormat, alpha AlphaMode) (*Bitmap, error) {
	if err := checkGeometry(width, height, stride, format); err != nil {
		return nil, err
	}
	if len(data) < stride*height {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", pixel.ErrDataTooSmall, len(data), stride*height)
	}
	return &Bitmap{
		width:   width,
		height:  height,
		stride:  stride,
		format:  format,
		alpha:   alpha,
		surface: &memorySurface{data: data[:stride*height]},
	}, nil
}

// NewStreamBitmap creates a bitmap whose plane lives behind a seekable byte
// stream (a file, a shared-memory segment, a platform buffer object). Its
// pixels are only reachable through the copy-through-stream strategy.
func NewStreamBitmap(rws io.ReadWriteSeeker, width, height, stride int, format PixelFormat, alpha AlphaMode) (*Bitmap, error) {
	if rws == nil {
		return nil, fmt.Errorf("%w: nil stream", ErrBufferAccess)
	}
	if err := checkGeometry(width, height, stride, format); err != nil {
		return nil, err
	}
	return &Bitmap{
		width:   width,
		height:  height,
		stride:  stride,
		format:  format,
		alpha:   alpha,
		surface: &streamSurface{rws: rws, size: stride * height},
	}, nil
}

func checkGeometry(width, height, stride int, format PixelFormat) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if !format.IsValid() {
		return pixel.ErrInvalidFormat
	}
	if stride < format.RowBytes(width) {
		return fmt.Errorf("%w: stride %d < %d", pixel.ErrInvalidStride, stride, format.RowBytes(width))
	}
	return nil
}

// Width returns the bitmap width in pixels.
func (b *Bitmap) Width() int { return b.width }

// Height returns the bitmap height in pixels.
func (b *Bitmap) Height() int { return b.height }

// Stride returns the number of bytes per row (including padding).
func (b *Bitmap) Stride() int { return b.stride }

// Format returns the pixel format.
func (b *Bitmap) Format() PixelFormat { return b.format }

// AlphaMode returns the alpha mode.
func (b *Bitmap) AlphaMode() AlphaMode { return b.alpha }

// Surface returns the backing store.
func (b *Bitmap) Surface() Surface { return b.surface }

// IsBGRA8Premultiplied reports whether the bitmap is already in the pipeline
// format.
func (b *Bitmap) IsBGRA8Premultiplied() bool {
	return b.format == FormatBGRA8 && b.alpha == AlphaPremultiplied
}

// Bounds implements the image.Image interface.
func (b *Bitmap) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.width, b.height)
}

// ColorModel implements the image.Image interface.
func (b *Bitmap) ColorModel() color.Model {
	if b.alpha == AlphaPremultiplied {
		return color.RGBAModel
	}
	return color.NRGBAModel
}

// At implements the image.Image interface. Each call locks the bitmap, so
// At is meant for inspection and tests, not for bulk pixel work.
func (b *Bitmap) At(x, y int) color.Color {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return color.RGBA{}
	}
	l, err := b.Lock(LockRead)
	if err != nil {
		return color.RGBA{}
	}
	defer func() { _ = l.Unlock() }()

	i := l.Offset + y*l.Stride + x*b.format.BytesPerPixel()
	p := l.Data[i:]
	var r, g, bl, a uint8
	switch b.format {
	case FormatGray8:
		r, g, bl, a = p[0], p[0], p[0], 255
	case FormatRGBA8:
		r, g, bl, a = p[0], p[1], p[2], p[3]
	default:
		bl, g, r, a = p[0], p[1], p[2], p[3]
	}
	if b.alpha == AlphaPremultiplied {
		return color.RGBA{R: r, G: g, B: bl, A: a}
	}
	return color.NRGBA{R: r, G: g, B: bl, A: a}
}

// Clone returns a deep copy of the bitmap in memory with the same format,
// alpha mode and stride.
func (b *Bitmap) Clone() (*Bitmap, error) {
	l, err := b.Lock(LockRead)
	if err != nil {
		return nil, err
	}
	defer func() { _ = l.Unlock() }()

	out, err := NewBitmapWithStride(b.width, b.height, b.stride, b.format, b.alpha)
	if err != nil {
		return nil, err
	}
	pixel.Copy(out.plane(), l.plane(), b.format)
	return out, nil
}

// ToRGBA returns a premultiplied image.RGBA copy of a BGRA8 premultiplied
// bitmap. Other formats are normalized first.
func (b *Bitmap) ToRGBA() (*image.RGBA, error) {
	src := EnsureBGRA8Premultiplied(b)
	if !src.IsBGRA8Premultiplied() {
		return nil, ErrFormatConversion
	}
	l, err := src.Lock(LockRead)
	if err != nil {
		return nil, err
	}
	defer func() { _ = l.Unlock() }()

	img := image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	pixel.BGRAToRGBA(img.Pix, img.Stride, l.plane())
	return img, nil
}

// ToNRGBA returns a straight-alpha image.NRGBA copy, the layout most
// encoders and resamplers expect.
func (b *Bitmap) ToNRGBA() (*image.NRGBA, error) {
	src := EnsureBGRA8Premultiplied(b)
	if !src.IsBGRA8Premultiplied() {
		return nil, ErrFormatConversion
	}
	l, err := src.Lock(LockRead)
	if err != nil {
		return nil, err
	}
	defer func() { _ = l.Unlock() }()

	img := image.NewNRGBA(image.Rect(0, 0, b.width, b.height))
	pixel.BGRAPremultipliedToNRGBA(img.Pix, img.Stride, l.plane())
	return img, nil
}

// FromImage creates a memory bitmap from a standard library image without
// premultiplying or reordering where the source layout allows it:
// *image.RGBA becomes RGBA8 premultiplied, *image.NRGBA RGBA8 straight,
// *image.Gray Gray8. Every other image is drawn into an RGBA buffer.
func FromImage(img image.Image) (*Bitmap, error) {
	if img == nil {
		return nil, ErrNilBitmap
	}
	r := img.Bounds()
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, w, h)
	}

	var (
		pix    []byte
		stride int
		format PixelFormat
		alpha  AlphaMode
	)
	switch src := img.(type) {
	case *image.RGBA:
		pix, stride, format, alpha = src.Pix[src.PixOffset(r.Min.X, r.Min.Y):], src.Stride, FormatRGBA8, AlphaPremultiplied
	case *image.NRGBA:
		pix, stride, format, alpha = src.Pix[src.PixOffset(r.Min.X, r.Min.Y):], src.Stride, FormatRGBA8, AlphaStraight
	case *image.Gray:
		pix, stride, format, alpha = src.Pix[src.PixOffset(r.Min.X, r.Min.Y):], src.Stride, FormatGray8, AlphaStraight
	default:
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.Draw(dst, dst.Bounds(), img, r.Min, xdraw.Src)
		pix, stride, format, alpha = dst.Pix, dst.Stride, FormatRGBA8, AlphaPremultiplied
	}

	out, err := NewBitmapWithStride(w, h, format.RowBytes(w), format, alpha)
	if err != nil {
		return nil, err
	}
	pixel.Copy(out.plane(), pixel.Plane{Data: pix, Width: w, Height: h, Stride: stride}, format)
	return out, nil
}

// plane returns a view of a memory bitmap's pixels. It must only be used on
// bitmaps created by this package with a memory surface.
func (b *Bitmap) plane() pixel.Plane {
	return pixel.Plane{Data: b.surface.(*memorySurface).data, Width: b.width, Height: b.height, Stride: b.stride}
}
