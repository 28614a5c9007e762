package pixel

import "errors"

// Common errors for plane validation.
var (
	// ErrInvalidDimensions is returned when width or height is non-positive.
	ErrInvalidDimensions = errors.New("pixel: invalid dimensions")

	// ErrInvalidFormat is returned when the format is not recognized.
	ErrInvalidFormat = errors.New("pixel: invalid format")

	// ErrInvalidStride is returned when stride is less than minimum required.
	ErrInvalidStride = errors.New("pixel: stride too small for width")

	// ErrDataTooSmall is returned when provided data is smaller than required.
	ErrDataTooSmall = errors.New("pixel: data buffer too small")
)

// Plane is a strided view over a raw pixel buffer.
//
// Pixel (x, y) starts at Offset + y*Stride + x*bpp. Stride may exceed the
// packed row size; the trailing bytes of each row are never read or written.
// A Plane does not own Data.
type Plane struct {
	Data   []byte
	Width  int
	Height int
	Stride int
	Offset int
}

// NewPlane allocates a tightly packed plane for the given format.
func NewPlane(width, height int, format Format) (Plane, error) {
	if width <= 0 || height <= 0 {
		return Plane{}, ErrInvalidDimensions
	}
	if !format.IsValid() {
		return Plane{}, ErrInvalidFormat
	}
	stride := format.RowBytes(width)
	return Plane{
		Data:   make([]byte, stride*height),
		Width:  width,
		Height: height,
		Stride: stride,
	}, nil
}

// Validate checks that the plane can hold width*height pixels of format.
func (p Plane) Validate(format Format) error {
	if p.Width <= 0 || p.Height <= 0 {
		return ErrInvalidDimensions
	}
	if !format.IsValid() {
		return ErrInvalidFormat
	}
	rowBytes := format.RowBytes(p.Width)
	if p.Stride < rowBytes {
		return ErrInvalidStride
	}
	if p.Offset < 0 || len(p.Data) < p.Offset+(p.Height-1)*p.Stride+rowBytes {
		return ErrDataTooSmall
	}
	return nil
}

// Row returns the packed bytes of row y for a 4-byte-per-pixel plane.
// Returns nil if y is out of bounds.
func (p Plane) Row(y int) []byte {
	return p.RowOf(y, FormatBGRA8)
}

// RowOf returns the packed bytes of row y for the given format.
// Returns nil if y is out of bounds.
func (p Plane) RowOf(y int, format Format) []byte {
	if y < 0 || y >= p.Height {
		return nil
	}
	start := p.Offset + y*p.Stride
	return p.Data[start : start+format.RowBytes(p.Width)]
}

// PixelOffset returns the byte offset of pixel (x, y) in a 4-byte-per-pixel
// plane, or -1 if the coordinates are out of bounds.
func (p Plane) PixelOffset(x, y int) int {
	if x < 0 || x >= p.Width || y < 0 || y >= p.Height {
		return -1
	}
	return p.Offset + y*p.Stride + x*4
}

// Packed reports whether rows are contiguous with no padding.
func (p Plane) Packed(format Format) bool {
	return p.Stride == format.RowBytes(p.Width)
}

// Copy copies the overlapping rows of src into dst. Both planes must share
// the same format.
func Copy(dst, src Plane, format Format) {
	h := min(dst.Height, src.Height)
	w := min(dst.Width, src.Width)
	n := format.RowBytes(w)
	for y := range h {
		d := dst.Offset + y*dst.Stride
		s := src.Offset + y*src.Stride
		copy(dst.Data[d:d+n], src.Data[s:s+n])
	}
}

// Pack returns the plane's pixels as a tightly packed byte slice. When the
// plane is already packed and starts at offset zero, Data is returned as-is.
func Pack(p Plane, format Format) []byte {
	rowBytes := format.RowBytes(p.Width)
	if p.Offset == 0 && p.Stride == rowBytes {
		return p.Data[:rowBytes*p.Height]
	}
	out := make([]byte, rowBytes*p.Height)
	Copy(Plane{Data: out, Width: p.Width, Height: p.Height, Stride: rowBytes}, p, format)
	return out
}
