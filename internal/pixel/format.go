// Package pixel provides the raw pixel layer for gogpu/backdrop.
//
// It defines the byte layouts the pipeline understands, strided plane views
// over raw buffers, premultiplication and channel-order conversion, and a
// pool for temporary planes. Nothing in this package allocates per pixel.
package pixel

// Format represents a pixel byte layout.
type Format uint8

const (
	// FormatGray8 is 8-bit grayscale (1 byte per pixel).
	FormatGray8 Format = iota

	// FormatRGBA8 is 32-bit RGBA (4 bytes per pixel).
	FormatRGBA8

	// FormatBGRA8 is 32-bit BGRA (4 bytes per pixel).
	// This is the layout every blur and mask routine operates on.
	FormatBGRA8

	// formatCount is the number of formats (for internal use).
	formatCount
)

// Alpha describes how color channels relate to the alpha channel.
type Alpha uint8

const (
	// AlphaPremultiplied means color channels are already scaled by alpha/255.
	AlphaPremultiplied Alpha = iota

	// AlphaStraight means color channels are independent of alpha.
	AlphaStraight
)

// FormatInfo contains metadata about a pixel format.
type FormatInfo struct {
	// BytesPerPixel is the number of bytes per pixel.
	BytesPerPixel int

	// Channels is the number of channels.
	Channels int

	// HasAlpha indicates if the format has an alpha channel.
	HasAlpha bool
}

var formatInfoTable = [formatCount]FormatInfo{
	FormatGray8: {BytesPerPixel: 1, Channels: 1, HasAlpha: false},
	FormatRGBA8: {BytesPerPixel: 4, Channels: 4, HasAlpha: true},
	FormatBGRA8: {BytesPerPixel: 4, Channels: 4, HasAlpha: true},
}

// Info returns the FormatInfo for this format.
func (f Format) Info() FormatInfo {
	if f >= formatCount {
		return FormatInfo{}
	}
	return formatInfoTable[f]
}

// BytesPerPixel returns the number of bytes per pixel for this format.
func (f Format) BytesPerPixel() int {
	return f.Info().BytesPerPixel
}

// HasAlpha returns true if this format has an alpha channel.
func (f Format) HasAlpha() bool {
	return f.Info().HasAlpha
}

// IsValid returns true if the format is a valid known format.
func (f Format) IsValid() bool {
	return f < formatCount
}

// RowBytes calculates the number of bytes needed for a row of the given width.
func (f Format) RowBytes(width int) int {
	return width * f.BytesPerPixel()
}

// String returns a string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatGray8:
		return "Gray8"
	case FormatRGBA8:
		return "RGBA8"
	case FormatBGRA8:
		return "BGRA8"
	default:
		return "Unknown"
	}
}

// String returns a string representation of the alpha mode.
func (a Alpha) String() string {
	switch a {
	case AlphaPremultiplied:
		return "Premultiplied"
	case AlphaStraight:
		return "Straight"
	default:
		return "Unknown"
	}
}
