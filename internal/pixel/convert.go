package pixel

import "fmt"

// Premultiply scales a color channel by alpha with rounding.
func Premultiply(c, a uint8) uint8 {
	return uint8((uint16(c)*uint16(a) + 127) / 255) //nolint:gosec // result <= 255
}

// Unpremultiply recovers a straight color channel from a premultiplied one.
// A zero alpha yields zero.
func Unpremultiply(c, a uint8) uint8 {
	if a == 0 {
		return 0
	}
	if c >= a {
		return 255
	}
	return uint8((uint32(c)*255 + uint32(a)/2) / uint32(a)) //nolint:gosec // c < a keeps result < 255
}

// ToBGRAPremultiplied converts src of the given format and alpha mode into
// dst, which must be a BGRA8 plane of at least the same size. Formats without
// alpha are treated as opaque.
func ToBGRAPremultiplied(dst, src Plane, format Format, alpha Alpha) error {
	if err := src.Validate(format); err != nil {
		return fmt.Errorf("pixel: source plane: %w", err)
	}
	if err := dst.Validate(FormatBGRA8); err != nil {
		return fmt.Errorf("pixel: destination plane: %w", err)
	}
	if dst.Width < src.Width || dst.Height < src.Height {
		return ErrDataTooSmall
	}

	straight := alpha == AlphaStraight
	for y := range src.Height {
		s := src.RowOf(y, format)
		d := dst.Row(y)
		switch format {
		case FormatGray8:
			for x, v := range s {
				i := x * 4
				d[i+0], d[i+1], d[i+2], d[i+3] = v, v, v, 255
			}
		case FormatRGBA8:
			for i := 0; i < len(s); i += 4 {
				r, g, b, a := s[i+0], s[i+1], s[i+2], s[i+3]
				if straight {
					r, g, b = Premultiply(r, a), Premultiply(g, a), Premultiply(b, a)
				}
				d[i+0], d[i+1], d[i+2], d[i+3] = b, g, r, a
			}
		case FormatBGRA8:
			for i := 0; i < len(s); i += 4 {
				b, g, r, a := s[i+0], s[i+1], s[i+2], s[i+3]
				if straight {
					r, g, b = Premultiply(r, a), Premultiply(g, a), Premultiply(b, a)
				}
				d[i+0], d[i+1], d[i+2], d[i+3] = b, g, r, a
			}
		default:
			return ErrInvalidFormat
		}
	}
	return nil
}

// BGRAPremultipliedToNRGBA writes src into a straight-alpha RGBA byte slice
// laid out like image.NRGBA.Pix with the given stride.
func BGRAPremultipliedToNRGBA(dst []byte, dstStride int, src Plane) {
	for y := range src.Height {
		s := src.Row(y)
		d := dst[y*dstStride : y*dstStride+src.Width*4]
		for i := 0; i < len(s); i += 4 {
			b, g, r, a := s[i+0], s[i+1], s[i+2], s[i+3]
			d[i+0] = Unpremultiply(r, a)
			d[i+1] = Unpremultiply(g, a)
			d[i+2] = Unpremultiply(b, a)
			d[i+3] = a
		}
	}
}

// BGRAToRGBA swizzles a premultiplied BGRA plane into a premultiplied RGBA
// byte slice laid out like image.RGBA.Pix with the given stride.
func BGRAToRGBA(dst []byte, dstStride int, src Plane) {
	for y := range src.Height {
		s := src.Row(y)
		d := dst[y*dstStride : y*dstStride+src.Width*4]
		for i := 0; i < len(s); i += 4 {
			d[i+0], d[i+1], d[i+2], d[i+3] = s[i+2], s[i+1], s[i+0], s[i+3]
		}
	}
}
