package backdrop

import (
	"fmt"

	"github.com/gogpu/backdrop/internal/pixel"
)

// EnsureBGRA8Premultiplied returns b unchanged when it is already BGRA8
// premultiplied. Otherwise it converts b into a new packed memory bitmap:
// RGBA8 is swizzled, Gray8 is expanded to opaque BGRA, and straight alpha is
// premultiplied with rounding (c*a+127)/255.
//
// Conversion is best effort. If it fails, the original bitmap is returned and
// a warning is logged; callers detect this with IsBGRA8Premultiplied.
// A nil bitmap yields nil.
func EnsureBGRA8Premultiplied(b *Bitmap) *Bitmap {
	if b == nil || b.IsBGRA8Premultiplied() {
		return b
	}
	out, err := convertToBGRA8Premultiplied(b)
	if err != nil {
		Logger().Warn("backdrop: format conversion failed",
			"format", b.format.String(), "alpha", b.alpha.String(), "err", err)
		return b
	}
	return out
}

func convertToBGRA8Premultiplied(b *Bitmap) (*Bitmap, error) {
	l, err := b.Lock(LockRead)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormatConversion, err)
	}
	defer func() { _ = l.Unlock() }()

	out, err := NewBitmap(b.width, b.height)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormatConversion, err)
	}
	if err := pixel.ToBGRAPremultiplied(out.plane(), l.plane(), b.format, b.alpha); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormatConversion, err)
	}
	return out, nil
}
