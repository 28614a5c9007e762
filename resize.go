package backdrop

import (
	"fmt"

	"github.com/disintegration/imaging"
)

// ResizeFill scales b to exactly width x height with "fill" semantics: the
// source is center-cropped to the target aspect ratio and then resampled
// with a Lanczos filter. The result is a new BGRA8 premultiplied bitmap.
// If b already has the target size, the normalized b is returned.
func ResizeFill(b *Bitmap, width, height int) (*Bitmap, error) {
	if b == nil {
		return nil, ErrNilBitmap
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	src := EnsureBGRA8Premultiplied(b)
	if src.width == width && src.height == height {
		return src, nil
	}

	// Resample straight alpha so transparent pixels do not darken edges.
	img, err := src.ToNRGBA()
	if err != nil {
		return nil, err
	}
	filled := imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)
	out, err := FromImage(filled)
	if err != nil {
		return nil, err
	}
	out = EnsureBGRA8Premultiplied(out)
	if !out.IsBGRA8Premultiplied() {
		return nil, ErrFormatConversion
	}
	Logger().Debug("backdrop: resized",
		"from", fmt.Sprintf("%dx%d", src.width, src.height),
		"to", fmt.Sprintf("%dx%d", width, height))
	return out, nil
}
