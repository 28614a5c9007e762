package backdrop

import (
	"fmt"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/backdrop/internal/boxblur"
	"github.com/gogpu/backdrop/internal/cache"
	"github.com/gogpu/backdrop/internal/pixel"
)

// A mask is a Bitmap whose alpha channel carries per-pixel coverage, 0 for
// fully excluded and 255 for fully included. Masks produced here are white
// premultiplied BGRA, so RGB equals alpha.

// CreateRoundedRectMask returns a width x height mask that covers a rounded
// rectangle filling the whole bitmap.
//
// A pixel is inside when its center (x+0.5, y+0.5) lies in the inset cross
// [r, w-r] x [0, h] or [0, w] x [r, h-r], or within r of the nearest corner
// anchor. Inside pixels are opaque white, outside pixels are transparent.
// The radius is clamped to [0, min(width, height)/2]. A fully rounded
// rectangle (radius at least half the shorter side) always excludes its four
// corner pixels, even when the shorter side is too small for the circle test
// to reject them.
func CreateRoundedRectMask(width, height int, radius float64) (*Bitmap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	return coverageToMask(roundedRectCoverage(width, height, radius), width, height)
}

// rectKey identifies a rounded-rect coverage map by size and clamped radius.
type rectKey struct {
	width, height int
	radius        float64
}

// rectCoverage caches rounded-rect coverage maps. Batches usually render many
// backdrops of one size, so the same map is requested repeatedly.
var rectCoverage = cache.New[rectKey, []uint8](16)

// roundedRectCoverage returns the binary rounded-rect coverage map. The
// returned slice is shared and must not be modified.
func roundedRectCoverage(width, height int, radius float64) []uint8 {
	key := rectKey{width, height, clampCornerRadius(radius, width, height)}
	return rectCoverage.GetOrCreate(key, func() []uint8 {
		return computeRoundedRectCoverage(width, height, key.radius)
	})
}

func computeRoundedRectCoverage(width, height int, r float64) []uint8 {
	w, h := float64(width), float64(height)
	r2 := r * r
	cov := make([]uint8, width*height)
	for y := range height {
		cy := float64(y) + 0.5
		ay := math.Min(math.Max(cy, r), h-r)
		dy := cy - ay
		for x := range width {
			cx := float64(x) + 0.5
			ax := math.Min(math.Max(cx, r), w-r)
			dx := cx - ax
			if dx*dx+dy*dy <= r2 {
				cov[y*width+x] = 255
			}
		}
	}
	if r > 0 && r >= float64(min(width, height))/2 {
		for _, i := range [4]int{0, width - 1, (height - 1) * width, height*width - 1} {
			cov[i] = 0
		}
	}
	return cov
}

func clampCornerRadius(r float64, width, height int) float64 {
	if r <= 0 || math.IsNaN(r) {
		return 0
	}
	return math.Min(r, float64(min(width, height))/2)
}

// MaskCoverage derives the coverage map of a mask: its alpha channel, or, if
// alpha is zero everywhere while some color channel carries data, the
// luminance approximation 0.3R + 0.59G + 0.11B. Gray8 masks are luminance
// masks. The result is packed, one byte per pixel.
func MaskCoverage(mask *Bitmap) ([]uint8, error) {
	if mask == nil {
		return nil, ErrNilBitmap
	}
	l, err := mask.Lock(LockRead)
	if err != nil {
		return nil, err
	}
	defer func() { _ = l.Unlock() }()

	w, h := mask.width, mask.height
	p := l.plane()
	cov := make([]uint8, w*h)

	if mask.format == FormatGray8 {
		for y := range h {
			copy(cov[y*w:(y+1)*w], p.RowOf(y, FormatGray8))
		}
		return cov, nil
	}

	// Byte offsets of R, G and B within a pixel.
	ri, gi, bi := 2, 1, 0
	if mask.format == FormatRGBA8 {
		ri, bi = 0, 2
	}

	var anyAlpha, anyColor bool
	for y := range h {
		row := p.Row(y)
		for x := range w {
			px := row[x*4 : x*4+4]
			a := px[3]
			cov[y*w+x] = a
			if a != 0 {
				anyAlpha = true
			} else if px[ri]|px[gi]|px[bi] != 0 {
				anyColor = true
			}
		}
	}
	if anyAlpha || !anyColor {
		return cov, nil
	}

	for y := range h {
		row := p.Row(y)
		for x := range w {
			px := row[x*4 : x*4+4]
			cov[y*w+x] = luminance(px[ri], px[gi], px[bi])
		}
	}
	return cov, nil
}

// luminance returns (0.3R + 0.59G + 0.11B) with 8-bit fixed-point weights
// that sum to 256, so white maps to 255.
func luminance(r, g, b uint8) uint8 {
	return uint8((77*uint32(r) + 151*uint32(g) + 28*uint32(b) + 128) >> 8) //nolint:gosec // weights sum to 256
}

// CompositeWithMask applies mask as per-pixel coverage to base and returns a
// new BGRA8 premultiplied bitmap.
//
// The mask is resized nearest-neighbor to the base size when they differ.
// With feather > 0 the coverage map is box blurred by that radius first.
// Each output pixel keeps the base's straight color and takes alpha
// coverage*baseAlpha/255.
//
// A nil mask, or a mask with zero coverage everywhere, is treated as not
// ready yet: the normalized base is returned unchanged.
func CompositeWithMask(base, mask *Bitmap, feather int) (*Bitmap, error) {
	if base == nil {
		return nil, ErrNilBitmap
	}
	base = EnsureBGRA8Premultiplied(base)
	if !base.IsBGRA8Premultiplied() {
		return nil, ErrFormatConversion
	}
	if mask == nil {
		return base, nil
	}

	cov, err := MaskCoverage(mask)
	if err != nil {
		return nil, err
	}
	if allZero(cov) {
		Logger().Debug("backdrop: mask has no coverage, passing base through")
		return base, nil
	}

	w, h := base.width, base.height
	if mask.width != w || mask.height != h {
		cov = resizeCoverageNearest(cov, mask.width, mask.height, w, h)
	}
	if feather > 0 {
		if err := boxblur.Coverage(cov, w, h, feather); err != nil {
			return nil, err
		}
	}

	l, err := base.Lock(LockRead)
	if err != nil {
		return nil, err
	}
	defer func() { _ = l.Unlock() }()

	out, err := NewBitmap(w, h)
	if err != nil {
		return nil, err
	}
	src := l.plane()
	dst := out.plane()
	for y := range h {
		s := src.Row(y)
		d := dst.Row(y)
		for x := range w {
			i := x * 4
			a := s[i+3]
			na := pixel.Premultiply(cov[y*w+x], a)
			for c := range 3 {
				d[i+c] = pixel.Premultiply(pixel.Unpremultiply(s[i+c], a), na)
			}
			d[i+3] = na
		}
	}
	return out, nil
}

// CombineMaskWithRoundedRect intersects mask with a width x height rounded
// rectangle clip. Output alpha is a*b/255 (rounded) where a is the mask's
// coverage, resized nearest-neighbor if needed, and b the rounded-rect
// coverage. Output RGB is white premultiplied by that alpha.
// A nil mask yields the plain rounded-rect mask.
func CombineMaskWithRoundedRect(mask *Bitmap, width, height int, radius float64) (*Bitmap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	clip := roundedRectCoverage(width, height, radius)
	if mask == nil {
		return coverageToMask(clip, width, height)
	}

	cov, err := MaskCoverage(mask)
	if err != nil {
		return nil, err
	}
	if mask.width != width || mask.height != height {
		cov = resizeCoverageNearest(cov, mask.width, mask.height, width, height)
	}
	for i := range cov {
		cov[i] = pixel.Premultiply(cov[i], clip[i])
	}
	return coverageToMask(cov, width, height)
}

// coverageToMask expands a coverage map into a white premultiplied mask.
func coverageToMask(cov []uint8, width, height int) (*Bitmap, error) {
	out, err := NewBitmap(width, height)
	if err != nil {
		return nil, err
	}
	data := out.plane().Data
	for i, a := range cov {
		j := i * 4
		data[j+0], data[j+1], data[j+2], data[j+3] = a, a, a, a
	}
	return out, nil
}

// resizeCoverageNearest scales a packed coverage map with nearest-neighbor
// sampling, so binary masks stay binary.
func resizeCoverageNearest(cov []uint8, sw, sh, dw, dh int) []uint8 {
	src := &image.Gray{Pix: cov, Stride: sw, Rect: image.Rect(0, 0, sw, sh)}
	dst := image.NewGray(image.Rect(0, 0, dw, dh))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst.Pix
}

func allZero(values []uint8) bool {
	for _, v := range values {
		if v != 0 {
			return false
		}
	}
	return true
}
