package backdrop

import (
	"github.com/gogpu/backdrop/internal/boxblur"
)

// BlurCPU blurs a BGRA8 premultiplied bitmap in place with a separable box
// filter of the given radius.
//
// Every output sample averages the inclusive window [x-r, x+r] clamped to
// the image, first along rows, then along columns of the row result. The
// window narrows at the edges, so no color is wrapped in from the opposite
// side and no transparent border is invented. Cost is O(width*height)
// regardless of radius.
//
// A radius of zero or less leaves the bitmap untouched. BlurCPU returns false
// if the bitmap is nil, not BGRA8 premultiplied, or cannot be locked.
func BlurCPU(b *Bitmap, radius int) bool {
	if b == nil || !b.IsBGRA8Premultiplied() {
		return false
	}
	if radius <= 0 {
		return true
	}

	l, err := b.Lock(LockReadWrite)
	if err != nil {
		Logger().Warn("backdrop: cpu blur lock failed", "err", err)
		return false
	}
	blurErr := boxblur.BGRA(l.plane(), radius)
	if err := l.Unlock(); err != nil {
		Logger().Warn("backdrop: cpu blur write back failed", "err", err)
		return false
	}
	if blurErr != nil {
		Logger().Warn("backdrop: cpu blur failed", "err", blurErr)
		return false
	}
	Logger().Debug("backdrop: cpu blur", "width", b.width, "height", b.height, "radius", radius, "direct", l.Direct)
	return true
}
