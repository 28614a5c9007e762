// Package boxblur implements separable box blur using running prefix sums.
//
// Each pass builds one prefix sum per channel along a line and averages every
// output sample over an inclusive window clamped to the line bounds. The
// window narrows at the edges instead of wrapping or reading padding, and the
// cost is O(width*height) independent of the radius.
//
// Two entry points are provided:
//   - BGRA blurs 4-channel pixel planes (color + alpha)
//   - Coverage blurs single-channel coverage maps (mask feathering)
package boxblur

import (
	"errors"
	"sync"

	"github.com/gogpu/backdrop/internal/pixel"
)

// ErrInvalidPlane is returned when the plane cannot hold its declared pixels.
var ErrInvalidPlane = errors.New("boxblur: invalid plane")

// BGRA blurs a 4-byte-per-pixel plane in place with the same radius on both
// axes. Channel order is irrelevant; all four channels are treated alike.
// A radius of zero or less leaves the plane untouched.
func BGRA(p pixel.Plane, radius int) error {
	return BGRAXY(p, radius, radius)
}

// BGRAXY blurs a 4-byte-per-pixel plane in place with independent radii.
//
// Pass 1 (horizontal) reads the plane and writes a packed temporary buffer.
// Pass 2 (vertical) reads the temporary buffer and writes back into the plane.
func BGRAXY(p pixel.Plane, rx, ry int) error {
	if err := p.Validate(pixel.FormatBGRA8); err != nil {
		return errors.Join(ErrInvalidPlane, err)
	}
	rx = clampRadius(rx, p.Width)
	ry = clampRadius(ry, p.Height)
	if rx == 0 && ry == 0 {
		return nil
	}

	const channels = 4
	w, h := p.Width, p.Height
	rowBytes := w * channels

	temp := pixel.GetBytes(rowBytes * h)
	defer pixel.PutBytes(temp)

	sums := getSums((max(w, h) + 1) * channels)
	defer putSums(sums)

	// Pass 1: horizontal (plane -> temp)
	for y := range h {
		src := p.Offset + y*p.Stride
		dst := y * rowBytes
		if rx > 0 {
			boxLine(temp, dst, channels, p.Data, src, channels, w, channels, rx, sums)
		} else {
			copy(temp[dst:dst+rowBytes], p.Data[src:src+rowBytes])
		}
	}

	// Pass 2: vertical (temp -> plane)
	if ry > 0 {
		for x := range w {
			boxLine(p.Data, p.Offset+x*channels, p.Stride, temp, x*channels, rowBytes, h, channels, ry, sums)
		}
		return nil
	}
	for y := range h {
		dst := p.Offset + y*p.Stride
		copy(p.Data[dst:dst+rowBytes], temp[y*rowBytes:(y+1)*rowBytes])
	}
	return nil
}

// Coverage blurs a packed single-channel map of width*height values in place.
func Coverage(values []uint8, width, height, radius int) error {
	if width <= 0 || height <= 0 || len(values) < width*height {
		return ErrInvalidPlane
	}
	rx := clampRadius(radius, width)
	ry := clampRadius(radius, height)
	if rx == 0 && ry == 0 {
		return nil
	}

	temp := pixel.GetBytes(width * height)
	defer pixel.PutBytes(temp)

	sums := getSums(max(width, height) + 1)
	defer putSums(sums)

	for y := range height {
		boxLine(temp, y*width, 1, values, y*width, 1, width, 1, rx, sums)
	}
	for x := range width {
		boxLine(values, x, width, temp, x, width, height, 1, ry, sums)
	}
	return nil
}

// boxLine averages one line of n samples.
//
// Sample i of the source starts at sOff+i*sStep and sample i of the
// destination at dOff+i*dStep; each sample has the given number of channels.
// sums must hold at least (n+1)*channels entries.
func boxLine(dst []byte, dOff, dStep int, src []byte, sOff, sStep int, n, channels, r int, sums []uint32) {
	for c := range channels {
		sums[c] = 0
	}
	for i := range n {
		s := sOff + i*sStep
		base := i * channels
		next := base + channels
		for c := range channels {
			sums[next+c] = sums[base+c] + uint32(src[s+c])
		}
	}

	for i := range n {
		lo := i - r
		if lo < 0 {
			lo = 0
		}
		hi := i + r
		if hi > n-1 {
			hi = n - 1
		}
		count := uint32(hi - lo + 1) //nolint:gosec // window size is positive
		d := dOff + i*dStep
		loBase := lo * channels
		hiBase := (hi + 1) * channels
		for c := range channels {
			dst[d+c] = uint8((sums[hiBase+c] - sums[loBase+c]) / count) //nolint:gosec // average of bytes
		}
	}
}

// clampRadius bounds r to [0, extent]. A window wider than the line gives
// the same result as one exactly covering it.
func clampRadius(r, extent int) int {
	if r < 0 {
		return 0
	}
	if r > extent {
		return extent
	}
	return r
}

// sumBuffer wraps a slice for sync.Pool to avoid allocation warnings.
type sumBuffer struct {
	data []uint32
}

// sumPool holds prefix-sum scratch buffers.
var sumPool = sync.Pool{
	New: func() interface{} {
		return &sumBuffer{data: make([]uint32, 4096*4)}
	},
}

// getSums retrieves a prefix-sum buffer with at least n elements.
func getSums(n int) []uint32 {
	wrapper := sumPool.Get().(*sumBuffer)
	if len(wrapper.data) < n {
		sumPool.Put(wrapper)
		return make([]uint32, n)
	}
	return wrapper.data[:n]
}

// putSums returns a prefix-sum buffer to the pool.
func putSums(buf []uint32) {
	// Only pool reasonably-sized buffers
	if cap(buf) <= 1<<20 {
		sumPool.Put(&sumBuffer{data: buf[:cap(buf)]})
	}
}
