// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/backdrop/internal/pixel"
)

// PaddingPixels is the width of the transparent ring added around every
// image before blurring. It is constant so that buffer sizes depend only on
// the image size, not on the radius.
const PaddingPixels = 128

// Blur directions, matching Params.direction in blur.wgsl.
const (
	directionHorizontal uint32 = 0
	directionVertical   uint32 = 1
)

// paramsSize is the size of the Params uniform in bytes.
const paramsSize = 16

// kernelRadius returns ceil(3*sigma), the number of taps on each side of the
// center beyond which Gaussian weights are negligible.
func kernelRadius(sigma float64) int {
	if sigma <= 0 {
		return 0
	}
	return int(math.Ceil(3 * sigma))
}

// gaussianWeights returns the one-sided normalized weights w[0..r] of a
// Gaussian with standard deviation sigma, where w(k) = exp(-k^2/(2 sigma^2))
// and w[0] + 2*sum(w[1..r]) == 1.
func gaussianWeights(sigma float64) []float32 {
	r := kernelRadius(sigma)
	if r == 0 {
		return []float32{1}
	}
	raw := make([]float64, r+1)
	twoSigma2 := 2 * sigma * sigma
	total := 0.0
	for k := range raw {
		raw[k] = math.Exp(-float64(k*k) / twoSigma2)
		if k == 0 {
			total += raw[k]
		} else {
			total += 2 * raw[k]
		}
	}
	w := make([]float32, r+1)
	for k := range raw {
		w[k] = float32(raw[k] / total)
	}
	return w
}

// paddedSize returns the size of the working image for a w x h input.
func paddedSize(w, h int) (int, int) {
	return w + 2*PaddingPixels, h + 2*PaddingPixels
}

// padPlane copies a BGRA plane into the center of a packed padded buffer.
// dst must be zeroed so the ring stays transparent.
func padPlane(dst []byte, src pixel.Plane) {
	pw, _ := paddedSize(src.Width, src.Height)
	rowBytes := src.Width * 4
	for y := range src.Height {
		d := ((y+PaddingPixels)*pw + PaddingPixels) * 4
		copy(dst[d:d+rowBytes], src.Row(y))
	}
}

// cropPlane copies the centered w x h region of a packed padded buffer into
// dst, honoring dst's stride.
func cropPlane(dst pixel.Plane, src []byte) {
	pw, _ := paddedSize(dst.Width, dst.Height)
	rowBytes := dst.Width * 4
	for y := range dst.Height {
		s := ((y+PaddingPixels)*pw + PaddingPixels) * 4
		copy(dst.Row(y), src[s:s+rowBytes])
	}
}

// paramsBytes encodes the Params uniform.
func paramsBytes(width, height, radius, direction uint32) []byte {
	b := make([]byte, paramsSize)
	binary.LittleEndian.PutUint32(b[0:], width)
	binary.LittleEndian.PutUint32(b[4:], height)
	binary.LittleEndian.PutUint32(b[8:], radius)
	binary.LittleEndian.PutUint32(b[12:], direction)
	return b
}

// weightsBytes encodes weights as a little-endian f32 array.
func weightsBytes(w []float32) []byte {
	b := make([]byte, 4*len(w))
	for i, v := range w {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}
