package backdrop

import "errors"

// Pipeline errors. Every stage returns one of these (possibly wrapped)
// instead of panicking; the worst outcome of a failed call is a missing
// backdrop, never a crashed host.
var (
	// ErrNilBitmap is returned when a required bitmap is nil.
	ErrNilBitmap = errors.New("backdrop: bitmap is nil")

	// ErrInvalidDimensions is returned when width or height is non-positive.
	ErrInvalidDimensions = errors.New("backdrop: invalid dimensions")

	// ErrBufferAccess is returned when neither the direct nor the
	// copy-through-stream path can expose a bitmap's pixels.
	ErrBufferAccess = errors.New("backdrop: pixel buffer not accessible")

	// ErrFormatConversion is returned when a bitmap cannot be converted to
	// BGRA8 premultiplied. Callers of EnsureBGRA8Premultiplied never see it;
	// the original bitmap is returned and the failure is logged.
	ErrFormatConversion = errors.New("backdrop: format conversion failed")

	// ErrFallbackToCPU indicates the accelerator cannot handle this request.
	// The caller should transparently fall back to the CPU blur.
	ErrFallbackToCPU = errors.New("backdrop: falling back to CPU blur")

	// ErrResourceCreation is returned when a GPU resource (device, shader,
	// pipeline, buffer, fence) cannot be created or mapped.
	ErrResourceCreation = errors.New("backdrop: GPU resource creation failed")

	// ErrDeviceUnavailable is returned when no GPU device could be opened.
	ErrDeviceUnavailable = errors.New("backdrop: GPU device unavailable")

	// ErrEncode is returned when the encoder sink fails.
	ErrEncode = errors.New("backdrop: encode failed")

	// ErrNoResult is returned when every blur stage failed.
	ErrNoResult = errors.New("backdrop: no blurred result produced")
)
