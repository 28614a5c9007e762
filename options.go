package backdrop

// PipelineOption configures a Pipeline during creation.
//
// Example:
//
//	p := backdrop.NewPipeline(
//	    backdrop.WithAccelerator(gpu.NewContext()),
//	    backdrop.WithCornerRadius(12),
//	    backdrop.WithFeather(6),
//	)
type PipelineOption func(*pipelineOptions)

// pipelineOptions holds optional configuration for Pipeline creation.
type pipelineOptions struct {
	accel       Accelerator
	accelSet    bool
	encoder     Encoder
	feather     int
	corner      float64
	diagnostics bool
}

// defaultOptions returns the default pipeline options.
func defaultOptions() pipelineOptions {
	return pipelineOptions{
		encoder: PNGEncoder{},
	}
}

// WithAccelerator sets the GPU accelerator tried before the CPU blur.
// Passing nil forces the CPU path even when a default accelerator is
// registered. Without this option the pipeline uses RegisteredAccelerator
// at call time.
func WithAccelerator(a Accelerator) PipelineOption {
	return func(o *pipelineOptions) {
		o.accel = a
		o.accelSet = true
	}
}

// WithEncoder replaces the PNG encoder used for the output stream.
func WithEncoder(e Encoder) PipelineOption {
	return func(o *pipelineOptions) {
		if e != nil {
			o.encoder = e
		}
	}
}

// WithFeather sets the radius, in pixels, by which mask coverage is blurred
// before compositing. Zero disables feathering.
func WithFeather(radius int) PipelineOption {
	return func(o *pipelineOptions) {
		o.feather = max(radius, 0)
	}
}

// WithCornerRadius clips the backdrop to a rounded rectangle of the given
// corner radius in pixels, intersected with any caller mask.
func WithCornerRadius(r float64) PipelineOption {
	return func(o *pipelineOptions) {
		o.corner = max(r, 0)
	}
}

// WithDiagnostics logs per-stage timings and sizes at debug level and asks
// the accelerator for the same.
func WithDiagnostics(enabled bool) PipelineOption {
	return func(o *pipelineOptions) {
		o.diagnostics = enabled
	}
}
