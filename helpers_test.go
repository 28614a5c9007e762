package backdrop

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"testing"
)

// mockAccelerator implements Accelerator for testing.
type mockAccelerator struct {
	name   string
	err    error
	blur   func(b *Bitmap, opts GPUBlurOptions) (*Bitmap, error)
	logger *slog.Logger

	mu     sync.Mutex
	calls  int
	closed bool
}

func (m *mockAccelerator) Name() string { return m.name }

func (m *mockAccelerator) BlurBitmap(_ context.Context, b *Bitmap, opts GPUBlurOptions) (*Bitmap, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.blur != nil {
		return m.blur(b, opts)
	}
	return nil, m.err
}

func (m *mockAccelerator) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *mockAccelerator) SetLogger(l *slog.Logger) { m.logger = l }

func (m *mockAccelerator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockAccelerator) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// resetAccelerator clears the global accelerator state between tests.
func resetAccelerator() {
	accelMu.Lock()
	accel = nil
	accelMu.Unlock()
}

// memStream is an in-memory io.ReadWriteSeeker standing in for a platform
// buffer object that can only be copied.
type memStream struct {
	data    []byte
	pos     int64
	readErr error
}

func (s *memStream) Read(p []byte) (int, error) {
	if s.readErr != nil {
		return 0, s.readErr
	}
	if s.pos >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *memStream) Write(p []byte) (int, error) {
	end := s.pos + int64(len(p))
	if end > int64(len(s.data)) {
		s.data = append(s.data, make([]byte, end-int64(len(s.data)))...)
	}
	copy(s.data[s.pos:], p)
	s.pos = end
	return len(p), nil
}

func (s *memStream) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		s.pos = offset
	case io.SeekCurrent:
		s.pos += offset
	case io.SeekEnd:
		s.pos = int64(len(s.data)) + offset
	}
	if s.pos < 0 {
		return 0, errors.New("negative position")
	}
	return s.pos, nil
}

// solidBitmap returns a BGRA8 premultiplied bitmap filled with one pixel.
func solidBitmap(t testing.TB, w, h int, bgra [4]byte) *Bitmap {
	t.Helper()
	b, err := NewBitmap(w, h)
	if err != nil {
		t.Fatal(err)
	}
	data := b.plane().Data
	for i := 0; i < len(data); i += 4 {
		copy(data[i:i+4], bgra[:])
	}
	return b
}

// gradientBitmap returns an opaque BGRA8 bitmap whose red channel rises
// linearly with x and whose green channel rises with y.
func gradientBitmap(t testing.TB, w, h int) *Bitmap {
	t.Helper()
	b, err := NewBitmap(w, h)
	if err != nil {
		t.Fatal(err)
	}
	p := b.plane()
	for y := range h {
		row := p.Row(y)
		for x := range w {
			i := x * 4
			row[i+0] = 64
			row[i+1] = byte(y * 255 / max(h-1, 1))
			row[i+2] = byte(x * 255 / max(w-1, 1))
			row[i+3] = 255
		}
	}
	return b
}

// pixelAt returns the raw BGRA bytes of a memory bitmap.
func pixelAt(b *Bitmap, x, y int) [4]byte {
	p := b.plane()
	i := p.PixelOffset(x, y)
	return [4]byte{p.Data[i], p.Data[i+1], p.Data[i+2], p.Data[i+3]}
}

// bytesOf returns a packed copy of a bitmap's pixels through Lock.
func bytesOf(t testing.TB, b *Bitmap) []byte {
	t.Helper()
	l, err := b.Lock(LockRead)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer func() { _ = l.Unlock() }()
	rowBytes := b.format.RowBytes(b.width)
	out := make([]byte, 0, rowBytes*b.height)
	for y := range b.height {
		start := l.Offset + y*l.Stride
		out = append(out, l.Data[start:start+rowBytes]...)
	}
	return out
}

// decodePNG decodes a pipeline stream into an NRGBA image.
func decodePNG(t testing.TB, r io.Reader) image.Image {
	t.Helper()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return img
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
