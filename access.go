package backdrop

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/gogpu/backdrop/internal/pixel"
)

// Surface is the backing store of a Bitmap's pixel plane.
//
// Every surface supports whole-plane copies. Surfaces that can expose their
// memory without copying also implement DirectSurface.
type Surface interface {
	// Len returns the plane size in bytes (stride * height).
	Len() int

	// ReadPlane copies the whole plane into dst.
	ReadPlane(dst []byte) error

	// WritePlane replaces the whole plane with src.
	WritePlane(src []byte) error
}

// DirectSurface is a Surface whose memory can be addressed in place.
type DirectSurface interface {
	Surface

	// Bytes returns the live plane memory, or nil if it cannot be exposed
	// right now.
	Bytes() []byte
}

// AccessStrategy selects how Lock reaches a surface's pixels.
type AccessStrategy uint8

const (
	// DirectAccess exposes the surface's memory with no copy.
	DirectAccess AccessStrategy = iota

	// CopyThroughStream copies the plane into a pooled buffer and, for
	// writable locks, copies it back on Unlock.
	CopyThroughStream
)

// String returns the strategy name.
func (s AccessStrategy) String() string {
	switch s {
	case DirectAccess:
		return "direct"
	case CopyThroughStream:
		return "stream"
	default:
		return "unknown"
	}
}

// LockMode describes the intended access of a Lock.
type LockMode uint8

const (
	// LockRead exposes pixels for reading only. Changes are not written back.
	LockRead LockMode = iota

	// LockWrite exposes pixels for overwriting. Stream surfaces skip the
	// initial read.
	LockWrite

	// LockReadWrite exposes pixels for in-place editing.
	LockReadWrite
)

func (m LockMode) writes() bool { return m != LockRead }

// strategies caches the access strategy per concrete surface type.
var strategies sync.Map // reflect.Type -> AccessStrategy

// strategyFor returns the cached strategy for a surface's type, deciding it
// on first sight.
func strategyFor(s Surface) AccessStrategy {
	t := reflect.TypeOf(s)
	if v, ok := strategies.Load(t); ok {
		return v.(AccessStrategy)
	}
	st := CopyThroughStream
	if _, ok := s.(DirectSurface); ok {
		st = DirectAccess
	}
	v, _ := strategies.LoadOrStore(t, st)
	return v.(AccessStrategy)
}

// Lock is an exclusive view of a Bitmap's pixel plane.
//
// Pixel (x, y) starts at Data[Offset + y*Stride + x*bpp]. Data is only valid
// until Unlock.
type Lock struct {
	Data   []byte
	Width  int
	Height int
	Stride int
	Offset int

	// Direct is true when Data aliases the surface memory. When false,
	// writable locks are copied back by Unlock.
	Direct bool

	bitmap   *Bitmap
	mode     LockMode
	released bool
}

// Lock exposes the bitmap's pixels. It tries the surface's cached strategy
// first; a direct surface that cannot currently expose its memory falls
// through to the stream copy. If neither path works it returns an error
// wrapping ErrBufferAccess.
func (b *Bitmap) Lock(mode LockMode) (*Lock, error) {
	if b == nil {
		return nil, ErrNilBitmap
	}
	if b.surface == nil {
		return nil, fmt.Errorf("%w: no surface", ErrBufferAccess)
	}
	size := b.stride * b.height

	if strategyFor(b.surface) == DirectAccess {
		if ds, ok := b.surface.(DirectSurface); ok {
			if data := ds.Bytes(); len(data) >= size {
				return &Lock{
					Data:   data[:size],
					Width:  b.width,
					Height: b.height,
					Stride: b.stride,
					Direct: true,
					bitmap: b,
					mode:   mode,
				}, nil
			}
		}
	}

	if b.surface.Len() < size {
		return nil, fmt.Errorf("%w: surface holds %d bytes, need %d", ErrBufferAccess, b.surface.Len(), size)
	}
	buf := pixel.GetBytes(size)
	if mode != LockWrite {
		if err := b.surface.ReadPlane(buf); err != nil {
			pixel.PutBytes(buf)
			return nil, fmt.Errorf("%w: %w", ErrBufferAccess, err)
		}
	}
	return &Lock{
		Data:   buf,
		Width:  b.width,
		Height: b.height,
		Stride: b.stride,
		bitmap: b,
		mode:   mode,
	}, nil
}

// Unlock releases the view. For stream locks opened for writing it writes the
// buffer back to the surface. Unlock is idempotent.
func (l *Lock) Unlock() error {
	if l == nil || l.released {
		return nil
	}
	l.released = true
	if l.Direct {
		l.Data = nil
		return nil
	}

	var err error
	if l.mode.writes() {
		if werr := l.bitmap.surface.WritePlane(l.Data); werr != nil {
			err = fmt.Errorf("%w: write back: %w", ErrBufferAccess, werr)
		}
	}
	pixel.PutBytes(l.Data)
	l.Data = nil
	return err
}

// plane returns the lock as a pixel plane view.
func (l *Lock) plane() pixel.Plane {
	return pixel.Plane{Data: l.Data, Width: l.Width, Height: l.Height, Stride: l.Stride, Offset: l.Offset}
}

// memorySurface is a plane held in a Go slice.
type memorySurface struct {
	data []byte
}

func (s *memorySurface) Len() int      { return len(s.data) }
func (s *memorySurface) Bytes() []byte { return s.data }

func (s *memorySurface) ReadPlane(dst []byte) error {
	copy(dst, s.data)
	return nil
}

func (s *memorySurface) WritePlane(src []byte) error {
	copy(s.data, src)
	return nil
}

// errShortStream is returned when a stream holds fewer bytes than the plane.
var errShortStream = errors.New("backdrop: stream shorter than pixel plane")

// streamSurface is a plane stored behind a seekable byte stream.
type streamSurface struct {
	mu   sync.Mutex
	rws  io.ReadWriteSeeker
	size int
}

func (s *streamSurface) Len() int { return s.size }

func (s *streamSurface) ReadPlane(dst []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.rws.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.ReadFull(s.rws, dst[:s.size]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return errShortStream
		}
		return err
	}
	return nil
}

func (s *streamSurface) WritePlane(src []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.rws.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := s.rws.Write(src[:s.size])
	return err
}
