package pixel

import (
	"errors"
	"runtime"
	"sync"
	"testing"
)

func TestFormatInfo(t *testing.T) {
	tests := []struct {
		format   Format
		bpp      int
		hasAlpha bool
		name     string
	}{
		{FormatGray8, 1, false, "Gray8"},
		{FormatRGBA8, 4, true, "RGBA8"},
		{FormatBGRA8, 4, true, "BGRA8"},
		{Format(200), 0, false, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.format.BytesPerPixel(); got != tt.bpp {
				t.Errorf("BytesPerPixel() = %d, want %d", got, tt.bpp)
			}
			if got := tt.format.HasAlpha(); got != tt.hasAlpha {
				t.Errorf("HasAlpha() = %v, want %v", got, tt.hasAlpha)
			}
			if got := tt.format.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
		})
	}
}

func TestPlaneValidate(t *testing.T) {
	tests := []struct {
		name    string
		plane   Plane
		wantErr error
	}{
		{"packed", Plane{Data: make([]byte, 40), Width: 5, Height: 2, Stride: 20}, nil},
		{"padded rows", Plane{Data: make([]byte, 52), Width: 5, Height: 2, Stride: 32}, nil},
		{"offset", Plane{Data: make([]byte, 48), Width: 5, Height: 2, Stride: 20, Offset: 8}, nil},
		{"zero width", Plane{Data: make([]byte, 40), Width: 0, Height: 2, Stride: 20}, ErrInvalidDimensions},
		{"stride too small", Plane{Data: make([]byte, 40), Width: 5, Height: 2, Stride: 16}, ErrInvalidStride},
		{"data too small", Plane{Data: make([]byte, 39), Width: 5, Height: 2, Stride: 20}, ErrDataTooSmall},
		{"offset overflow", Plane{Data: make([]byte, 40), Width: 5, Height: 2, Stride: 20, Offset: 4}, ErrDataTooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.plane.Validate(FormatBGRA8); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPlaneRowRespectsStrideAndOffset(t *testing.T) {
	data := make([]byte, 4+2*12)
	p := Plane{Data: data, Width: 2, Height: 2, Stride: 12, Offset: 4}
	row := p.Row(1)
	if len(row) != 8 {
		t.Fatalf("len(Row(1)) = %d, want 8", len(row))
	}
	row[0] = 7
	if data[4+12] != 7 {
		t.Error("Row(1) does not alias offset+stride")
	}
	if p.Row(2) != nil || p.Row(-1) != nil {
		t.Error("out-of-range Row should return nil")
	}
}

func TestPackCopiesPaddedPlane(t *testing.T) {
	p := Plane{Data: make([]byte, 2*12), Width: 2, Height: 2, Stride: 12}
	for y := range 2 {
		for i, row := 0, p.Row(y); i < len(row); i++ {
			row[i] = byte(y*10 + i)
		}
	}
	got := Pack(p, FormatBGRA8)
	if len(got) != 16 {
		t.Fatalf("len(Pack) = %d, want 16", len(got))
	}
	if got[8] != 10 || got[15] != 17 {
		t.Errorf("Pack row 1 = %v, want values 10..17", got[8:])
	}
}

func TestPremultiply(t *testing.T) {
	tests := []struct {
		c, a, want uint8
	}{
		{255, 255, 255},
		{255, 0, 0},
		{255, 128, 128},
		{100, 255, 100},
		{200, 51, 40},
	}
	for _, tt := range tests {
		if got := Premultiply(tt.c, tt.a); got != tt.want {
			t.Errorf("Premultiply(%d, %d) = %d, want %d", tt.c, tt.a, got, tt.want)
		}
	}
}

func TestPremultiplyProductBounds(t *testing.T) {
	for a := range 256 {
		for b := range 256 {
			got := int(Premultiply(uint8(a), uint8(b)))
			exact := a * b / 255
			if got < exact || got > exact+1 || got > min(a, b) {
				t.Fatalf("Premultiply(%d, %d) = %d, exact %d", a, b, got, exact)
			}
		}
	}
}

func TestUnpremultiplyRoundTrip(t *testing.T) {
	for a := 1; a < 256; a += 17 {
		for c := 0; c < 256; c += 5 {
			p := Premultiply(uint8(c), uint8(a))
			back := Unpremultiply(p, uint8(a))
			// Precision loss is bounded by 255/a.
			tol := 255/a + 1
			diff := int(back) - c
			if diff < -tol || diff > tol {
				t.Fatalf("round trip c=%d a=%d: got %d (tol %d)", c, a, back, tol)
			}
		}
	}
	if Unpremultiply(10, 0) != 0 {
		t.Error("Unpremultiply with zero alpha should be 0")
	}
}

func TestToBGRAPremultiplied(t *testing.T) {
	t.Run("RGBA straight", func(t *testing.T) {
		src := Plane{Data: []byte{255, 0, 0, 128}, Width: 1, Height: 1, Stride: 4}
		dst, _ := NewPlane(1, 1, FormatBGRA8)
		if err := ToBGRAPremultiplied(dst, src, FormatRGBA8, AlphaStraight); err != nil {
			t.Fatal(err)
		}
		want := []byte{0, 0, 128, 128}
		for i := range want {
			if dst.Data[i] != want[i] {
				t.Fatalf("dst = %v, want %v", dst.Data, want)
			}
		}
	})

	t.Run("BGRA premultiplied copies", func(t *testing.T) {
		src := Plane{Data: []byte{1, 2, 3, 4, 0, 0, 0, 0}, Width: 1, Height: 1, Stride: 8}
		dst, _ := NewPlane(1, 1, FormatBGRA8)
		if err := ToBGRAPremultiplied(dst, src, FormatBGRA8, AlphaPremultiplied); err != nil {
			t.Fatal(err)
		}
		if dst.Data[0] != 1 || dst.Data[3] != 4 {
			t.Errorf("dst = %v, want [1 2 3 4]", dst.Data)
		}
	})

	t.Run("Gray expands opaque", func(t *testing.T) {
		src := Plane{Data: []byte{42, 7}, Width: 2, Height: 1, Stride: 2}
		dst, _ := NewPlane(2, 1, FormatBGRA8)
		if err := ToBGRAPremultiplied(dst, src, FormatGray8, AlphaStraight); err != nil {
			t.Fatal(err)
		}
		if dst.Data[0] != 42 || dst.Data[2] != 42 || dst.Data[3] != 255 || dst.Data[4] != 7 {
			t.Errorf("dst = %v", dst.Data)
		}
	})

	t.Run("destination too small", func(t *testing.T) {
		src := Plane{Data: make([]byte, 8), Width: 2, Height: 1, Stride: 8}
		dst, _ := NewPlane(1, 1, FormatBGRA8)
		if err := ToBGRAPremultiplied(dst, src, FormatRGBA8, AlphaStraight); !errors.Is(err, ErrDataTooSmall) {
			t.Errorf("err = %v, want ErrDataTooSmall", err)
		}
	})
}

func TestBGRAPremultipliedToNRGBA(t *testing.T) {
	src := Plane{Data: []byte{0, 0, 128, 128}, Width: 1, Height: 1, Stride: 4}
	dst := make([]byte, 4)
	BGRAPremultipliedToNRGBA(dst, 4, src)
	if dst[0] != 255 || dst[1] != 0 || dst[2] != 0 || dst[3] != 128 {
		t.Errorf("dst = %v, want [255 0 0 128]", dst)
	}
}

func TestPoolSizeClasses(t *testing.T) {
	tests := []struct {
		n, cap int
	}{
		{1, 64},
		{64, 64},
		{65, 128},
		{1000, 1024},
		{1 << 20, 1 << 20},
		{1<<20 + 1, 1 << 21},
	}
	pool := NewPool()
	for _, tt := range tests {
		buf := pool.Get(tt.n)
		if len(buf) != tt.n || cap(buf) != tt.cap {
			t.Errorf("Get(%d): len %d cap %d, want len %d cap %d", tt.n, len(buf), cap(buf), tt.n, tt.cap)
		}
		pool.Put(buf)
	}
	if pool.Get(0) != nil {
		t.Error("Get(0) should return nil")
	}
}

func TestPoolReturnsZeroedBuffers(t *testing.T) {
	pool := NewPool()
	for range 10 {
		buf := pool.Get(100)
		for i, v := range buf {
			if v != 0 {
				t.Fatalf("byte %d = %d, want 0", i, v)
			}
		}
		for i := range buf {
			buf[i] = 0xFF
		}
		pool.Put(buf)
	}
}

func TestPoolIgnoresForeignBuffers(t *testing.T) {
	pool := NewPool()
	pool.Put(nil)
	pool.Put(make([]byte, 100))
	pool.Put(make([]byte, 8))
	if buf := pool.Get(100); len(buf) != 100 || cap(buf) != 128 {
		t.Errorf("Get(100): len %d cap %d, want 100/128", len(buf), cap(buf))
	}
}

// Buffers of many distinct sizes must not stay live once the caller drops
// them.
func TestPoolReleasesIdleBuffers(t *testing.T) {
	pool := NewPool()
	const count, base = 48, 1 << 20
	for i := range count {
		pool.Put(pool.Get(base + i*4096))
		pool.Put(make([]byte, base+i*4096, 1<<21))
	}

	runtime.GC()
	runtime.GC()
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if limit := uint64(count * (1 << 21) / 4); ms.HeapAlloc > limit {
		t.Errorf("live heap %d MiB after dropping pooled buffers, want under %d MiB", ms.HeapAlloc>>20, limit>>20)
	}
	runtime.KeepAlive(pool)
}

func TestPoolConcurrentAccess(t *testing.T) {
	pool := NewPool()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				b := pool.Get(64)
				b[0] = 1
				pool.Put(b)
			}
		}()
	}
	wg.Wait()
}
