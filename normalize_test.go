package backdrop

import (
	"testing"
)

func TestEnsureBGRA8PremultipliedNoop(t *testing.T) {
	b := solidBitmap(t, 2, 2, [4]byte{1, 2, 3, 4})
	if got := EnsureBGRA8Premultiplied(b); got != b {
		t.Error("already normalized bitmap should be returned as is")
	}
	if EnsureBGRA8Premultiplied(nil) != nil {
		t.Error("nil should stay nil")
	}
}

func TestEnsureBGRA8PremultipliedIdempotent(t *testing.T) {
	src, err := FromRaw([]byte{255, 0, 0, 128, 10, 20, 30, 255}, 2, 1, 8, FormatRGBA8, AlphaStraight)
	if err != nil {
		t.Fatal(err)
	}

	once := EnsureBGRA8Premultiplied(src)
	twice := EnsureBGRA8Premultiplied(once)
	if once == src {
		t.Fatal("conversion should produce a new bitmap")
	}
	if twice != once {
		t.Error("second normalization should be a no-op")
	}

	want := [][4]byte{{0, 0, 128, 128}, {30, 20, 10, 255}}
	for x, w := range want {
		if got := pixelAt(once, x, 0); got != w {
			t.Errorf("pixel %d = %v, want %v", x, got, w)
		}
	}
}

func TestEnsureBGRA8PremultipliedGray(t *testing.T) {
	src, err := FromRaw([]byte{0, 100, 255}, 3, 1, 3, FormatGray8, AlphaStraight)
	if err != nil {
		t.Fatal(err)
	}
	out := EnsureBGRA8Premultiplied(src)
	if got := pixelAt(out, 1, 0); got != [4]byte{100, 100, 100, 255} {
		t.Errorf("gray pixel = %v", got)
	}
}

func TestEnsureBGRA8PremultipliedFailureReturnsOriginal(t *testing.T) {
	s := &memStream{data: make([]byte, 2)}
	src, err := NewStreamBitmap(s, 2, 2, 8, FormatRGBA8, AlphaStraight)
	if err != nil {
		t.Fatal(err)
	}
	if got := EnsureBGRA8Premultiplied(src); got != src {
		t.Error("failed conversion should return the original bitmap")
	}
}
