package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 90, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatal(err)
	}
}

func decodeSize(t *testing.T, r io.Reader) (int, int) {
	t.Helper()
	img, err := png.Decode(r)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestRunSingleFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.png")
	writePNG(t, in, 40, 30)

	err := run(context.Background(), []string{
		"-in", in, "-out", out, "-width", "20", "-height", "20", "-blur", "3", "-corner", "4", "-cpu",
	}, nil, io.Discard, io.Discard)
	if err != nil {
		t.Fatalf("run() = %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if w, h := decodeSize(t, f); w != 20 || h != 20 {
		t.Errorf("output size = %dx%d, want 20x20", w, h)
	}
}

func TestRunStdinToStdout(t *testing.T) {
	var src bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 12, 9))
	if err := png.Encode(&src, img); err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	err := run(context.Background(), []string{"-in", "-", "-cpu", "-blur", "2"}, &src, &stdout, io.Discard)
	if err != nil {
		t.Fatalf("run() = %v", err)
	}
	// Zero width and height keep the source size.
	if w, h := decodeSize(t, &stdout); w != 12 || h != 9 {
		t.Errorf("output size = %dx%d, want 12x9", w, h)
	}
}

func TestRunWithMask(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	mask := filepath.Join(dir, "mask.png")
	writePNG(t, in, 16, 16)
	writePNG(t, mask, 8, 8)

	var stdout bytes.Buffer
	err := run(context.Background(), []string{"-in", in, "-mask", mask, "-feather", "2", "-cpu"}, nil, &stdout, io.Discard)
	if err != nil {
		t.Fatalf("run() = %v", err)
	}
	if w, h := decodeSize(t, &stdout); w != 16 || h != 16 {
		t.Errorf("output size = %dx%d, want 16x16", w, h)
	}
}

func TestRunBatch(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	writePNG(t, filepath.Join(src, "a.png"), 20, 10)
	writePNG(t, filepath.Join(src, "b.PNG"), 10, 20)
	writeJPEG(t, filepath.Join(src, "c.jpg"), 16, 16)
	if err := os.WriteFile(filepath.Join(src, "notes.txt"), []byte("skip"), 0o600); err != nil {
		t.Fatal(err)
	}

	var stderr bytes.Buffer
	err := run(context.Background(), []string{
		"-batch", src, "-out", out, "-width", "8", "-height", "8", "-workers", "2", "-cpu",
	}, nil, io.Discard, &stderr)
	if err != nil {
		t.Fatalf("run() = %v\n%s", err, stderr.String())
	}

	for _, name := range []string{"a.backdrop.png", "b.backdrop.png", "c.backdrop.png"} {
		f, err := os.Open(filepath.Join(out, name))
		if err != nil {
			t.Errorf("missing %s: %v", name, err)
			continue
		}
		if w, h := decodeSize(t, f); w != 8 || h != 8 {
			t.Errorf("%s size = %dx%d, want 8x8", name, w, h)
		}
		f.Close()
	}
	if _, err := os.Stat(filepath.Join(out, "notes.backdrop.png")); err == nil {
		t.Error("non-image file was processed")
	}
}

func TestRunBatchReportsBadFiles(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writePNG(t, filepath.Join(src, "good.png"), 8, 8)
	if err := os.WriteFile(filepath.Join(src, "bad.png"), []byte("not a png"), 0o600); err != nil {
		t.Fatal(err)
	}

	err := run(context.Background(), []string{"-batch", src, "-out", out, "-cpu"}, nil, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "bad.png") {
		t.Fatalf("run() = %v, want an error naming bad.png", err)
	}
	if _, err := os.Stat(filepath.Join(out, "good.backdrop.png")); err != nil {
		t.Errorf("good image not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "bad.backdrop.png")); err == nil {
		t.Error("partial output left for bad image")
	}
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing input", []string{"-in", filepath.Join(dir, "none.png"), "-cpu"}, "unable to open"},
		{"missing mask", []string{"-in", "-", "-mask", filepath.Join(dir, "none.png"), "-cpu"}, "mask"},
		{"empty batch", []string{"-batch", dir, "-out", filepath.Join(dir, "o"), "-cpu"}, "no images"},
		{"no stdin", []string{"-in", "-", "-cpu"}, "stdin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), tt.args, nil, io.Discard, io.Discard)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("run() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestOutputName(t *testing.T) {
	tests := map[string]string{
		"photo.jpg": "photo.backdrop.png",
		"a.b.png":   "a.b.backdrop.png",
		"noext":     "noext.backdrop.png",
		"Shot.TIFF": "Shot.backdrop.png",
	}
	for in, want := range tests {
		if got := outputName(in); got != want {
			t.Errorf("outputName(%q) = %q, want %q", in, got, want)
		}
	}
}
