// Command backdrop renders blurred, masked backdrop images.
//
// Single image:
//
//	backdrop -in photo.jpg -width 640 -height 360 -blur 24 -corner 16 -out bg.png
//
// Batch mode writes <name>.backdrop.png for every image in a directory:
//
//	backdrop -batch photos/ -out backdrops/ -workers 8
package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/term"

	"github.com/gogpu/backdrop"
	_ "github.com/gogpu/backdrop/gpu" // register the GPU accelerator
	"github.com/gogpu/backdrop/internal/worker"
)

// supportedExts are the image types read in batch mode.
var supportedExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".tif": true, ".tiff": true, ".bmp": true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "backdrop: %v\n", err)
		os.Exit(1)
	}
}

// run is main without process globals.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := parseConfig(args, stderr)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	if cfg.Verbose {
		backdrop.SetLogger(logger)
		defer backdrop.SetLogger(nil)
	}

	opts := []backdrop.PipelineOption{
		backdrop.WithCornerRadius(cfg.Corner),
		backdrop.WithFeather(cfg.Feather),
		backdrop.WithDiagnostics(cfg.Verbose),
	}
	if cfg.CPU {
		opts = append(opts, backdrop.WithAccelerator(nil))
	} else {
		defer backdrop.UnregisterAccelerator()
	}
	p := backdrop.NewPipeline(opts...)

	var mask *backdrop.Bitmap
	if cfg.Mask != "" {
		if mask, err = loadBitmap(cfg.Mask, stdin); err != nil {
			return fmt.Errorf("mask: %w", err)
		}
	}

	if cfg.Batch != "" {
		return runBatch(ctx, p, cfg, mask, logger)
	}

	out, closeOut, err := openOutput(cfg.Out, stdout)
	if err != nil {
		return err
	}
	if err := render(ctx, p, cfg, cfg.In, mask, stdin, out); err != nil {
		_ = closeOut()
		return err
	}
	return closeOut()
}

// runBatch renders every supported image in cfg.Batch into cfg.Out.
func runBatch(ctx context.Context, p *backdrop.Pipeline, cfg config, mask *backdrop.Bitmap, logger *slog.Logger) error {
	entries, err := os.ReadDir(cfg.Batch)
	if err != nil {
		return fmt.Errorf("read batch directory: %w", err)
	}
	if err := os.MkdirAll(cfg.Out, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	var jobs []func() error
	for _, e := range entries {
		if !e.Type().IsRegular() || !supportedExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		in := filepath.Join(cfg.Batch, e.Name())
		out := filepath.Join(cfg.Out, outputName(e.Name()))
		jobs = append(jobs, func() error {
			start := time.Now()
			if err := renderFile(ctx, p, cfg, in, mask, out); err != nil {
				logger.Error("failed", "in", in, "err", err)
				return fmt.Errorf("%s: %w", in, err)
			}
			logger.Info("wrote", "out", out, "elapsed", time.Since(start))
			return nil
		})
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no images in %s", cfg.Batch)
	}

	pool := worker.New(cfg.Workers)
	defer pool.Close()
	return pool.ExecuteAllErr(jobs)
}

// outputName maps photo.jpg to photo.backdrop.png.
func outputName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".backdrop.png"
}

func renderFile(ctx context.Context, p *backdrop.Pipeline, cfg config, in string, mask *backdrop.Bitmap, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := render(ctx, p, cfg, in, mask, nil, f); err != nil {
		_ = f.Close()
		_ = os.Remove(out)
		return err
	}
	return f.Close()
}

// render loads one source image, runs the pipeline and copies the encoded
// backdrop to w.
func render(ctx context.Context, p *backdrop.Pipeline, cfg config, in string, mask *backdrop.Bitmap, stdin io.Reader, w io.Writer) error {
	src, err := loadBitmap(in, stdin)
	if err != nil {
		return err
	}
	width, height := cfg.Width, cfg.Height
	if width == 0 {
		width = src.Width()
	}
	if height == 0 {
		height = src.Height()
	}

	stream, err := p.CreateMaskedBlurredImageStream(ctx, src, mask, width, height, cfg.DPI, cfg.Blur)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, stream)
	return err
}

// loadBitmap decodes an image file, or stdin when path is "-".
func loadBitmap(path string, stdin io.Reader) (*backdrop.Bitmap, error) {
	var r io.Reader
	if path == pipeName {
		if stdin == nil {
			return nil, errors.New("stdin is not available")
		}
		if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return nil, errors.New("`-` should be used with a pipe for stdin")
		}
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("unable to open the source file: %w", err)
		}
		defer f.Close()
		r = f
	}

	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return backdrop.FromImage(img)
}

// openOutput opens the destination file, or stdout when path is "-". PNG is
// never written to an interactive terminal.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == pipeName {
		if f, ok := stdout.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return nil, nil, errors.New("`-` should be used with a pipe for stdout")
		}
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create the destination file: %w", err)
	}
	return f, f.Close, nil
}
