package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// pipeName is the file name that stands for stdin or stdout.
const pipeName = "-"

// config holds every CLI setting. A TOML file passed with -config uses the
// same keys; flags given on the command line win over the file.
type config struct {
	In      string  `toml:"in"`
	Mask    string  `toml:"mask"`
	Out     string  `toml:"out"`
	Width   int     `toml:"width"`
	Height  int     `toml:"height"`
	DPI     float64 `toml:"dpi"`
	Blur    float64 `toml:"blur"`
	Corner  float64 `toml:"corner"`
	Feather int     `toml:"feather"`
	CPU     bool    `toml:"cpu"`
	Verbose bool    `toml:"verbose"`
	Batch   string  `toml:"batch"`
	Workers int     `toml:"workers"`

	configPath string
}

func defaultConfig() config {
	return config{
		Out:  pipeName,
		DPI:  96,
		Blur: 24,
	}
}

// parseConfig parses args into a config, merging in the -config file.
func parseConfig(args []string, stderr io.Writer) (config, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("backdrop", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.In, "in", cfg.In, "source image (`-` for stdin)")
	fs.StringVar(&cfg.Mask, "mask", cfg.Mask, "optional mask image")
	fs.StringVar(&cfg.Out, "out", cfg.Out, "output PNG, or output directory with -batch (`-` for stdout)")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "target width in pixels (0 keeps the source width)")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "target height in pixels (0 keeps the source height)")
	fs.Float64Var(&cfg.DPI, "dpi", cfg.DPI, "display DPI used to convert -blur to pixels")
	fs.Float64Var(&cfg.Blur, "blur", cfg.Blur, "blur radius in device-independent pixels")
	fs.Float64Var(&cfg.Corner, "corner", cfg.Corner, "rounded-rect corner radius in pixels")
	fs.IntVar(&cfg.Feather, "feather", cfg.Feather, "mask feather radius in pixels")
	fs.BoolVar(&cfg.CPU, "cpu", cfg.CPU, "blur on the CPU only")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "log debug output to stderr")
	fs.StringVar(&cfg.Batch, "batch", cfg.Batch, "directory of images to process")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "images processed concurrently in batch mode (0 = GOMAXPROCS)")
	fs.StringVar(&cfg.configPath, "config", "", "TOML config file")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if cfg.configPath == "" {
		return cfg, cfg.validate()
	}

	set := map[string]string{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = f.Value.String() })

	if err := loadConfigFile(cfg.configPath, &cfg); err != nil {
		return cfg, err
	}
	for name, value := range set {
		if err := fs.Set(name, value); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.validate()
}

// loadConfigFile decodes a TOML file over cfg. Keys absent from the file
// keep their current values; unknown keys are an error.
func loadConfigFile(path string, cfg *config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c config) validate() error {
	switch {
	case c.In == "" && c.Batch == "":
		return errors.New("either -in or -batch is required")
	case c.In != "" && c.Batch != "":
		return errors.New("-in and -batch are mutually exclusive")
	case c.Batch != "" && c.Out == pipeName:
		return errors.New("-batch needs an output directory in -out")
	case c.In == pipeName && c.Mask == pipeName:
		return errors.New("-in and -mask cannot both read stdin")
	case c.Width < 0 || c.Height < 0:
		return fmt.Errorf("invalid target size %dx%d", c.Width, c.Height)
	case c.Blur < 0:
		return fmt.Errorf("invalid blur radius %v", c.Blur)
	}
	return nil
}
