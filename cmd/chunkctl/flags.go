package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/chunkwalk/internal/config"
)

const usage = `usage: chunkctl [flags] FILE

Walks FILE as a tag-length-value chunk stream and prints one line per chunk.
Formats: iff, riff, png, tlv, frame, auto (detect from the file head), or a
layout name from -layouts.

`

// parseArgs loads -config (when given) and overlays explicitly set flags on
// top of it. Exactly one positional FILE is required.
func parseArgs(args []string) (config.WalkConfig, string, error) {
	fs := flag.NewFlagSet("chunkctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	configPath := fs.String("config", "", "chunkctl.toml path")
	format := fs.String("format", "", "iff|riff|png|tlv|frame|auto|<layout name>")
	layouts := fs.String("layouts", "", "layouts.toml path for declarative formats")
	strict := fs.Bool("strict", false, "fail chunks whose handler read past the declared length")
	maxDepth := fs.Int("max-depth", 0, "maximum nesting depth (0 = default 64)")
	export := fs.String("export", "", "export the chunk index: json|cbor")
	output := fs.String("o", "", "export output path (default stdout)")
	metrics := fs.String("metrics", "", "write prometheus textfile metrics to this path")
	maxPayload := fs.Uint64("max-payload", 0, "frame payload limit in bytes")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			fmt.Fprint(os.Stderr, usage)
			fs.SetOutput(os.Stderr)
			fs.PrintDefaults()
		}
		return config.WalkConfig{}, "", err
	}
	if fs.NArg() != 1 {
		return config.WalkConfig{}, "", fmt.Errorf("expected exactly one FILE, got %d args", fs.NArg())
	}

	cfg := config.DefaultWalkConfig()
	if *configPath != "" {
		loaded, err := config.LoadWalkConfig(*configPath)
		if err != nil {
			return config.WalkConfig{}, "", err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "format":
			cfg.Format = *format
		case "layouts":
			cfg.LayoutsPath = *layouts
		case "strict":
			cfg.Strict = *strict
		case "max-depth":
			cfg.MaxDepth = *maxDepth
		case "export":
			cfg.Export = *export
		case "o":
			cfg.ExportPath = *output
		case "metrics":
			cfg.MetricsPath = *metrics
		case "max-payload":
			cfg.MaxPayload = *maxPayload
		}
	})
	if err := config.ValidateWalkConfig(cfg); err != nil {
		return config.WalkConfig{}, "", err
	}
	return cfg, fs.Arg(0), nil
}
