package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/danmuck/chunkwalk/internal/chunk"
	"github.com/danmuck/chunkwalk/internal/config"
	"github.com/danmuck/chunkwalk/internal/formats"
	"github.com/danmuck/chunkwalk/internal/index"
	"github.com/danmuck/chunkwalk/internal/observability"
	"github.com/rs/zerolog"
)

// run walks path, prints the tree to stdout and exports the index when
// configured. Chunks indexed before a failure are still printed and counted.
func run(cfg config.WalkConfig, path string, stdout io.Writer, logger zerolog.Logger) error {
	start := time.Now()
	format, entries, err := walkFile(cfg, path, logger)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = outcomeOf(err)
	}
	observability.RecordWalk(format, outcome, elapsed)
	index.Walk(entries, func(e *index.Entry) bool {
		observability.RecordChunk(format, e.Tag, e.Length)
		return true
	})
	logger.Info().
		Str("file", path).
		Str("format", format).
		Int("chunks", index.Count(entries)).
		Str("outcome", outcome).
		Dur("elapsed", elapsed).
		Msg("walk finished")

	if cfg.MetricsPath != "" {
		if merr := observability.WriteMetrics(cfg.MetricsPath); merr != nil {
			logger.Warn().Err(merr).Str("path", cfg.MetricsPath).Msg("write metrics failed")
		}
	}

	// An export to stdout replaces the tree listing.
	if cfg.Export == "" || cfg.ExportPath != "" {
		if perr := index.Fprint(stdout, entries); perr != nil && err == nil {
			err = perr
		}
	}
	if err != nil {
		return err
	}
	if cfg.Export != "" {
		return exportIndex(cfg, stdout, entries)
	}
	return nil
}

func exportIndex(cfg config.WalkConfig, stdout io.Writer, entries []*index.Entry) (err error) {
	enc, err := index.ParseEncoding(cfg.Export)
	if err != nil {
		return err
	}
	if cfg.ExportPath == "" {
		return index.Export(stdout, enc, entries)
	}
	f, err := os.Create(cfg.ExportPath)
	if err != nil {
		return fmt.Errorf("export index: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return index.Export(f, enc, entries)
}

// walkFile resolves the format (sniffing it for "auto") and walks path. The
// resolved name is returned even when the walk fails.
func walkFile(cfg config.WalkConfig, path string, logger zerolog.Logger) (string, []*index.Entry, error) {
	opts := formats.DefaultOptions()
	if cfg.MaxPayload > 0 {
		opts.FrameLimits.MaxPayloadBytes = cfg.MaxPayload
	}
	registry := formats.Builtins(opts)
	if cfg.LayoutsPath != "" {
		layouts, err := config.LoadLayouts(cfg.LayoutsPath)
		if err != nil {
			return cfg.Format, nil, err
		}
		if err := registry.RegisterLayouts(layouts); err != nil {
			return cfg.Format, nil, err
		}
	}

	name := cfg.Format
	if name == formats.Auto {
		detected, err := formats.DetectFile(path)
		if err != nil {
			return name, nil, err
		}
		logger.Debug().Str("format", detected).Str("file", path).Msg("format detected")
		name = detected
	}
	f, ok := registry.Get(name)
	if !ok {
		return name, nil, fmt.Errorf("unknown format %q (known: %s, %s)", name, strings.Join(registry.Names(), ", "), formats.Auto)
	}
	logger.Debug().Str("format", f.Name()).Str("file", path).Bool("strict", cfg.Strict).Msg("walk start")
	entries, err := f.ScanFile(path, chunk.Config{Strict: cfg.Strict, MaxDepth: cfg.MaxDepth, Logger: &logger})
	return name, entries, err
}

func outcomeOf(err error) string {
	if k := chunk.KindOf(err); k != 0 {
		return k.String()
	}
	return "error"
}
