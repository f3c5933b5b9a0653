package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/chunkwalk/internal/index"
	"github.com/danmuck/chunkwalk/internal/logging"
	"github.com/danmuck/chunkwalk/internal/observability"
)

// WalkConfig is the chunkctl runtime configuration.
type WalkConfig struct {
	Format      string
	LayoutsPath string
	Strict      bool
	MaxDepth    int
	Export      string
	ExportPath  string
	MetricsPath string
	// MaxPayload caps frame payloads when walking frame captures.
	MaxPayload uint64
	Log        observability.LogConfig
}

func DefaultWalkConfig() WalkConfig {
	return WalkConfig{
		Format:     "iff",
		MaxDepth:   64,
		MaxPayload: 8 * 1024 * 1024,
		Log:        observability.DefaultLogConfig(),
	}
}

// chunkctl.toml key mapping to WalkConfig.
type walkFileConfig struct {
	Format      string `toml:"format"`
	LayoutsPath string `toml:"layouts_path"`
	Strict      bool   `toml:"strict"`
	MaxDepth    int    `toml:"max_depth"`
	Export      string `toml:"export"`
	ExportPath  string `toml:"export_path"`
	MetricsPath string `toml:"metrics_path"`
	MaxPayload  uint64 `toml:"max_payload"`
	LogLevel    string `toml:"log_level"`
	LogNoColor  bool   `toml:"log_no_color"`
	LogFile     string `toml:"log_file"`
}

// LoadWalkConfig overlays the keys present in path onto the defaults.
// Relative layouts_path values resolve against the config file's directory.
func LoadWalkConfig(path string) (WalkConfig, error) {
	cfg := DefaultWalkConfig()

	var raw walkFileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return WalkConfig{}, fmt.Errorf("load chunkctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return WalkConfig{}, fmt.Errorf("load chunkctl config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("format") {
		cfg.Format = strings.TrimSpace(raw.Format)
	}
	if meta.IsDefined("layouts_path") {
		cfg.LayoutsPath = strings.TrimSpace(raw.LayoutsPath)
		if cfg.LayoutsPath != "" && !filepath.IsAbs(cfg.LayoutsPath) {
			cfg.LayoutsPath = filepath.Join(filepath.Dir(path), cfg.LayoutsPath)
		}
	}
	if meta.IsDefined("strict") {
		cfg.Strict = raw.Strict
	}
	if meta.IsDefined("max_depth") {
		cfg.MaxDepth = raw.MaxDepth
	}
	if meta.IsDefined("export") {
		cfg.Export = strings.TrimSpace(raw.Export)
	}
	if meta.IsDefined("export_path") {
		cfg.ExportPath = strings.TrimSpace(raw.ExportPath)
	}
	if meta.IsDefined("metrics_path") {
		cfg.MetricsPath = strings.TrimSpace(raw.MetricsPath)
	}
	if meta.IsDefined("max_payload") {
		cfg.MaxPayload = raw.MaxPayload
	}
	if meta.IsDefined("log_level") {
		lvl, ok := logging.ParseLevel(raw.LogLevel)
		if !ok {
			return WalkConfig{}, fmt.Errorf("load chunkctl config: unknown log_level %q", raw.LogLevel)
		}
		cfg.Log.Level = lvl
	}
	if meta.IsDefined("log_no_color") {
		cfg.Log.NoColor = raw.LogNoColor
	}
	if meta.IsDefined("log_file") {
		cfg.Log.File = strings.TrimSpace(raw.LogFile)
	}

	if err := ValidateWalkConfig(cfg); err != nil {
		return WalkConfig{}, fmt.Errorf("load chunkctl config: %w", err)
	}
	return cfg, nil
}

func ValidateWalkConfig(cfg WalkConfig) error {
	if strings.TrimSpace(cfg.Format) == "" {
		return fmt.Errorf("format is required")
	}
	if cfg.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative")
	}
	if cfg.Export != "" {
		if _, err := index.ParseEncoding(cfg.Export); err != nil {
			return err
		}
	}
	if cfg.ExportPath != "" && cfg.Export == "" {
		return fmt.Errorf("export_path requires export")
	}
	return nil
}
