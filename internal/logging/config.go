package logging

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/danmuck/chunkwalk/internal/observability"
	"github.com/rs/zerolog"
)

const (
	EnvLogLevel     = "CHUNKWALK_LOG_LEVEL"
	EnvLogTimestamp = "CHUNKWALK_LOG_TIMESTAMP"
	EnvLogNoColor   = "CHUNKWALK_LOG_NOCOLOR"
	EnvLogFile      = "CHUNKWALK_LOG_FILE"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

var (
	configureOnce sync.Once
	logger        zerolog.Logger
)

func ConfigureTests() zerolog.Logger {
	return Configure(ProfileTest)
}

func Configure(profile Profile) zerolog.Logger {
	return ConfigureWith(profile, defaultConfig(profile))
}

// ConfigureWith installs cfg with environment overrides applied on top. Only
// the first call in a process takes effect; later calls return that logger.
func ConfigureWith(profile Profile, cfg observability.LogConfig) zerolog.Logger {
	configureOnce.Do(func() {
		applyEnvOverrides(&cfg)
		zerolog.SetGlobalLevel(cfg.Level)
		logger = observability.InitLogger(appName(profile), cfg)
	})
	return logger
}

func appName(profile Profile) string {
	if profile == ProfileTest {
		return "chunkwalk-test"
	}
	return "chunkwalk"
}

func defaultConfig(profile Profile) observability.LogConfig {
	cfg := observability.DefaultLogConfig()
	switch profile {
	case ProfileTest:
		cfg.Level = zerolog.DebugLevel
		cfg.Timestamp = false
	default:
		cfg.Level = zerolog.InfoLevel
		cfg.Timestamp = true
	}
	return cfg
}

func applyEnvOverrides(cfg *observability.LogConfig) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.File = v
	}
}

// ParseLevel maps the accepted level spellings onto zerolog levels.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
