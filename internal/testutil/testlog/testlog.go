package testlog

import (
	"testing"

	"github.com/danmuck/chunkwalk/internal/logging"
	"github.com/rs/zerolog"
)

// Start configures the test logging profile and tags the test by name.
func Start(t *testing.T) {
	t.Helper()
	logger := logging.ConfigureTests()
	logger.Info().Str("test", t.Name()).Msg("start")
}

// Logger returns a logger scoped to t, for walkers under test.
func Logger(t *testing.T) *zerolog.Logger {
	t.Helper()
	l := logging.ConfigureTests().With().Str("test", t.Name()).Logger()
	return &l
}
