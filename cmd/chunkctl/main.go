package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/chunkwalk/internal/logging"
	"github.com/danmuck/chunkwalk/internal/observability"
)

func main() {
	cfg, path, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "chunkctl:", err)
		os.Exit(2)
	}

	logger := logging.ConfigureWith(logging.ProfileRuntime, cfg.Log)
	observability.RegisterMetrics()

	if err := run(cfg, path, os.Stdout, logger); err != nil {
		logger.Error().Err(err).Str("file", path).Str("kind", outcomeOf(err)).Msg("walk failed")
		os.Exit(1)
	}
}
