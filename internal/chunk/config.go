package chunk

import "github.com/rs/zerolog"

const (
	// DefaultMaxDepth is the nesting limit when Config.MaxDepth is unset.
	DefaultMaxDepth = 64
	// MaxDepthLimit caps Config.MaxDepth.
	MaxDepthLimit = 1 << 16
)

// Config tunes a Walker. The zero value is a valid trusted-contract walker.
type Config struct {
	// Strict fails a chunk whose handler left the position past
	// header end + reported length.
	Strict bool
	// MaxDepth bounds ParseRegion nesting. Zero or negative selects
	// DefaultMaxDepth; values above MaxDepthLimit are clamped.
	MaxDepth int
	Logger   *zerolog.Logger
}

// DefaultConfig returns the walker defaults used by New.
func DefaultConfig() Config {
	return Config{}.WithDefaults()
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.MaxDepth > MaxDepthLimit {
		c.MaxDepth = MaxDepthLimit
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	return c
}
