package nest

// DefaultMaxBoundary is the largest boundary value the allocator will hand
// out unless Config.MaxBoundary lowers it. It is kept well below the int64
// ceiling so shift arithmetic can never wrap.
const DefaultMaxBoundary = int64(1) << 62

// Config holds configuration for a Tree.
type Config struct {
	// RootStride controls root placement. With the default of 0, a new root
	// is appended densely right after the current rightmost boundary. With a
	// positive stride, each new root starts at the next multiple of the
	// stride, so every root owns a predictable disjoint block.
	RootStride int64

	// MaxBoundary is the largest boundary value any plan may produce.
	// Operations that would exceed it fail with ErrBoundaryOverflow.
	// Default: DefaultMaxBoundary.
	MaxBoundary int64
}

// DefaultConfig returns sensible defaults: dense root numbering and the
// full representable boundary range.
func DefaultConfig() Config {
	return Config{
		RootStride:  0,
		MaxBoundary: DefaultMaxBoundary,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.MaxBoundary <= 0 || c.MaxBoundary > DefaultMaxBoundary {
		c.MaxBoundary = DefaultMaxBoundary
	}
	if c.RootStride < 0 {
		c.RootStride = 0
	}
}
