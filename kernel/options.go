package kernel

import "log/slog"

// Options configures an ICRefine kernel.
type Options struct {
	// WindowSize is the neighborhood extent per index dimension used at
	// every level. A single entry is broadcast to all dimensions.
	// Defaults to 3 per dimension (9 for HEALPix-like one-dimensional
	// adjacency must be set explicitly).
	WindowSize []int

	// Logger receives freeze progress at debug level. Defaults to a
	// discarding logger.
	Logger *slog.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithWindowSize sets the neighborhood extents.
func WithWindowSize(size ...int) Option {
	return func(o *Options) {
		o.WindowSize = size
	}
}

// WithLogger sets the freeze progress logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// FreezeOptions configures Freeze.
type FreezeOptions struct {
	// RTol and ATol bound the relative and absolute deviation between a
	// probe geometry signature and a cached one that still counts as a
	// cache hit. Defaults: 1e-5 each.
	RTol float64
	ATol float64

	// BufferSize bounds the number of cached matrix sets; least recently
	// used entries are evicted beyond it. Default: 1000.
	BufferSize int

	// UseDistances keys the cache by pairwise scalar distances instead of
	// full relative offsets, exploiting translation invariance of
	// isotropic covariances to shrink the signature space. Default: true.
	UseDistances bool
}

// FreezeOption mutates FreezeOptions.
type FreezeOption func(*FreezeOptions)

// WithRTol sets the relative cache tolerance.
func WithRTol(rtol float64) FreezeOption {
	return func(o *FreezeOptions) { o.RTol = rtol }
}

// WithATol sets the absolute cache tolerance.
func WithATol(atol float64) FreezeOption {
	return func(o *FreezeOptions) { o.ATol = atol }
}

// WithBufferSize bounds the matrix cache.
func WithBufferSize(n int) FreezeOption {
	return func(o *FreezeOptions) { o.BufferSize = n }
}

// WithUseDistances toggles distance-keyed caching.
func WithUseDistances(use bool) FreezeOption {
	return func(o *FreezeOptions) { o.UseDistances = use }
}

func defaultFreezeOptions() FreezeOptions {
	return FreezeOptions{
		RTol:         1e-5,
		ATol:         1e-5,
		BufferSize:   1000,
		UseDistances: true,
	}
}
