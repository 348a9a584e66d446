package bucketdb

import (
	"io"
	"log/slog"
	"math"
)

// Options configures a DB.
type Options struct {
	// Logger receives structured debug/info events. Defaults to a discard
	// logger.
	Logger *slog.Logger

	// MinUsedBits is the coarsest split level the database accepts.
	MinUsedBits uint32

	// InitialCapacity pre-sizes the bucket map.
	InitialCapacity int
}

func defaultOptions() Options {
	return Options{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
		MinUsedBits: 1,
	}
}

// Option mutates Options.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithMinUsedBits sets the coarsest accepted split level.
func WithMinUsedBits(n uint32) Option {
	return func(o *Options) {
		o.MinUsedBits = n
	}
}

// WithInitialCapacity pre-sizes the bucket map.
func WithInitialCapacity(n int) Option {
	return func(o *Options) {
		o.InitialCapacity = n
	}
}
