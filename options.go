package filedevice

import (
	"log/slog"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice/alloc"
)

// deviceOptions holds the configurable parts of a Device.
type deviceOptions struct {
	logger    *slog.Logger
	allocator Allocator
}

// Option is a functional option for configuring a Device.
type Option func(*deviceOptions)

// WithLogger configures the device with a custom logger.
// If logger is nil, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *deviceOptions) {
		opts.logger = logger
	}
}

// WithAllocator configures the allocator used by Load and Unload.
// If allocator is nil, alloc.Default is used.
func WithAllocator(allocator Allocator) Option {
	return func(opts *deviceOptions) {
		opts.allocator = allocator
	}
}

func defaultOptions() *deviceOptions {
	return &deviceOptions{
		logger:    nil, // disabled unless configured
		allocator: alloc.Default,
	}
}

func applyOptions(opts *deviceOptions, options []Option) {
	for _, option := range options {
		option(opts)
	}
	if opts.logger == nil {
		opts.logger = slog.New(slog.DiscardHandler)
	}
	if opts.allocator == nil {
		opts.allocator = alloc.Default
	}
}
