package vfs

import (
	"fmt"
	"time"

	"github.com/mushuanli/vfs/extension"
	"github.com/mushuanli/vfs/log"
)

// Options configures a file system instance.
type Options struct {
	Logger *log.Logger

	// Events lets several instances share one listener registry.
	Events *Events

	// Extensions registered in addition to the built-in sidecar.
	Extensions []extension.Extension

	// DisableSidecar leaves the companion-directory extension out.
	DisableSidecar bool

	Clock func() time.Time
	NewID func() string
}

type Option func(*Options) error

func WithLogger(logger *log.Logger) Option {
	return func(o *Options) error {
		if logger == nil {
			return fmt.Errorf("vfs: logger must not be nil")
		}

		o.Logger = logger
		return nil
	}
}

func WithLogLevel(level log.LogLevel) Option {
	return func(o *Options) error {
		o.Logger = log.NewLogger("vfs", level, "", false)
		return nil
	}
}

// WithEvents supplies an existing listener registry instead of a fresh
// one.
func WithEvents(events *Events) Option {
	return func(o *Options) error {
		if events == nil {
			return fmt.Errorf("vfs: events must not be nil")
		}

		o.Events = events
		return nil
	}
}

// WithExtension registers an extension during construction.
func WithExtension(ext extension.Extension) Option {
	return func(o *Options) error {
		if ext == nil {
			return fmt.Errorf("vfs: extension must not be nil")
		}

		o.Extensions = append(o.Extensions, ext)
		return nil
	}
}

// WithoutSidecar opts out of the built-in companion-directory extension.
func WithoutSidecar() Option {
	return func(o *Options) error {
		o.DisableSidecar = true
		return nil
	}
}

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) error {
		if clock == nil {
			return fmt.Errorf("vfs: clock must not be nil")
		}

		o.Clock = clock
		return nil
	}
}

// WithIDGenerator overrides how new nodes get their ids.
func WithIDGenerator(generator func() string) Option {
	return func(o *Options) error {
		if generator == nil {
			return fmt.Errorf("vfs: id generator must not be nil")
		}

		o.NewID = generator
		return nil
	}
}
