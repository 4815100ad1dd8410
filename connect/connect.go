// Package connect turns a config.Config into a swiftpath.Backend and keeps a
// lazily opened process-wide default for callers that do not inject one.
// The path packages never use it; it is meant for main packages and
// scripts.
package connect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sagarc03/swiftpath"
	"github.com/sagarc03/swiftpath/backend/local"
	"github.com/sagarc03/swiftpath/backend/memory"
	"github.com/sagarc03/swiftpath/backend/remote"
	"github.com/sagarc03/swiftpath/backend/s3"
	"github.com/sagarc03/swiftpath/backend/swift"
	"github.com/sagarc03/swiftpath/config"
)

// Open builds the backend selected by cfg.Backend.Type. The caller owns the
// result and must Close it.
func Open(ctx context.Context, cfg *config.Config) (swiftpath.Backend, error) {
	var (
		b   swiftpath.Backend
		err error
	)

	switch cfg.Backend.Type {
	case config.BackendSwift:
		b, err = swift.New(ctx, cfg.Swift)
	case config.BackendS3:
		b, err = s3.New(cfg.S3)
	case config.BackendLocal:
		b, err = local.Open(ctx, cfg.Local)
	case config.BackendMemory:
		b = memory.New()
	case config.BackendRemote:
		b, err = remote.New(cfg.Remote)
	default:
		return nil, fmt.Errorf("connect: unknown backend %q", cfg.Backend.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Backend.Type, err)
	}

	slog.Debug("backend opened", "backend", b.Name())
	return b, nil
}

var (
	mu         sync.Mutex
	defaultB   swiftpath.Backend
	loadConfig = func() (*config.Config, error) { return config.Load(nil, nil) }
)

// Default returns the process-wide backend, opening it from the
// environment and config files on first use.
func Default(ctx context.Context) (swiftpath.Backend, error) {
	mu.Lock()
	defer mu.Unlock()

	if defaultB != nil {
		return defaultB, nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	b, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defaultB = b
	return defaultB, nil
}

// SetDefault installs b as the process-wide backend and returns the one it
// replaced, which the caller may close.
func SetDefault(b swiftpath.Backend) swiftpath.Backend {
	mu.Lock()
	defer mu.Unlock()

	prev := defaultB
	defaultB = b
	return prev
}

// Close releases the default backend. The next Default call opens a new
// one.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if defaultB == nil {
		return nil
	}
	err := defaultB.Close()
	defaultB = nil
	return err
}

// Path binds fragments to the default backend.
func Path(ctx context.Context, fragments ...string) (swiftpath.Path, error) {
	b, err := Default(ctx)
	if err != nil {
		return swiftpath.Path{}, err
	}
	return swiftpath.New(b, fragments...)
}
