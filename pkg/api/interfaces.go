// Package api provides interfaces for dependency injection
package api

import (
	"context"
	"log/slog"

	"github.com/ssargent/keyds/pkg/codec"
	"github.com/ssargent/keyds/pkg/config"
	"github.com/ssargent/keyds/pkg/dataset"
)

// Dataset is the subset of *keyds.File the handlers use
type Dataset interface {
	Layout() *codec.Layout
	Path() string
	ReadOnly() bool
	RecordLength() int

	Find(ctx context.Context, key string) (codec.Values, error)
	FindGE(ctx context.Context, key string) (codec.Values, error)
	FindFirst(ctx context.Context) (codec.Values, error)
	FindLast(ctx context.Context) (codec.Values, error)
	Write(ctx context.Context, values codec.Values) error
	FindUpdate(ctx context.Context, key string, values codec.Values) (int, error)
	FindDelete(ctx context.Context, key string) (int, error)
	Scan(ctx context.Context, key string, mode dataset.LocateMode, limit int) ([]codec.Values, error)
	Close(ctx context.Context) error
}

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer serves the configured datasets until ctx is cancelled
	StartServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
