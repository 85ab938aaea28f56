// Package api provides factory implementations for dependency injection
package api

import (
	"context"
	"log/slog"

	"github.com/ssargent/keyds/pkg/config"
)

// DefaultServerFactory is the default implementation of ServerFactory
type DefaultServerFactory struct{}

// NewServerFactory creates a new server factory
func NewServerFactory() ServerFactory {
	return &DefaultServerFactory{}
}

// CreateServerStarter creates a server starter
func (f *DefaultServerFactory) CreateServerStarter() ServerStarter {
	return &DefaultServerStarter{}
}

// DefaultServerStarter is the default implementation of ServerStarter
type DefaultServerStarter struct{}

// StartServer opens the configured datasets and serves them
func (s *DefaultServerStarter) StartServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	metrics := NewMetrics()

	registry, err := OpenRegistry(cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer registry.Close(context.Background())

	serverConfig := ServerConfig{
		Port:   cfg.Port,
		Bind:   cfg.Bind,
		APIKey: cfg.Security.APIKey,
	}
	return StartServer(ctx, NewServer(registry, serverConfig, metrics, logger))
}
