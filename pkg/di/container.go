// Package di provides dependency injection container
package di

import (
	"log/slog"

	"github.com/ssargent/keyds/pkg/access"
	"github.com/ssargent/keyds/pkg/api" //nolint:depguard
	"github.com/ssargent/keyds/pkg/config"
)

// Container holds all the dependencies for the application
type Container struct {
	serverFactory api.ServerFactory
	method        access.Method
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		serverFactory: api.NewServerFactory(),
	}
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}

// GetMethod returns the access method datasets are opened with: the override
// when one is set, otherwise the one described by cfg
func (c *Container) GetMethod(cfg *config.Config, logger *slog.Logger) (access.Method, error) {
	if c.method != nil {
		return c.method, nil
	}
	return cfg.Method(logger)
}

// SetMethod overrides the access method (for testing)
func (c *Container) SetMethod(m access.Method) {
	c.method = m
}
