package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ssargent/keyds/pkg/codec"
	"github.com/ssargent/keyds/pkg/config"
	"github.com/ssargent/keyds/pkg/keyds"
)

// Registry holds the datasets served by the API, by name
type Registry struct {
	mu       sync.RWMutex
	datasets map[string]Dataset
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{datasets: make(map[string]Dataset)}
}

// OpenRegistry opens every dataset listed in cfg. Datasets that fail to open
// are closed again and the first error is returned.
func OpenRegistry(cfg *config.Config, metrics *Metrics, logger *slog.Logger) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	method, err := cfg.Method(logger)
	if err != nil {
		return nil, err
	}
	tc, err := cfg.Transcoder()
	if err != nil {
		return nil, err
	}

	r := NewRegistry()
	for _, d := range cfg.Datasets {
		layout, err := codec.LoadSchema(cfg.ResolvePath(d.Schema))
		if err != nil {
			r.Close(context.Background())
			return nil, fmt.Errorf("dataset %s: %w", d.Name, err)
		}

		opts := []keyds.Option{
			keyds.WithMethod(method),
			keyds.WithTranscoder(tc),
			keyds.WithLogger(logger.With("dataset", d.Name)),
			keyds.WithName(d.Name),
			keyds.WithReadOnlyRouting(cfg.Storage.RouteReadOnly),
		}
		if metrics != nil {
			opts = append(opts, keyds.WithObserver(metrics))
		}

		f, err := keyds.Open(cfg.ResolvePath(d.Path), layout, d.Mode, opts...)
		if err != nil {
			r.Close(context.Background())
			return nil, fmt.Errorf("dataset %s: %w", d.Name, err)
		}
		r.Add(d.Name, f)
		logger.Info("dataset opened", "dataset", d.Name, "path", f.Path(), "read_only", f.ReadOnly())
	}
	return r, nil
}

// Add registers an open dataset under name, replacing any previous one
func (r *Registry) Add(name string, ds Dataset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasets[name] = ds
}

// Get returns the dataset registered under name
func (r *Registry) Get(name string) (Dataset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ds, ok := r.datasets[name]
	return ds, ok
}

// Names returns the registered dataset names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.datasets))
	for name := range r.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every dataset and empties the registry
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, ds := range r.datasets {
		if err := ds.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("dataset %s: %w", name, err))
		}
		delete(r.datasets, name)
	}
	return errors.Join(errs...)
}
