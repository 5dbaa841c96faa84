package exchange

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"tradeprobe/pkg/core"
)

// Constructor builds a client from config. Implementations must copy config.
type Constructor func(config *core.Config) (Exchange, error)

// TimeSyncer is implemented by clients that can align request timestamps with the
// server clock.
type TimeSyncer interface {
	SyncTime(ctx context.Context) (time.Duration, error)
}

// Registry maps exchange names to constructors. It is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
	}
}

// Register adds a constructor under name, replacing any previous one.
func (r *Registry) Register(name string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = c
}

func (r *Registry) lookup(name string) (Constructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.constructors[name]
	if !ok {
		return nil, fmt.Errorf("exchange %q not registered", name)
	}
	return c, nil
}

// New builds a client for name.
func (r *Registry) New(name string, config *core.Config) (Exchange, error) {
	c, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return c(config)
}

// Factory returns a Factory building fresh clients for name from a snapshot of config.
func (r *Registry) Factory(name string, config *core.Config) (Factory, error) {
	c, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	snapshot := *config
	return func() (Exchange, error) {
		cfg := snapshot
		return c(&cfg)
	}, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Exists reports whether name is registered.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[name]
	return ok
}
