package database

import (
	"context"
	"sync"

	"dbmanager/internal/logger"
)

// Registry keeps at most one open Handle per database name
type Registry struct {
	mu    sync.Mutex
	open  OpenFunc
	log   logger.Logger
	pools map[string]*Handle
}

// NewRegistry creates an empty registry that opens handles with open
func NewRegistry(open OpenFunc, log logger.Logger) *Registry {
	return &Registry{
		open:  open,
		log:   log,
		pools: make(map[string]*Handle),
	}
}

// Get returns the cached handle for name, opening one if needed
func (r *Registry) Get(ctx context.Context, name string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.pools[name]; ok {
		return h, nil
	}

	h, err := r.open(ctx, name)
	if err != nil {
		return nil, err
	}
	r.pools[name] = h
	return h, nil
}

// Release closes and forgets the handle for name. Releasing an unknown
// name is a no-op.
func (r *Registry) Release(name string) {
	r.mu.Lock()
	h, ok := r.pools[name]
	delete(r.pools, name)
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := h.Close(); err != nil {
		r.log.Debug("Closing connection pool failed", "database", name, "error", err)
	}
}

// Held reports whether a handle for name is currently open
func (r *Registry) Held(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pools[name]
	return ok
}

// CloseAll releases every open handle
func (r *Registry) CloseAll() {
	r.mu.Lock()
	names := make([]string, 0, len(r.pools))
	for name := range r.pools {
		names = append(names, name)
	}
	r.mu.Unlock()

	for _, name := range names {
		r.Release(name)
	}
}
