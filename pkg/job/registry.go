package job

import (
	"fmt"
	"sync"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

// Registry maps a JobType to the Handler that processes it. Read-mostly:
// handlers are registered once at startup, then looked up on every claim.
type Registry struct {
	mu       sync.RWMutex
	handlers map[models.JobType]Handler
}

// NewRegistry returns an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[models.JobType]Handler)}
}

// Register binds a Handler to a JobType. Registering the same type twice
// overwrites the previous binding.
func (r *Registry) Register(t models.JobType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = h
}

// Lookup returns the Handler bound to t, or ErrUnknownJobType.
func (r *Registry) Lookup(t models.JobType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobType, t)
	}
	return h, nil
}
