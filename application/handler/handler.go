// Package handler provides job handlers for queued operations.
package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/twodHQ/rephole/domain/job"
)

// ErrNoHandler indicates no handler is registered for the operation.
var ErrNoHandler = errors.New("no handler registered")

// Handler executes one job operation.
type Handler interface {
	Execute(ctx context.Context, j job.Job) error
}

// Registry maps job operations to their handlers.
type Registry struct {
	handlers map[job.Operation]Handler
	mu       sync.RWMutex
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[job.Operation]Handler),
	}
}

// Register adds a handler for an operation. Registering the same
// operation again overwrites the previous handler.
func (r *Registry) Register(operation job.Operation, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[operation] = handler
}

// Handler returns the handler for an operation, or ErrNoHandler.
func (r *Registry) Handler(operation job.Operation) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[operation]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, operation)
	}
	return handler, nil
}

// HasHandler reports whether a handler is registered for the operation.
func (r *Registry) HasHandler(operation job.Operation) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[operation]
	return ok
}

// Operations returns all registered operations.
func (r *Registry) Operations() []job.Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ops := make([]job.Operation, 0, len(r.handlers))
	for op := range r.handlers {
		ops = append(ops, op)
	}
	return ops
}
