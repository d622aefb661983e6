// Package store persists herd's records: cluster topologies and the
// history of lifecycle operations.
package store

import (
	"context"
	"errors"
)

// Resource types stored by herd.
const (
	ResourceTypeClusters   = "clusters"
	ResourceTypeOperations = "operations"
)

// ScopeGlobal scopes resources that belong to no cluster.
const ScopeGlobal = "global"

var (
	// ErrNotFound is returned when a resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a resource that exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrClosed is returned by a store that is not open.
	ErrClosed = errors.New("store is closed")
)

// Store defines the interface for state storage operations. Resources are
// addressed by type, scope and name and serialized as JSON.
type Store interface {
	// Open initializes and opens the store.
	Open(path string) error

	// Close closes the store and releases resources.
	Close() error

	// Create creates a new resource.
	Create(ctx context.Context, resourceType, scope, name string, resource interface{}) error

	// Get retrieves a resource by type, scope and name.
	Get(ctx context.Context, resourceType, scope, name string, resource interface{}) error

	// List retrieves all resources of a type in a scope into a pointer to
	// a slice.
	List(ctx context.Context, resourceType, scope string, resource interface{}) error

	// Update replaces an existing resource.
	Update(ctx context.Context, resourceType, scope, name string, resource interface{}) error

	// Put creates or replaces a resource.
	Put(ctx context.Context, resourceType, scope, name string, resource interface{}) error

	// Delete deletes a resource.
	Delete(ctx context.Context, resourceType, scope, name string) error
}
