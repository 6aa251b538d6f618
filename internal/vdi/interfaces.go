package vdi

import (
	"github.com/jbweber/vdisk/internal/registry"
	"github.com/jbweber/vdisk/internal/storage"
)

// repositoryResolver looks up attached repositories.
//
// In production, this is satisfied by *registry.Registry.
// In tests, this is satisfied by mock implementations.
type repositoryResolver interface {
	// Get returns an attached repository or *registry.NotAttachedError.
	Get(id string) (registry.Repository, error)
}

// backendResolver selects the format backend for a disk.
//
// In production, this is satisfied by *storage.Dispatcher.
type backendResolver interface {
	// For returns the backend for format or *storage.FormatError.
	For(format storage.Format) (storage.Backend, error)
}
