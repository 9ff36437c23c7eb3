package codetree

import (
	"context"
	"io"
)

// StorageProvider abstracts the storage backing a workspace (local disk,
// object storage, ...). Implementations must be safe for concurrent use since
// directory scans run from many background goroutines at once.
type StorageProvider interface {
	// Root describes where "/" lives in the backing storage (a directory, a
	// bucket URL). Entry paths are always relative to it.
	Root() string

	// ReadDir lists the immediate children of the directory at path.
	// Order is unspecified; callers sort.
	ReadDir(ctx context.Context, path string) ([]Entry, error)

	// Stat returns the entry at path or an error wrapping [ErrNotExist]
	Stat(ctx context.Context, path string) (Entry, error)

	// Open opens the document at path for streaming reads
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Create opens the document at path for writing, truncating any existing
	// content. Data is only guaranteed to be persisted once Close returns nil.
	Create(ctx context.Context, path string) (io.WriteCloser, error)
}

// SourceProvider is a factory for concrete [StorageProvider] implementations
// generated from a source definition.
// Implementations should handle resource management (clients, credentials) for
// the providers they return.
type SourceProvider interface {
	Provider(ctx context.Context) (StorageProvider, error)
}
