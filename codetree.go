// Package codetree contains the core domain types and interfaces shared by the
// directory cache, the lazy file tree and the document pipeline.
package codetree

import "errors"

var (
	// ErrParentNotLoaded is returned when an entry is inserted under a parent
	// directory whose children were never loaded into the cache.
	ErrParentNotLoaded = errors.New("parent directory not loaded")

	// ErrNotDirectory is returned when a directory operation targets a file.
	ErrNotDirectory = errors.New("not a directory")

	// ErrNotExist is returned by providers when a path does not exist.
	ErrNotExist = errors.New("path does not exist")
)
