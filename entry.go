package codetree

import (
	"path"
	"time"
)

// EntryKind valid kinds are KindFile "file" and KindDir "dir"
type EntryKind string

const (
	KindFile EntryKind = "file"
	KindDir  EntryKind = "dir"
)

// Entry is a single filesystem object as reported by a [StorageProvider].
// Path is absolute and slash separated regardless of the backing storage.
type Entry struct {
	Name    string
	Path    string
	Kind    EntryKind
	Size    int64
	ModTime time.Time
}

// NewEntry creates an Entry for p, deriving Name from the last path element
func NewEntry(p string, kind EntryKind) Entry {
	p = CleanPath(p)
	return Entry{
		Name: path.Base(p),
		Path: p,
		Kind: kind,
	}
}

// IsDir returns true if the entry is a directory
func (e Entry) IsDir() bool {
	return e.Kind == KindDir
}

// Parent returns the absolute path of the entry's parent directory.
// The parent of "/" is "/".
func (e Entry) Parent() string {
	return path.Dir(e.Path)
}

// CleanPath normalizes p to an absolute, slash separated path.
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}
