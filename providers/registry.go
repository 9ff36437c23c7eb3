// Package providers builds [codetree.StorageProvider] implementations from
// JSON source definitions such as {"type":"local","root":"~/src"}.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/brettbedarf/codetree"
)

var (
	ErrUnknownType  = errors.New("unknown source type")
	ErrNotSupported = errors.New("operation not supported by provider")
)

// Factory decodes a raw JSON source definition
type Factory func(raw []byte) (codetree.SourceProvider, error)

// Registry maps a source "type" to the factory that decodes it.
// Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register ties factory to sourceType. The first registration of a type wins.
func (r *Registry) Register(sourceType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[sourceType]; ok {
		return
	}
	r.factories[sourceType] = factory
}

// Types returns the registered source types
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	return types
}

// Source picks the factory named by the "type" field of raw and decodes it
func (r *Registry) Source(raw []byte) (codetree.SourceProvider, error) {
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("invalid source definition: %w", err)
	}
	r.mu.RLock()
	f, ok := r.factories[meta.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, meta.Type)
	}
	return f(raw)
}

// Provider decodes raw and opens the storage it describes
func (r *Registry) Provider(ctx context.Context, raw []byte) (codetree.StorageProvider, error) {
	src, err := r.Source(raw)
	if err != nil {
		return nil, err
	}
	return src.Provider(ctx)
}

var defaultRegistry = NewRegistry()

// Register adds a factory to the default registry and should be called for
// each source type during app init
func Register(sourceType string, factory Factory) {
	defaultRegistry.Register(sourceType, factory)
}

// FromJSON opens a provider from the default registry.
// Source types must be registered with [Register] or [RegisterBuiltins] first.
func FromJSON(ctx context.Context, raw []byte) (codetree.StorageProvider, error) {
	return defaultRegistry.Provider(ctx, raw)
}

// decode is the common Factory body for JSON sources
func decode[S any, P interface {
	*S
	codetree.SourceProvider
}](raw []byte) (codetree.SourceProvider, error) {
	var src S
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, err
	}
	return P(&src), nil
}
