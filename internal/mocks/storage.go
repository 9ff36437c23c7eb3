package mocks

import (
	"context"
	"io"

	"github.com/brettbedarf/codetree"
	"github.com/stretchr/testify/mock"
)

// MockStorageProvider implements codetree.StorageProvider for testing across packages
type MockStorageProvider struct {
	mock.Mock
}

func (m *MockStorageProvider) Root() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockStorageProvider) ReadDir(ctx context.Context, path string) ([]codetree.Entry, error) {
	args := m.Called(ctx, path)

	// Handle function return types (for blocking or counting tests)
	if fn, ok := args.Get(0).(func(context.Context, string) []codetree.Entry); ok {
		return fn(ctx, path), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]codetree.Entry), args.Error(1)
}

func (m *MockStorageProvider) Stat(ctx context.Context, path string) (codetree.Entry, error) {
	args := m.Called(ctx, path)

	if fn, ok := args.Get(0).(func(context.Context, string) codetree.Entry); ok {
		return fn(ctx, path), args.Error(1)
	}

	if args.Get(0) == nil {
		return codetree.Entry{}, args.Error(1)
	}
	return args.Get(0).(codetree.Entry), args.Error(1)
}

func (m *MockStorageProvider) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	args := m.Called(ctx, path)

	if fn, ok := args.Get(0).(func(context.Context, string) io.ReadCloser); ok {
		return fn(ctx, path), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockStorageProvider) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	args := m.Called(ctx, path)

	if fn, ok := args.Get(0).(func(context.Context, string) io.WriteCloser); ok {
		return fn(ctx, path), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

var _ codetree.StorageProvider = (*MockStorageProvider)(nil)

// MockSourceProvider implements codetree.SourceProvider for testing across packages
type MockSourceProvider struct {
	mock.Mock
}

func (m *MockSourceProvider) Provider(ctx context.Context) (codetree.StorageProvider, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(codetree.StorageProvider), args.Error(1)
}

var _ codetree.SourceProvider = (*MockSourceProvider)(nil)
