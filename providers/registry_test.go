package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/brettbedarf/codetree"
	"github.com/brettbedarf/codetree/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func fixedFactory(src codetree.SourceProvider) Factory {
	return func([]byte) (codetree.SourceProvider, error) {
		return src, nil
	}
}

func TestRegister_SingleSource(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	src := &mocks.MockSourceProvider{}
	r.Register("test", fixedFactory(src))

	got, err := r.Source([]byte(`{"type":"test"}`))
	require.NoError(t, err)
	assert.Equal(t, src, got)
}

func TestRegister_DuplicateKeepsFirst(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first := &mocks.MockSourceProvider{}
	second := &mocks.MockSourceProvider{}
	r.Register("test", fixedFactory(first))
	r.Register("test", fixedFactory(second))

	got, err := r.Source([]byte(`{"type":"test"}`))
	require.NoError(t, err)
	assert.Same(t, first, got)
}

func TestRegister_Concurrent(t *testing.T) {
	t.Parallel()
	var wg sync.WaitGroup
	r := NewRegistry()

	for i := range 100 {
		wg.Go(func() {
			sourceType := fmt.Sprintf("test%d", i)
			src := &mocks.MockSourceProvider{}
			r.Register(sourceType, fixedFactory(src))
			got, err := r.Source([]byte(fmt.Sprintf(`{"type":%q}`, sourceType)))
			assert.NoError(t, err)
			assert.Same(t, src, got)
		})
	}
	wg.Wait()
	assert.Len(t, r.Types(), 100)
}

func TestSource_Errors(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	_, err := r.Source([]byte(`not json`))
	assert.ErrorContains(t, err, "invalid source definition")

	_, err = r.Source([]byte(`{"type":"ftp"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestProvider_OpensStorage(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	storage := &mocks.MockStorageProvider{}
	src := &mocks.MockSourceProvider{}
	src.On("Provider", mock.Anything).Return(storage, nil).Once()
	r.Register("test", fixedFactory(src))

	got, err := r.Provider(context.Background(), []byte(`{"type":"test"}`))
	require.NoError(t, err)
	assert.Same(t, storage, got)
	src.AssertExpectations(t)
}

func TestProvider_SourceError(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	boom := errors.New("boom")
	src := &mocks.MockSourceProvider{}
	src.On("Provider", mock.Anything).Return(nil, boom)
	r.Register("test", fixedFactory(src))

	_, err := r.Provider(context.Background(), []byte(`{"type":"test"}`))
	assert.ErrorIs(t, err, boom)
}

func TestRegisterBuiltins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		types []BuiltInType
		want  []string
	}{
		{"all by default", nil, []string{LocalType, S3Type, HTTPType}},
		{"only local", []BuiltInType{LocalType}, []string{LocalType}},
		{"unknown ignored", []BuiltInType{"ftp", S3Type}, []string{S3Type}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewRegistry()
			r.RegisterBuiltins(tt.types...)
			assert.ElementsMatch(t, tt.want, r.Types())
		})
	}
}

func TestRegisterBuiltins_Decodes(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.RegisterBuiltins()

	src, err := r.Source([]byte(`{"type":"s3","bucket":"b","prefix":"p/","endpoint":"http://minio:9000"}`))
	require.NoError(t, err)
	require.IsType(t, &S3Source{}, src)
	s3src := src.(*S3Source)
	assert.Equal(t, "b", s3src.Bucket)
	assert.Equal(t, "http://minio:9000", s3src.Endpoint)

	src, err = r.Source([]byte(`{"type":"local","root":"~/code"}`))
	require.NoError(t, err)
	assert.Equal(t, &LocalSource{Root: "~/code"}, src)

	_, err = r.Source([]byte(`{"type":"http","url":3}`))
	assert.Error(t, err)
}
