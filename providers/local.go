package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/brettbedarf/codetree"
	"github.com/brettbedarf/codetree/internal/metrics"
	"github.com/brettbedarf/codetree/internal/util"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
)

// LocalSource contains local-disk specific source fields
type LocalSource struct {
	Root string `json:"root"` // "~" is expanded
}

func (s *LocalSource) Provider(ctx context.Context) (codetree.StorageProvider, error) {
	if strings.TrimSpace(s.Root) == "" {
		return nil, errors.New("local source: root is required")
	}
	root, err := homedir.Expand(s.Root)
	if err != nil {
		return nil, fmt.Errorf("local source: %w", err)
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("local source: %w", err)
	}

	osFs := afero.NewOsFs()
	fi, err := osFs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("local source: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("local source %s: %w", root, codetree.ErrNotDirectory)
	}
	return NewLocal(osFs, root), nil
}

// Local implements [codetree.StorageProvider] over an afero filesystem with
// every entry path resolved below root
type Local struct {
	root string
	fs   afero.Fs
}

// NewLocal returns a provider for root on fs. A nil fs means the OS filesystem.
func NewLocal(fs afero.Fs, root string) *Local {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	root = filepath.Clean(root)
	return &Local{
		root: root,
		fs:   afero.NewBasePathFs(fs, root),
	}
}

func (l *Local) Root() string {
	return l.root
}

// OSPath maps an entry path to the underlying filesystem path
func (l *Local) OSPath(p string) string {
	return filepath.Join(l.root, filepath.FromSlash(codetree.CleanPath(p)))
}

// EntryPath maps a filesystem path below root back to an entry path
func (l *Local) EntryPath(osPath string) (string, bool) {
	rel, err := filepath.Rel(l.root, osPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return codetree.CleanPath(filepath.ToSlash(rel)), true
}

func (l *Local) name(p string) string {
	return filepath.FromSlash(codetree.CleanPath(p))
}

func (l *Local) ReadDir(ctx context.Context, p string) ([]codetree.Entry, error) {
	logger := util.GetLogger("Local.ReadDir")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p = codetree.CleanPath(p)

	start := time.Now()
	infos, err := afero.ReadDir(l.fs, l.name(p))
	metrics.RecordStorageOperation(LocalType, "read_dir", time.Since(start), err == nil)
	if err != nil {
		if fi, statErr := l.fs.Stat(l.name(p)); statErr == nil && !fi.IsDir() {
			return nil, fmt.Errorf("%s: %w", p, codetree.ErrNotDirectory)
		}
		return nil, wrapNotExist(p, err)
	}

	entries := make([]codetree.Entry, 0, len(infos))
	for _, fi := range infos {
		child := path.Join(p, fi.Name())
		if fi.Mode()&os.ModeSymlink != 0 {
			// links take the kind of their target; a dangling link stays a file
			if target, err := l.fs.Stat(l.name(child)); err == nil {
				fi = target
			}
		}
		entries = append(entries, entryFromInfo(child, fi))
	}
	logger.Trace().Str("path", p).Int("count", len(entries)).Msg("Read directory")
	return entries, nil
}

func (l *Local) Stat(ctx context.Context, p string) (codetree.Entry, error) {
	if err := ctx.Err(); err != nil {
		return codetree.Entry{}, err
	}
	p = codetree.CleanPath(p)

	start := time.Now()
	fi, err := l.fs.Stat(l.name(p))
	metrics.RecordStorageOperation(LocalType, "stat", time.Since(start), err == nil)
	if err != nil {
		return codetree.Entry{}, wrapNotExist(p, err)
	}
	return entryFromInfo(p, fi), nil
}

func (l *Local) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	e, err := l.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	if e.IsDir() {
		return nil, fmt.Errorf("open %s: is a directory", e.Path)
	}

	start := time.Now()
	f, err := l.fs.Open(l.name(p))
	metrics.RecordStorageOperation(LocalType, "open", time.Since(start), err == nil)
	if err != nil {
		return nil, wrapNotExist(e.Path, err)
	}
	return f, nil
}

func (l *Local) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p = codetree.CleanPath(p)

	start := time.Now()
	f, err := l.fs.OpenFile(l.name(p), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	metrics.RecordStorageOperation(LocalType, "create", time.Since(start), err == nil)
	if err != nil {
		return nil, wrapNotExist(p, err)
	}
	return f, nil
}

var _ codetree.StorageProvider = (*Local)(nil)

func entryFromInfo(p string, fi os.FileInfo) codetree.Entry {
	e := codetree.NewEntry(p, codetree.KindFile)
	if fi.IsDir() {
		e.Kind = codetree.KindDir
	} else {
		e.Size = fi.Size()
	}
	e.ModTime = fi.ModTime()
	return e
}

func wrapNotExist(p string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", p, codetree.ErrNotExist)
	}
	return fmt.Errorf("%s: %w", p, err)
}
