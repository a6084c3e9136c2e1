package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/semmidev/custos/internal/domain"
)

const (
	DirMode  fs.FileMode = 0750
	FileMode fs.FileMode = 0640
)

// linkFile is swapped in tests to simulate filesystems without hard links.
var linkFile = os.Link

type LocalStorage struct {
	basePath string
}

// NewLocal ensures basePath exists with owner rwx, group r-x and no world
// access, then returns a store rooted there.
func NewLocal(basePath string) (*LocalStorage, error) {
	if err := EnsureDirectory(basePath); err != nil {
		return nil, err
	}
	return &LocalStorage{basePath: basePath}, nil
}

// EnsureDirectory creates path if needed and forces DirMode on it, since
// MkdirAll leaves an existing directory's mode alone and honours umask.
func EnsureDirectory(path string) error {
	if err := os.MkdirAll(path, DirMode); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrDirectoryCreate, path, err)
	}
	if err := os.Chmod(path, DirMode); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrDirectoryCreate, path, err)
	}
	return nil
}

// Create opens a hidden partial file next to the final artifact. Nothing
// appears under name until Commit.
func (l *LocalStorage) Create(ctx context.Context, name string) (domain.ArtifactWriter, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(l.basePath, "."+name+".*.partial")
	if err != nil {
		return nil, fmt.Errorf("failed to create partial file: %w", err)
	}
	if err := f.Chmod(FileMode); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to set permissions on partial file: %w", err)
	}

	return &localWriter{file: f, final: filepath.Join(l.basePath, name)}, nil
}

// List returns the regular files directly inside the directory.
// Subdirectories and anything that is not a regular file are ignored.
func (l *LocalStorage) List(ctx context.Context) ([]domain.Object, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var objects []domain.Object
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to get file info for %s: %w", entry.Name(), err)
		}
		objects = append(objects, domain.Object{
			Name:    entry.Name(),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}

	return objects, nil
}

func (l *LocalStorage) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(l.basePath, name)); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (l *LocalStorage) Location(name string) string {
	return filepath.Join(l.basePath, name)
}

func (l *LocalStorage) Type() string {
	return "local"
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("invalid object name %q", name)
	}
	return nil
}

type localWriter struct {
	file  *os.File
	final string

	mu   sync.Mutex
	done bool
}

func (w *localWriter) Write(p []byte) (int, error) {
	return w.file.Write(p)
}

// Commit hard-links the partial file to its final name. On filesystems
// without hard links (vfat, exFAT, most FUSE stores) the final name is
// reserved with O_EXCL and the partial renamed over the placeholder. An
// existing file under that name is never replaced.
func (w *localWriter) Commit() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return "", errors.New("artifact writer already finished")
	}
	w.done = true

	partial := w.file.Name()
	defer os.Remove(partial)

	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return "", fmt.Errorf("failed to sync %s: %w", partial, err)
	}
	if err := w.file.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", partial, err)
	}

	err := linkFile(partial, w.final)
	if err != nil && linkUnsupported(err) {
		err = reserveAndRename(partial, w.final)
	}
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", domain.ErrArtifactExists, w.final)
		}
		return "", fmt.Errorf("failed to publish %s: %w", w.final, err)
	}

	return w.final, nil
}

func linkUnsupported(err error) bool {
	return errors.Is(err, syscall.EPERM) ||
		errors.Is(err, syscall.ENOTSUP) ||
		errors.Is(err, syscall.EOPNOTSUPP) ||
		errors.Is(err, errors.ErrUnsupported)
}

func reserveAndRename(partial, final string) error {
	placeholder, err := os.OpenFile(final, os.O_WRONLY|os.O_CREATE|os.O_EXCL, FileMode)
	if err != nil {
		return err
	}
	placeholder.Close()

	if err := os.Rename(partial, final); err != nil {
		os.Remove(final)
		return err
	}
	return nil
}

// Abort discards the partial file. It is safe to call after Commit.
func (w *localWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return nil
	}
	w.done = true

	w.file.Close()
	if err := os.Remove(w.file.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove partial file: %w", err)
	}
	return nil
}
