package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Filesystem is a Storage backend over a local directory tree.
type Filesystem struct {
	root  string
	scope string
}

// NewFilesystem returns a backend rooted at dir. The directory does not have
// to exist yet; writes create it.
func NewFilesystem(dir string) *Filesystem {
	return &Filesystem{root: dir}
}

// Init scopes all subsequent paths under root/repo. An empty repo name keeps
// the backend rooted at root itself, which is how a local working copy uses
// it.
func (f *Filesystem) Init(repo string) error {
	f.scope = normalizePath(repo)
	return nil
}

func (f *Filesystem) abs(path string) string {
	path = normalizePath(path)
	parts := []string{f.root}
	if f.scope != "" {
		parts = append(parts, filepath.FromSlash(f.scope))
	}
	if path != "" {
		parts = append(parts, filepath.FromSlash(path))
	}
	return filepath.Join(parts...)
}

func (f *Filesystem) Exists(path string) (bool, error) {
	_, err := os.Stat(f.abs(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}

func (f *Filesystem) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(f.abs(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// WriteFile writes atomically via a temp file in the destination directory
// followed by a rename.
func (f *Filesystem) WriteFile(path string, data []byte) error {
	dest := f.abs(path)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write %s: mkdir: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: tmpfile: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: close: %w", path, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: rename: %w", path, err)
	}
	return nil
}

func (f *Filesystem) DeleteFile(path string) error {
	err := os.Remove(f.abs(path))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (f *Filesystem) CreateDirectory(path string) error {
	if err := os.MkdirAll(f.abs(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

func (f *Filesystem) ListDirectory(path string) ([]string, error) {
	entries, err := os.ReadDir(f.abs(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (f *Filesystem) DeleteDirectory(path string) error {
	if err := os.RemoveAll(f.abs(path)); err != nil {
		return fmt.Errorf("rmdir %s: %w", path, err)
	}
	return nil
}

func (f *Filesystem) FileInfo(path string) (FileInfo, error) {
	fi, err := os.Stat(f.abs(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return FileInfo{}, ErrNotFound
		}
		return FileInfo{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return FileInfo{Size: fi.Size(), Modified: fi.ModTime()}, nil
}
