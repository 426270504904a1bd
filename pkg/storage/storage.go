// Package storage provides the byte-level persistence surface a repository
// runs on. Backends expose a forward-slash path namespace rooted at the
// repository; directories may be implicit (object-store style backends) as
// long as ListDirectory reports the immediate children of any path with at
// least one descendant file.
package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound reports a path with no file behind it.
	ErrNotFound = errors.New("storage: not found")
)

// FileInfo describes a stored file.
type FileInfo struct {
	Size     int64
	Modified time.Time
}

// Storage is the uniform persistence contract. All paths are forward-slash
// separated and relative to the active repository scope set by Init.
// Writes materialize missing parent directories.
type Storage interface {
	// Init sets the active repository scope. Implementations may use it to
	// select a subdirectory, a key prefix, or a database partition.
	Init(repo string) error

	Exists(path string) (bool, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	DeleteFile(path string) error

	CreateDirectory(path string) error
	ListDirectory(path string) ([]string, error)
	// DeleteDirectory removes the directory and every descendant.
	DeleteDirectory(path string) error

	FileInfo(path string) (FileInfo, error)
}

// IsNotFound reports whether err is the missing-path kind.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
