package filesystem

import (
	"io/fs"
)

// FileInfo is an alias for fs.FileInfo from the standard library.
// This provides compatibility with the fs.FS ecosystem while maintaining
// a stable local type for our abstraction layer.
type FileInfo = fs.FileInfo

// FileSystem is the file access surface the converter and the project
// scaffolder need. Reads serve conversion inputs; writes serve the init
// workflow only.
type FileSystem interface {
	// ReadFile reads the file at the given path.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes content to the given path, creating the file or
	// truncating an existing one.
	WriteFile(path string, content []byte, perm fs.FileMode) error

	// Stat returns file information for the given path.
	Stat(path string) (FileInfo, error)

	// MkdirAll creates the directory at path along with any missing parents.
	MkdirAll(path string, perm fs.FileMode) error
}
