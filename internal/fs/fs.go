package fs

import (
	"io"
	"os"
)

// File is a model file being written.
type File interface {
	io.WriteCloser
	Name() string
	Sync() error
}

// FileSystem is the set of operations the builder performs on its output.
type FileSystem interface {
	Create(name string) (File, error)
	CreateTemp(dir, pattern string) (File, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
}

// LocalFS implements FileSystem with the os package.
type LocalFS struct{}

func (LocalFS) Create(name string) (File, error) { return os.Create(name) }

func (LocalFS) CreateTemp(dir, pattern string) (File, error) { return os.CreateTemp(dir, pattern) }

func (LocalFS) Remove(name string) error             { return os.Remove(name) }
func (LocalFS) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }

// Default is the local file system.
var Default FileSystem = LocalFS{}
