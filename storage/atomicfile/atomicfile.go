// Package atomicfile replaces file contents atomically: readers observe the previous
// content or the new one, never a partial write.
package atomicfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/and161185/csm-transport/internal/errs"
)

const tempMarker = ".tmp-"

// File is a path written through a temp file and a rename.
type File struct {
	path string
}

func New(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

// Read returns the committed content, or nil when the file does not exist.
func (f *File) Read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errs.NewIOError("read", f.path, err)
	}
	return data, nil
}

// Exists reports whether content has been committed.
func (f *File) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// Write commits data as the new content.
func (f *File) Write(data []byte) error {
	dir := filepath.Dir(f.path)

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+tempMarker+"*")
	if err != nil {
		return errs.NewIOError("create temp", f.path, err)
	}
	tmpName := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return errs.NewIOError("write", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		return errs.NewIOError("sync", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return errs.NewIOError("close", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return errs.NewIOError("rename", f.path, err)
	}
	committed = true

	return syncDir(dir)
}

// Delete removes the committed content. Deleting a missing file is not an error.
func (f *File) Delete() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errs.NewIOError("delete", f.path, err)
	}
	return syncDir(filepath.Dir(f.path))
}

// IsTemp reports whether name is a leftover temp file of an interrupted Write.
func IsTemp(name string) bool {
	return strings.Contains(filepath.Base(name), tempMarker)
}

// CleanTemp removes leftover temp files in dir.
func CleanTemp(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errs.NewIOError("read dir", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !IsTemp(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errs.NewIOError("delete", e.Name(), err)
		}
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return errs.NewIOError("open dir", dir, err)
	}
	defer d.Close()
	// Some filesystems do not support fsync on directories.
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return errs.NewIOError("sync dir", dir, err)
	}
	return nil
}
