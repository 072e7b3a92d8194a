package ioutils

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// AtomicFile is a file that only appears at its final path once Commit
// succeeds. Until then data goes to a temporary sibling.
//
// Example:
//
//	f, err := CreateAtomic(fs, "/crates/.foo-1.0.0.crate.part", "/crates/foo-1.0.0.crate")
//	if err != nil {
//	    return err
//	}
//	if _, err := io.Copy(f, body); err != nil {
//	    f.Abort()
//	    return err
//	}
//	return f.Commit()
type AtomicFile struct {
	fs        afero.Fs
	file      afero.File
	tempPath  string
	finalPath string
	done      bool
}

// CreateAtomic creates (or truncates) tempPath for writing. The file is
// renamed to finalPath by Commit.
func CreateAtomic(fs afero.Fs, tempPath, finalPath string) (*AtomicFile, error) {
	f, err := fs.OpenFile(tempPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", tempPath, err)
	}
	return &AtomicFile{fs: fs, file: f, tempPath: tempPath, finalPath: finalPath}, nil
}

// Write implements io.Writer.
func (a *AtomicFile) Write(p []byte) (int, error) {
	return a.file.Write(p)
}

// Commit flushes and closes the temporary file and renames it into place.
// On failure the temporary file is removed.
func (a *AtomicFile) Commit() error {
	if a.done {
		return errors.New("atomic file already closed")
	}
	a.done = true

	if err := a.file.Sync(); err != nil {
		a.file.Close()
		a.fs.Remove(a.tempPath)
		return fmt.Errorf("sync %s: %w", a.tempPath, err)
	}
	if err := a.file.Close(); err != nil {
		a.fs.Remove(a.tempPath)
		return fmt.Errorf("close %s: %w", a.tempPath, err)
	}
	if err := a.fs.Rename(a.tempPath, a.finalPath); err != nil {
		a.fs.Remove(a.tempPath)
		return fmt.Errorf("rename %s: %w", a.finalPath, err)
	}
	return nil
}

// Abort closes and removes the temporary file. It is a no-op after Commit.
func (a *AtomicFile) Abort() {
	if a.done {
		return
	}
	a.done = true
	a.file.Close()
	a.fs.Remove(a.tempPath)
}

// Exists reports whether path exists. A not-exist error is reported as
// (false, nil); any other stat error is returned.
func Exists(fs afero.Fs, path string) (bool, error) {
	_, err := fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// IsDir reports whether path exists and is a directory.
func IsDir(fs afero.Fs, path string) (bool, error) {
	info, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
