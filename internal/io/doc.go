// Package ioutils provides file system utilities.
//
// This package contains:
//   - AtomicFile, a temp-file-then-rename writer used for every archive download
//   - Exists and IsDir helpers that separate "absent" from real stat failures
//
// # Atomic Writes
//
// An archive's presence in the download directory is the only record that it
// was mirrored, so a half-written archive must never appear under its final
// name:
//
//	f, _ := ioutils.CreateAtomic(fs, tempPath, finalPath)
//	io.Copy(f, resp.Body)
//	f.Commit() // or f.Abort() on error
package ioutils
