package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidRecord is returned by ParseIndexLine for lines that are not a
// usable index record.
var ErrInvalidRecord = errors.New("invalid index record")

// Crate identifies one published version of one package.
//
// A Crate is parsed from a single index line and is never persisted on its own:
// its presence in the download directory, at ArchivePath, is the only record
// that it has been mirrored.
type Crate struct {
	// Name is the package name as published in the registry.
	Name string

	// Version is the published version string, used verbatim.
	Version string
}

// indexLine is the subset of an index record we care about. The crates.io
// index spells the version "vers"; other registries use "version".
type indexLine struct {
	Name    string  `json:"name"`
	Vers    *string `json:"vers"`
	Version *string `json:"version"`
}

// ParseIndexLine parses one line of an index file into a Crate.
//
// Unknown fields are ignored. When both "vers" and "version" are present,
// "vers" wins. The returned error wraps ErrInvalidRecord.
func ParseIndexLine(line []byte) (Crate, error) {
	var raw indexLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return Crate{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	c := Crate{Name: raw.Name}
	switch {
	case raw.Vers != nil:
		c.Version = *raw.Vers
	case raw.Version != nil:
		c.Version = *raw.Version
	}

	if err := c.Validate(); err != nil {
		return Crate{}, err
	}
	return c, nil
}

// Validate checks that the crate can be mapped to a file inside the
// download directory and to a download URL.
func (c Crate) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidRecord)
	}
	if c.Version == "" {
		return fmt.Errorf("%w: missing version for %s", ErrInvalidRecord, c.Name)
	}
	for _, part := range []string{c.Name, c.Version} {
		if strings.ContainsAny(part, "/\\\x00") || strings.Contains(part, "..") {
			return fmt.Errorf("%w: unsafe path component %q", ErrInvalidRecord, part)
		}
	}
	return nil
}

// String returns "name version".
func (c Crate) String() string {
	return c.Name + " " + c.Version
}

// FileName returns the archive file name, e.g. "serde-1.0.0.crate".
func (c Crate) FileName(ext string) string {
	return fmt.Sprintf("%s-%s.%s", c.Name, c.Version, ext)
}

// ArchivePath returns where the crate archive lives under dir.
func (c Crate) ArchivePath(dir, ext string) string {
	return filepath.Join(dir, c.FileName(ext))
}

// TempPath returns the hidden file an in-progress download is written to
// before being renamed to ArchivePath.
func (c Crate) TempPath(dir, ext string) string {
	return filepath.Join(dir, "."+c.FileName(ext)+".part")
}

// DownloadURL returns "{base}/{name}/{version}/download".
func (c Crate) DownloadURL(base string) string {
	return fmt.Sprintf("%s/%s/%s/download", strings.TrimRight(base, "/"), c.Name, c.Version)
}
