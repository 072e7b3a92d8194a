package index

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jarri2di/crate-downloader/internal/config"
	ioutils "github.com/jarri2di/crate-downloader/internal/io"
	"github.com/jarri2di/crate-downloader/internal/model"
	"github.com/jarri2di/crate-downloader/internal/progress"
	"github.com/spf13/afero"
)

// maxLineSize bounds a single index line. crates.io lines with large
// feature tables stay well below this; longer lines are skipped as
// unparseable.
const maxLineSize = 1 << 20

// ParseError records one index line that could not be parsed.
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

// Result is the outcome of a scan.
type Result struct {
	// Missing lists crates absent from the download directory, in index
	// traversal order.
	Missing []model.Crate

	// Present counts records whose archive already exists.
	Present int

	// Duplicates counts records seen more than once while missing.
	Duplicates int

	// Files counts index files read.
	Files int

	// ParseErrors lists skipped lines.
	ParseErrors []ParseError
}

// Scanner diffs a registry index against a download directory.
type Scanner struct {
	fs           afero.Fs
	indexPath    string
	downloadPath string
	ext          string
	visit        Filter
	onProgress   progress.Func
}

// NewScanner creates a Scanner reading the index and download paths from
// settings. Hidden entries, the index's own config.json and entries named in
// settings.ExcludeNames are skipped at every depth.
func NewScanner(fs afero.Fs, settings *config.Settings, onProgress progress.Func) *Scanner {
	return &Scanner{
		fs:           fs,
		indexPath:    settings.IndexPath,
		downloadPath: settings.DownloadPath,
		ext:          settings.ArchiveExtension,
		visit:        All(NotHidden, NotNamed(config.IndexConfigFileName), NotNamed(settings.ExcludeNames...)),
		onProgress:   onProgress,
	}
}

// Scan walks the index and returns every crate whose archive is missing.
//
// A line that does not parse is skipped and recorded in Result.ParseErrors.
// Any filesystem error (enumerating a directory, opening or reading an index
// file, or checking the download directory) is fatal and aborts the scan.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	res := &Result{}
	seen := make(map[model.Crate]struct{})

	err := Walk(s.fs, s.indexPath, s.visit, func(path string, info os.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		res.Files++
		return s.scanFile(path, res, seen)
	})
	if err != nil {
		return nil, fmt.Errorf("scan index %s: %w", s.indexPath, err)
	}

	return res, nil
}

func (s *Scanner) scanFile(path string, res *Result, seen map[model.Crate]struct{}) error {
	f, err := s.fs.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)

	var buf []byte
	for lineNo := 1; ; lineNo++ {
		raw, tooLong, err := readLine(r, buf)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read index file %s: %w", path, err)
		}
		buf = raw

		if tooLong {
			s.parseError(res, path, lineNo, fmt.Errorf("%w: line longer than %d bytes", model.ErrInvalidRecord, maxLineSize))
			continue
		}

		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}

		c, err := model.ParseIndexLine(line)
		if err != nil {
			s.parseError(res, path, lineNo, err)
			continue
		}

		if err := s.classify(c, res, seen); err != nil {
			return err
		}
	}
}

func (s *Scanner) parseError(res *Result, path string, lineNo int, err error) {
	res.ParseErrors = append(res.ParseErrors, ParseError{File: path, Line: lineNo, Err: err})
	s.onProgress.Emit(progress.Event{
		Message: fmt.Sprintf("Unable to parse line %d in index file %s", lineNo, path),
		Level:   progress.LevelError,
		Fields:  map[string]any{"file": path, "line": lineNo, "error": err.Error()},
	})
}

// readLine reads one line into buf[:0], without its line ending. A line
// longer than maxLineSize is consumed in full but returned empty with
// tooLong set. io.EOF is returned once no data is left.
func readLine(r *bufio.Reader, buf []byte) (line []byte, tooLong bool, err error) {
	line = buf[:0]
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return line, tooLong, err
		}
		if !tooLong {
			if len(line)+len(chunk) > maxLineSize {
				tooLong = true
				line = line[:0]
			} else {
				line = append(line, chunk...)
			}
		}
		if !isPrefix {
			return line, tooLong, nil
		}
	}
}

func (s *Scanner) classify(c model.Crate, res *Result, seen map[model.Crate]struct{}) error {
	exists, err := ioutils.Exists(s.fs, c.ArchivePath(s.downloadPath, s.ext))
	if err != nil {
		return fmt.Errorf("check %s: %w", c, err)
	}
	if exists {
		res.Present++
		return nil
	}

	if _, dup := seen[c]; dup {
		res.Duplicates++
		return nil
	}
	seen[c] = struct{}{}

	res.Missing = append(res.Missing, c)
	s.onProgress.Emit(progress.Event{
		Message: fmt.Sprintf("Identified new crate: %s %s", c.Name, c.Version),
		Level:   progress.LevelInfo,
		Fields:  map[string]any{"crate": c.Name, "version": c.Version},
	})
	return nil
}
