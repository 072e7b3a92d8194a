package http

import (
	"context"
	"fmt"
	"io"
	"net/http"

	ioutils "github.com/jarri2di/crate-downloader/internal/io"
	"github.com/spf13/afero"
)

// Client wraps HTTP operations against the registry download API.
//
// Client provides:
//   - Configured User-Agent header (crates.io rejects anonymous clients)
//   - Streaming file download with progress tracking
//
// Example usage:
//
//	client := NewClient("crate-downloader")
//	n, err := client.DownloadFile(ctx, fs, url, tempPath, destPath, nil)
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a new HTTP client with the given User-Agent.
//
// The client has no overall timeout: archives can be large and a per-request
// deadline, if any, is applied by the caller through ctx.
func NewClient(userAgent string) *Client {
	return NewClientWith(&http.Client{}, userAgent)
}

// NewClientWith wraps an existing *http.Client, e.g. one returned by
// httptest.Server.Client.
func NewClientWith(hc *http.Client, userAgent string) *Client {
	return &Client{
		httpClient: hc,
		userAgent:  userAgent,
	}
}

// StatusError is returned when the server answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// ProgressWriter wraps a writer to track download progress.
//
// OnUpdate receives the bytes written so far and the expected total
// (from Content-Length, -1 if unknown) after every Write.
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected total bytes (from Content-Length header).
	Total int64

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with current progress.
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

// DownloadFile downloads url to destPath on fs.
//
// The body is streamed in chunks to tempPath and renamed to destPath only
// after it has been fully written, so destPath never holds a partial archive.
// Nothing is created on disk unless the server answers 200 OK. On any error
// the temporary file is removed.
//
// onProgress, if non-nil, is called with (bytesWritten, totalBytes) as data
// arrives. The number of bytes written is returned.
func (c *Client) DownloadFile(ctx context.Context, fs afero.Fs, url, tempPath, destPath string, onProgress func(written, total int64)) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	file, err := ioutils.CreateAtomic(fs, tempPath, destPath)
	if err != nil {
		return 0, err
	}

	pw := &ProgressWriter{
		Writer:   file,
		Total:    resp.ContentLength,
		OnUpdate: onProgress,
	}

	if _, err := io.Copy(pw, resp.Body); err != nil {
		file.Abort()
		return pw.Written, err
	}

	if resp.ContentLength >= 0 && pw.Written != resp.ContentLength {
		file.Abort()
		return pw.Written, fmt.Errorf("short body: got %d of %d bytes", pw.Written, resp.ContentLength)
	}

	if err := file.Commit(); err != nil {
		return pw.Written, err
	}
	return pw.Written, nil
}
