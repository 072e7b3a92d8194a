// Package http provides the HTTP client used to fetch package archives.
//
// The Client in this package handles:
//   - User-Agent headers
//   - Streaming downloads straight to disk, never buffering a whole archive
//   - Atomic placement of the finished file
//
// # Basic Usage
//
//	client := http.NewClient("crate-downloader")
//	n, err := client.DownloadFile(ctx, fs, url, tempPath, destPath, func(written, total int64) {
//	    fmt.Printf("%d/%d\n", written, total)
//	})
//
// Non-200 responses are reported as *StatusError.
package http
