// Package download provides the download orchestration logic for mirroring
// crate archives from a registry.
//
// # Manager
//
// The Manager coordinates the entire run:
//
//  1. Scan the index for crates missing from the download directory
//  2. Download the missing crates concurrently
//  3. Report how many were downloaded
//
// # Basic Usage
//
//	manager := download.NewManager(settings, func(event progress.Event) {
//	    fmt.Println(event.Message)
//	})
//
//	report, err := manager.Run(ctx, os.Stdout)
//	if err != nil {
//	    log.Fatal(err) // the index could not be scanned
//	}
//
// # Concurrency
//
// Downloader admits at most settings.MaxConcurrentDownloads requests at once
// using errgroup.SetLimit. The limit bounds in-flight network operations;
// the goroutines behind them are scheduled by the Go runtime.
//
// # Failures
//
// A crate that fails to download is logged and skipped. Its archive is never
// created (downloads land in a hidden temp file first), so the next run
// finds it missing again and retries it.
//
// # Retry Logic
//
// Optional: settings.DownloadMaxRetries enables exponential backoff via
// DownloadRetryCooldown and DownloadRetryExponent, and DownloadTimeout bounds
// each attempt. Both default to off.
package download
