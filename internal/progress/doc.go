// Package progress defines the diagnostic stream the mirroring core reports into.
//
// The core never owns a logger. Scanner, Downloader and Manager accept a Func
// and call it for every discovery, failure and completion. The entry point decides
// where events go: the CLI forwards them to zap, the TUI renders them on screen.
//
// # Basic Usage
//
//	onProgress := func(event progress.Event) {
//	    fmt.Println(event.Level, event.Message)
//	}
//	scanner := index.NewScanner(fs, settings, onProgress)
//
// # Levels
//
//	LevelInfo     discovery and start-of-download
//	LevelVerbose  per-item detail (completed downloads, skipped files)
//	LevelWarning  retries
//	LevelError    per-item failures and unparseable index lines
//	LevelSuccess  end-of-phase summaries
package progress
