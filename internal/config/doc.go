// Package config provides configuration management for crate-downloader.
//
// This package handles:
//   - Loading and saving settings from JSON files
//   - Default configuration values
//   - Validation of paths, registry URL and concurrency limits
//
// # Default Settings
//
//	settings := config.DefaultSettings()
//	// crates.io API root, 50 concurrent downloads, ".crate" archives
//	// index config.json excluded from scanning
//
// # Loading from File
//
//	settings, err := config.Load("/path/to/config.json")
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//
// # Validation
//
// Validate checks that the index and download paths exist and that
// MaxConcurrentDownloads lies in 1-99. The limit caps simultaneously in-flight
// downloads; it is not a count of OS threads. Command-line values can be
// checked early with ParseConcurrency.
package config
