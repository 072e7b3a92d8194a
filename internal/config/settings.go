package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Concurrency bounds for MaxConcurrentDownloads.
const (
	MinConcurrentDownloads = 1
	MaxConcurrentDownloads = 99
)

// DefaultCratesIOURL is the public crates.io download API root.
const DefaultCratesIOURL = "https://crates.io/api/v1/crates"

// IndexConfigFileName is the registry index's own configuration file. It is
// not a record file and is never scanned.
const IndexConfigFileName = "config.json"

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Settings holds all configuration options.
type Settings struct {
	// Paths
	IndexPath    string   `json:"index_path"`
	DownloadPath string   `json:"download_path"`
	ExcludeNames []string `json:"exclude_names"`

	// Registry
	CratesIOURL      string `json:"crates_io_url"`
	ArchiveExtension string `json:"archive_extension"`
	UserAgent        string `json:"user_agent"`

	// Download settings
	MaxConcurrentDownloads int     `json:"max_concurrent_downloads"`
	DownloadMaxRetries     int     `json:"download_max_retries"`
	DownloadRetryCooldown  float64 `json:"download_retry_cooldown"`
	DownloadRetryExponent  float64 `json:"download_retry_exponent"`
	DownloadTimeout        float64 `json:"download_timeout"` // seconds, 0 = none

	DryRun bool `json:"dry_run"`
}

// DefaultSettings returns settings with default values.
//
// IndexPath and DownloadPath have no sensible default and must be set.
func DefaultSettings() *Settings {
	return &Settings{
		ExcludeNames: []string{IndexConfigFileName},

		CratesIOURL:      DefaultCratesIOURL,
		ArchiveExtension: "crate",
		UserAgent:        "crate-downloader",

		MaxConcurrentDownloads: 50,
		DownloadMaxRetries:     0,
		DownloadRetryCooldown:  0.2,
		DownloadRetryExponent:  4.0,
		DownloadTimeout:        0,
	}
}

// Load reads settings from a JSON file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return settings, nil
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ParseConcurrency parses a "maximum concurrent downloads" value and checks
// it lies within [MinConcurrentDownloads, MaxConcurrentDownloads].
func ParseConcurrency(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < MinConcurrentDownloads || n > MaxConcurrentDownloads {
		return 0, fmt.Errorf("%w: max concurrent downloads %q: expected value in range %d-%d",
			ErrInvalid, s, MinConcurrentDownloads, MaxConcurrentDownloads)
	}
	return n, nil
}

// Validate checks the settings before the core runs. Index and download
// paths are checked for existence on fs.
func (s *Settings) Validate(fs afero.Fs) error {
	if s.IndexPath == "" {
		return fmt.Errorf("%w: index path is required", ErrInvalid)
	}
	if s.DownloadPath == "" {
		return fmt.Errorf("%w: download path is required", ErrInvalid)
	}
	for _, p := range []string{s.IndexPath, s.DownloadPath} {
		if _, err := fs.Stat(p); err != nil {
			return fmt.Errorf("%w: %s must be an existing path: %v", ErrInvalid, p, err)
		}
	}

	u, err := url.Parse(s.CratesIOURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: crates.io URL %q must be an absolute http(s) URL", ErrInvalid, s.CratesIOURL)
	}

	if s.MaxConcurrentDownloads < MinConcurrentDownloads || s.MaxConcurrentDownloads > MaxConcurrentDownloads {
		return fmt.Errorf("%w: max concurrent downloads %d: expected value in range %d-%d",
			ErrInvalid, s.MaxConcurrentDownloads, MinConcurrentDownloads, MaxConcurrentDownloads)
	}
	if s.ArchiveExtension == "" {
		return fmt.Errorf("%w: archive extension is required", ErrInvalid)
	}
	if s.DownloadMaxRetries < 0 {
		return fmt.Errorf("%w: download retries must not be negative", ErrInvalid)
	}
	if s.DownloadTimeout < 0 {
		return fmt.Errorf("%w: download timeout must not be negative", ErrInvalid)
	}
	return nil
}
