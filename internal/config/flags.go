package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlags registers the settings flags on fs and binds them, together
// with same-named upper-case environment variables (INDEX_PATH,
// MAX_CONCURRENT_DOWNLOADS, ...), to v.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) {
	defaults := DefaultSettings()

	fs.StringP("index-path", "i", "", "Existing path where the local crates.io-index repo resides")
	fs.StringP("download-path", "d", "", "Existing path where crate files will be downloaded to")
	fs.StringP("crates-io-url", "c", defaults.CratesIOURL, "Base URL of the crates.io crates endpoint")
	fs.IntP("max-concurrent-downloads", "n", defaults.MaxConcurrentDownloads,
		fmt.Sprintf("Maximum number of downloads in flight at once (%d-%d)", MinConcurrentDownloads, MaxConcurrentDownloads))
	fs.IntP("threads", "t", defaults.MaxConcurrentDownloads, "Deprecated alias for --max-concurrent-downloads")
	fs.String("archive-ext", defaults.ArchiveExtension, "File extension of downloaded archives")
	fs.Int("retries", defaults.DownloadMaxRetries, "Retries per crate after a failed download")
	fs.Float64("timeout", defaults.DownloadTimeout, "Per-crate download timeout in seconds (0 disables)")
	fs.String("user-agent", defaults.UserAgent, "User-Agent sent with every request")
	fs.Bool("dry-run", false, "List missing crates without downloading them")
	fs.String("config", "", "Path to a JSON settings file")
	_ = fs.MarkDeprecated("threads", "use --max-concurrent-downloads instead")

	_ = v.BindPFlags(fs)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("retries", "RETRIES", "DOWNLOAD_MAX_RETRIES")
	_ = v.BindEnv("timeout", "TIMEOUT", "DOWNLOAD_TIMEOUT")
}

// FromViper builds Settings from defaults, the optional --config file,
// environment variables and flags, in increasing precedence. The result is
// not validated.
func FromViper(v *viper.Viper) (*Settings, error) {
	settings := DefaultSettings()
	if path := v.GetString("config"); path != "" {
		var err error
		settings, err = Load(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	if v.IsSet("index-path") {
		settings.IndexPath = v.GetString("index-path")
	}
	if v.IsSet("download-path") {
		settings.DownloadPath = v.GetString("download-path")
	}
	if v.IsSet("crates-io-url") {
		settings.CratesIOURL = v.GetString("crates-io-url")
	}
	if v.IsSet("archive-ext") {
		settings.ArchiveExtension = strings.TrimPrefix(v.GetString("archive-ext"), ".")
	}
	if v.IsSet("user-agent") {
		settings.UserAgent = v.GetString("user-agent")
	}
	if v.IsSet("dry-run") {
		settings.DryRun = v.GetBool("dry-run")
	}

	for _, key := range []string{"threads", "max-concurrent-downloads"} {
		if !v.IsSet(key) {
			continue
		}
		n, err := ParseConcurrency(v.GetString(key))
		if err != nil {
			return nil, err
		}
		settings.MaxConcurrentDownloads = n
	}

	if v.IsSet("retries") {
		n, err := strconv.Atoi(strings.TrimSpace(v.GetString("retries")))
		if err != nil {
			return nil, fmt.Errorf("%w: retries: %v", ErrInvalid, err)
		}
		settings.DownloadMaxRetries = n
	}
	if v.IsSet("timeout") {
		secs, err := strconv.ParseFloat(strings.TrimSpace(v.GetString("timeout")), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: timeout: %v", ErrInvalid, err)
		}
		settings.DownloadTimeout = secs
	}

	return settings, nil
}
