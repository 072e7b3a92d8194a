package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) *viper.Viper {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	v := viper.New()
	BindFlags(fs, v)
	require.NoError(t, fs.Parse(args))
	return v
}

func TestFromViper_Defaults(t *testing.T) {
	s, err := FromViper(parse(t))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestFromViper_Flags(t *testing.T) {
	s, err := FromViper(parse(t,
		"-i", "/index", "-d", "/crates", "-c", "http://mirror.local/api",
		"-n", "8", "--archive-ext", ".tgz", "--retries", "2", "--timeout", "1.5", "--dry-run",
	))
	require.NoError(t, err)

	assert.Equal(t, "/index", s.IndexPath)
	assert.Equal(t, "/crates", s.DownloadPath)
	assert.Equal(t, "http://mirror.local/api", s.CratesIOURL)
	assert.Equal(t, 8, s.MaxConcurrentDownloads)
	assert.Equal(t, "tgz", s.ArchiveExtension)
	assert.Equal(t, 2, s.DownloadMaxRetries)
	assert.Equal(t, 1.5, s.DownloadTimeout)
	assert.True(t, s.DryRun)
}

func TestFromViper_DeprecatedThreads(t *testing.T) {
	s, err := FromViper(parse(t, "--threads", "12"))
	require.NoError(t, err)
	assert.Equal(t, 12, s.MaxConcurrentDownloads)
}

func TestFromViper_EnvAndPrecedence(t *testing.T) {
	t.Setenv("INDEX_PATH", "/env-index")
	t.Setenv("MAX_CONCURRENT_DOWNLOADS", "7")

	s, err := FromViper(parse(t))
	require.NoError(t, err)
	assert.Equal(t, "/env-index", s.IndexPath)
	assert.Equal(t, 7, s.MaxConcurrentDownloads)

	s, err = FromViper(parse(t, "-n", "9"))
	require.NoError(t, err)
	assert.Equal(t, 9, s.MaxConcurrentDownloads, "flags beat environment")
}

func TestFromViper_InvalidEnvConcurrency(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_DOWNLOADS", "many")

	_, err := FromViper(parse(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestFromViper_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"index_path":"/file-index","max_concurrent_downloads":5}`), 0644))

	s, err := FromViper(parse(t, "--config", path, "-d", "/crates"))
	require.NoError(t, err)
	assert.Equal(t, "/file-index", s.IndexPath)
	assert.Equal(t, "/crates", s.DownloadPath)
	assert.Equal(t, 5, s.MaxConcurrentDownloads)
}

func TestFromViper_BadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))

	_, err := FromViper(parse(t, "--config", path))
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestFromViper_LongRetryEnvNames(t *testing.T) {
	t.Setenv("DOWNLOAD_MAX_RETRIES", "3")
	t.Setenv("DOWNLOAD_TIMEOUT", "2.5")

	s, err := FromViper(parse(t))
	require.NoError(t, err)
	assert.Equal(t, 3, s.DownloadMaxRetries)
	assert.Equal(t, 2.5, s.DownloadTimeout)
}
