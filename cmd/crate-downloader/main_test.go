package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMirror(t *testing.T, indexLines ...string) (indexDir, downloadDir string) {
	t.Helper()
	indexDir = t.TempDir()
	downloadDir = t.TempDir()

	shard := filepath.Join(indexDir, "3", "f")
	require.NoError(t, os.MkdirAll(shard, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(shard, "foo"), []byte(strings.Join(indexLines, "\n")+"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(indexDir, "config.json"), []byte(`{"dl":"x"}`), 0644))
	return indexDir, downloadDir
}

func TestRun_DownloadsMissingCrate(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, "/foo/1.0.0/download", r.URL.Path)
		w.Write([]byte("crate-bytes"))
	}))
	defer srv.Close()

	indexDir, downloadDir := setupMirror(t, `{"name":"foo","vers":"1.0.0"}`)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-i", indexDir, "-d", downloadDir, "-c", srv.URL, "-n", "4", "--log-level", "error"}, &stdout, &stderr)
	require.Equal(t, ExitSuccess, code, stderr.String())

	data, err := os.ReadFile(filepath.Join(downloadDir, "foo-1.0.0.crate"))
	require.NoError(t, err)
	assert.Equal(t, "crate-bytes", string(data))
	assert.Contains(t, stdout.String(), "Processing completed. Downloaded 1 new crates.")

	// Second run finds nothing to do.
	stdout.Reset()
	code = run([]string{"-i", indexDir, "-d", downloadDir, "-c", srv.URL, "--log-level", "error"}, &stdout, &stderr)
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
	assert.Contains(t, stdout.String(), "No new crates to download.")
}

func TestRun_PartialFailureStillSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/2.0.0/") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	indexDir, downloadDir := setupMirror(t,
		`{"name":"foo","vers":"1.0.0"}`,
		`{"name":"foo","vers":"2.0.0"}`,
	)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-i", indexDir, "-d", downloadDir, "-c", srv.URL, "--log-level", "error"}, &stdout, &stderr)
	assert.Equal(t, ExitSuccess, code)

	_, err := os.Stat(filepath.Join(downloadDir, "foo-1.0.0.crate"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(downloadDir, "foo-2.0.0.crate"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_EnvironmentBinding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	indexDir, downloadDir := setupMirror(t, `{"name":"foo","vers":"1.0.0"}`)
	t.Setenv("INDEX_PATH", indexDir)
	t.Setenv("DOWNLOAD_PATH", downloadDir)
	t.Setenv("CRATES_IO_URL", srv.URL)
	t.Setenv("MAX_CONCURRENT_DOWNLOADS", "2")
	t.Setenv("LOG_LEVEL", "error")

	var stdout, stderr bytes.Buffer
	code := run(nil, &stdout, &stderr)
	require.Equal(t, ExitSuccess, code, stderr.String())

	_, err := os.Stat(filepath.Join(downloadDir, "foo-1.0.0.crate"))
	assert.NoError(t, err)
}

func TestRun_ConfigurationErrors(t *testing.T) {
	indexDir, downloadDir := setupMirror(t, `{"name":"foo","vers":"1.0.0"}`)

	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{name: "missing index path", args: []string{"-d", downloadDir}},
		{name: "nonexistent download path", args: []string{"-i", indexDir, "-d", filepath.Join(downloadDir, "nope")}},
		{name: "concurrency zero", args: []string{"-i", indexDir, "-d", downloadDir, "-n", "0"}},
		{name: "concurrency too high", args: []string{"-i", indexDir, "-d", downloadDir, "-n", "100"}},
		{name: "concurrency not a number", args: []string{"-i", indexDir, "-d", downloadDir, "-n", "lots"}},
		{name: "concurrency env not a number", args: []string{"-i", indexDir, "-d", downloadDir},
			env: map[string]string{"MAX_CONCURRENT_DOWNLOADS": "lots"}},
		{name: "unknown flag", args: []string{"--frobnicate"}},
		{name: "bad log level", args: []string{"-i", indexDir, "-d", downloadDir, "--log-level", "chatty"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			var stdout, stderr bytes.Buffer
			code := run(tt.args, &stdout, &stderr)
			assert.Equal(t, ExitInvalidArgs, code, stderr.String())
			assert.Empty(t, stdout.String(), "nothing runs before configuration is valid")
		})
	}
}

func TestRun_ConfigFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	indexDir, downloadDir := setupMirror(t, `{"name":"foo","vers":"1.0.0"}`)
	cfgPath := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{
  "index_path": "`+indexDir+`",
  "download_path": "`+downloadDir+`",
  "crates_io_url": "`+srv.URL+`",
  "archive_extension": "tgz"
}`), 0644))

	var stdout, stderr bytes.Buffer
	code := run([]string{"--config", cfgPath, "--log-level", "error"}, &stdout, &stderr)
	require.Equal(t, ExitSuccess, code, stderr.String())

	_, err := os.Stat(filepath.Join(downloadDir, "foo-1.0.0.tgz"))
	assert.NoError(t, err)
}

func TestRun_InterruptDuringDownload(t *testing.T) {
	started := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	indexDir, downloadDir := setupMirror(t, `{"name":"foo","vers":"1.0.0"}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-started
		cancel()
	}()

	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(viper.New(), &stdout)
	cmd.SetArgs([]string{"-i", indexDir, "-d", downloadDir, "-c", srv.URL, "--log-level", "error"})
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	code := exitCode(cmd.ExecuteContext(ctx), &stderr)
	assert.Equal(t, ExitInterrupted, code, stderr.String())
	assert.NotContains(t, stdout.String(), "Processing completed")
	assert.Contains(t, stderr.String(), "Download cancelled.")

	_, err := os.Stat(filepath.Join(downloadDir, "foo-1.0.0.crate"))
	assert.True(t, os.IsNotExist(err))
}
