package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ioutils "github.com/jarri2di/crate-downloader/internal/io"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadFile_StreamsBody(t *testing.T) {
	body := strings.Repeat("crate-bytes-", 10_000)
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/crates", 0755))

	var updates int
	var last int64
	client := NewClientWith(srv.Client(), "crate-downloader-test")
	n, err := client.DownloadFile(context.Background(), fs, srv.URL, "/crates/.foo.part", "/crates/foo", func(written, total int64) {
		updates++
		last = written
	})
	require.NoError(t, err)

	assert.Equal(t, int64(len(body)), n)
	assert.Equal(t, int64(len(body)), last)
	assert.Positive(t, updates)
	assert.Equal(t, "crate-downloader-test", gotUA)

	data, err := afero.ReadFile(fs, "/crates/foo")
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func TestDownloadFile_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/crates", 0755))

	client := NewClientWith(srv.Client(), "test")
	_, err := client.DownloadFile(context.Background(), fs, srv.URL, "/crates/.foo.part", "/crates/foo", nil)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "expected *StatusError, got %v", err)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	for _, p := range []string{"/crates/foo", "/crates/.foo.part"} {
		exists, err := ioutils.Exists(fs, p)
		require.NoError(t, err)
		assert.False(t, exists, p)
	}
}

func TestDownloadFile_TruncatedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.Write([]byte("only a little"))
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/crates", 0755))

	client := NewClientWith(srv.Client(), "test")
	_, err := client.DownloadFile(context.Background(), fs, srv.URL, "/crates/.foo.part", "/crates/foo", nil)
	require.Error(t, err)

	exists, err := ioutils.Exists(fs, "/crates/foo")
	require.NoError(t, err)
	assert.False(t, exists, "truncated download must not appear at the final path")
}

func TestDownloadFile_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClientWith(srv.Client(), "test")
	_, err := client.DownloadFile(ctx, afero.NewMemMapFs(), srv.URL, "/.foo.part", "/foo", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
