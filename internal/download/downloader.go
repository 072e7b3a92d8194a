package download

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jarri2di/crate-downloader/internal/config"
	"github.com/jarri2di/crate-downloader/internal/http"
	ioutils "github.com/jarri2di/crate-downloader/internal/io"
	"github.com/jarri2di/crate-downloader/internal/model"
	"github.com/jarri2di/crate-downloader/internal/progress"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// ErrDownloadDir is returned when the download directory cannot be used, in
// which case no download is attempted.
var ErrDownloadDir = errors.New("download directory unavailable")

// Failure records one crate that could not be downloaded.
type Failure struct {
	Crate model.Crate
	Err   error
}

// Summary describes a finished download batch.
type Summary struct {
	Attempted int
	Succeeded int
	Failed    int
	Bytes     int64
	Failures  []Failure
}

// Downloader fetches crate archives with a bounded number of requests in
// flight.
type Downloader struct {
	fs         afero.Fs
	client     *http.Client
	settings   *config.Settings
	onProgress progress.Func

	total         int32
	succeeded     int32
	failed        int32
	receivedBytes int64

	mu       sync.Mutex
	failures []Failure
}

// NewDownloader creates a Downloader writing into settings.DownloadPath on fs.
func NewDownloader(fs afero.Fs, client *http.Client, settings *config.Settings, onProgress progress.Func) *Downloader {
	return &Downloader{
		fs:         fs,
		client:     client,
		settings:   settings,
		onProgress: onProgress,
	}
}

// Download fetches every crate and writes it to its archive path.
//
// At most settings.MaxConcurrentDownloads requests are in flight at any
// instant. A failed crate is reported through the progress callback and in
// Summary.Failures; it never stops its siblings and is not returned as an
// error. An error is returned when nothing could be attempted (the download
// directory is unusable or ctx is already done) and when ctx is cancelled
// during the batch, in which case the partial Summary is returned with
// ctx.Err().
func (d *Downloader) Download(ctx context.Context, crates []model.Crate) (*Summary, error) {
	if len(crates) == 0 {
		return &Summary{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ok, err := ioutils.IsDir(d.fs, d.settings.DownloadPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadDir, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDownloadDir, d.settings.DownloadPath)
	}

	d.reset(len(crates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.settings.MaxConcurrentDownloads)

	attempted := 0
	for _, c := range crates {
		if gctx.Err() != nil {
			break
		}
		attempted++
		c := c
		g.Go(func() error {
			d.downloadCrate(gctx, c)
			return nil // Continue with other crates
		})
	}
	g.Wait()

	d.mu.Lock()
	failures := append([]Failure(nil), d.failures...)
	d.mu.Unlock()

	summary := &Summary{
		Attempted: attempted,
		Succeeded: int(atomic.LoadInt32(&d.succeeded)),
		Failed:    int(atomic.LoadInt32(&d.failed)),
		Bytes:     atomic.LoadInt64(&d.receivedBytes),
		Failures:  failures,
	}
	// Interrupted batches return the partial summary together with the
	// cancellation so callers can tell them apart from completed ones.
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// Progress returns counters for the batch in progress.
func (d *Downloader) Progress() (received int64, succeeded, failed, total int32) {
	return atomic.LoadInt64(&d.receivedBytes),
		atomic.LoadInt32(&d.succeeded),
		atomic.LoadInt32(&d.failed),
		atomic.LoadInt32(&d.total)
}

func (d *Downloader) reset(total int) {
	atomic.StoreInt32(&d.total, int32(total))
	atomic.StoreInt32(&d.succeeded, 0)
	atomic.StoreInt32(&d.failed, 0)
	atomic.StoreInt64(&d.receivedBytes, 0)
	d.mu.Lock()
	d.failures = nil
	d.mu.Unlock()
}

func (d *Downloader) downloadCrate(ctx context.Context, c model.Crate) {
	url := c.DownloadURL(d.settings.CratesIOURL)
	fields := map[string]any{"crate": c.Name, "version": c.Version, "url": url}

	d.onProgress.Emit(progress.Event{
		Message: fmt.Sprintf("Downloading %s %s -> %s", c.Name, c.Version, url),
		Level:   progress.LevelInfo,
		Fields:  fields,
	})

	var (
		n   int64
		err error
	)
	for tries := 0; tries <= d.settings.DownloadMaxRetries; tries++ {
		if tries > 0 {
			d.onProgress.Emit(progress.Event{
				Message: fmt.Sprintf("Retry %d/%d for %s %s", tries, d.settings.DownloadMaxRetries, c.Name, c.Version),
				Level:   progress.LevelWarning,
				Fields:  fields,
			})
			if !d.waitForRetry(ctx, tries-1) {
				break
			}
		}

		n, err = d.fetch(ctx, c, url)
		if err == nil || ctx.Err() != nil || !isRetryable(err) {
			break
		}
	}

	if err != nil {
		atomic.AddInt32(&d.failed, 1)
		d.mu.Lock()
		d.failures = append(d.failures, Failure{Crate: c, Err: err})
		d.mu.Unlock()

		d.onProgress.Emit(progress.Event{
			Message: fmt.Sprintf("Error downloading %s %s: %v", c.Name, c.Version, err),
			Level:   progress.LevelError,
			Fields:  fields,
		})
		return
	}

	atomic.AddInt32(&d.succeeded, 1)
	d.onProgress.Emit(progress.Event{
		Message: fmt.Sprintf("Downloaded: %s (%d bytes)", c.FileName(d.settings.ArchiveExtension), n),
		Level:   progress.LevelVerbose,
		Fields:  fields,
	})
}

func (d *Downloader) fetch(ctx context.Context, c model.Crate, url string) (int64, error) {
	if d.settings.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(d.settings.DownloadTimeout*float64(time.Second)))
		defer cancel()
	}

	dir, ext := d.settings.DownloadPath, d.settings.ArchiveExtension

	var last int64
	n, err := d.client.DownloadFile(ctx, d.fs, url, c.TempPath(dir, ext), c.ArchivePath(dir, ext), func(written, _ int64) {
		atomic.AddInt64(&d.receivedBytes, written-last)
		last = written
	})
	if err != nil {
		// The temp file is gone, so its bytes no longer count.
		atomic.AddInt64(&d.receivedBytes, -last)
	}
	return n, err
}

// waitForRetry sleeps for the backoff of the given attempt. It reports false
// if ctx was cancelled while waiting.
func (d *Downloader) waitForRetry(ctx context.Context, tries int) bool {
	cooldown := d.settings.DownloadRetryCooldown * math.Pow(d.settings.DownloadRetryExponent, float64(tries))
	select {
	case <-ctx.Done():
		return false
	case <-time.After(time.Duration(cooldown * float64(time.Second))):
		return true
	}
}

// isRetryable reports whether a failed fetch may succeed on another attempt.
// Client errors other than 429 are final.
func isRetryable(err error) bool {
	var statusErr *http.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == 429
	}
	return true
}
