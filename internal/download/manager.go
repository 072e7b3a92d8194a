package download

import (
	"context"
	"fmt"
	"io"

	"github.com/jarri2di/crate-downloader/internal/config"
	"github.com/jarri2di/crate-downloader/internal/http"
	"github.com/jarri2di/crate-downloader/internal/index"
	"github.com/jarri2di/crate-downloader/internal/model"
	"github.com/jarri2di/crate-downloader/internal/progress"
	"github.com/spf13/afero"
)

// Report is the aggregate outcome of one mirroring run.
type Report struct {
	Missing     int
	Present     int
	ParseErrors int
	Attempted   int
	Succeeded   int
	Failed      int
	Bytes       int64
}

// Manager coordinates a mirroring run: scan the index, then download what
// is missing.
type Manager struct {
	settings   *config.Settings
	scanner    *index.Scanner
	downloader *Downloader
	onProgress progress.Func

	scan    *index.Result
	summary *Summary
}

// NewManager creates a Manager on the real filesystem.
func NewManager(settings *config.Settings, onProgress progress.Func) *Manager {
	return NewManagerWith(afero.NewOsFs(), http.NewClient(settings.UserAgent), settings, onProgress)
}

// NewManagerWith creates a Manager on the given filesystem and HTTP client.
func NewManagerWith(fs afero.Fs, client *http.Client, settings *config.Settings, onProgress progress.Func) *Manager {
	return &Manager{
		settings:   settings,
		scanner:    index.NewScanner(fs, settings, onProgress),
		downloader: NewDownloader(fs, client, settings, onProgress),
		onProgress: onProgress,
	}
}

// Initialize scans the index and computes the set of missing crates.
func (m *Manager) Initialize(ctx context.Context) error {
	res, err := m.scanner.Scan(ctx)
	if err != nil {
		return err
	}
	m.scan = res
	m.summary = nil

	m.onProgress.Emit(progress.Event{
		Message: fmt.Sprintf("Scanned %d index files: %d new, %d present, %d unparseable lines",
			res.Files, len(res.Missing), res.Present, len(res.ParseErrors)),
		Level: progress.LevelSuccess,
	})
	return nil
}

// Missing returns the crates found missing by Initialize.
func (m *Manager) Missing() []model.Crate {
	if m.scan == nil {
		return nil
	}
	return m.scan.Missing
}

// StartDownloads downloads every missing crate. Individual failures are
// reported through the progress callback, not returned. If ctx is cancelled
// mid-batch the counts gathered so far stay available through Report and
// ctx.Err() is returned.
func (m *Manager) StartDownloads(ctx context.Context) error {
	summary, err := m.downloader.Download(ctx, m.Missing())
	if summary != nil {
		m.summary = summary
	}
	if err != nil {
		return err
	}

	if summary.Failed == 0 {
		m.onProgress.Emitf(progress.LevelSuccess, "Successfully downloaded %d crates", summary.Succeeded)
	} else {
		m.onProgress.Emitf(progress.LevelWarning, "Finished downloading, %d of %d crates failed", summary.Failed, summary.Attempted)
	}
	return nil
}

// GetProgress returns current download progress.
func (m *Manager) GetProgress() (received int64, succeeded, failed, total int32) {
	return m.downloader.Progress()
}

// Report returns the counts gathered so far.
func (m *Manager) Report() *Report {
	r := &Report{}
	if m.scan != nil {
		r.Missing = len(m.scan.Missing)
		r.Present = m.scan.Present
		r.ParseErrors = len(m.scan.ParseErrors)
	}
	if m.summary != nil {
		r.Attempted = m.summary.Attempted
		r.Succeeded = m.summary.Succeeded
		r.Failed = m.summary.Failed
		r.Bytes = m.summary.Bytes
	}
	return r
}

// Run performs a full mirroring run, writing progress lines to out.
//
// Scan errors, a download phase that could not start at all and
// cancellation are returned; in those cases the completion line is not
// printed. Crates that fail to download are counted in the report and left
// for the next run.
func (m *Manager) Run(ctx context.Context, out io.Writer) (*Report, error) {
	fmt.Fprintln(out, "\nDetermining new crates that need to be downloaded...")
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}

	missing := m.Missing()
	switch {
	case len(missing) == 0:
		fmt.Fprintln(out, "\nNo new crates to download.")

	case m.settings.DryRun:
		fmt.Fprintf(out, "\nEvaluation completed. %d new crates would be downloaded to %s:\n", len(missing), m.settings.DownloadPath)
		for _, c := range missing {
			fmt.Fprintf(out, "  %s\n", c.DownloadURL(m.settings.CratesIOURL))
		}

	default:
		fmt.Fprintf(out, "\nEvaluation completed. Downloading %d new crates to %s...\n", len(missing), m.settings.DownloadPath)
		if err := m.StartDownloads(ctx); err != nil {
			return m.Report(), fmt.Errorf("download: %w", err)
		}
	}

	report := m.Report()
	fmt.Fprintf(out, "\nProcessing completed. Downloaded %d new crates.\n", report.Attempted)
	if report.Failed > 0 {
		fmt.Fprintf(out, "%d crates failed to download and will be retried on the next run.\n", report.Failed)
	}
	return report, nil
}
