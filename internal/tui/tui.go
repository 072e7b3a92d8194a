// Package tui provides a Bubble Tea terminal user interface for crate-downloader.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jarri2di/crate-downloader/internal/config"
	"github.com/jarri2di/crate-downloader/internal/download"
	"github.com/jarri2di/crate-downloader/internal/http"
	cdprogress "github.com/jarri2di/crate-downloader/internal/progress"
	"github.com/spf13/afero"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F74C00")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)
)

// maxLogs is how many recent log lines stay on screen.
const maxLogs = 10

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateScanning
	StateDownloading
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   cdprogress.Level
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  config.Settings
	savePath  string
	fs        afero.Fs
	logs      []LogEntry
	err       error

	ctx    context.Context
	cancel context.CancelFunc

	manager *download.Manager
	events  chan cdprogress.Event
	missing int
	report  *download.Report

	// Download progress
	receivedBytes int64
	succeeded     int32
	failed        int32
	total         int32

	// Options
	dryRun  bool
	verbose bool

	width  int
	height int
}

// NewModel creates a new TUI model. The index path input is pre-filled
// from settings. When savePath is set, ctrl+s writes the current settings
// there.
func NewModel(settings *config.Settings, savePath string) Model {
	ti := textinput.New()
	ti.Placeholder = "/path/to/crates.io-index"
	ti.SetValue(settings.IndexPath)
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#F74C00"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  *settings,
		savePath:  savePath,
		fs:        afero.NewOsFs(),
		logs:      make([]LogEntry, 0),
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan cdprogress.Event, 256),
		dryRun:    settings.DryRun,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForEvent(m.events))
}

// Message types
type (
	// ProgressMsg carries one event from the mirroring core.
	ProgressMsg struct {
		Event cdprogress.Event
	}

	// ScanDoneMsg is sent when the index scan completes.
	ScanDoneMsg struct {
		Manager *download.Manager
		Missing int
		Err     error
	}

	// DownloadDoneMsg is sent when all downloads complete.
	DownloadDoneMsg struct {
		Report *download.Report
		Err    error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateDownloading || m.state == StateScanning {
				m.cancel()
				m.state = StateError
				m.err = fmt.Errorf("cancelled by user")
			}

		case "enter":
			if m.state == StateInput && m.textInput.Value() != "" {
				return m.start()
			}

		case "ctrl+n":
			if m.state == StateInput {
				m.dryRun = !m.dryRun
			}

		case "ctrl+e":
			if m.state == StateInput {
				m.verbose = !m.verbose
			}

		case "ctrl+s":
			if m.state == StateInput {
				m = m.save()
				return m, nil
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				m = m.reset()
				return m, nil
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		cmds = append(cmds, waitForEvent(m.events))
		if msg.Event.Level == cdprogress.LevelVerbose && !m.verbose {
			return m, tea.Batch(cmds...)
		}
		m.addLog(msg.Event.Message, msg.Event.Level)

	case ScanDoneMsg:
		if m.state != StateScanning {
			break
		}
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
			break
		}
		m.manager = msg.Manager
		m.missing = msg.Missing
		if msg.Missing == 0 || m.dryRun {
			m.report = msg.Manager.Report()
			m.state = StateComplete
			break
		}
		m.state = StateDownloading
		cmds = append(cmds, startDownload(m.ctx, m.manager), m.tickProgress())

	case DownloadDoneMsg:
		if m.state != StateDownloading {
			break
		}
		m.report = msg.Report
		if msg.Report != nil {
			m.receivedBytes = msg.Report.Bytes
			m.succeeded = int32(msg.Report.Succeeded)
			m.failed = int32(msg.Report.Failed)
		}
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
		} else {
			m.state = StateComplete
		}

	case TickMsg:
		if m.manager != nil && m.state == StateDownloading {
			m.receivedBytes, m.succeeded, m.failed, m.total = m.manager.GetProgress()

			var percent float64
			if m.total > 0 {
				percent = float64(m.succeeded+m.failed) / float64(m.total)
			}
			progressCmd := m.progress.SetPercent(percent)
			cmds = append(cmds, progressCmd, m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// start validates the settings and kicks off the scan.
func (m Model) start() (Model, tea.Cmd) {
	settings := m.settings
	settings.IndexPath = strings.TrimSpace(m.textInput.Value())
	settings.DryRun = m.dryRun

	if err := settings.Validate(m.fs); err != nil {
		m.state = StateError
		m.err = err
		return m, nil
	}

	m.settings = settings
	m.state = StateScanning
	return m, tea.Batch(scanIndex(m.ctx, m.fs, &settings, m.events), m.spinner.Tick)
}

// save writes the settings as currently entered to savePath.
func (m Model) save() Model {
	if m.savePath == "" {
		m.addLog("No settings file given, start with --config to save", cdprogress.LevelWarning)
		return m
	}

	settings := m.settings
	settings.IndexPath = strings.TrimSpace(m.textInput.Value())
	settings.DryRun = m.dryRun
	if err := settings.Save(m.savePath); err != nil {
		m.addLog(fmt.Sprintf("Unable to save settings: %v", err), cdprogress.LevelError)
		return m
	}
	m.settings = settings
	m.addLog("Settings saved to "+m.savePath, cdprogress.LevelSuccess)
	return m
}

func (m *Model) addLog(message string, level cdprogress.Level) {
	m.logs = append(m.logs, LogEntry{Message: message, Level: level})
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// reset returns the model to the input state for another run.
func (m Model) reset() Model {
	m.state = StateInput
	m.logs = nil
	m.err = nil
	m.manager = nil
	m.report = nil
	m.missing = 0
	m.receivedBytes, m.succeeded, m.failed, m.total = 0, 0, 0, 0
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.textInput.Focus()
	return m
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("📦 Crate Downloader"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Mirror crates.io for offline development"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateScanning:
		b.WriteString(m.viewScanning())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Index path:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	dryRunCheck := "[ ]"
	if m.dryRun {
		dryRunCheck = "[×]"
	}
	verboseCheck := "[ ]"
	if m.verbose {
		verboseCheck = "[×]"
	}

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Dry run, list only (ctrl+n)\n", dryRunCheck))
	b.WriteString(fmt.Sprintf("  %s Verbose output (ctrl+e)\n", verboseCheck))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Download path: %s", m.settings.DownloadPath)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Registry: %s", m.settings.CratesIOURL)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Max concurrent downloads: %d", m.settings.MaxConcurrentDownloads)))
	b.WriteString("\n")
	if len(m.logs) > 0 {
		b.WriteString("\n")
		b.WriteString(m.renderLogs())
	}

	return b.String()
}

func (m Model) viewScanning() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Determining new crates that need to be downloaded..."))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	b.WriteString(successStyle.Render(fmt.Sprintf("Downloading %d new crate(s) to %s", m.missing, m.settings.DownloadPath)))
	b.WriteString("\n\n")

	var percent float64
	if m.total > 0 {
		percent = float64(m.succeeded+m.failed) / float64(m.total)
	}
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Crates: %d/%d | Failed: %d | Downloaded: %.2f MB",
		m.succeeded+m.failed,
		m.total,
		m.failed,
		float64(m.receivedBytes)/1024/1024,
	)))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	r := m.report
	if r == nil {
		r = &download.Report{}
	}

	title := "✨ Mirror up to date!"
	if m.dryRun && r.Missing > 0 {
		title = "🔎 Dry run complete"
	}

	box := boxStyle.Render(fmt.Sprintf(
		"%s\n\n"+
			"New crates: %d\n"+
			"Downloaded: %d\n"+
			"Failed: %d\n"+
			"Already present: %d\n"+
			"Unparseable lines: %d\n"+
			"Size: %.2f MB",
		title,
		r.Missing,
		r.Succeeded,
		r.Failed,
		r.Present,
		r.ParseErrors,
		float64(r.Bytes)/1024/1024,
	))

	var b strings.Builder
	b.WriteString(box)
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())
	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("❌ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case cdprogress.LevelError:
			style = errorStyle
			prefix = "✗"
		case cdprogress.LevelWarning:
			style = warningStyle
			prefix = "!"
		case cdprogress.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case cdprogress.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • ctrl+n: dry run • ctrl+e: verbose • ctrl+s: save settings • esc: quit"
	case StateScanning, StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: run again • q: quit"
	}
	return ""
}

// waitForEvent delivers the next progress event as a ProgressMsg.
func waitForEvent(events <-chan cdprogress.Event) tea.Cmd {
	return func() tea.Msg {
		return ProgressMsg{Event: <-events}
	}
}

// forward returns a progress.Func feeding events. Events are dropped rather
// than blocking a download when the UI falls behind.
func forward(events chan<- cdprogress.Event) cdprogress.Func {
	return func(e cdprogress.Event) {
		select {
		case events <- e:
		default:
		}
	}
}

// scanIndex creates the manager and runs the index scan.
func scanIndex(ctx context.Context, fs afero.Fs, settings *config.Settings, events chan<- cdprogress.Event) tea.Cmd {
	return func() tea.Msg {
		client := http.NewClient(settings.UserAgent)
		manager := download.NewManagerWith(fs, client, settings, forward(events))
		if err := manager.Initialize(ctx); err != nil {
			return ScanDoneMsg{Err: err}
		}
		return ScanDoneMsg{Manager: manager, Missing: len(manager.Missing())}
	}
}

// startDownload runs the download phase in the background.
func startDownload(ctx context.Context, manager *download.Manager) tea.Cmd {
	return func() tea.Msg {
		err := manager.StartDownloads(ctx)
		return DownloadDoneMsg{Report: manager.Report(), Err: err}
	}
}

// Run starts the TUI application. savePath is the settings file ctrl+s
// writes to and may be empty.
func Run(settings *config.Settings, savePath string) error {
	p := tea.NewProgram(NewModel(settings, savePath), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
