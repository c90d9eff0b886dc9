package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/thirtythreehz/crates/internal/tasks"
)

// ViewState represents the current view in the progress TUI.
type ViewState int

const (
	RunView ViewState = iota
	ResultView
)

// tailLines caps how many recent item updates stay on screen.
const tailLines = 8

// RunFunc is the long-running engine operation the view monitors. It receives
// the progress channel to stream updates through and returns its result.
type RunFunc func(chan<- tasks.ProgressUpdate) (any, error)

// Model represents the progress TUI state for one engine run.
type Model struct {
	view         ViewState
	title        string
	run          RunFunc
	width        int
	height       int
	started      bool
	spinner      spinner.Model
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	tail         []string
	result       any
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a progress view for the given operation. The run starts
// when bubbletea calls [Model.Init].
func NewModel(title string, run RunFunc) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.spin

	return &Model{
		view:    RunView,
		title:   title,
		run:     run,
		spinner: s,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the spinner and launches the monitored operation.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startRun())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		if m.view != RunView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressUpdateMsg:
		m.started = true
		m.progress = tasks.ProgressUpdate(msg)
		if m.progress.Phase == tasks.EnrichItem {
			m.tail = append(m.tail, m.progress.Message)
			if len(m.tail) > tailLines {
				m.tail = m.tail[len(m.tail)-tailLines:]
			}
		}
		return m, m.waitForProgress()

	case runCompleteMsg:
		m.view = ResultView
		return m, nil
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

// startRun launches the operation goroutine. The goroutine writes the result
// fields before closing the channel, so readers that observed the close see
// consistent values.
func (m *Model) startRun() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)

	go func() {
		result, err := m.run(m.progressChan)
		m.result = result
		m.err = err
		close(m.progressChan)
	}()

	return m.waitForProgress()
}

// waitForProgress polls the progress channel for the next update.
func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.progressChan
		if !ok {
			return runCompleteMsg{}
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderRun() string {
	title := styles.title.Render(m.title)

	var phase string
	switch {
	case !m.started:
		phase = "Starting..."
	case m.progress.Phase == tasks.FetchPage:
		phase = fmt.Sprintf("Fetching collection pages (%d/%d)", m.progress.Step, m.progress.Total)
	case m.progress.Phase == tasks.Merge:
		phase = "Merging with previous snapshot..."
	case m.progress.Phase == tasks.Stats:
		phase = "Computing stats..."
	case m.progress.Phase == tasks.Persist:
		phase = "Saving snapshot..."
	case m.progress.Phase == tasks.EnrichItem:
		phase = fmt.Sprintf("Enriching releases (%d/%d)", m.progress.Step, m.progress.Total)
	case m.progress.Phase == tasks.Checkpoint:
		phase = fmt.Sprintf("Checkpoint saved (%d/%d)", m.progress.Step, m.progress.Total)
	case m.progress.Phase == tasks.Export:
		phase = "Writing export files..."
	case m.progress.Phase == tasks.Done:
		phase = "Finishing..."
	default:
		phase = "Working..."
	}

	var tail string
	if len(m.tail) > 0 {
		tail = "\n\n" + styles.help.Render(strings.Join(m.tail, "\n"))
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})
	return fmt.Sprintf("%s\n%s %s%s\n\n%s", title, m.spinner.View(), phase, tail, helpView)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})

	if m.err != nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Run failed: %v", m.err)), helpView)
	}

	var summary string
	switch result := m.result.(type) {
	case *tasks.SyncResult:
		summary = fmt.Sprintf(
			"%s\n\nReleases: %d (%d added, %d removed)\nEnrichment carried forward: %d\nPages fetched: %d in %s",
			styles.ok.Render("✓ Sync complete"),
			result.ReleaseCount,
			result.Added,
			result.Deleted,
			result.Carried,
			result.Pages,
			result.Duration.Round(time.Millisecond),
		)
	case *tasks.EnrichResult:
		status := styles.warn.Render(fmt.Sprintf("%d releases remaining", result.Remaining))
		if result.Status == tasks.StatusCompleted {
			status = styles.ok.Render("Collection fully enriched")
		}
		summary = fmt.Sprintf(
			"%s\n\nProcessed: %d (%d enriched, %d skipped, %d failed)\n%s",
			styles.ok.Render("✓ Enrichment batch complete"),
			result.Processed,
			result.Enriched,
			result.Skipped,
			result.Errors,
			status,
		)
	case *tasks.ExportResult:
		summary = fmt.Sprintf(
			"%s\n\n%d releases as %s\n%s",
			styles.ok.Render("✓ Export complete"),
			result.ReleaseCount,
			result.Format,
			strings.Join(result.Files, "\n"),
		)
	default:
		summary = styles.ok.Render("✓ Done")
	}

	return fmt.Sprintf("%s\n\n%s", summary, helpView)
}
