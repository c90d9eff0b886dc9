package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/thirtythreehz/crates/internal/tasks"
)

// progressUpdateMsg carries one engine update into the Elm loop.
type progressUpdateMsg tasks.ProgressUpdate

// runCompleteMsg signals that the operation goroutine finished and closed
// the progress channel. The model reads its result fields only after seeing
// this message; the channel close orders those reads after the writes.
type runCompleteMsg struct{}

var (
	_ tea.Msg = progressUpdateMsg{}
	_ tea.Msg = runCompleteMsg{}
)
