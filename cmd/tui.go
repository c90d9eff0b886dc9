package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/thirtythreehz/crates/internal/shared"
	"github.com/thirtythreehz/crates/internal/ui"
)

// runInteractive executes a long-running operation inside the terminal
// progress view. Logs move to a file for the duration so they do not corrupt
// the rendering; operation failures render in the view's result screen.
func (r *Runner) runInteractive(ctx context.Context, title string, op ui.RunFunc) error {
	fileLogger, err := shared.NewFileLogger("./tmp/crates-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(title, op)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
