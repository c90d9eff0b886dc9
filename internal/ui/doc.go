// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a two-view workflow for long engine runs:
//  1. [RunView] : Monitor live progress with a spinner and a tail of recent item updates
//  2. [ResultView] : Display the finished run's summary or its error
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the engine operation, providing non-blocking status reporting during syncs and enrichment batches.
//
// The only keyboard binding is quit (q/ctrl+c), displayed via charmbracelet/bubbles/help.
package ui
