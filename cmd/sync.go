package main

import (
	"context"
	"time"

	"github.com/thirtythreehz/crates/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncRun refreshes the owner's collection snapshot from the live catalog,
// streaming per-page progress while it runs.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	username, err := r.owner(cmd.String("username"))
	if err != nil {
		return err
	}
	useJSON := cmd.Bool("json")

	if cmd.Bool("tui") && !useJSON {
		return r.runInteractive(ctx, "crates sync", func(progress chan<- tasks.ProgressUpdate) (any, error) {
			engine, err := r.ensureEngine(ctx)
			if err != nil {
				return nil, err
			}
			return engine.SyncCollection(ctx, username, username, progress)
		})
	}

	engine, err := r.ensureEngine(ctx)
	if err != nil {
		return err
	}

	progress, done := r.streamProgress(!useJSON)
	result, err := engine.SyncCollection(ctx, username, username, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(result, true)
	}
	r.printSyncSummary(result)
	return nil
}

// streamProgress starts a consumer that prints one line per update, returning
// the channel to hand the engine and a done channel that closes once the
// consumer drains. With echo off the updates are swallowed.
func (r *Runner) streamProgress(echo bool) (chan tasks.ProgressUpdate, chan struct{}) {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			// The summary covers the Done phase.
			if echo && update.Phase != tasks.Done {
				r.writePlain("%s\n", update.Message)
			}
		}
	}()

	return progress, done
}

func (r *Runner) printSyncSummary(result *tasks.SyncResult) {
	r.writePlainln("✓ Sync complete")
	r.writePlain("  Releases: %d (%d added, %d removed)\n", result.ReleaseCount, result.Added, result.Deleted)
	if result.Carried > 0 {
		r.writePlain("  Enrichment carried forward: %d\n", result.Carried)
	}
	r.writePlain("  Pages fetched: %d in %s\n", result.Pages, result.Duration.Round(time.Millisecond))
}
