package main

import (
	"context"

	"github.com/thirtythreehz/crates/internal/tasks"
	"github.com/urfave/cli/v3"
)

// EnrichRun processes one batch of un-enriched releases from the owner's
// snapshot. Interrupted runs resume their counters on the next call; --all
// lifts the batch cap and works through the whole remaining list.
func (r *Runner) EnrichRun(ctx context.Context, cmd *cli.Command) error {
	owner, err := r.owner(cmd.String("username"))
	if err != nil {
		return err
	}
	useJSON := cmd.Bool("json")

	maxItems := int(cmd.Int("max-items"))
	if cmd.Bool("all") {
		maxItems = 0
	} else if maxItems <= 0 {
		maxItems = r.config.Enrich.BatchSize
	}

	if cmd.Bool("tui") && !useJSON {
		return r.runInteractive(ctx, "crates enrich", func(progress chan<- tasks.ProgressUpdate) (any, error) {
			engine, err := r.ensureEngine(ctx)
			if err != nil {
				return nil, err
			}
			return engine.EnrichBatch(ctx, owner, maxItems, progress)
		})
	}

	engine, err := r.ensureEngine(ctx)
	if err != nil {
		return err
	}

	progress, done := r.streamProgress(!useJSON)
	result, err := engine.EnrichBatch(ctx, owner, maxItems, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(result, true)
	}
	r.printEnrichSummary(result)
	return nil
}

func (r *Runner) printEnrichSummary(result *tasks.EnrichResult) {
	if result.Processed == 0 && result.Remaining == 0 {
		r.writePlain("✓ Nothing to enrich\n")
		return
	}

	r.writePlainln("✓ Enrichment batch complete")
	r.writePlain("  Processed: %d (%d enriched, %d skipped, %d failed)\n",
		result.Processed, result.Enriched, result.Skipped, result.Errors)
	if result.Status == tasks.StatusCompleted {
		r.writePlain("  All releases enriched, stats refreshed.\n")
	} else {
		r.writePlain("  Remaining: %d (run 'crates enrich' again to continue)\n", result.Remaining)
	}
}
