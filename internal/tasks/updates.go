package tasks

import (
	"fmt"

	"github.com/thirtythreehz/crates/internal/collection"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPage Phase = iota
	Merge
	Stats
	Persist
	EnrichItem
	Checkpoint
	Export
	Done
)

func (p Phase) String() string {
	switch p {
	case FetchPage:
		return "fetch_page"
	case Merge:
		return "merge"
	case Stats:
		return "stats"
	case Persist:
		return "persist"
	case EnrichItem:
		return "enrich_item"
	case Checkpoint:
		return "checkpoint"
	case Export:
		return "export"
	case Done:
		return "done"
	default:
		return ""
	}
}

func fetchPageUpdate(page, totalPages int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPage,
		Step:    page,
		Total:   totalPages,
		Message: fmt.Sprintf("Fetching collection page %d/%d...", page, totalPages),
	}
}

func mergeUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Merge,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Merging %d releases with previous snapshot...", total),
	}
}

func statsUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Stats,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Computing stats for %d releases...", total),
	}
}

func persistUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Persist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Saving snapshot (%d releases)...", total),
	}
}

func syncDoneUpdate(result *SyncResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Synced %d releases (%d added, %d removed)", result.ReleaseCount, result.Added, result.Deleted),
		Data:    result,
	}
}

func enrichItemUpdate(step, total int, r *collection.Release) ProgressUpdate {
	return ProgressUpdate{
		Phase:   EnrichItem,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, r.Artist, r.Title),
	}
}

func enrichedUpdate(step, total int, r *collection.Release, year int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   EnrichItem,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d)", step, total, r.Title, year),
	}
}

func enrichSkippedUpdate(step, total int, r *collection.Release) ProgressUpdate {
	return ProgressUpdate{
		Phase:   EnrichItem,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ~ %s (no master data)", step, total, r.Title),
	}
}

func enrichFailedUpdate(step, total int, r *collection.Release, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   EnrichItem,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, r.Title, err),
	}
}

func exportUpdate(total int, format string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Export,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Exporting %d releases as %s...", total, format),
	}
}

func exportDoneUpdate(result *ExportResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Exported %d releases to %s", result.ReleaseCount, result.OutputDirectory),
		Data:    result,
	}
}

func checkpointUpdate(done, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Checkpoint,
		Step:    done,
		Total:   total,
		Message: fmt.Sprintf("Checkpoint saved (%d/%d processed)", done, total),
	}
}

func enrichDoneUpdate(result *EnrichResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Enriched %d, skipped %d, failed %d (%d remaining)", result.Enriched, result.Skipped, result.Errors, result.Remaining),
		Data:    result,
	}
}
