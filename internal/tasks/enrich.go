package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/thirtythreehz/crates/internal/collection"
	"github.com/thirtythreehz/crates/internal/discogs"
	"github.com/thirtythreehz/crates/internal/shared"
	"github.com/thirtythreehz/crates/internal/store"
)

// Enrichment run statuses persisted in the progress record.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
)

// EnrichProgress is the resumable state of an enrichment run, persisted so
// an interrupted run picks up its counters instead of starting over. The
// work list itself is always recomputed from the snapshot, never stored.
type EnrichProgress struct {
	OwnerID     string    `json:"owner_id"`
	RunID       string    `json:"run_id"`
	Status      string    `json:"status"`
	Total       int       `json:"total"`
	Processed   int       `json:"processed"`
	Enriched    int       `json:"enriched"`
	Skipped     int       `json:"skipped"`
	Errors      int       `json:"errors"`
	CurrentItem string    `json:"current_item,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EnrichResult summarizes one EnrichBatch call. Counters other than
// Processed are cumulative across the resumable run.
type EnrichResult struct {
	RunID     string            `json:"run_id"`
	OwnerID   string            `json:"owner_id"`
	Processed int               `json:"processed"`
	Enriched  int               `json:"enriched"`
	Skipped   int               `json:"skipped"`
	Errors    int               `json:"errors"`
	Remaining int               `json:"remaining"`
	Status    string            `json:"status"`
	Stats     *collection.Stats `json:"stats,omitempty"`
}

// EnrichmentBreakdown classifies a snapshot's releases by enrichment state.
type EnrichmentBreakdown struct {
	Total    int `json:"total"`
	Needed   int `json:"needed"`
	Enriched int `json:"enriched"`
	NoMaster int `json:"no_master"`
}

// EnrichmentNeeded reports how much enrichment work the owner's snapshot
// still holds.
func (e *Engine) EnrichmentNeeded(ctx context.Context, ownerID string) (*EnrichmentBreakdown, error) {
	if e.store == nil {
		return nil, fmt.Errorf("%w: store not initialized", shared.ErrStoreUnavailable)
	}

	var snapshot collection.Snapshot
	ok, err := e.store.Get(ctx, store.CollectionKey(ownerID), &snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: run sync first", shared.ErrSnapshotNotFound)
	}

	breakdown := &EnrichmentBreakdown{Total: len(snapshot.Releases)}
	for i := range snapshot.Releases {
		r := &snapshot.Releases[i]
		switch {
		case r.MasterID == 0:
			breakdown.NoMaster++
		case r.MasterEnriched:
			breakdown.Enriched++
		default:
			breakdown.Needed++
		}
	}
	return breakdown, nil
}

// EnrichBatch processes up to maxItems un-enriched releases from the owner's
// snapshot, copying year, genres, and styles down from each release's master.
//
// The run is resumable: counters live in a persisted progress record, the
// work list is recomputed from the snapshot on every call, and the mutated
// snapshot is checkpointed every few items. maxItems <= 0 means the whole
// work list. Item-level failures count and continue; they never abort the
// batch.
func (e *Engine) EnrichBatch(ctx context.Context, ownerID string, maxItems int, progress chan<- ProgressUpdate) (*EnrichResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog client not initialized", shared.ErrCatalogUnavailable)
	}
	if e.store == nil {
		return nil, fmt.Errorf("%w: store not initialized", shared.ErrStoreUnavailable)
	}
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id required", shared.ErrMissingArgument)
	}

	runID := shared.GenerateID()
	release, err := e.acquireLease(ctx, ownerID, runID, "enrich")
	if err != nil {
		return nil, err
	}
	defer release()

	var snapshot collection.Snapshot
	ok, err := e.store.Get(ctx, store.CollectionKey(ownerID), &snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: run sync first", shared.ErrSnapshotNotFound)
	}

	work := workList(&snapshot)
	if len(work) == 0 {
		// Nothing left: clear any stale progress so the next run starts fresh.
		if err := e.store.Delete(ctx, store.ProgressKey(ownerID)); err != nil {
			e.logger.Warn("failed to clear enrichment progress", "owner", ownerID, "error", err)
		}
		result := &EnrichResult{RunID: runID, OwnerID: ownerID, Status: StatusCompleted}
		e.sendProgress(progress, enrichDoneUpdate(result))
		return result, nil
	}

	record := e.loadProgress(ctx, ownerID, runID)
	record.Total = record.Enriched + record.Skipped + len(work)

	limit := maxItems
	if limit <= 0 || limit > len(work) {
		limit = len(work)
	}

	e.logger.Info("starting enrichment batch",
		"owner", ownerID,
		"run", record.RunID,
		"work", len(work),
		"batch", limit,
	)

	processed := 0
	for _, idx := range work[:limit] {
		if err := e.itemPacer.Wait(ctx); err != nil {
			return nil, err
		}

		r := &snapshot.Releases[idx]
		step := processed + 1
		record.CurrentItem = fmt.Sprintf("%s - %s", r.Artist, r.Title)
		e.sendProgress(progress, enrichItemUpdate(step, limit, r))

		master, err := e.lookupMaster(ctx, r.MasterID)
		switch {
		case isNotFound(err):
			r.MasterEnriched = true
			record.Skipped++
			e.sendProgress(progress, enrichSkippedUpdate(step, limit, r))
		case err != nil:
			record.Errors++
			e.logger.Warn("master lookup failed", "master", r.MasterID, "release", r.Title, "error", err)
			e.sendProgress(progress, enrichFailedUpdate(step, limit, r, err))
		case master.Empty():
			r.MasterEnriched = true
			record.Skipped++
			e.sendProgress(progress, enrichSkippedUpdate(step, limit, r))
		default:
			if master.Year != 0 {
				r.OriginalYear = master.Year
			}
			r.MasterGenres = master.Genres
			r.MasterStyles = master.Styles
			r.MasterEnriched = true
			record.Enriched++
			e.sendProgress(progress, enrichedUpdate(step, limit, r, master.Year))
		}

		record.Processed++
		processed++

		if processed%e.saveInterval == 0 && processed < limit {
			e.checkpoint(ctx, ownerID, &snapshot, record)
			e.sendProgress(progress, checkpointUpdate(record.Processed, record.Total))
		}
	}

	remaining := len(workList(&snapshot))

	record.CurrentItem = ""
	record.Status = StatusRunning
	if remaining == 0 {
		record.Status = StatusCompleted
		snapshot.Stats = collection.ComputeStats(snapshot.Releases)
	}
	record.UpdatedAt = time.Now()

	if err := e.store.Put(ctx, store.CollectionKey(ownerID), snapshot, e.snapshotTTL); err != nil {
		return nil, fmt.Errorf("failed to persist snapshot: %w", err)
	}
	if err := e.store.Put(ctx, store.ProgressKey(ownerID), record, e.progressTTL); err != nil {
		return nil, fmt.Errorf("failed to persist progress: %w", err)
	}

	result := &EnrichResult{
		RunID:     record.RunID,
		OwnerID:   ownerID,
		Processed: processed,
		Enriched:  record.Enriched,
		Skipped:   record.Skipped,
		Errors:    record.Errors,
		Remaining: remaining,
		Status:    record.Status,
	}
	if record.Status == StatusCompleted {
		result.Stats = &snapshot.Stats
	}

	e.logger.Info("enrichment batch finished",
		"owner", ownerID,
		"processed", processed,
		"enriched", record.Enriched,
		"skipped", record.Skipped,
		"errors", record.Errors,
		"remaining", remaining,
		"status", record.Status,
	)
	e.sendProgress(progress, enrichDoneUpdate(result))
	return result, nil
}

// workList returns snapshot indices still needing enrichment, in snapshot
// order.
func workList(snapshot *collection.Snapshot) []int {
	var work []int
	for i := range snapshot.Releases {
		if snapshot.Releases[i].NeedsEnrichment() {
			work = append(work, i)
		}
	}
	return work
}

// loadProgress resumes a running record or starts a fresh one.
func (e *Engine) loadProgress(ctx context.Context, ownerID, runID string) *EnrichProgress {
	var record EnrichProgress
	ok, err := e.store.Get(ctx, store.ProgressKey(ownerID), &record)
	if err != nil {
		e.logger.Warn("failed to load enrichment progress", "owner", ownerID, "error", err)
	}
	if ok && record.Status == StatusRunning {
		e.logger.Info("resuming enrichment run", "owner", ownerID, "run", record.RunID, "processed", record.Processed)
		return &record
	}

	now := time.Now()
	return &EnrichProgress{
		OwnerID:   ownerID,
		RunID:     runID,
		Status:    StatusRunning,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// lookupMaster serves a master from the store cache, falling back to the
// live catalog and caching the answer.
func (e *Engine) lookupMaster(ctx context.Context, id int64) (*discogs.Master, error) {
	var cached discogs.Master
	ok, err := e.store.Get(ctx, store.MasterKey(id), &cached)
	if err != nil {
		e.logger.Warn("master cache read failed", "master", id, "error", err)
	} else if ok {
		return &cached, nil
	}

	master, err := e.catalog.Master(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := e.store.Put(ctx, store.MasterKey(id), master, e.masterTTL); err != nil {
		e.logger.Warn("failed to cache master", "master", id, "error", err)
	}
	return master, nil
}

// checkpoint persists the mutated snapshot and progress mid-batch. Failures
// are logged, not fatal: the final persist or the next checkpoint covers the
// same data.
func (e *Engine) checkpoint(ctx context.Context, ownerID string, snapshot *collection.Snapshot, record *EnrichProgress) {
	record.UpdatedAt = time.Now()

	if err := e.store.Put(ctx, store.CollectionKey(ownerID), snapshot, e.snapshotTTL); err != nil {
		e.logger.Warn("snapshot checkpoint failed", "owner", ownerID, "error", err)
		return
	}
	if err := e.store.Put(ctx, store.ProgressKey(ownerID), record, e.progressTTL); err != nil {
		e.logger.Warn("progress checkpoint failed", "owner", ownerID, "error", err)
	}
}

// isNotFound reports whether err is the catalog's definitive 404 answer, the
// one master failure that should not be retried on later runs.
func isNotFound(err error) bool {
	var apiErr *discogs.APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
