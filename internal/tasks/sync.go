package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/thirtythreehz/crates/internal/collection"
	"github.com/thirtythreehz/crates/internal/shared"
	"github.com/thirtythreehz/crates/internal/store"
)

// SyncResult contains all data from a full collection sync.
type SyncResult struct {
	RunID        string        `json:"run_id"`
	OwnerID      string        `json:"owner_id"`
	Username     string        `json:"username"`
	ReleaseCount int           `json:"release_count"`
	Added        int           `json:"added"`
	Deleted      int           `json:"deleted"`
	Carried      int           `json:"carried"`
	Pages        int           `json:"pages"`
	Duration     time.Duration `json:"duration"`
}

// SyncCollection refreshes the owner's snapshot from the live catalog.
//
// The fetch is all-or-nothing: any page failure aborts the sync and the
// previous snapshot stays untouched. Enrichment already attached to releases
// that survive the refresh is carried forward by release id, so a sync never
// undoes enrichment work.
func (e *Engine) SyncCollection(ctx context.Context, ownerID, username string, progress chan<- ProgressUpdate) (*SyncResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog client not initialized", shared.ErrCatalogUnavailable)
	}
	if e.store == nil {
		return nil, fmt.Errorf("%w: store not initialized", shared.ErrStoreUnavailable)
	}
	if ownerID == "" || username == "" {
		return nil, fmt.Errorf("%w: owner id and username required", shared.ErrMissingArgument)
	}

	result := &SyncResult{
		RunID:    shared.GenerateID(),
		OwnerID:  ownerID,
		Username: username,
	}
	started := time.Now()

	release, err := e.acquireLease(ctx, ownerID, result.RunID, "sync")
	if err != nil {
		return nil, err
	}
	defer release()

	var prior collection.Snapshot
	hadPrior, err := e.store.Get(ctx, store.CollectionKey(ownerID), &prior)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous snapshot: %w", err)
	}

	e.logger.Info("starting collection sync", "owner", ownerID, "username", username, "run", result.RunID)

	releases, pages, err := e.fetchAllReleases(ctx, username, func(page, totalPages int) {
		e.sendProgress(progress, fetchPageUpdate(page, totalPages))
	})
	if err != nil {
		return nil, fmt.Errorf("sync aborted: %w", err)
	}
	result.Pages = pages
	result.ReleaseCount = len(releases)

	e.sendProgress(progress, mergeUpdate(len(releases)))
	if hadPrior {
		result.Carried = carryEnrichment(releases, &prior)
	}
	result.Added, result.Deleted = diffReleaseIDs(releases, hadPrior, &prior)

	snapshot := collection.Snapshot{
		OwnerID:      ownerID,
		Username:     username,
		SyncedAt:     time.Now(),
		ReleaseCount: len(releases),
		Releases:     releases,
	}

	e.sendProgress(progress, statsUpdate(len(releases)))
	snapshot.Stats = collection.ComputeStats(releases)

	e.sendProgress(progress, persistUpdate(len(releases)))
	if err := e.store.Put(ctx, store.CollectionKey(ownerID), snapshot, e.snapshotTTL); err != nil {
		return nil, fmt.Errorf("failed to persist snapshot: %w", err)
	}

	result.Duration = time.Since(started)
	e.logger.Info("collection sync finished",
		"owner", ownerID,
		"releases", result.ReleaseCount,
		"added", result.Added,
		"deleted", result.Deleted,
		"pages", result.Pages,
		"took", result.Duration,
	)
	e.sendProgress(progress, syncDoneUpdate(result))
	return result, nil
}

// fetchAllReleases walks every page of the owner's everything folder, newest
// additions first. onPage runs before each page fetch. The pacer spaces page
// requests without a trailing wait after the last one.
func (e *Engine) fetchAllReleases(ctx context.Context, username string, onPage func(page, totalPages int)) ([]collection.Release, int, error) {
	var releases []collection.Release

	page, totalPages := 1, 1
	for page <= totalPages {
		if err := e.pagePacer.Wait(ctx); err != nil {
			return nil, 0, err
		}
		if onPage != nil {
			onPage(page, totalPages)
		}

		resp, err := e.catalog.Collection(ctx, username, page, e.pageSize)
		if err != nil {
			return nil, 0, fmt.Errorf("page %d: %w", page, err)
		}

		if resp.Pagination.Pages > 0 {
			totalPages = resp.Pagination.Pages
		}
		for _, item := range resp.Releases {
			releases = append(releases, item.Normalize())
		}
		page++
	}

	return releases, totalPages, nil
}

// carryEnrichment copies enrichment fields from the prior snapshot onto the
// freshly fetched releases, matched by release id, and reports how many
// releases kept their enrichment.
func carryEnrichment(releases []collection.Release, prior *collection.Snapshot) int {
	before := prior.ByID()

	carried := 0
	for i := range releases {
		old, ok := before[releases[i].ID]
		if !ok || !old.MasterEnriched {
			continue
		}
		releases[i].OriginalYear = old.OriginalYear
		releases[i].MasterGenres = old.MasterGenres
		releases[i].MasterStyles = old.MasterStyles
		releases[i].MasterEnriched = true
		carried++
	}
	return carried
}

// diffReleaseIDs counts releases new to this snapshot and releases that left
// the collection since the prior one.
func diffReleaseIDs(releases []collection.Release, hadPrior bool, prior *collection.Snapshot) (added, deleted int) {
	if !hadPrior {
		return len(releases), 0
	}

	current := make(map[int64]struct{}, len(releases))
	for i := range releases {
		current[releases[i].ID] = struct{}{}
	}

	before := make(map[int64]struct{}, len(prior.Releases))
	for i := range prior.Releases {
		before[prior.Releases[i].ID] = struct{}{}
	}

	for id := range current {
		if _, ok := before[id]; !ok {
			added++
		}
	}
	for id := range before {
		if _, ok := current[id]; !ok {
			deleted++
		}
	}
	return added, deleted
}
