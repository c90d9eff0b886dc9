package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/thirtythreehz/crates/internal/collection"
	"github.com/thirtythreehz/crates/internal/shared"
	"github.com/thirtythreehz/crates/internal/store"
	"github.com/thirtythreehz/crates/internal/tasks"
	"github.com/urfave/cli/v3"
)

// loadSnapshot reads the owner's stored snapshot, opening the store first.
func (r *Runner) loadSnapshot(ctx context.Context, owner string) (*collection.Snapshot, error) {
	st, err := r.ensureStore(ctx)
	if err != nil {
		return nil, err
	}

	var snapshot collection.Snapshot
	ok, err := st.Get(ctx, store.CollectionKey(owner), &snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: run 'crates sync' first", shared.ErrSnapshotNotFound)
	}
	return &snapshot, nil
}

// CollectionStats prints the stored snapshot's aggregate statistics.
func (r *Runner) CollectionStats(ctx context.Context, cmd *cli.Command) error {
	owner, err := r.owner(cmd.String("username"))
	if err != nil {
		return err
	}

	snapshot, err := r.loadSnapshot(ctx, owner)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(snapshot.Stats, true)
	}

	stats := snapshot.Stats
	r.writePlainHeader(fmt.Sprintf("Collection: %s", snapshot.Username))
	r.writePlain("Releases: %d\n", snapshot.ReleaseCount)
	r.writePlain("Artists: %d\n", stats.UniqueArtists)
	if stats.EarliestYear != 0 {
		r.writePlain("Years: %d to %d\n", stats.EarliestYear, stats.LatestYear)
	}
	r.writePlain("Synced: %s\n", snapshot.SyncedAt.Format("2006-01-02 15:04"))

	if rows := topCounts(stats.GenreCounts, 5); len(rows) > 0 {
		r.writePlainln("Top genres:")
		for _, row := range rows {
			r.writePlain("  %-16s %d\n", row.name, row.count)
		}
	}
	if rows := topCounts(stats.FormatCounts, 5); len(rows) > 0 {
		r.writePlainln("Formats:")
		for _, row := range rows {
			r.writePlain("  %-16s %d\n", row.name, row.count)
		}
	}
	if rows := topCounts(stats.ArtistCounts, 5); len(rows) > 0 {
		r.writePlainln("Most collected artists:")
		for _, row := range rows {
			r.writePlain("  %-16s %d\n", row.name, row.count)
		}
	}

	return nil
}

// CollectionList prints releases from the stored snapshot, newest additions
// first (snapshot order).
func (r *Runner) CollectionList(ctx context.Context, cmd *cli.Command) error {
	owner, err := r.owner(cmd.String("username"))
	if err != nil {
		return err
	}
	limit := int(cmd.Int("limit"))

	snapshot, err := r.loadSnapshot(ctx, owner)
	if err != nil {
		return err
	}

	releases := snapshot.Releases
	if limit > 0 && limit < len(releases) {
		releases = releases[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(releases, true)
	}

	for i := range releases {
		rel := &releases[i]
		line := fmt.Sprintf("%d. %s - %s", i+1, rel.Artist, rel.Title)
		if year := rel.KnownYear(); year != 0 {
			line += fmt.Sprintf(" (%d)", year)
		}
		if rel.PrimaryFormat != "" {
			line += fmt.Sprintf(" [%s]", rel.PrimaryFormat)
		}
		r.writePlain("%s\n", line)
	}
	r.writePlain("\n%d of %d releases\n", len(releases), snapshot.ReleaseCount)

	return nil
}

// CollectionExport writes the stored snapshot to local files. Purely offline;
// the live catalog is never touched.
func (r *Runner) CollectionExport(ctx context.Context, cmd *cli.Command) error {
	owner, err := r.owner(cmd.String("username"))
	if err != nil {
		return err
	}

	engine, err := r.offlineEngine(ctx)
	if err != nil {
		return err
	}

	opts := tasks.ExportOpts{
		Format:    cmd.String("format"),
		OutputDir: cmd.String("output"),
	}

	progress, done := r.streamProgress(!cmd.Bool("json"))
	result, err := engine.ExportSnapshot(ctx, owner, opts, progress)
	close(progress)
	<-done
	if err != nil {
		if result == nil {
			return err
		}
		// Files landed; only the manifest write failed.
		r.logger.Warn("export manifest not written", "error", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	r.writePlainln("✓ Export complete")
	r.writePlain("  %d releases as %s\n", result.ReleaseCount, result.Format)
	for _, f := range result.Files {
		r.writePlain("  → %s\n", f)
	}
	if result.ManifestPath != "" {
		r.writePlain("  → %s\n", result.ManifestPath)
	}

	return nil
}

type countRow struct {
	name  string
	count int
}

// topCounts returns the n largest entries of a count map, ties broken by
// name, so the output is stable run to run.
func topCounts(counts map[string]int, n int) []countRow {
	rows := make([]countRow, 0, len(counts))
	for name, count := range counts {
		rows = append(rows, countRow{name: name, count: count})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].name < rows[j].name
	})

	if n > 0 && n < len(rows) {
		rows = rows[:n]
	}
	return rows
}
