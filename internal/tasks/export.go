package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/thirtythreehz/crates/internal/collection"
	"github.com/thirtythreehz/crates/internal/formatter"
	"github.com/thirtythreehz/crates/internal/shared"
	"github.com/thirtythreehz/crates/internal/store"
)

// ExportOpts contains configuration for snapshot exports.
type ExportOpts struct {
	Format    string // Export format: json, csv, markdown, txt
	OutputDir string // Base output directory (default: collection_export_{epoch})
}

// ExportResult summarizes one snapshot export, and doubles as the manifest
// payload written alongside the exported files.
type ExportResult struct {
	OwnerID         string    `json:"owner_id"`
	Username        string    `json:"username"`
	ReleaseCount    int       `json:"release_count"`
	Format          string    `json:"format"`
	Files           []string  `json:"files"`
	OutputDirectory string    `json:"output_directory"`
	ManifestPath    string    `json:"manifest_path,omitempty"`
	ExportedAt      time.Time `json:"exported_at"`
}

// ExportSnapshot writes the owner's stored snapshot to local files in the
// requested format, plus a manifest summarizing the run.
//
// Export reads only the store, never the live catalog, so it works offline
// and costs no quota. A sync must have run first.
func (e *Engine) ExportSnapshot(ctx context.Context, ownerID string, opts ExportOpts, progress chan<- ProgressUpdate) (*ExportResult, error) {
	if e.store == nil {
		return nil, fmt.Errorf("%w: store not initialized", shared.ErrStoreUnavailable)
	}
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id required", shared.ErrMissingArgument)
	}

	var snapshot collection.Snapshot
	ok, err := e.store.Get(ctx, store.CollectionKey(ownerID), &snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: run sync first", shared.ErrSnapshotNotFound)
	}

	if opts.Format == "" {
		opts.Format = "json"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("collection_export_%d", time.Now().Unix())
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &ExportResult{
		OwnerID:         ownerID,
		Username:        snapshot.Username,
		ReleaseCount:    len(snapshot.Releases),
		Format:          opts.Format,
		OutputDirectory: opts.OutputDir,
		ExportedAt:      time.Now(),
	}

	e.sendProgress(progress, exportUpdate(len(snapshot.Releases), opts.Format))

	base := snapshot.Username
	if base == "" {
		base = ownerID
	}

	switch opts.Format {
	case "csv":
		csvRes, err := formatter.WriteCSVExport(&snapshot, filepath.Join(opts.OutputDir, base))
		if err != nil {
			return nil, fmt.Errorf("CSV export failed: %w", err)
		}
		result.Files = []string{csvRes.ReleasesFile, csvRes.StatsFile}

	case "markdown":
		path, err := formatter.WriteMarkdownExport(&snapshot, filepath.Join(opts.OutputDir, base+".md"))
		if err != nil {
			return nil, fmt.Errorf("markdown export failed: %w", err)
		}
		result.Files = []string{path}

	case "txt":
		path, err := formatter.WriteTextExport(&snapshot, filepath.Join(opts.OutputDir, base+"_releases.txt"))
		if err != nil {
			return nil, fmt.Errorf("text export failed: %w", err)
		}
		result.Files = []string{path}

	case "json":
		fallthrough
	default:
		jsonPath := filepath.Join(opts.OutputDir, base+".json")
		data, err := shared.MarshalJSON(snapshot, true)
		if err != nil {
			return nil, fmt.Errorf("JSON marshal failed: %w", err)
		}
		if err := os.WriteFile(jsonPath, data, 0644); err != nil {
			return nil, fmt.Errorf("JSON write failed: %w", err)
		}
		result.Files = []string{jsonPath}
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteExportManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	e.logger.Info("collection exported",
		"owner", ownerID,
		"format", opts.Format,
		"releases", result.ReleaseCount,
		"dir", opts.OutputDir,
	)
	e.sendProgress(progress, exportDoneUpdate(result))
	return result, nil
}
