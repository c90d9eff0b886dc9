package main

import (
	"context"
	"fmt"
	"time"

	"github.com/thirtythreehz/crates/internal/collection"
	"github.com/thirtythreehz/crates/internal/discogs"
	"github.com/thirtythreehz/crates/internal/store"
	"github.com/thirtythreehz/crates/internal/tasks"
	"github.com/urfave/cli/v3"
)

// statusReport is the JSON shape of `crates status`.
type statusReport struct {
	Owner         string                     `json:"owner"`
	Synced        bool                       `json:"synced"`
	SyncedAt      *time.Time                 `json:"synced_at,omitempty"`
	Releases      int                        `json:"releases"`
	Enrichment    *tasks.EnrichmentBreakdown `json:"enrichment,omitempty"`
	Progress      *tasks.EnrichProgress      `json:"progress,omitempty"`
	Authenticated bool                       `json:"authenticated"`
	Identity      string                     `json:"identity,omitempty"`
	RateLimit     *discogs.RateLimitState    `json:"rate_limit,omitempty"`
}

// Status reports where the owner's collection stands: snapshot freshness,
// enrichment breakdown, any resumable progress record, and the last observed
// quota window. The identity probe is the only network call and its failure
// renders as "not authenticated" rather than an error.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	owner, err := r.owner(cmd.String("username"))
	if err != nil {
		return err
	}

	st, err := r.ensureStore(ctx)
	if err != nil {
		return err
	}

	report := statusReport{Owner: owner}

	var snapshot collection.Snapshot
	ok, err := st.Get(ctx, store.CollectionKey(owner), &snapshot)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	if ok {
		report.Synced = true
		report.SyncedAt = &snapshot.SyncedAt
		report.Releases = snapshot.ReleaseCount

		engine, err := r.offlineEngine(ctx)
		if err != nil {
			return err
		}
		breakdown, err := engine.EnrichmentNeeded(ctx, owner)
		if err != nil {
			return err
		}
		report.Enrichment = breakdown
	}

	var record tasks.EnrichProgress
	if ok, _ := st.Get(ctx, store.ProgressKey(owner), &record); ok {
		report.Progress = &record
	}

	if client, err := r.ensureClient(); err == nil {
		if identity, err := client.Identity(ctx); err == nil {
			report.Authenticated = true
			report.Identity = identity.Username
			if state, ok := client.RateLimit(); ok {
				report.RateLimit = &state
			}
		} else {
			r.logger.Debug("identity probe failed", "error", err)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	r.writePlainHeader(fmt.Sprintf("crates status: %s", owner))

	if report.Synced {
		r.writePlain("✓ Snapshot: %d releases, synced %s\n", report.Releases, report.SyncedAt.Format("2006-01-02 15:04"))
		b := report.Enrichment
		r.writePlain("Enrichment: %d enriched, %d pending, %d without master\n", b.Enriched, b.Needed, b.NoMaster)
	} else {
		r.writePlain("✗ No snapshot, run 'crates sync' first\n")
	}

	if p := report.Progress; p != nil {
		r.writePlain("Last enrichment run: %s (%d/%d processed, %d errors)\n", p.Status, p.Processed, p.Total, p.Errors)
	}

	if report.Authenticated {
		r.writePlain("✓ Authenticated as %s\n", report.Identity)
		if report.RateLimit != nil {
			r.writePlain("Rate limit: %d/%d remaining\n", report.RateLimit.Remaining, report.RateLimit.Limit)
		}
	} else {
		r.writePlain("✗ Not authenticated\n")
	}

	return nil
}
