// package tasks implements collection sync and enrichment against the catalog.
//
// The core abstraction is Engine, which orchestrates snapshot refreshes and
// master-release enrichment. Operations emit progress updates via channels
// for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/thirtythreehz/crates/internal/discogs"
	"github.com/thirtythreehz/crates/internal/shared"
	"github.com/thirtythreehz/crates/internal/store"
)

// Catalog defines the provider operations the engine consumes.
// This abstraction allows for easier testing and decoupling from concrete implementation.
type Catalog interface {
	Collection(ctx context.Context, username string, page, perPage int) (*discogs.CollectionPage, error)
	Master(ctx context.Context, id int64) (*discogs.Master, error)
}

// Engine runs sync and enrichment for one owner at a time. A short-TTL store
// lease serializes runs across processes; pacers keep the engine far below
// the provider's quota even when the governor would allow more.
type Engine struct {
	catalog Catalog
	store   store.Store
	logger  *log.Logger

	pageSize     int
	pagePacer    *rate.Limiter
	itemPacer    *rate.Limiter
	saveInterval int

	snapshotTTL time.Duration
	masterTTL   time.Duration
	progressTTL time.Duration
	leaseTTL    time.Duration
}

// EngineOpts configures an [Engine]. Zero values fall back to defaults.
type EngineOpts struct {
	PageSize     int           // collection page size (default 100)
	PageDelay    time.Duration // wait between collection pages (default 500ms)
	ItemDelay    time.Duration // wait between master lookups (default 1s)
	SaveInterval int           // items between enrichment checkpoints (default 10)
	SnapshotTTL  time.Duration // collection snapshot lifetime (default 72h)
	MasterTTL    time.Duration // cached master lifetime (default 30 days)
	ProgressTTL  time.Duration // enrichment progress lifetime (default 24h)
	LeaseTTL     time.Duration // owner lease lifetime (default 10m)
	Logger       *log.Logger
}

// NewEngine creates an Engine backed by the given catalog client and store.
func NewEngine(catalog Catalog, st store.Store, opts EngineOpts) *Engine {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.PageDelay <= 0 {
		opts.PageDelay = 500 * time.Millisecond
	}
	if opts.ItemDelay <= 0 {
		opts.ItemDelay = time.Second
	}
	if opts.SaveInterval <= 0 {
		opts.SaveInterval = 10
	}
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = 72 * time.Hour
	}
	if opts.MasterTTL <= 0 {
		opts.MasterTTL = 30 * 24 * time.Hour
	}
	if opts.ProgressTTL <= 0 {
		opts.ProgressTTL = 24 * time.Hour
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 10 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Engine{
		catalog:      catalog,
		store:        st,
		logger:       opts.Logger,
		pageSize:     opts.PageSize,
		pagePacer:    rate.NewLimiter(rate.Every(opts.PageDelay), 1),
		itemPacer:    rate.NewLimiter(rate.Every(opts.ItemDelay), 1),
		saveInterval: opts.SaveInterval,
		snapshotTTL:  opts.SnapshotTTL,
		masterTTL:    opts.MasterTTL,
		progressTTL:  opts.ProgressTTL,
		leaseTTL:     opts.LeaseTTL,
	}
}

// leaseRecord is the payload stored under the owner lease key, enough to see
// who holds a stuck lease.
type leaseRecord struct {
	RunID     string    `json:"run_id"`
	Op        string    `json:"op"`
	StartedAt time.Time `json:"started_at"`
}

// acquireLease claims the per-owner lease, returning a release func. The TTL
// frees the owner even if the process dies mid-run.
func (e *Engine) acquireLease(ctx context.Context, ownerID, runID, op string) (func(), error) {
	record := leaseRecord{RunID: runID, Op: op, StartedAt: time.Now()}

	won, err := e.store.PutIfAbsent(ctx, store.SyncLeaseKey(ownerID), record, e.leaseTTL)
	if err != nil {
		return nil, err
	}
	if !won {
		var holder leaseRecord
		if ok, _ := e.store.Get(ctx, store.SyncLeaseKey(ownerID), &holder); ok {
			e.logger.Debug("owner lease held", "owner", ownerID, "held_by", holder.RunID, "op", holder.Op)
		}
		return nil, shared.ErrSyncInProgress
	}

	release := func() {
		if err := e.store.Delete(context.WithoutCancel(ctx), store.SyncLeaseKey(ownerID)); err != nil {
			e.logger.Warn("failed to release owner lease", "owner", ownerID, "error", err)
		}
	}
	return release, nil
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}
