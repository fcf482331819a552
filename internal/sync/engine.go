package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/s3rsync/s3rsync/internal/blob"
)

const defaultConcurrency = 4

var (
	// ErrSyncInProgress means another process holds the lock for this
	// bucket and prefix. The pass is aborted without any mutation.
	ErrSyncInProgress = errors.New("another sync is running for this bucket and prefix")
)

// Operation is the outcome category reported to the observer.
type Operation string

const (
	OpUpload   Operation = "upload"
	OpDownload Operation = "download"
	OpSkip     Operation = "skip"
	OpFail     Operation = "fail"
)

// Observer receives one callback per decision outcome. Used externally for
// progress and statistics; not required for correctness.
type Observer func(op Operation, relPath string)

// Options configures a SyncEngine.
type Options struct {
	RootDir string
	Prefix  string
	Filter  *ExtFilter
	// Concurrency bounds the transfer worker pool. Zero means the default.
	Concurrency int
	Observer    Observer
	// OnPlan, when set, receives the plan before any transfer starts.
	OnPlan func(*SyncPlan)
}

// SyncPlan is the pure output of the decision phase. Dry runs report it
// directly; real runs execute exactly this plan, so counts never diverge.
type SyncPlan struct {
	Decisions []*Decision
	Metadata  MetadataSet

	TotalScanned int
	ToUpload     int
	ToDownload   int
}

// SyncStats summarizes one pass. Producible even when some files failed.
type SyncStats struct {
	Uploaded   int
	Downloaded int
	Skipped    int
	Failed     int
}

type transferResult struct {
	decision *Decision
	err      error
}

// SyncEngine runs one reconciliation pass: acquire lock, load metadata, scan,
// decide, transfer, persist metadata, release lock.
type SyncEngine struct {
	rootDir     string
	prefix      string
	store       blob.Store
	meta        *MetadataStore
	lock        ProcessLock
	scanner     *LocalScanner
	observer    Observer
	onPlan      func(*SyncPlan)
	concurrency int
}

func NewSyncEngine(store blob.Store, lock ProcessLock, opts *Options) *SyncEngine {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	observer := opts.Observer
	if observer == nil {
		observer = func(Operation, string) {}
	}

	prefix := strings.TrimRight(opts.Prefix, "/")

	return &SyncEngine{
		rootDir:     opts.RootDir,
		prefix:      prefix,
		store:       store,
		meta:        NewMetadataStore(store, prefix),
		lock:        lock,
		scanner:     NewLocalScanner(opts.RootDir, opts.Filter),
		observer:    observer,
		onPlan:      opts.OnPlan,
		concurrency: concurrency,
	}
}

// Plan computes the decisions a sync pass would perform, with no side
// effects. It backs both dry runs and the decision phase of Run.
func (se *SyncEngine) Plan(ctx context.Context) (*SyncPlan, error) {
	meta, err := se.meta.Load(ctx)
	if err != nil {
		return nil, err
	}

	if len(meta) == 0 {
		se.warnUntrackedRemote(ctx)
	}

	local, err := se.scanner.Scan()
	if err != nil {
		return nil, err
	}

	plan := &SyncPlan{
		Decisions:    Reconcile(local, meta),
		Metadata:     meta,
		TotalScanned: len(local),
	}
	for _, d := range plan.Decisions {
		switch d.Action {
		case ActionUpload:
			plan.ToUpload++
		case ActionDownload:
			plan.ToDownload++
		}
	}

	return plan, nil
}

// Run performs a full sync pass. The lock covers the whole pass so the
// metadata read/modify/write is atomic with respect to other sync processes
// targeting the same bucket and prefix.
func (se *SyncEngine) Run(ctx context.Context) (*SyncStats, error) {
	acquired, err := se.lock.TryAcquire()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		return nil, ErrSyncInProgress
	}
	defer func() {
		if err := se.lock.Release(); err != nil {
			slog.Error("release lock", "error", err)
		}
	}()

	plan, err := se.Plan(ctx)
	if err != nil {
		return nil, err
	}

	if se.onPlan != nil {
		se.onPlan(plan)
	}

	stats := se.execute(ctx, plan)

	// Persist whatever was committed, even on a cancelled pass, so completed
	// transfers are not redone on the next run.
	if err := se.meta.Save(context.WithoutCancel(ctx), plan.Metadata); err != nil {
		return stats, err
	}

	return stats, ctx.Err()
}

// execute applies the plan against the blob store with a bounded worker
// pool. Workers report outcomes over a channel to this single goroutine,
// which is the sole mutator of the metadata set.
func (se *SyncEngine) execute(ctx context.Context, plan *SyncPlan) *SyncStats {
	stats := &SyncStats{}

	transfers := make([]*Decision, 0, plan.ToUpload+plan.ToDownload)
	for _, d := range plan.Decisions {
		if d.Action == ActionSkip {
			stats.Skipped++
			se.observer(OpSkip, d.RelPath)
			continue
		}
		transfers = append(transfers, d)
	}

	if len(transfers) == 0 {
		return stats
	}

	jobs := make(chan *Decision)
	results := make(chan transferResult, len(transfers))

	var wg sync.WaitGroup
	wg.Add(se.concurrency)
	for range se.concurrency {
		go func() {
			defer wg.Done()
			for d := range jobs {
				// cancellation stops new transfers from starting; one
				// already started runs to completion on a detached
				// context. Dropped jobs stay uncommitted and are
				// retried on the next pass.
				if ctx.Err() != nil {
					return
				}
				results <- transferResult{decision: d, err: se.transfer(context.WithoutCancel(ctx), d)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, d := range transfers {
			select {
			case <-ctx.Done():
				// stop issuing new transfers, let in-flight ones finish
				return
			case jobs <- d:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		d := res.decision
		if res.err != nil {
			stats.Failed++
			se.observer(OpFail, d.RelPath)
			slog.Error("sync", "op", d.Action, "path", d.RelPath, "error", res.err)
			continue
		}

		plan.Metadata.Commit(d, time.Now())
		switch d.Action {
		case ActionUpload:
			stats.Uploaded++
			se.observer(OpUpload, d.RelPath)
		case ActionDownload:
			stats.Downloaded++
			se.observer(OpDownload, d.RelPath)
		}
		slog.Info("sync", "op", d.Action, "path", d.RelPath, "reason", d.Reason)
	}

	return stats
}

// transfer applies a single decision. Failures are isolated to the file:
// they are converted to outcome values and never abort the batch.
func (se *SyncEngine) transfer(ctx context.Context, d *Decision) error {
	key := se.remoteKey(d.RelPath)
	localPath := filepath.Join(se.rootDir, filepath.FromSlash(d.RelPath))

	switch d.Action {
	case ActionUpload:
		return se.store.Upload(ctx, key, localPath)
	case ActionDownload:
		return se.store.Download(ctx, key, localPath)
	default:
		return fmt.Errorf("unexpected action %q for %s", d.Action, d.RelPath)
	}
}

func (se *SyncEngine) remoteKey(relPath string) string {
	return se.prefix + "/" + relPath
}

// warnUntrackedRemote flags a fresh metadata state against a non-empty
// remote prefix: every object there will look untracked to the engine.
func (se *SyncEngine) warnUntrackedRemote(ctx context.Context) {
	keys, err := se.store.List(ctx, se.prefix+"/")
	if err != nil {
		slog.Debug("list remote prefix", "error", err)
		return
	}

	untracked := 0
	for _, key := range keys {
		if key != se.meta.Key() {
			untracked++
		}
	}
	if untracked > 0 {
		slog.Warn("remote prefix has objects but no sync metadata; they will not be downloaded until tracked", "prefix", se.prefix, "objects", untracked)
	}
}
