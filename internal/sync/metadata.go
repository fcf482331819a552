package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/s3rsync/s3rsync/internal/blob"
)

// MetadataFileName is the fixed suffix under the sync prefix where the
// metadata object lives. One object per (bucket, prefix) pair.
const MetadataFileName = ".s3rsync.meta.json"

// MetadataEntry records the modification time last observed and reconciled
// for a path, and when that happened. A path that has never been uploaded or
// downloaded has no entry.
type MetadataEntry struct {
	Mtime    time.Time `json:"mtime"`
	SyncedAt time.Time `json:"synced_at"`
}

// MetadataSet maps relative paths to their last-known sync state.
type MetadataSet map[string]*MetadataEntry

// Commit applies the metadata update for a successfully executed decision.
// Uploads rewrite the entry with the local mtime; downloads leave the entry
// untouched since the remote is authoritative for that mtime.
func (m MetadataSet) Commit(d *Decision, now time.Time) {
	if d.Action != ActionUpload {
		return
	}
	m[d.RelPath] = &MetadataEntry{
		Mtime:    d.Mtime,
		SyncedAt: now,
	}
}

// MetadataStore persists a MetadataSet as a single serialized object in the
// blob store. Save is a plain overwrite; concurrent writers are excluded by
// the process lock, not by the store itself.
type MetadataStore struct {
	store blob.Store
	key   string
}

func NewMetadataStore(store blob.Store, prefix string) *MetadataStore {
	return &MetadataStore{
		store: store,
		key:   prefix + "/" + MetadataFileName,
	}
}

// Key returns the object key of the metadata object.
func (ms *MetadataStore) Key() string {
	return ms.key
}

// Load fetches and deserializes the metadata object. A missing object means
// a first-ever sync and yields an empty set. A malformed object also falls
// back to an empty set with a warning: a full re-reconcile risks redundant
// transfers but never data loss, since uploads and downloads are idempotent
// overwrites.
func (ms *MetadataStore) Load(ctx context.Context) (MetadataSet, error) {
	data, err := ms.store.GetObject(ctx, ms.key)
	if err != nil {
		if errors.Is(err, blob.ErrKeyNotFound) {
			return make(MetadataSet), nil
		}
		return nil, fmt.Errorf("load metadata %s: %w", ms.key, err)
	}

	var meta MetadataSet
	if err := json.Unmarshal(data, &meta); err != nil {
		slog.Warn("metadata object is malformed, starting from empty state", "key", ms.key, "error", err)
		return make(MetadataSet), nil
	}
	if meta == nil {
		meta = make(MetadataSet)
	}

	return meta, nil
}

// Save serializes and overwrites the metadata object.
func (ms *MetadataStore) Save(ctx context.Context, meta MetadataSet) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	if err := ms.store.PutObject(ctx, ms.key, data); err != nil {
		return fmt.Errorf("save metadata %s: %w", ms.key, err)
	}
	return nil
}
