package sync

import (
	"sort"
	"time"
)

type Action string

const (
	ActionUpload   Action = "upload"
	ActionDownload Action = "download"
	ActionSkip     Action = "skip"
)

// Decision is one transfer verdict for one path. Decisions are transient:
// produced per reconciliation pass, consumed by the executor, never persisted.
type Decision struct {
	RelPath string
	Action  Action
	Reason  string
	// Mtime carries the local modification time for uploads so the
	// metadata entry can be committed after the transfer succeeds.
	Mtime time.Time
}

// Reconcile turns the local snapshot and the persisted metadata into an
// ordered list of decisions, exactly one per path in the union of both sets.
// It is pure with respect to the blob store: it only decides, the executor
// performs the I/O. Local paths are evaluated in sorted order first, then
// metadata-only paths are appended, also sorted.
func Reconcile(local map[string]time.Time, meta MetadataSet) []*Decision {
	decisions := make([]*Decision, 0, len(local)+len(meta))

	localPaths := make([]string, 0, len(local))
	for relPath := range local {
		localPaths = append(localPaths, relPath)
	}
	sort.Strings(localPaths)

	for _, relPath := range localPaths {
		mtime := local[relPath]
		entry, known := meta[relPath]

		switch {
		case !known:
			decisions = append(decisions, &Decision{
				RelPath: relPath,
				Action:  ActionUpload,
				Reason:  "new local file",
				Mtime:   mtime,
			})
		case mtime.After(entry.Mtime):
			decisions = append(decisions, &Decision{
				RelPath: relPath,
				Action:  ActionUpload,
				Reason:  "local newer",
				Mtime:   mtime,
			})
		case mtime.Before(entry.Mtime):
			decisions = append(decisions, &Decision{
				RelPath: relPath,
				Action:  ActionDownload,
				Reason:  "remote newer",
			})
		default:
			decisions = append(decisions, &Decision{
				RelPath: relPath,
				Action:  ActionSkip,
				Reason:  "unchanged",
			})
		}
	}

	// Paths known to metadata but absent locally. "Never downloaded yet" and
	// "locally deleted" are indistinguishable here, so the file is always
	// re-materialized; nothing is ever deleted on either side.
	remoteOnly := make([]string, 0)
	for relPath := range meta {
		if _, ok := local[relPath]; !ok {
			remoteOnly = append(remoteOnly, relPath)
		}
	}
	sort.Strings(remoteOnly)

	for _, relPath := range remoteOnly {
		decisions = append(decisions, &Decision{
			RelPath: relPath,
			Action:  ActionDownload,
			Reason:  "missing locally",
		})
	}

	return decisions
}
