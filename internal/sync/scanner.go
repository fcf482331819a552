package sync

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/s3rsync/s3rsync/internal/utils"
)

// LocalScanner walks the sync root and snapshots the modification time of
// every admitted regular file, following symlinks that point to regular
// files. The snapshot is taken once per pass, before any transfer runs, so
// downloads cannot be mistaken for pre-existing files.
type LocalScanner struct {
	rootDir string
	filter  *ExtFilter
}

func NewLocalScanner(rootDir string, filter *ExtFilter) *LocalScanner {
	return &LocalScanner{
		rootDir: rootDir,
		filter:  filter,
	}
}

// Scan returns a mapping of relative path to modification time for every
// admitted file under the root. Any traversal error aborts the scan; a
// partial snapshot is never returned as success.
func (s *LocalScanner) Scan() (map[string]time.Time, error) {
	snapshot := make(map[string]time.Time)

	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk error: %w", walkErr)
		}

		var info fs.FileInfo
		switch {
		case d.Type().IsRegular():
			var err error
			if info, err = d.Info(); err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
		case d.Type()&fs.ModeSymlink != 0:
			// a symlink to a regular file syncs as the file it points to;
			// symlinked directories are not descended into
			var err error
			if info, err = os.Stat(path); err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			if !info.Mode().IsRegular() {
				return nil
			}
		default:
			return nil
		}

		if !s.filter.Admits(d.Name()) {
			return nil
		}

		relPath, err := filepath.Rel(s.rootDir, path)
		if err != nil {
			return fmt.Errorf("walk rel path: %w", err)
		}

		snapshot[utils.NormPath(relPath)] = info.ModTime()
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("local scan failed: %w", err)
	}

	return snapshot, nil
}
