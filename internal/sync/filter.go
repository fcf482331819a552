package sync

import (
	"path/filepath"
	"strings"
)

// ExtFilter decides which files take part in a sync pass based on their
// extension. In whitelist mode only the listed extensions are admitted; in
// blacklist mode everything except the listed extensions is admitted. An
// empty filter admits all files. Matching is case-insensitive.
type ExtFilter struct {
	exts      map[string]struct{}
	blacklist bool
}

func NewExtFilter(exts []string, blacklist bool) *ExtFilter {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return &ExtFilter{exts: set, blacklist: blacklist}
}

// Admits reports whether a file with the given name passes the filter.
func (f *ExtFilter) Admits(filename string) bool {
	if f == nil || len(f.exts) == 0 {
		return true
	}

	ext := strings.ToLower(filepath.Ext(filename))
	_, listed := f.exts[ext]
	if f.blacklist {
		return !listed
	}
	return listed
}
