// Package walker enumerates the entries of a directory tree in the
// deterministic order the transfer protocol sends them.
package walker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
)

// Entry is one file or directory discovered under a walk root.
// Entries are immutable once produced.
type Entry struct {
	// Path is the entry's path on the local filesystem.
	Path string

	// RelPath is the slash-separated path relative to the walk root.
	// The root itself is ".".
	RelPath string

	// IsDir reports whether the entry is a directory.
	IsDir bool

	// Size is the file size in bytes; always zero for directories.
	Size uint64
}

// Walk enumerates root and everything beneath it. The root must be a
// directory and is always the first entry, with RelPath ".".
//
// The returned order is a protocol contract: directories sort before
// files, and within each kind entries sort by RelPath ascending,
// byte-wise. Sorting directories first guarantees a parent directory is
// always announced before any file inside it.
func Walk(root string) ([]Entry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat walk root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("walk root %s is not a directory", root)
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}

		entry := Entry{
			Path:    path,
			RelPath: filepath.ToSlash(rel),
			IsDir:   d.IsDir(),
		}
		if !d.IsDir() {
			fi, err := d.Info()
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			entry.Size = uint64(fi.Size())
		}

		logrus.WithFields(logrus.Fields{
			"function": "Walk",
			"rel_path": entry.RelPath,
			"is_dir":   entry.IsDir,
			"size":     entry.Size,
		}).Trace("Discovered entry")

		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].RelPath < entries[j].RelPath
	})

	return entries, nil
}

// TotalSize sums the sizes of the file entries. Directory entries
// contribute nothing. The figure is informational, used for capacity
// estimates and logging, not for protocol correctness.
func TotalSize(entries []Entry) uint64 {
	var total uint64
	for _, e := range entries {
		if !e.IsDir {
			total += e.Size
		}
	}
	return total
}
