// Package diskspace reports filesystem free space and renders byte
// counts for humans. It backs the admission policy's disk-space check.
package diskspace

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Available returns the free space in bytes on the volume holding path.
// When path does not exist yet, the nearest existing ancestor directory
// is consulted instead, so the check works for destinations that are
// about to be created.
func Available(path string) (uint64, error) {
	probe := path
	for {
		if _, err := os.Stat(probe); err == nil {
			break
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			probe = "."
			break
		}
		probe = parent
	}

	space, err := available(probe)
	if err != nil {
		return 0, fmt.Errorf("query free space for %s: %w", probe, err)
	}
	return space, nil
}

// RequiredWithMargin returns size plus a 10% safety margin. The margin
// uses integer division and saturates instead of overflowing for sizes
// near the uint64 ceiling.
func RequiredWithMargin(size uint64) uint64 {
	withMargin := size + size/10
	if withMargin < size {
		return math.MaxUint64
	}
	return withMargin
}

// FormatBytes renders a byte count in human-readable form. Values under
// 1024 print as an integer byte count; larger values print with one
// decimal place in the largest unit that keeps the number above 1.
func FormatBytes(bytes uint64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	const threshold = 1024

	if bytes < threshold {
		return fmt.Sprintf("%d B", bytes)
	}

	size := float64(bytes)
	unit := 0
	for size >= threshold && unit < len(units)-1 {
		size /= threshold
		unit++
	}

	return fmt.Sprintf("%.1f %s", size, units[unit])
}
