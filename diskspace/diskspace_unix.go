//go:build linux || darwin

package diskspace

import "golang.org/x/sys/unix"

// available returns the free space for unprivileged users on the volume
// holding path, which must exist.
func available(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}

	blocks := uint64(st.Bavail)
	bsize := uint64(st.Bsize)
	space := blocks * bsize
	if bsize != 0 && space/bsize != blocks {
		// Block math overflowed; report the largest representable figure.
		return ^uint64(0), nil
	}
	return space, nil
}
