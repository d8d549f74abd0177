//go:build windows

package diskspace

import "golang.org/x/sys/windows"

// available returns the free space available to the calling user on the
// volume holding path, which must exist.
func available(path string) (uint64, error) {
	dir, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}

	var free, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(dir, &free, &total, &totalFree); err != nil {
		return 0, err
	}
	return free, nil
}
