//go:build !linux && !darwin && !freebsd && !windows

package checks

import "errors"

// Statfs_t layouts differ across the remaining platforms
func statFS(string) (uint64, uint64, error) {
	return 0, 0, errors.New("disk space check not supported on this platform")
}
