//go:build linux || darwin || freebsd

package checks

import "syscall"

func statFS(path string) (total, available uint64, err error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	bsize := uint64(stat.Bsize)
	return uint64(stat.Blocks) * bsize, uint64(stat.Bavail) * bsize, nil
}
