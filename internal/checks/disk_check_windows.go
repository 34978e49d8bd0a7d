//go:build windows

package checks

import (
	"path/filepath"
	"syscall"
	"unsafe"
)

var (
	kernel32           = syscall.NewLazyDLL("kernel32.dll")
	getDiskFreeSpaceEx = kernel32.NewProc("GetDiskFreeSpaceExW")
)

func statFS(path string) (total, available uint64, err error) {
	vol := filepath.VolumeName(path)
	if vol == "" {
		vol = "."
	}

	var freeBytesAvailable, totalNumberOfBytes, totalNumberOfFreeBytes uint64
	pathPtr, err := syscall.UTF16PtrFromString(vol + `\`)
	if err != nil {
		return 0, 0, err
	}
	ret, _, callErr := getDiskFreeSpaceEx.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		uintptr(unsafe.Pointer(&freeBytesAvailable)),
		uintptr(unsafe.Pointer(&totalNumberOfBytes)),
		uintptr(unsafe.Pointer(&totalNumberOfFreeBytes)))
	if ret == 0 {
		return 0, 0, callErr
	}
	return totalNumberOfBytes, freeBytesAvailable, nil
}
