// Package checks holds preflight checks run before writing dumps or
// restoring file stores, and hints for errors reported by the Postgres
// client tools.
package checks

import (
	"fmt"
	"os"
	"path/filepath"
)

// Usage thresholds, in percent of the filesystem
const (
	warnUsedPercent     = 80
	criticalUsedPercent = 95
)

// DiskSpaceCheck represents disk space information
type DiskSpaceCheck struct {
	Path           string
	TotalBytes     uint64
	AvailableBytes uint64
	UsedBytes      uint64
	UsedPercent    float64
	RequiredBytes  uint64
	Sufficient     bool
	Warning        bool
	Critical       bool

	// Unknown is set when the filesystem could not be queried
	Unknown bool
}

// CheckDiskSpace checks available disk space for the filesystem holding path.
// path does not need to exist yet; its nearest existing parent is used.
func CheckDiskSpace(path string) *DiskSpaceCheck {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	check := &DiskSpaceCheck{Path: absPath}
	total, available, err := statFS(existingParent(absPath))
	if err != nil || total == 0 {
		check.Unknown = true
		check.Sufficient = true
		return check
	}

	check.TotalBytes = total
	check.AvailableBytes = available
	check.UsedBytes = total - available
	check.UsedPercent = float64(check.UsedBytes) / float64(total) * 100
	evaluate(check)
	return check
}

// CheckDiskSpaceFor checks that path has room for required bytes on top of
// the usage thresholds
func CheckDiskSpaceFor(path string, required uint64) *DiskSpaceCheck {
	check := CheckDiskSpace(path)
	check.RequiredBytes = required
	if !check.Unknown {
		evaluate(check)
	}
	return check
}

func evaluate(check *DiskSpaceCheck) {
	required := check.RequiredBytes
	check.Critical = check.UsedPercent >= criticalUsedPercent ||
		(required > 0 && check.AvailableBytes < required)
	check.Warning = !check.Critical &&
		(check.UsedPercent >= warnUsedPercent || (required > 0 && check.AvailableBytes < required*2))
	check.Sufficient = !check.Critical && !check.Warning
}

// Err returns a non-nil error when the check is critical
func (c *DiskSpaceCheck) Err() error {
	if !c.Critical {
		return nil
	}
	if c.RequiredBytes > 0 {
		return fmt.Errorf("insufficient disk space on %s: %s available, %s required",
			c.Path, formatBytes(c.AvailableBytes), formatBytes(c.RequiredBytes))
	}
	return fmt.Errorf("insufficient disk space on %s: %.1f%% used, %s available",
		c.Path, c.UsedPercent, formatBytes(c.AvailableBytes))
}

// FormatDiskSpaceMessage creates a one-line disk space summary
func FormatDiskSpaceMessage(check *DiskSpaceCheck) string {
	if check.Unknown {
		return fmt.Sprintf("Disk space of %s unknown", check.Path)
	}

	status := "OK"
	if check.Critical {
		status = "CRITICAL"
	} else if check.Warning {
		status = "WARNING"
	}
	return fmt.Sprintf("Disk space %s: %s: %s of %s available (%.1f%% used)",
		status, check.Path, formatBytes(check.AvailableBytes), formatBytes(check.TotalBytes), check.UsedPercent)
}

func existingParent(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}

// formatBytes formats bytes to human-readable format
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
