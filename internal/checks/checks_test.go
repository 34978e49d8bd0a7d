package checks

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name                 string
		usedPercent          float64
		available, required  uint64
		critical, warn, fine bool
	}{
		{"plenty", 40, 100 << 30, 0, false, false, true},
		{"usage warning", 85, 10 << 30, 0, false, true, false},
		{"usage critical", 97, 1 << 30, 0, true, false, false},
		{"below required", 10, 1 << 20, 2 << 20, true, false, false},
		{"under twice required", 10, 3 << 20, 2 << 20, false, true, false},
		{"twice required", 10, 4 << 20, 2 << 20, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := &DiskSpaceCheck{
				UsedPercent:    tt.usedPercent,
				AvailableBytes: tt.available,
				RequiredBytes:  tt.required,
			}
			evaluate(check)
			assert.Equal(t, tt.critical, check.Critical, "critical")
			assert.Equal(t, tt.warn, check.Warning, "warning")
			assert.Equal(t, tt.fine, check.Sufficient, "sufficient")
			assert.Equal(t, tt.critical, check.Err() != nil)
		})
	}
}

func TestCheckDiskSpace_MissingPath(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("statfs not available")
	}

	dir := t.TempDir()
	check := CheckDiskSpace(filepath.Join(dir, "not", "created", "yet"))

	require.False(t, check.Unknown)
	assert.Greater(t, check.TotalBytes, uint64(0))
	assert.Equal(t, filepath.Join(dir, "not", "created", "yet"), check.Path)
}

func TestCheckDiskSpaceFor_Impossible(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("statfs not available")
	}

	check := CheckDiskSpaceFor(t.TempDir(), 1<<62)

	assert.True(t, check.Critical)
	assert.ErrorContains(t, check.Err(), "required")
	assert.Contains(t, FormatDiskSpaceMessage(check), "CRITICAL")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KiB", formatBytes(1024))
	assert.Equal(t, "1.5 GiB", formatBytes(3<<29))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		msg      string
		category string
	}{
		{`pg_restore: error: could not write to output file: No space left on device`, "disk_space"},
		{`failed to connect to host=localhost: dial tcp 127.0.0.1:5432: connect: connection refused`, "network"},
		{`FATAL: password authentication failed for user "odoo" (SQLSTATE 28P01)`, "auth"},
		{`ERROR: permission denied to create database (SQLSTATE 42501)`, "permissions"},
		{`database "prod" is being accessed by other users (SQLSTATE 55006)`, "sessions"},
		{`pg_restore: error: unsupported version (1.16) in file header`, "version"},
		{`zip: not a valid zip file`, "corruption"},
	}

	for _, tt := range tests {
		c := ClassifyError(tt.msg)
		if assert.NotNil(t, c, tt.msg) {
			assert.Equal(t, tt.category, c.Category, tt.msg)
		}
	}

	assert.Nil(t, ClassifyError("something else entirely"))
}
