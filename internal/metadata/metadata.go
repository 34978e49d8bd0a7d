// Package metadata reads and writes the .meta.json sidecar stored beside
// every backup file.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dbmanager/internal/security"
)

// Suffix is appended to a backup file's name to form its sidecar
const Suffix = ".meta.json"

// BackupMetadata describes one backup file
type BackupMetadata struct {
	Version    string    `json:"version"`
	Timestamp  time.Time `json:"timestamp"`
	Database   string    `json:"database"`
	Format     string    `json:"format"` // zip or dump
	Filestore  bool      `json:"filestore"`
	AppVersion string    `json:"app_version"`
	Host       string    `json:"host"`
	Port       int       `json:"port"`
	User       string    `json:"user"`
	BackupFile string    `json:"backup_file"` // base name
	SizeBytes  int64     `json:"size_bytes"`
	SHA256     string    `json:"sha256"`
	Duration   float64   `json:"duration_seconds"`
	Remote     string    `json:"remote,omitempty"`

	// Path is the backup file on disk; set by Build and Load
	Path string `json:"-"`
}

// Build stats and checksums the backup at path. Callers fill in the
// descriptive fields before saving.
func Build(path string) (*BackupMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}
	sum, err := security.ChecksumFile(path)
	if err != nil {
		return nil, err
	}
	return &BackupMetadata{
		BackupFile: filepath.Base(path),
		SizeBytes:  info.Size(),
		SHA256:     sum,
		Path:       path,
	}, nil
}

// Save writes the sidecar next to the backup file
func (m *BackupMetadata) Save() error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(m.Path+Suffix, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// SidecarPath returns the sidecar file of the backup
func (m *BackupMetadata) SidecarPath() string {
	return m.Path + Suffix
}

// Verify recomputes the backup's checksum and compares it with the sidecar
func (m *BackupMetadata) Verify() error {
	return security.VerifyChecksum(m.Path, m.SHA256)
}

// Load reads the sidecar of backupFile
func Load(backupFile string) (*BackupMetadata, error) {
	data, err := os.ReadFile(backupFile + Suffix)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var meta BackupMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata %s: %w", backupFile+Suffix, err)
	}
	meta.Path = backupFile
	return &meta, nil
}

// ListBackups returns the backups in dir that have a readable sidecar,
// oldest first. An empty database matches every backup.
func ListBackups(dir, database string) ([]*BackupMetadata, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+Suffix))
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	var backups []*BackupMetadata
	for _, metaFile := range matches {
		meta, err := Load(strings.TrimSuffix(metaFile, Suffix))
		if err != nil {
			// Skip invalid metadata files
			continue
		}
		if database != "" && meta.Database != database {
			continue
		}
		backups = append(backups, meta)
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.Before(backups[j].Timestamp)
	})
	return backups, nil
}

// FileName returns the backup file name for database taken at t
func FileName(database, format string, t time.Time) string {
	return fmt.Sprintf("%s_%s.%s", database, t.Format("2006-01-02_15-04-05"), format)
}

// ParseFileName is the inverse of FileName
func ParseFileName(name string) (database string, taken time.Time, ok bool) {
	ext := filepath.Ext(name)
	if ext != ".zip" && ext != ".dump" {
		return "", time.Time{}, false
	}
	base := strings.TrimSuffix(name, ext)
	const stamp = len("2006-01-02_15-04-05")
	if len(base) < stamp+2 || base[len(base)-stamp-1] != '_' {
		return "", time.Time{}, false
	}

	t, err := time.ParseInLocation("2006-01-02_15-04-05", base[len(base)-stamp:], time.Local)
	if err != nil {
		return "", time.Time{}, false
	}
	return base[:len(base)-stamp-1], t, true
}

// FormatSize returns human-readable size
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
