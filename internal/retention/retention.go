// Package retention prunes old backups of a database, locally and in
// object storage.
package retention

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"dbmanager/internal/cloud"
	"dbmanager/internal/metadata"
)

// Policy defines the retention rules. Backups older than RetentionDays are
// removed, but the MinBackups most recent ones are always kept.
type Policy struct {
	RetentionDays int
	MinBackups    int
	DryRun        bool
}

// Enabled reports whether the policy removes anything at all
func (p Policy) Enabled() bool {
	return p.RetentionDays > 0
}

// CleanupResult contains information about cleanup operations
type CleanupResult struct {
	TotalBackups int
	Deleted      []string
	Kept         []string
	SpaceFreed   int64
	Errors       []error
}

// candidate is one backup considered for pruning
type candidate struct {
	name  string
	taken time.Time
	size  int64
}

// selectExpired splits candidates into expired and kept, both oldest first
func selectExpired(items []candidate, policy Policy, now time.Time) (expired, kept []candidate) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].taken.Before(items[j].taken)
	})

	cutoff := now.AddDate(0, 0, -policy.RetentionDays)
	for i, item := range items {
		// Always keep minimum number of backups (most recent ones)
		if len(items)-i <= policy.MinBackups || !policy.Enabled() || !item.taken.Before(cutoff) {
			kept = append(kept, item)
			continue
		}
		expired = append(expired, item)
	}
	return expired, kept
}

// ApplyPolicy prunes database's backups in dir. Backups are discovered
// through their sidecars; each deletion removes the file and its sidecar.
func ApplyPolicy(dir, database string, policy Policy, now time.Time) (*CleanupResult, error) {
	backups, err := metadata.ListBackups(dir, database)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	paths := make(map[string]string, len(backups))
	items := make([]candidate, 0, len(backups))
	for _, b := range backups {
		paths[b.BackupFile] = b.Path
		items = append(items, candidate{name: b.BackupFile, taken: b.Timestamp, size: b.SizeBytes})
	}

	result := &CleanupResult{TotalBackups: len(items)}
	expired, kept := selectExpired(items, policy, now)
	for _, item := range kept {
		result.Kept = append(result.Kept, item.name)
	}

	for _, item := range expired {
		if !policy.DryRun {
			if err := deleteBackup(paths[item.name]); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("failed to delete %s: %w", item.name, err))
				continue
			}
		}
		result.Deleted = append(result.Deleted, item.name)
		result.SpaceFreed += item.size
	}
	return result, nil
}

// deleteBackup removes a backup file and its sidecar
func deleteBackup(backupFile string) error {
	if err := os.Remove(backupFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete backup file: %w", err)
	}
	if err := os.Remove(backupFile + metadata.Suffix); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete metadata file: %w", err)
	}
	return nil
}

// ApplyRemote prunes database's backups under prefix in store. Objects are
// recognised by their file name, and the timestamp in the name decides age.
func ApplyRemote(ctx context.Context, store cloud.Store, prefix, database string, policy Policy, now time.Time) (*CleanupResult, error) {
	objects, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]string)
	var items []candidate
	for _, obj := range objects {
		if strings.HasSuffix(obj.Name, metadata.Suffix) {
			continue
		}
		db, taken, ok := metadata.ParseFileName(obj.Name)
		if !ok || db != database {
			continue
		}
		keys[obj.Name] = obj.Key
		items = append(items, candidate{name: obj.Name, taken: taken, size: obj.Size})
	}

	result := &CleanupResult{TotalBackups: len(items)}
	expired, kept := selectExpired(items, policy, now)
	for _, item := range kept {
		result.Kept = append(result.Kept, item.name)
	}

	for _, item := range expired {
		if !policy.DryRun {
			key := keys[item.name]
			if err := store.Delete(ctx, key); err != nil {
				result.Errors = append(result.Errors, err)
				continue
			}
			// sidecars are optional remotely
			_ = store.Delete(ctx, key+metadata.Suffix)
		}
		result.Deleted = append(result.Deleted, item.name)
		result.SpaceFreed += item.size
	}
	return result, nil
}
