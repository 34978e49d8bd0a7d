// Package backup takes timestamped dumps of a database into a backup
// directory, records a checksum sidecar, copies both to object storage on
// request and prunes expired backups.
package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dbmanager/internal/checks"
	"dbmanager/internal/cloud"
	"dbmanager/internal/config"
	"dbmanager/internal/lifecycle"
	"dbmanager/internal/logger"
	"dbmanager/internal/metadata"
	"dbmanager/internal/retention"
)

// Dumper writes a dump of a database. *lifecycle.Manager implements it.
type Dumper interface {
	Dump(ctx context.Context, name string, w io.Writer, opts lifecycle.DumpOptions) (*os.File, *lifecycle.Report, error)
}

// Options controls a single backup run
type Options struct {
	Database         string
	Format           string // zip (default) or dump
	IncludeFilestore bool

	// Dest is a directory or a cloud URI. Cloud backups are still written
	// to the configured backup directory first.
	Dest      string
	Retention retention.Policy
}

// Result describes a finished backup
type Result struct {
	Metadata *metadata.BackupMetadata
	Report   *lifecycle.Report
	Remote   string // URI of the uploaded copy

	LocalCleanup  *retention.CleanupResult
	RemoteCleanup *retention.CleanupResult
}

// Engine handles backup operations
type Engine struct {
	cfg    *config.Config
	log    logger.Logger
	dumper Dumper
	open   func(ctx context.Context, uri string) (cloud.Store, *cloud.URI, error)
	space  func(path string) *checks.DiskSpaceCheck
	now    func() time.Time
}

// New creates a new backup engine
func New(cfg *config.Config, dumper Dumper, log logger.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		log:    log,
		dumper: dumper,
		open:   cloud.OpenURI,
		space:  checks.CheckDiskSpace,
		now:    time.Now,
	}
}

// Run performs one backup of opts.Database
func (e *Engine) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Format == "" {
		opts.Format = lifecycle.FormatZip
	}

	dir := e.cfg.BackupDir
	var remote string
	switch {
	case cloud.IsURI(opts.Dest):
		remote = opts.Dest
	case opts.Dest != "":
		dir = opts.Dest
	}

	// Open the store up front so bad credentials fail before the dump
	var store cloud.Store
	var uri *cloud.URI
	if remote != "" {
		var err error
		store, uri, err = e.open(ctx, remote)
		if err != nil {
			return nil, fmt.Errorf("failed to open backup destination: %w", err)
		}
	}

	operation := e.log.StartOperation("Database Backup")

	if err := os.MkdirAll(dir, 0755); err != nil {
		operation.Fail("Failed to create backup directory")
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	space := e.space(dir)
	e.log.Debug(checks.FormatDiskSpaceMessage(space))
	if err := space.Err(); err != nil {
		operation.Fail("Backup blocked")
		return nil, err
	}
	if space.Warning {
		e.log.Warn("Low disk space in backup directory", "dir", dir, "used_percent", fmt.Sprintf("%.1f", space.UsedPercent))
	}

	started := e.now()
	outputFile := filepath.Join(dir, metadata.FileName(opts.Database, opts.Format, started))
	operation.Update("Starting database dump", "database", opts.Database, "file", outputFile)

	rep, err := e.dump(ctx, outputFile, opts)
	if err != nil {
		operation.Fail("Backup failed", "error", err)
		return nil, err
	}

	meta, err := metadata.Build(outputFile)
	if err != nil {
		operation.Fail("Backup file not created")
		return nil, err
	}
	meta.Version = e.cfg.Version
	meta.Timestamp = started
	meta.Database = opts.Database
	meta.Format = opts.Format
	meta.Filestore = rep.Filestore
	meta.AppVersion = e.cfg.AppVersion
	meta.Host = e.cfg.Host
	meta.Port = e.cfg.Port
	meta.User = e.cfg.User
	meta.Duration = e.now().Sub(started).Seconds()

	if err := meta.Save(); err != nil {
		e.log.Warn("Failed to create metadata file", "error", err)
	}

	result := &Result{Metadata: meta, Report: rep}

	if store != nil {
		if err := e.upload(ctx, store, uri, meta); err != nil {
			operation.Fail("Upload failed", "error", err)
			return result, err
		}
		result.Remote = meta.Remote
	}

	if opts.Retention.Enabled() {
		e.prune(ctx, result, dir, store, uri, opts)
	}

	operation.Complete(fmt.Sprintf("Backup completed: %s (%s)", meta.BackupFile, metadata.FormatSize(meta.SizeBytes)))
	return result, nil
}

// dump writes the database dump to outputFile, removing it on failure
func (e *Engine) dump(ctx context.Context, outputFile string, opts Options) (*lifecycle.Report, error) {
	file, err := os.Create(outputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create backup file: %w", err)
	}

	_, rep, err := e.dumper.Dump(ctx, opts.Database, file, lifecycle.DumpOptions{
		Format:           opts.Format,
		IncludeFilestore: opts.IncludeFilestore,
	})
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to write backup file: %w", closeErr)
	}
	if err != nil {
		os.Remove(outputFile)
		return nil, fmt.Errorf("backup failed: %w", err)
	}
	return rep, nil
}

// upload copies the backup, then its sidecar with the remote location filled in
func (e *Engine) upload(ctx context.Context, store cloud.Store, uri *cloud.URI, meta *metadata.BackupMetadata) error {
	key := uri.Key(meta.BackupFile)
	e.log.Info("Uploading backup", "provider", store.Name(), "bucket", uri.Bucket, "key", key)

	if err := store.Upload(ctx, meta.Path, key); err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	meta.Remote = fmt.Sprintf("%s://%s/%s", uri.Provider, uri.Bucket, key)
	if err := meta.Save(); err != nil {
		return err
	}
	if err := store.Upload(ctx, meta.SidecarPath(), key+metadata.Suffix); err != nil {
		return fmt.Errorf("failed to upload metadata: %w", err)
	}
	return nil
}

// prune applies the retention policy locally and, for cloud destinations,
// remotely. Failures are logged; the backup itself already succeeded.
func (e *Engine) prune(ctx context.Context, result *Result, dir string, store cloud.Store, uri *cloud.URI, opts Options) {
	now := e.now()

	local, err := retention.ApplyPolicy(dir, opts.Database, opts.Retention, now)
	if err != nil {
		e.log.Warn("Local retention failed", "dir", dir, "error", err)
	} else {
		e.logCleanup("local", local)
		result.LocalCleanup = local
	}

	if store == nil {
		return
	}
	prefix := ""
	if uri.Path != "" && uri.Path != "." {
		prefix = strings.TrimSuffix(uri.Path, "/") + "/"
	}
	remote, err := retention.ApplyRemote(ctx, store, prefix, opts.Database, opts.Retention, now)
	if err != nil {
		e.log.Warn("Remote retention failed", "destination", opts.Dest, "error", err)
		return
	}
	e.logCleanup("remote", remote)
	result.RemoteCleanup = remote
}

func (e *Engine) logCleanup(where string, r *retention.CleanupResult) {
	for _, err := range r.Errors {
		e.log.Warn("Failed to delete expired backup", "where", where, "error", err)
	}
	if len(r.Deleted) > 0 {
		e.log.Info("Removed expired backups", "where", where, "count", len(r.Deleted),
			"freed", metadata.FormatSize(r.SpaceFreed), "kept", len(r.Kept))
	}
}
