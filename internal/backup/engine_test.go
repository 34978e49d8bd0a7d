package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbmanager/internal/checks"
	"dbmanager/internal/cloud"
	"dbmanager/internal/config"
	"dbmanager/internal/lifecycle"
	"dbmanager/internal/logger"
	"dbmanager/internal/metadata"
	"dbmanager/internal/retention"
)

type fakeDumper struct {
	content string
	err     error
	opts    lifecycle.DumpOptions
}

func (d *fakeDumper) Dump(ctx context.Context, name string, w io.Writer, opts lifecycle.DumpOptions) (*os.File, *lifecycle.Report, error) {
	d.opts = opts
	if _, err := io.WriteString(w, d.content); err != nil {
		return nil, nil, err
	}
	if d.err != nil {
		return nil, nil, d.err
	}
	return nil, &lifecycle.Report{Database: name, Filestore: opts.IncludeFilestore}, nil
}

// bucket is a cloud.Store backed by a local directory
type bucket struct {
	root    string
	deleted []string
	failPut bool
}

func (b *bucket) Upload(ctx context.Context, localPath, key string) error {
	if b.failPut {
		return errors.New("403 Forbidden")
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	dst := filepath.Join(b.root, key)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

func (b *bucket) Download(ctx context.Context, key, localPath string) error {
	return os.ErrNotExist
}

func (b *bucket) List(ctx context.Context, prefix string) ([]cloud.Object, error) {
	var objects []cloud.Object
	err := filepath.Walk(b.root, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(b.root, p)
		key := filepath.ToSlash(rel)
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			objects = append(objects, cloud.Object{Key: key, Name: path.Base(key), Size: info.Size()})
		}
		return nil
	})
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, err
}

func (b *bucket) Delete(ctx context.Context, key string) error {
	b.deleted = append(b.deleted, key)
	return os.Remove(filepath.Join(b.root, key))
}

func (b *bucket) Name() string { return "s3" }

var started = time.Date(2024, 6, 30, 2, 0, 0, 0, time.Local)

func newEngine(t *testing.T, dumper Dumper, store cloud.Store) (*Engine, *config.Config) {
	cfg := config.New()
	cfg.BackupDir = t.TempDir()
	cfg.Version = "1.0.0"
	cfg.AppVersion = "17.0"
	cfg.Host = "db.internal"
	cfg.Port = 5432
	cfg.User = "odoo"

	e := New(cfg, dumper, logger.NewNullLogger())
	e.now = func() time.Time { return started }
	e.space = func(path string) *checks.DiskSpaceCheck {
		return &checks.DiskSpaceCheck{Path: path, Sufficient: true}
	}
	e.open = func(ctx context.Context, uri string) (cloud.Store, *cloud.URI, error) {
		u, err := cloud.ParseURI(uri)
		return store, u, err
	}
	return e, cfg
}

func TestRun_Local(t *testing.T) {
	dumper := &fakeDumper{content: "PK\x03\x04 archive"}
	e, cfg := newEngine(t, dumper, nil)

	result, err := e.Run(context.Background(), Options{Database: "prod", IncludeFilestore: true})
	require.NoError(t, err)

	assert.Equal(t, lifecycle.DumpOptions{Format: "zip", IncludeFilestore: true}, dumper.opts)
	want := filepath.Join(cfg.BackupDir, "prod_2024-06-30_02-00-00.zip")
	assert.Equal(t, want, result.Metadata.Path)
	assert.Empty(t, result.Remote)

	meta, err := metadata.Load(want)
	require.NoError(t, err)
	assert.Equal(t, "prod", meta.Database)
	assert.Equal(t, "zip", meta.Format)
	assert.True(t, meta.Filestore)
	assert.Equal(t, "17.0", meta.AppVersion)
	assert.Equal(t, "db.internal", meta.Host)
	assert.Equal(t, int64(len(dumper.content)), meta.SizeBytes)
	require.NoError(t, meta.Verify())
}

func TestRun_CustomDirAndFormat(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "backups")
	e, _ := newEngine(t, &fakeDumper{content: "PGDMP"}, nil)

	result, err := e.Run(context.Background(), Options{Database: "prod", Format: "dump", Dest: dest})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "prod_2024-06-30_02-00-00.dump"), result.Metadata.Path)
	assert.FileExists(t, result.Metadata.SidecarPath())
}

func TestRun_DumpFailureRemovesPartialFile(t *testing.T) {
	dumper := &fakeDumper{content: "partial", err: errors.New("pg_dump: connection lost")}
	e, cfg := newEngine(t, dumper, nil)

	_, err := e.Run(context.Background(), Options{Database: "prod"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection lost")

	entries, err := os.ReadDir(cfg.BackupDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_LocalRetention(t *testing.T) {
	e, cfg := newEngine(t, &fakeDumper{content: "PK new"}, nil)

	old := filepath.Join(cfg.BackupDir, metadata.FileName("prod", "zip", started.AddDate(0, 0, -45)))
	require.NoError(t, os.WriteFile(old, []byte("PK old"), 0644))
	meta, err := metadata.Build(old)
	require.NoError(t, err)
	meta.Database = "prod"
	meta.Timestamp = started.AddDate(0, 0, -45)
	require.NoError(t, meta.Save())

	result, err := e.Run(context.Background(), Options{
		Database:  "prod",
		Retention: retention.Policy{RetentionDays: 30, MinBackups: 1},
	})
	require.NoError(t, err)
	require.NotNil(t, result.LocalCleanup)
	assert.Equal(t, []string{filepath.Base(old)}, result.LocalCleanup.Deleted)
	assert.NoFileExists(t, old)
	assert.FileExists(t, result.Metadata.Path)
	assert.Nil(t, result.RemoteCleanup)
}

func TestRun_CloudUploadAndRemoteRetention(t *testing.T) {
	store := &bucket{root: t.TempDir()}
	oldKey := "nightly/" + metadata.FileName("prod", "zip", started.AddDate(0, 0, -60))
	require.NoError(t, os.MkdirAll(filepath.Join(store.root, "nightly"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(store.root, oldKey), []byte("PK old"), 0644))

	e, cfg := newEngine(t, &fakeDumper{content: "PK new"}, store)
	result, err := e.Run(context.Background(), Options{
		Database:  "prod",
		Dest:      "s3://backups/nightly",
		Retention: retention.Policy{RetentionDays: 30},
	})
	require.NoError(t, err)

	key := "nightly/prod_2024-06-30_02-00-00.zip"
	assert.Equal(t, "s3://backups/"+key, result.Remote)
	assert.FileExists(t, filepath.Join(store.root, key))
	assert.FileExists(t, filepath.Join(store.root, key+metadata.Suffix))

	// the local copy stays in the backup directory
	assert.FileExists(t, filepath.Join(cfg.BackupDir, "prod_2024-06-30_02-00-00.zip"))

	uploaded, err := metadata.Load(filepath.Join(store.root, key))
	require.NoError(t, err)
	assert.Equal(t, result.Remote, uploaded.Remote)

	require.NotNil(t, result.RemoteCleanup)
	assert.Equal(t, []string{path.Base(oldKey)}, result.RemoteCleanup.Deleted)
	assert.Equal(t, []string{oldKey, oldKey + metadata.Suffix}, store.deleted)
}

func TestRun_UploadFailure(t *testing.T) {
	store := &bucket{root: t.TempDir(), failPut: true}
	e, _ := newEngine(t, &fakeDumper{content: "PK"}, store)

	result, err := e.Run(context.Background(), Options{Database: "prod", Dest: "s3://backups"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	require.NotNil(t, result)
	assert.FileExists(t, result.Metadata.Path)
}

func TestRun_BadDestination(t *testing.T) {
	e, _ := newEngine(t, &fakeDumper{}, nil)
	e.open = func(ctx context.Context, uri string) (cloud.Store, *cloud.URI, error) {
		return nil, nil, fmt.Errorf("invalid cloud config: bucket name is required")
	}

	_, err := e.Run(context.Background(), Options{Database: "prod", Dest: "s3://backups"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup destination")
}

func TestRun_DiskFull(t *testing.T) {
	dumper := &fakeDumper{content: "PK"}
	e, cfg := newEngine(t, dumper, nil)
	e.space = func(path string) *checks.DiskSpaceCheck {
		return &checks.DiskSpaceCheck{Path: path, UsedPercent: 99, AvailableBytes: 1 << 20, Critical: true}
	}

	_, err := e.Run(context.Background(), Options{Database: "prod"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient disk space")
	assert.Empty(t, dumper.opts.Format, "dump must not start")

	entries, err := os.ReadDir(cfg.BackupDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
