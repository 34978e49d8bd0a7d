package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"dbmanager/internal/archive"
	"dbmanager/internal/database"
	"dbmanager/internal/filestore"
)

// Dump formats
const (
	FormatZip  = "zip"
	FormatDump = "dump"
)

// DumpOptions selects the dump format and whether the file store is included
type DumpOptions struct {
	Format           string
	IncludeFilestore bool
}

// Dump serializes name to w. When w is nil the dump goes to a temporary file
// which is returned positioned at its start; the caller closes and removes it.
func (m *Manager) Dump(ctx context.Context, name string, w io.Writer, opts DumpOptions) (tmp *os.File, rep *Report, err error) {
	done, err := m.begin("dump", name)
	if err != nil {
		return nil, nil, err
	}
	defer func() { done(err) }()

	if opts.Format == "" {
		opts.Format = FormatZip
	}
	if opts.Format != FormatZip && opts.Format != FormatDump {
		return nil, nil, opError("dump", name, fmt.Errorf("unsupported dump format %q (use zip or dump)", opts.Format))
	}

	if err := m.requirePresent(ctx, name); err != nil {
		return nil, nil, opError("dump", name, err)
	}

	var file *os.File
	if w == nil {
		file, err = os.CreateTemp("", "dbmanager-"+name+"-*."+opts.Format)
		if err != nil {
			return nil, nil, opError("dump", name, fmt.Errorf("failed to create temporary file: %w", err))
		}
		w = file
		defer func() {
			if err != nil {
				file.Close()
				os.Remove(file.Name())
			}
		}()
	}

	rep = newReport(name)
	if opts.Format == FormatZip {
		err = m.dumpZip(ctx, rep, name, w, opts.IncludeFilestore)
	} else {
		err = m.dumpRaw(ctx, name, w)
	}
	if err != nil {
		return nil, nil, opError("dump", name, err)
	}

	if file != nil {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, nil, opError("dump", name, fmt.Errorf("failed to rewind dump: %w", err))
		}
	}
	return file, rep, nil
}

func (m *Manager) dumpZip(ctx context.Context, rep *Report, name string, w io.Writer, includeFilestore bool) error {
	dir, err := os.MkdirTemp("", "dbmanager-dump-")
	if err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}
	defer os.RemoveAll(dir)

	if includeFilestore && m.store.Exists(name) {
		if err := filestore.CopyTree(m.store.Path(name), filepath.Join(dir, archive.FilestoreDir)); err != nil {
			return fmt.Errorf("failed to copy file store: %w", err)
		}
		rep.Filestore = true
	}

	manifest := m.manifest(ctx, rep, name)
	if err := manifest.Write(filepath.Join(dir, archive.ManifestName)); err != nil {
		return err
	}

	cmd, err := m.tools.DumpCommand(name, filepath.Join(dir, archive.DumpName), false)
	if err != nil {
		return err
	}
	if err := m.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("pg_dump failed: %w", err)
	}

	return archive.WriteDir(w, dir)
}

func (m *Manager) dumpRaw(ctx context.Context, name string, w io.Writer) error {
	cmd, err := m.tools.DumpCommand(name, "", true)
	if err != nil {
		return err
	}
	cmd.Stdout = w
	if err := m.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("pg_dump failed: %w", err)
	}
	return nil
}

// manifest collects installed modules and the server version. Missing
// information is recorded as a warning and left empty.
func (m *Manager) manifest(ctx context.Context, rep *Report, name string) *archive.Manifest {
	pgVersion, err := m.server.ServerVersion(ctx)
	if err != nil {
		m.warn(rep, "manifest server version", err)
	}

	modules, err := m.installedModules(ctx, name)
	if err != nil {
		m.warn(rep, "manifest modules", err)
	}

	return archive.NewManifest(name, m.cfg.AppVersion, pgVersion, modules)
}

func (m *Manager) installedModules(ctx context.Context, name string) (map[string]string, error) {
	h, err := m.server.Connect(ctx, name)
	if err != nil {
		return nil, err
	}
	defer m.server.Release(name)

	rows, err := h.QueryContext(ctx, "SELECT name, latest_version FROM ir_module_module WHERE state = 'installed'")
	if err != nil {
		if database.IsUndefinedTable(err) {
			return nil, errors.New("database has no module table")
		}
		return nil, err
	}
	defer rows.Close()

	modules := make(map[string]string)
	for rows.Next() {
		var module string
		var version *string
		if err := rows.Scan(&module, &version); err != nil {
			return nil, err
		}
		if version != nil {
			modules[module] = *version
		} else {
			modules[module] = ""
		}
	}
	return modules, rows.Err()
}
