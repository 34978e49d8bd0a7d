package lifecycle

import (
	"context"
	"fmt"
	"os"

	"dbmanager/internal/archive"
	"dbmanager/internal/pgtool"
)

// RestoreOptions controls post-load processing of a restored database
type RestoreOptions struct {
	// Copy gives the restored database a fresh identity
	Copy bool
	// Neutralize disables outbound integrations
	Neutralize bool
}

// Restore loads the dump at src into a new database called name. Zip dumps
// are loaded with psql, custom dumps with pg_restore. A failed load leaves
// the partially loaded database in place.
func (m *Manager) Restore(ctx context.Context, name, src string, opts RestoreOptions) (rep *Report, err error) {
	done, err := m.begin("restore", name)
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	if err := m.requireAbsent(ctx, name); err != nil {
		return nil, opError("restore", name, err)
	}

	format, err := archive.DetectFormat(src)
	if err != nil {
		return nil, opError("restore", name, fmt.Errorf("failed to read dump: %w", err))
	}

	rep = newReport(name)
	if err := m.createEmpty(ctx, rep, name, ""); err != nil {
		return nil, opError("restore", name, err)
	}
	m.server.Release(name)

	dir, err := os.MkdirTemp("", "dbmanager-restore-")
	if err != nil {
		return nil, opError("restore", name, fmt.Errorf("failed to create working directory: %w", err))
	}
	defer os.RemoveAll(dir)

	var extracted *archive.Extracted
	var cmd pgtool.Command
	switch format {
	case archive.FormatZip:
		extracted, err = archive.Extract(src, dir)
		if err != nil {
			return nil, opError("restore", name, fmt.Errorf("%w: %w", ErrRestoreFailed, err))
		}
		m.checkManifest(rep, extracted.Manifest)
		cmd, err = m.tools.PsqlLoadCommand(name, extracted.DumpPath)
	case archive.FormatPlainSQL:
		cmd, err = m.tools.PsqlLoadCommand(name, src)
	default:
		cmd, err = m.tools.PgRestoreCommand(name, src)
	}
	if err != nil {
		return nil, opError("restore", name, err)
	}

	if err := m.runner.Run(ctx, cmd); err != nil {
		return nil, opError("restore", name, fmt.Errorf("%w: %w", ErrRestoreFailed, err))
	}
	m.log.Info("Loaded dump", "database", name, "format", format.String())

	if err := m.prepareCopy(ctx, rep, name, opts.Copy, opts.Neutralize); err != nil {
		return nil, opError("restore", name, err)
	}

	if extracted != nil && extracted.Filestore != "" {
		imported, err := m.store.Import(extracted.Filestore, name)
		if err != nil {
			return nil, opError("restore", name, err)
		}
		rep.Filestore = imported
	}

	return rep, nil
}

// checkManifest warns when the dump was taken with another application series
func (m *Manager) checkManifest(rep *Report, manifest *archive.Manifest) {
	if manifest == nil {
		m.warn(rep, "manifest", fmt.Errorf("archive has no %s", archive.ManifestName))
		return
	}
	if manifest.MajorVersion != "" && manifest.MajorVersion != m.cfg.MajorVersion() {
		m.warn(rep, "manifest", fmt.Errorf("dump was taken with version %s, running %s",
			manifest.MajorVersion, m.cfg.MajorVersion()))
	}
}
