package lifecycle

import (
	"context"
	"fmt"

	"dbmanager/internal/database"
)

// Drop removes the database and then its file store. A database that does
// not exist yields a report with Dropped false and no error. Once the
// database is gone a failed file store removal is only a warning.
func (m *Manager) Drop(ctx context.Context, name string) (rep *Report, err error) {
	done, err := m.begin("drop", name)
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	rep = newReport(name)
	if !m.server.Exists(ctx, name) {
		m.log.Info("Database does not exist, nothing to drop", "database", name)
		return rep, nil
	}

	m.reap(ctx, rep, name)

	if err := m.server.Exec(ctx, fmt.Sprintf("DROP DATABASE %s", database.QuoteIdentifier(name))); err != nil {
		return nil, opError("drop", name, fmt.Errorf("failed to drop database: %w", err))
	}
	rep.Dropped = true
	m.log.Info("Dropped database", "database", name)

	hadFilestore := m.store.Exists(name)
	if err := m.store.Remove(name); err != nil {
		m.warn(rep, "remove file store", err)
		return rep, nil
	}
	rep.Filestore = hadFilestore

	return rep, nil
}
