package lifecycle

import (
	"context"
	"fmt"

	"dbmanager/internal/database"
)

// Rename renames the database first and moves its file store only after the
// DDL succeeded. A failed move leaves the directory under the old name and
// is reported as a warning.
func (m *Manager) Rename(ctx context.Context, oldName, newName string) (rep *Report, err error) {
	done, err := m.begin("rename", oldName, newName)
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	if err := m.requirePresent(ctx, oldName); err != nil {
		return nil, opError("rename", oldName, err)
	}
	if err := m.requireAbsent(ctx, newName); err != nil {
		return nil, opError("rename", newName, err)
	}

	rep = newReport(newName)
	m.reap(ctx, rep, oldName)

	stmt := fmt.Sprintf("ALTER DATABASE %s RENAME TO %s",
		database.QuoteIdentifier(oldName), database.QuoteIdentifier(newName))
	if err := m.server.Exec(ctx, stmt); err != nil {
		return nil, opError("rename", oldName, fmt.Errorf("failed to rename database: %w", err))
	}
	m.log.Info("Renamed database", "from", oldName, "to", newName)

	moved, err := m.store.Move(oldName, newName)
	if err != nil {
		m.warn(rep, "move file store", err)
		return rep, nil
	}
	rep.Filestore = moved

	return rep, nil
}
