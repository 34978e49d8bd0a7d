package lifecycle

import (
	"context"
	"fmt"

	"dbmanager/internal/database"
)

// Duplicate clones source into target using source as the template. The
// copy gets a fresh identity and, when asked, is neutralized. The file store
// is copied only when source has one and target does not.
func (m *Manager) Duplicate(ctx context.Context, source, target string, neutralize bool) (rep *Report, err error) {
	done, err := m.begin("duplicate", source, target)
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	if err := m.requireAbsent(ctx, target); err != nil {
		return nil, opError("duplicate", target, err)
	}
	if err := m.requirePresent(ctx, source); err != nil {
		return nil, opError("duplicate", source, err)
	}

	rep = newReport(target)
	m.reap(ctx, rep, source)

	stmt := fmt.Sprintf("CREATE DATABASE %s ENCODING 'unicode' TEMPLATE %s",
		database.QuoteIdentifier(target), database.QuoteIdentifier(source))
	if err := m.server.Exec(ctx, stmt); err != nil {
		return nil, opError("duplicate", target, fmt.Errorf("failed to copy database %s: %w", source, err))
	}
	m.log.Info("Duplicated database", "source", source, "target", target)

	if err := m.prepareCopy(ctx, rep, target, true, neutralize); err != nil {
		return nil, opError("duplicate", target, err)
	}

	copied, err := m.store.Copy(source, target)
	if err != nil {
		return nil, opError("duplicate", target, err)
	}
	rep.Filestore = copied

	return rep, nil
}

// prepareCopy opens target once to regenerate its identity and optionally
// neutralize it
func (m *Manager) prepareCopy(ctx context.Context, rep *Report, target string, regenerate, neutralize bool) error {
	if !regenerate && !neutralize {
		return nil
	}

	h, err := m.server.Connect(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	defer m.server.Release(target)

	if regenerate {
		if err := m.regenerateIdentity(ctx, rep, h); err != nil {
			return err
		}
	}
	if neutralize {
		m.neutralize(ctx, rep, h)
	}
	return nil
}
