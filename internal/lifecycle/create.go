package lifecycle

import (
	"context"
)

// CreateOptions holds the initial application state of a new database
type CreateOptions struct {
	Demo     bool
	Lang     string
	Login    string
	Password string
	Country  string
	Phone    string
	Collate  string
}

func (o CreateOptions) withDefaults() CreateOptions {
	if o.Lang == "" {
		o.Lang = "en_US"
	}
	if o.Login == "" {
		o.Login = "admin"
	}
	if o.Password == "" {
		o.Password = "admin"
	}
	return o
}

// Create makes a new database from the configured template and bootstraps
// it. A failed bootstrap leaves the database in place and is reported as a
// warning.
func (m *Manager) Create(ctx context.Context, name string, opts CreateOptions) (rep *Report, err error) {
	done, err := m.begin("create", name)
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	if err := m.requireAbsent(ctx, name); err != nil {
		return nil, opError("create", name, err)
	}

	rep = newReport(name)
	if err := m.createEmpty(ctx, rep, name, opts.Collate); err != nil {
		return nil, opError("create", name, err)
	}
	defer m.server.Release(name)

	h, err := m.server.Connect(ctx, name)
	if err != nil {
		m.warn(rep, "bootstrap", err)
		return rep, nil
	}

	if err := m.bootstrap.Bootstrap(ctx, h, opts.withDefaults()); err != nil {
		m.log.Error("Failed to initialize database", "database", name, "error", err)
		m.warn(rep, "bootstrap", err)
	}

	return rep, nil
}
