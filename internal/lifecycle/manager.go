// Package lifecycle creates, duplicates, renames, drops, dumps and restores
// database units: a PostgreSQL database together with its file store.
//
// Every mutating operation checks the management gate before doing anything.
// Database DDL always runs first and the file store follows only on success.
// The two are not updated atomically, so a crash between them can leave a
// renamed database with its directory still under the old name.
package lifecycle

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"dbmanager/internal/config"
	"dbmanager/internal/database"
	"dbmanager/internal/logger"
	"dbmanager/internal/pgtool"
	"dbmanager/internal/security"

	"github.com/google/uuid"
)

var validCollate = regexp.MustCompile(`^[A-Za-z0-9_.@-]+$`)

// FileStore is the file store directory layout used by a Manager.
// *filestore.Store implements it.
type FileStore interface {
	Path(name string) string
	Exists(name string) bool
	Copy(src, dst string) (bool, error)
	Move(src, dst string) (bool, error)
	Remove(name string) error
	Import(dir, name string) (bool, error)
}

// Manager runs lifecycle operations against one PostgreSQL server
type Manager struct {
	cfg       *config.Config
	log       logger.Logger
	gate      Gate
	server    *database.Server
	store     FileStore
	tools     *pgtool.Tools
	runner    pgtool.Runner
	bootstrap Bootstrapper
	audit     *security.AuditLogger
	now       func() time.Time
}

// New creates a Manager. The gate follows cfg.ListDB.
func New(cfg *config.Config, server *database.Server, store FileStore, runner pgtool.Runner, log logger.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		log:       log,
		gate:      Gate{Enabled: cfg.ListDB},
		server:    server,
		store:     store,
		tools:     pgtool.NewTools(cfg),
		runner:    runner,
		bootstrap: NewSchemaBootstrapper(cfg.AppVersion),
		now:       time.Now,
	}
}

// SetBootstrapper replaces the bootstrap step run by Create
func (m *Manager) SetBootstrapper(b Bootstrapper) {
	m.bootstrap = b
}

// SetAuditLogger sends the start and outcome of every operation that passes
// the gate to a
func (m *Manager) SetAuditLogger(a *security.AuditLogger) {
	m.audit = a
}

// Exists reports whether the database can be connected to. Not gated.
func (m *Manager) Exists(ctx context.Context, name string) bool {
	return m.server.Exists(ctx, name)
}

// List returns the manageable databases. Not gated when a fixed list is configured.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.server.List(ctx)
}

// ListIncompatible returns the candidates whose base version differs from ours
func (m *Manager) ListIncompatible(ctx context.Context, candidates []string) []string {
	return m.server.ListIncompatible(ctx, candidates)
}

// Store returns the file store the manager operates on
func (m *Manager) Store() FileStore {
	return m.store
}

// begin checks the gate and validates names, then starts timing and auditing.
// The returned func must be called with the operation's final error.
func (m *Manager) begin(op string, names ...string) (func(error), error) {
	if err := m.gate.Check(op); err != nil {
		target := ""
		if len(names) > 0 {
			target = names[len(names)-1]
		}
		return nil, opError(op, target, err)
	}
	for _, name := range names {
		if err := database.ValidateName(name); err != nil {
			return nil, opError(op, name, err)
		}
		if name == m.cfg.Database {
			// reaping it would cut the connection the DDL runs on
			return nil, opError(op, name, fmt.Errorf("%w: %s is the maintenance database", ErrInvalidName, name))
		}
	}

	target := names[len(names)-1]
	user := security.GetCurrentUser()
	details := map[string]interface{}{}
	if len(names) > 1 {
		details["source"] = names[0]
	}
	m.audit.LogOperationStart(user, op, target, details)

	started := m.now()
	tracker := m.log.StartOperation(op)

	return func(err error) {
		if err != nil {
			tracker.Fail(target, "error", err)
			m.audit.LogOperationFailed(user, op, target, err)
			return
		}
		tracker.Complete(target)
		m.audit.LogOperationComplete(user, op, target, m.now().Sub(started))
	}, nil
}

// warn records a swallowed best-effort failure
func (m *Manager) warn(rep *Report, step string, err error) {
	m.log.Warn("Best-effort step failed", "database", rep.Database, "step", step, "error", err)
	rep.add(step, err)
}

// reap releases our own handle on name and terminates other sessions
func (m *Manager) reap(ctx context.Context, rep *Report, name string) {
	m.server.Release(name)
	if err := m.server.TerminateConnections(ctx, name); err != nil {
		m.warn(rep, "terminate connections", err)
	}
}

func (m *Manager) requireAbsent(ctx context.Context, name string) error {
	if m.server.Exists(ctx, name) {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}
	return nil
}

func (m *Manager) requirePresent(ctx context.Context, name string) error {
	if !m.server.Exists(ctx, name) {
		return fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	return nil
}

// createEmpty issues CREATE DATABASE and the best-effort hardening steps
func (m *Manager) createEmpty(ctx context.Context, rep *Report, name, collate string) error {
	template := m.cfg.DBTemplate
	collation := ""
	switch {
	case collate != "":
		if !validCollate.MatchString(collate) {
			return fmt.Errorf("invalid collation %q", collate)
		}
		template = "template0"
		collation = fmt.Sprintf(" LC_COLLATE '%s'", collate)
	case template == "template0":
		// 'C' collation is only safe when cloning template0
		collation = " LC_COLLATE 'C'"
	}

	stmt := fmt.Sprintf("CREATE DATABASE %s ENCODING 'unicode'%s TEMPLATE %s",
		database.QuoteIdentifier(name), collation, database.QuoteIdentifier(template))
	if err := m.server.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	m.log.Info("Created database", "database", name, "template", template)

	h, err := m.server.Connect(ctx, name)
	if err != nil {
		m.warn(rep, "extensions", err)
		return nil
	}

	if _, err := h.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS pg_trgm"); err != nil {
		m.warn(rep, "pg_trgm", err)
	}

	if m.cfg.Unaccent {
		if _, err := h.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS unaccent"); err != nil {
			m.warn(rep, "unaccent", err)
		} else if _, err := h.ExecContext(ctx, "ALTER FUNCTION unaccent(text) IMMUTABLE"); err != nil {
			m.warn(rep, "unaccent", err)
		}
	}

	if _, err := h.ExecContext(ctx, "GRANT CREATE ON SCHEMA PUBLIC TO PUBLIC"); err != nil {
		m.warn(rep, "grant", err)
	}

	return nil
}

// identityKeys are the parameters that make an installation unique
var identityKeys = []string{"database.uuid", "database.create_date", "database.secret"}

// regenerateIdentity gives a copied database a fresh identity. A missing
// parameter table is reported as a warning.
func (m *Manager) regenerateIdentity(ctx context.Context, rep *Report, h *database.Handle) error {
	values := map[string]string{
		"database.uuid":        uuid.NewString(),
		"database.create_date": m.now().UTC().Format("2006-01-02 15:04:05"),
		"database.secret":      uuid.NewString(),
	}

	for _, key := range identityKeys {
		if err := setParam(ctx, h, key, values[key]); err != nil {
			if database.IsUndefinedTable(err) {
				m.warn(rep, "identity", err)
				return nil
			}
			return fmt.Errorf("failed to regenerate %s: %w", key, err)
		}
	}
	m.log.Debug("Regenerated database identity", "database", rep.Database, "uuid", values["database.uuid"])
	return nil
}

func setParam(ctx context.Context, h *database.Handle, key, value string) error {
	_, err := h.ExecContext(ctx, upsertParam, key, value)
	return err
}

const upsertParam = `INSERT INTO ir_config_parameter (key, value) VALUES ($1, $2)
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
