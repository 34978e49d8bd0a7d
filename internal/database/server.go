package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"dbmanager/internal/config"
	"dbmanager/internal/logger"

	"github.com/jackc/pgx/v5/pgconn"
)

// Server answers catalog questions about a PostgreSQL server and runs DDL
// against its maintenance database.
type Server struct {
	cfg      *config.Config
	log      logger.Logger
	open     OpenFunc
	registry *Registry
}

// NewServer creates a Server. One-off connections use open directly;
// longer-lived ones go through registry.
func NewServer(cfg *config.Config, open OpenFunc, registry *Registry, log logger.Logger) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		open:     open,
		registry: registry,
	}
}

// Registry returns the handle registry used by the server
func (s *Server) Registry() *Registry {
	return s.registry
}

// Exec runs a statement on the maintenance database
func (s *Server) Exec(ctx context.Context, query string, args ...any) error {
	h, err := s.registry.Get(ctx, s.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to maintenance database %s: %w", s.cfg.Database, err)
	}
	if _, err := h.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	return nil
}

// Connect returns the registry handle for name
func (s *Server) Connect(ctx context.Context, name string) (*Handle, error) {
	return s.registry.Get(ctx, name)
}

// Release closes any registry handle held for name
func (s *Server) Release(name string) {
	s.registry.Release(name)
}

// Exists reports whether a connection to name can be opened. Any error means false.
func (s *Server) Exists(ctx context.Context, name string) bool {
	h, err := s.open(ctx, name)
	if err != nil {
		s.log.Debug("Database not reachable", "database", name, "error", err)
		return false
	}
	defer h.Close()

	var one int
	if err := h.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		s.log.Debug("Database round-trip failed", "database", name, "error", err)
		return false
	}
	return true
}

// TerminateConnections asks the server to end every other session on name
func (s *Server) TerminateConnections(ctx context.Context, name string) error {
	query := `SELECT pg_terminate_backend(pid) FROM pg_stat_activity
	          WHERE datname = $1 AND pid <> pg_backend_pid()`
	if err := s.Exec(ctx, query, name); err != nil {
		return fmt.Errorf("failed to terminate connections to %s: %w", name, err)
	}
	return nil
}

// List returns the databases this tool may manage
func (s *Server) List(ctx context.Context) ([]string, error) {
	if !s.cfg.ListDB {
		if exposed := s.cfg.ExposedDatabases(); len(exposed) > 0 {
			return exposed, nil
		}
		return nil, fmt.Errorf("%w: database listing is disabled", ErrPermissionDenied)
	}

	h, err := s.registry.Get(ctx, s.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to maintenance database %s: %w", s.cfg.Database, err)
	}

	query := `SELECT datname FROM pg_database
	          WHERE datdba = (SELECT usesysid FROM pg_user WHERE usename = current_user)
	            AND NOT datistemplate AND datallowconn
	            AND datname NOT IN ('postgres', $1)
	          ORDER BY datname`

	rows, err := h.QueryContext(ctx, query, s.cfg.DBTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to query databases: %w", err)
	}
	defer rows.Close()

	var databases []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan database name: %w", err)
		}
		databases = append(databases, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read database list: %w", err)
	}

	return s.filter(databases)
}

// filter applies the DBFilter pattern, or the DBName list when no pattern is set
func (s *Server) filter(databases []string) ([]string, error) {
	if s.cfg.DBFilter != "" {
		re, err := regexp.Compile("^(?:" + s.cfg.DBFilter + ")")
		if err != nil {
			return nil, fmt.Errorf("invalid database filter %q: %w", s.cfg.DBFilter, err)
		}
		var kept []string
		for _, name := range databases {
			if re.MatchString(name) {
				kept = append(kept, name)
			}
		}
		return kept, nil
	}

	exposed := s.cfg.ExposedDatabases()
	if len(exposed) == 0 {
		return databases, nil
	}

	allowed := make(map[string]bool, len(exposed))
	for _, name := range exposed {
		allowed[name] = true
	}
	var kept []string
	for _, name := range databases {
		if allowed[name] {
			kept = append(kept, name)
		}
	}
	return kept, nil
}

// ListIncompatible returns the candidates whose base module version does not
// match the running application version. Handles opened for the check are
// released before returning.
func (s *Server) ListIncompatible(ctx context.Context, candidates []string) []string {
	want := s.cfg.MajorVersion()
	var incompatible []string

	for _, name := range candidates {
		version, err := s.baseVersion(ctx, name)
		s.registry.Release(name)

		if err != nil {
			s.log.Debug("Base module version unavailable", "database", name, "error", err)
			incompatible = append(incompatible, name)
			continue
		}

		major, minor, ok := config.MajorMinor(version)
		if !ok || major+"."+minor != want {
			incompatible = append(incompatible, name)
		}
	}

	sort.Strings(incompatible)
	return incompatible
}

func (s *Server) baseVersion(ctx context.Context, name string) (string, error) {
	h, err := s.registry.Get(ctx, name)
	if err != nil {
		return "", err
	}

	var version sql.NullString
	err = h.QueryRowContext(ctx, "SELECT latest_version FROM ir_module_module WHERE name = $1", "base").Scan(&version)
	switch {
	case IsUndefinedTable(err):
		return "", fmt.Errorf("module table missing: %w", err)
	case errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("base module not recorded")
	case err != nil:
		return "", err
	case !version.Valid || version.String == "":
		return "", fmt.Errorf("base module has no version")
	}
	return version.String, nil
}

// ServerVersion returns the server's major.minor version
func (s *Server) ServerVersion(ctx context.Context) (string, error) {
	h, err := s.registry.Get(ctx, s.cfg.Database)
	if err != nil {
		return "", fmt.Errorf("failed to connect to maintenance database %s: %w", s.cfg.Database, err)
	}

	var raw string
	if err := h.QueryRowContext(ctx, "SHOW server_version").Scan(&raw); err != nil {
		return "", fmt.Errorf("failed to get server version: %w", err)
	}

	return shortVersion(raw), nil
}

// shortVersion reduces "16.2 (Debian 16.2-1.pgdg120+1)" to "16.2"
func shortVersion(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return raw
	}
	parts := strings.Split(fields[0], ".")
	if len(parts) < 2 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

// IsUndefinedTable reports whether err is PostgreSQL's undefined_table error
func IsUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

// IsUndefinedColumn reports whether err is PostgreSQL's undefined_column error
func IsUndefinedColumn(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42703"
}
