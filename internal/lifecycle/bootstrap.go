package lifecycle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"dbmanager/internal/database"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Bootstrapper installs the minimal application state into a new database
type Bootstrapper interface {
	Bootstrap(ctx context.Context, h *database.Handle, opts CreateOptions) error
}

// SchemaBootstrapper creates the module, parameter and user tables and
// records the base module as installed
type SchemaBootstrapper struct {
	Version string
	Cost    int // bcrypt cost
	Now     func() time.Time
}

// NewSchemaBootstrapper creates a bootstrapper installing base at version
func NewSchemaBootstrapper(version string) *SchemaBootstrapper {
	return &SchemaBootstrapper{
		Version: version,
		Cost:    bcrypt.DefaultCost,
		Now:     time.Now,
	}
}

var bootstrapSchema = []string{
	`CREATE TABLE IF NOT EXISTS ir_module_module (
		id serial PRIMARY KEY,
		name varchar NOT NULL UNIQUE,
		state varchar NOT NULL DEFAULT 'uninstalled',
		latest_version varchar,
		demo boolean NOT NULL DEFAULT false
	)`,
	`CREATE TABLE IF NOT EXISTS ir_config_parameter (
		id serial PRIMARY KEY,
		key varchar NOT NULL UNIQUE,
		value text NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS res_users (
		id serial PRIMARY KEY,
		login varchar NOT NULL UNIQUE,
		password varchar,
		active boolean NOT NULL DEFAULT true,
		lang varchar
	)`,
}

const (
	installBase = `INSERT INTO ir_module_module (name, state, latest_version, demo)
	VALUES ('base', 'installed', $1, $2)
	ON CONFLICT (name) DO UPDATE SET state = EXCLUDED.state,
		latest_version = EXCLUDED.latest_version, demo = EXCLUDED.demo`

	upsertAdmin = `INSERT INTO res_users (login, password, lang) VALUES ($1, $2, $3)
	ON CONFLICT (login) DO UPDATE SET password = EXCLUDED.password, lang = EXCLUDED.lang`
)

// Bootstrap runs every statement in one transaction
func (b *SchemaBootstrapper) Bootstrap(ctx context.Context, h *database.Handle, opts CreateOptions) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), b.Cost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	tx, err := h.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range bootstrapSchema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, installBase, baseModuleVersion(b.Version), opts.Demo); err != nil {
		return fmt.Errorf("failed to install base module: %w", err)
	}

	for _, p := range b.params(opts) {
		if _, err := tx.ExecContext(ctx, upsertParam, p[0], p[1]); err != nil {
			return fmt.Errorf("failed to set %s: %w", p[0], err)
		}
	}

	if _, err := tx.ExecContext(ctx, upsertAdmin, opts.Login, string(hash), opts.Lang); err != nil {
		return fmt.Errorf("failed to set admin user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bootstrap: %w", err)
	}
	return nil
}

// params returns the configuration parameters in insertion order
func (b *SchemaBootstrapper) params(opts CreateOptions) [][2]string {
	params := [][2]string{
		{"database.uuid", uuid.NewString()},
		{"database.create_date", b.Now().UTC().Format("2006-01-02 15:04:05")},
		{"database.secret", uuid.NewString()},
		{"base.lang", opts.Lang},
		{"base.demo", strconv.FormatBool(opts.Demo)},
	}
	if opts.Country != "" {
		params = append(params, [2]string{"base.country", opts.Country})
	}
	if opts.Phone != "" {
		params = append(params, [2]string{"base.phone", opts.Phone})
	}
	return params
}

// baseModuleVersion prefixes the application series to the module version
func baseModuleVersion(appVersion string) string {
	return appVersion + ".1.3"
}
