package pgtool

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"

	"dbmanager/internal/config"
)

// Tools resolves native binaries and builds their command lines
type Tools struct {
	cfg *config.Config
}

// NewTools creates a Tools for the configured server
func NewTools(cfg *config.Config) *Tools {
	return &Tools{cfg: cfg}
}

// Find resolves a tool, preferring the configured PG_PATH directory
func (t *Tools) Find(name string) (string, error) {
	if t.cfg.PgPath != "" {
		candidate := filepath.Join(t.cfg.PgPath, name)
		if runtime.GOOS == "windows" {
			candidate += ".exe"
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("required tool not found: %s (set PG_PATH or --pg-path)", name)
	}
	return path, nil
}

// Validate checks that every tool used by dump and restore is available
func (t *Tools) Validate() error {
	for _, tool := range []string{"pg_dump", "pg_restore", "psql"} {
		if _, err := t.Find(tool); err != nil {
			return err
		}
	}
	return nil
}

// Env returns the process environment with the libpq connection variables set
func (t *Tools) Env() []string {
	env := os.Environ()
	if t.cfg.Host != "" && t.cfg.Host != "localhost" {
		env = append(env, "PGHOST="+t.cfg.Host)
	}
	if t.cfg.Port != 0 {
		env = append(env, "PGPORT="+strconv.Itoa(t.cfg.Port))
	}
	if t.cfg.User != "" {
		env = append(env, "PGUSER="+t.cfg.User)
	}
	if t.cfg.Password != "" {
		env = append(env, "PGPASSWORD="+t.cfg.Password)
	}
	if t.cfg.SSLMode != "" {
		env = append(env, "PGSSLMODE="+t.cfg.SSLMode)
	}
	return append(env, "PGAPPNAME=dbmanager")
}

// DumpCommand builds pg_dump for dbname. custom selects the compressed
// archive format; an empty file writes to standard output.
func (t *Tools) DumpCommand(dbname, file string, custom bool) (Command, error) {
	path, err := t.Find("pg_dump")
	if err != nil {
		return Command{}, err
	}

	args := []string{"--no-owner"}
	if custom {
		args = append(args, "--format=c")
	}
	if file != "" {
		args = append(args, "--file="+file)
	}
	args = append(args, dbname)

	return Command{Tool: "pg_dump", Path: path, Args: args, Env: t.Env()}, nil
}

// PsqlLoadCommand builds psql loading a plain SQL file into dbname
func (t *Tools) PsqlLoadCommand(dbname, sqlFile string) (Command, error) {
	path, err := t.Find("psql")
	if err != nil {
		return Command{}, err
	}

	args := []string{
		"--dbname=" + dbname,
		"-q",
		"-v", "ON_ERROR_STOP=1",
		"-f", sqlFile,
	}
	return Command{Tool: "psql", Path: path, Args: args, Env: t.Env()}, nil
}

// PgRestoreCommand builds pg_restore loading a custom-format dump into dbname
func (t *Tools) PgRestoreCommand(dbname, dumpFile string) (Command, error) {
	path, err := t.Find("pg_restore")
	if err != nil {
		return Command{}, err
	}

	args := []string{
		"--no-owner",
		"--exit-on-error",
		"--dbname=" + dbname,
		dumpFile,
	}
	return Command{Tool: "pg_restore", Path: path, Args: args, Env: t.Env()}, nil
}
