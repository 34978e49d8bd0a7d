package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"dbmanager/internal/checks"
	"dbmanager/internal/database"
	"dbmanager/internal/filestore"
	"dbmanager/internal/lifecycle"
	"dbmanager/internal/pgtool"
	"dbmanager/internal/security"

	"github.com/mattn/go-isatty"
)

// newManager wires a lifecycle manager to the configured server. The
// returned func closes every connection and the audit log.
func newManager() (*lifecycle.Manager, func(), error) {
	audit, err := security.OpenAuditLog(cfg.AuditLog)
	if err != nil {
		return nil, nil, err
	}

	connector := database.NewConnector(cfg, log)
	registry := database.NewRegistry(connector.Open, log)
	server := database.NewServer(cfg, connector.Open, registry, log)
	store := filestore.New(cfg.FilestoreRoot(), log)

	mgr := lifecycle.New(cfg, server, store, pgtool.NewExecRunner(log), log)
	mgr.SetAuditLogger(audit)

	cleanup := func() {
		registry.CloseAll()
		audit.Close()
	}
	return mgr, cleanup, nil
}

// dropIfForced drops name first when force is set and the database exists
func dropIfForced(ctx context.Context, mgr *lifecycle.Manager, name string, force bool) error {
	if !force || !mgr.Exists(ctx, name) {
		return nil
	}
	log.Info("Dropping existing database", "database", name)
	_, err := mgr.Drop(ctx, name)
	return err
}

// explain adds operator guidance to lifecycle errors
func explain(err error, forceFlag string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lifecycle.ErrAlreadyExists) && forceFlag != "":
		return fmt.Errorf("%w (use %s to drop it first)", err, forceFlag)
	case errors.Is(err, lifecycle.ErrPermissionDenied):
		return fmt.Errorf("%w (enable database management with --list-db or LIST_DB=true)", err)
	}
	if c := checks.ClassifyError(err.Error()); c != nil {
		return fmt.Errorf("%w\n   Hint: %s\n   Action: %s", err, c.Hint, c.Action)
	}
	return err
}

// printReport prints warnings left by best-effort steps
func printReport(w io.Writer, rep *lifecycle.Report) {
	if !rep.HasWarnings() {
		return
	}
	fmt.Fprintf(w, "⚠️  %d step(s) did not complete:\n", len(rep.Warnings))
	for _, warning := range rep.Warnings {
		fmt.Fprintf(w, "   - %s\n", warning)
	}
}

// isTerminal reports whether f is attached to a terminal
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
