// Package pgtool locates and runs the PostgreSQL client programs
// (pg_dump, pg_restore, psql).
package pgtool

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"dbmanager/internal/logger"
)

// Command is one invocation of a native PostgreSQL tool
type Command struct {
	Tool   string // short name used in logs, e.g. "pg_dump"
	Path   string
	Args   []string
	Env    []string
	Stdout io.Writer // nil discards standard output
}

// String renders the command line for logs
func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Runner executes native tool commands
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExitError reports a tool that exited unsuccessfully
type ExitError struct {
	Tool      string
	Err       error
	LastError string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	if e.LastError != "" {
		msg += ": " + strings.TrimSpace(e.LastError)
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands as subprocesses
type ExecRunner struct {
	log logger.Logger
}

// NewExecRunner creates a Runner backed by os/exec
func NewExecRunner(log logger.Logger) *ExecRunner {
	return &ExecRunner{log: log}
}

// Run starts the command and waits for it. Stderr is streamed and only
// ERROR/FATAL chunks are kept.
func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	r.log.Info("Executing command", "tool", c.Tool, "command", c.String())

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Env = c.Env
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	}

	// Stream stderr to avoid memory issues with large output
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", c.Tool, err)
	}

	buf := make([]byte, 4096)
	var lastError string
	for {
		n, err := stderr.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			if strings.Contains(chunk, "ERROR") || strings.Contains(chunk, "FATAL") ||
				strings.Contains(chunk, "error:") {
				lastError = chunk
				r.log.Warn("Command stderr", "tool", c.Tool, "output", chunk)
			}
		}
		if err != nil {
			break
		}
	}

	if err := cmd.Wait(); err != nil {
		r.log.Error("Command failed", "tool", c.Tool, "error", err, "last_error", lastError)
		return &ExitError{Tool: c.Tool, Err: err, LastError: lastError}
	}

	r.log.Debug("Command completed successfully", "tool", c.Tool)
	return nil
}
