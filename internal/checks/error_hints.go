package checks

import "regexp"

// ErrorClassification represents the type of a failure reported by the
// server or a client tool, with a suggested action
type ErrorClassification struct {
	Category string // "disk_space", "permissions", "network", "auth", "version", "corruption", "locks"
	Message  string
	Hint     string
	Action   string
}

type errorPattern struct {
	category string
	pattern  *regexp.Regexp
	hint     string
	action   string
}

// Checked in order; the first match wins.
var errorPatterns = []errorPattern{
	{
		category: "disk_space",
		pattern:  regexp.MustCompile(`(?i)(no space left|disk.*full|insufficient disk space|could not extend file)`),
		hint:     "Insufficient disk space to complete operation",
		action:   "Free up space or prune old backups with --retention-days",
	},
	{
		category: "auth",
		pattern:  regexp.MustCompile(`(?i)(password authentication failed|no password supplied|SQLSTATE 28P01)`),
		hint:     "The server rejected the credentials",
		action:   "Check --user and --db-password or PGPASSWORD",
	},
	{
		category: "network",
		pattern:  regexp.MustCompile(`(?i)(connection refused|could not connect|no pg_hba\.conf entry|dial tcp)`),
		hint:     "Cannot connect to database server",
		action:   "Check the server is running and pg_hba.conf allows the connection",
	},
	{
		category: "permissions",
		pattern:  regexp.MustCompile(`(?i)(permission denied to create database|must be owner|SQLSTATE 42501)`),
		hint:     "The database role lacks the privilege for this operation",
		action:   "Grant CREATEDB to the role or connect as the database owner",
	},
	{
		category: "sessions",
		pattern:  regexp.MustCompile(`(?i)(is being accessed by other users|SQLSTATE 55006)`),
		hint:     "Other sessions are connected to the database",
		action:   "Stop the application server using it and retry",
	},
	{
		category: "locks",
		pattern:  regexp.MustCompile(`(?i)(max_locks_per_transaction|out of shared memory)`),
		hint:     "Lock table exhausted during restore",
		action:   "Increase max_locks_per_transaction in postgresql.conf",
	},
	{
		category: "version",
		pattern:  regexp.MustCompile(`(?i)(unsupported version .* in file header|server version mismatch|aborting because of server version mismatch)`),
		hint:     "The client tools and the server or dump are of different PostgreSQL versions",
		action:   "Point --pg-path at client tools matching the server version",
	},
	{
		category: "corruption",
		pattern:  regexp.MustCompile(`(?i)(syntax error at.*line \d+|input file appears to be a text format dump|did not find magic string|zip: not a valid zip file)`),
		hint:     "The dump file is damaged or not in the expected format",
		action:   "Check the file with its .meta.json checksum or take a new backup",
	},
}

// ClassifyError analyzes an error message and provides actionable hints.
// It returns nil for messages that match no known failure.
func ClassifyError(errorMsg string) *ErrorClassification {
	for _, p := range errorPatterns {
		if p.pattern.MatchString(errorMsg) {
			return &ErrorClassification{
				Category: p.category,
				Message:  errorMsg,
				Hint:     p.hint,
				Action:   p.action,
			}
		}
	}
	return nil
}
