package security

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// AuditEvent represents an auditable event
type AuditEvent struct {
	Timestamp time.Time
	User      string
	Action    string
	Resource  string
	Result    string
	Details   map[string]interface{}
}

// AuditLogger writes one JSON line per administrative action
type AuditLogger struct {
	log     *logrus.Logger
	enabled bool
	closer  io.Closer
}

// NewAuditLogger creates an audit logger writing JSON lines to w
func NewAuditLogger(w io.Writer, enabled bool) *AuditLogger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})

	return &AuditLogger{
		log:     l,
		enabled: enabled,
	}
}

// OpenAuditLog appends audit lines to path. An empty path yields a disabled logger.
func OpenAuditLog(path string) (*AuditLogger, error) {
	if path == "" {
		return NewAuditLogger(io.Discard, false), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	a := NewAuditLogger(file, true)
	a.closer = file
	return a, nil
}

// Close releases the underlying file, if any
func (a *AuditLogger) Close() error {
	if a == nil || a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// LogOperationStart logs the start of a lifecycle operation
func (a *AuditLogger) LogOperationStart(user, action, database string, details map[string]interface{}) {
	if a == nil || !a.enabled {
		return
	}

	a.logEvent(AuditEvent{
		Timestamp: time.Now(),
		User:      user,
		Action:    strings.ToUpper(action) + "_START",
		Resource:  database,
		Result:    "INITIATED",
		Details:   details,
	})
}

// LogOperationComplete logs successful completion of a lifecycle operation
func (a *AuditLogger) LogOperationComplete(user, action, database string, duration time.Duration) {
	if a == nil || !a.enabled {
		return
	}

	a.logEvent(AuditEvent{
		Timestamp: time.Now(),
		User:      user,
		Action:    strings.ToUpper(action) + "_COMPLETE",
		Resource:  database,
		Result:    "SUCCESS",
		Details: map[string]interface{}{
			"duration_seconds": duration.Seconds(),
		},
	})
}

// LogOperationFailed logs a failed lifecycle operation
func (a *AuditLogger) LogOperationFailed(user, action, database string, err error) {
	if a == nil || !a.enabled {
		return
	}

	a.logEvent(AuditEvent{
		Timestamp: time.Now(),
		User:      user,
		Action:    strings.ToUpper(action) + "_FAILED",
		Resource:  database,
		Result:    "FAILURE",
		Details: map[string]interface{}{
			"error": err.Error(),
		},
	})
}

// LogConfigChange logs configuration changes
func (a *AuditLogger) LogConfigChange(user, setting, oldValue, newValue string) {
	if a == nil || !a.enabled {
		return
	}

	a.logEvent(AuditEvent{
		Timestamp: time.Now(),
		User:      user,
		Action:    "CONFIG_CHANGE",
		Resource:  setting,
		Result:    "SUCCESS",
		Details: map[string]interface{}{
			"old_value": oldValue,
			"new_value": newValue,
		},
	})
}

// logEvent writes the audit event to log
func (a *AuditLogger) logEvent(event AuditEvent) {
	fields := logrus.Fields{
		"audit":    true,
		"user":     event.User,
		"action":   event.Action,
		"resource": event.Resource,
		"result":   event.Result,
	}

	// Merge event details
	for k, v := range event.Details {
		fields[k] = v
	}

	a.log.WithFields(fields).WithTime(event.Timestamp).Info("AUDIT")
}

// GetCurrentUser returns the current system user
func GetCurrentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	if user := os.Getenv("USERNAME"); user != "" {
		return user
	}
	return "unknown"
}
