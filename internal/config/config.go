package config

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
)

// Config holds all configuration options
type Config struct {
	// Version information
	Version   string
	BuildTime string
	GitCommit string

	// Database connection
	Host     string
	Port     int
	User     string
	Database string // maintenance database used for DDL
	Password string
	SSLMode  string

	// Native tools
	PgPath string

	// File store
	DataDir string

	// Database creation
	DBTemplate string
	Unaccent   bool
	AppVersion string

	// Management gate and listing
	ListDB   bool
	DBFilter string
	DBName   string

	// Backup options
	BackupDir     string
	RetentionDays int
	MinBackups    int

	// Output options
	NoColor   bool
	Debug     bool
	LogLevel  string
	LogFormat string
	AuditLog  string
	AllowRoot bool

	// Local config file
	NoLoadConfig bool
}

// New creates a new configuration with default values
func New() *Config {
	return &Config{
		// Database defaults
		Host:     getEnvString("PG_HOST", "localhost"),
		Port:     getEnvInt("PG_PORT", 5432),
		User:     getEnvString("PG_USER", getCurrentUser()),
		Database: getEnvString("PG_DATABASE", "postgres"),
		Password: getEnvString("PGPASSWORD", ""),
		SSLMode:  getEnvString("PG_SSLMODE", "prefer"),
		PgPath:   getEnvString("PG_PATH", ""),

		DataDir:    getEnvString("DATA_DIR", getDefaultDataDir()),
		DBTemplate: getEnvString("DB_TEMPLATE", "template0"),
		Unaccent:   getEnvBool("UNACCENT", false),
		AppVersion: getEnvString("APP_VERSION", "17.0"),

		ListDB:   getEnvBool("LIST_DB", true),
		DBFilter: getEnvString("DB_FILTER", ""),
		DBName:   getEnvString("DB_NAME", ""),

		// Backup defaults
		BackupDir:     getEnvString("BACKUP_DIR", getDefaultBackupDir()),
		RetentionDays: getEnvInt("RETENTION_DAYS", 30),
		MinBackups:    getEnvInt("MIN_BACKUPS", 5),

		// Output defaults
		NoColor:   getEnvBool("NO_COLOR", false),
		Debug:     getEnvBool("DEBUG", false),
		LogLevel:  getEnvString("LOG_LEVEL", "info"),
		LogFormat: getEnvString("LOG_FORMAT", "text"),
		AuditLog:  getEnvString("AUDIT_LOG", ""),
		AllowRoot: getEnvBool("ALLOW_ROOT", false),
	}
}

// UpdateFromEnvironment updates configuration from environment variables
func (c *Config) UpdateFromEnvironment() {
	if password := os.Getenv("PGPASSWORD"); password != "" {
		c.Password = password
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &ConfigError{Field: "port", Value: strconv.Itoa(c.Port), Message: "must be between 1-65535"}
	}

	if c.DataDir == "" {
		return &ConfigError{Field: "data-dir", Value: c.DataDir, Message: "must not be empty"}
	}

	if c.DBTemplate == "" {
		return &ConfigError{Field: "db-template", Value: c.DBTemplate, Message: "must not be empty"}
	}

	if _, _, ok := MajorMinor(c.AppVersion); !ok {
		return &ConfigError{Field: "app-version", Value: c.AppVersion, Message: "must look like MAJOR.MINOR"}
	}

	if c.DBFilter != "" {
		if _, err := regexp.Compile(c.DBFilter); err != nil {
			return &ConfigError{Field: "db-filter", Value: c.DBFilter, Message: "invalid regular expression: " + err.Error()}
		}
	}

	if c.RetentionDays < 0 {
		return &ConfigError{Field: "retention-days", Value: strconv.Itoa(c.RetentionDays), Message: "must not be negative"}
	}

	if c.MinBackups < 0 {
		return &ConfigError{Field: "min-backups", Value: strconv.Itoa(c.MinBackups), Message: "must not be negative"}
	}

	return nil
}

// FilestoreRoot returns the directory holding one file store per database
func (c *Config) FilestoreRoot() string {
	return filepath.Join(c.DataDir, "filestore")
}

// ExposedDatabases returns the sorted, de-duplicated names listed in DBName
func (c *Config) ExposedDatabases() []string {
	if strings.TrimSpace(c.DBName) == "" {
		return nil
	}

	seen := make(map[string]bool)
	var names []string
	for _, part := range strings.Split(c.DBName, ",") {
		name := strings.TrimSpace(part)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MajorVersion returns the "major.minor" prefix of the application version
func (c *Config) MajorVersion() string {
	major, minor, ok := MajorMinor(c.AppVersion)
	if !ok {
		return c.AppVersion
	}
	return major + "." + minor
}

// MajorMinor extracts the first two dot-separated components of a version.
// A leading "saas~" marker is ignored.
func MajorMinor(version string) (string, string, bool) {
	version = strings.TrimPrefix(strings.TrimSpace(version), "saas~")
	parts := strings.Split(version, ".")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Value   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "' with value '" + e.Value + "': " + e.Message
}

// Helper functions
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getCurrentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	if user := os.Getenv("USERNAME"); user != "" {
		return user
	}
	return "postgres"
}

func getDefaultDataDir() string {
	homeDir, _ := os.UserHomeDir()
	if homeDir != "" {
		return filepath.Join(homeDir, ".local", "share", "dbmanager")
	}

	if runtime.GOOS == "windows" {
		return "C:\\dbmanager"
	}

	return "/var/lib/dbmanager"
}

func getDefaultBackupDir() string {
	homeDir, _ := os.UserHomeDir()
	if homeDir != "" {
		return filepath.Join(homeDir, "db_backups")
	}

	// Fallback based on OS
	if runtime.GOOS == "windows" {
		return "C:\\db_backups"
	}

	if getCurrentUser() == "postgres" {
		return "/var/lib/pgsql/pg_backups"
	}

	return "/tmp/db_backups"
}
