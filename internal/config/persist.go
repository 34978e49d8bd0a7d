package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const ConfigFileName = ".dbmanager.conf"

// LocalConfig represents a saved configuration in the current directory.
// Booleans are pointers so an absent key can be told apart from "false".
type LocalConfig struct {
	// Database settings
	Host     string
	Port     int
	User     string
	Database string
	SSLMode  string
	Template string
	PgPath   string

	// File store settings
	DataDir string

	// Security settings
	ListDB   *bool
	DBFilter string
	DBName   string
	AuditLog string

	// Backup settings
	BackupDir     string
	RetentionDays int
	MinBackups    int
}

// LoadLocalConfig loads configuration from .dbmanager.conf in current directory
func LoadLocalConfig() (*LocalConfig, error) {
	return LoadLocalConfigFrom(".")
}

// LoadLocalConfigFrom loads .dbmanager.conf from dir. A missing file yields nil, nil.
func LoadLocalConfigFrom(dir string) (*LocalConfig, error) {
	configPath := filepath.Join(dir, ConfigFileName)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No config file, not an error
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &LocalConfig{}
	lines := strings.Split(string(data), "\n")
	currentSection := ""

	for _, line := range lines {
		line = strings.TrimSpace(line)

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		// Section headers
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = strings.Trim(line, "[]")
			continue
		}

		// Key-value pairs
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch currentSection {
		case "database":
			switch key {
			case "host":
				cfg.Host = value
			case "port":
				if p, err := strconv.Atoi(value); err == nil {
					cfg.Port = p
				}
			case "user":
				cfg.User = value
			case "database":
				cfg.Database = value
			case "ssl_mode":
				cfg.SSLMode = value
			case "template":
				cfg.Template = value
			case "pg_path":
				cfg.PgPath = value
			}
		case "filestore":
			switch key {
			case "data_dir":
				cfg.DataDir = value
			}
		case "security":
			switch key {
			case "list_db":
				if b, err := strconv.ParseBool(value); err == nil {
					cfg.ListDB = &b
				}
			case "db_filter":
				cfg.DBFilter = value
			case "db_name":
				cfg.DBName = value
			case "audit_log":
				cfg.AuditLog = value
			}
		case "backup":
			switch key {
			case "backup_dir":
				cfg.BackupDir = value
			case "retention_days":
				if d, err := strconv.Atoi(value); err == nil {
					cfg.RetentionDays = d
				}
			case "min_backups":
				if m, err := strconv.Atoi(value); err == nil {
					cfg.MinBackups = m
				}
			}
		}
	}

	return cfg, nil
}

// SaveLocalConfig saves configuration to .dbmanager.conf in current directory
func SaveLocalConfig(cfg *LocalConfig) error {
	return SaveLocalConfigTo(".", cfg)
}

// SaveLocalConfigTo saves configuration to .dbmanager.conf in dir
func SaveLocalConfigTo(dir string, cfg *LocalConfig) error {
	var sb strings.Builder

	sb.WriteString("# dbmanager configuration\n")
	sb.WriteString("# This file is auto-generated. Edit with care.\n\n")

	sb.WriteString("[database]\n")
	writeString(&sb, "host", cfg.Host)
	writeInt(&sb, "port", cfg.Port)
	writeString(&sb, "user", cfg.User)
	writeString(&sb, "database", cfg.Database)
	writeString(&sb, "ssl_mode", cfg.SSLMode)
	writeString(&sb, "template", cfg.Template)
	writeString(&sb, "pg_path", cfg.PgPath)
	sb.WriteString("\n")

	sb.WriteString("[filestore]\n")
	writeString(&sb, "data_dir", cfg.DataDir)
	sb.WriteString("\n")

	sb.WriteString("[security]\n")
	if cfg.ListDB != nil {
		sb.WriteString(fmt.Sprintf("list_db = %t\n", *cfg.ListDB))
	}
	writeString(&sb, "db_filter", cfg.DBFilter)
	writeString(&sb, "db_name", cfg.DBName)
	writeString(&sb, "audit_log", cfg.AuditLog)
	sb.WriteString("\n")

	sb.WriteString("[backup]\n")
	writeString(&sb, "backup_dir", cfg.BackupDir)
	writeInt(&sb, "retention_days", cfg.RetentionDays)
	writeInt(&sb, "min_backups", cfg.MinBackups)

	configPath := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func writeString(sb *strings.Builder, key, value string) {
	if value != "" {
		sb.WriteString(fmt.Sprintf("%s = %s\n", key, value))
	}
}

func writeInt(sb *strings.Builder, key string, value int) {
	if value != 0 {
		sb.WriteString(fmt.Sprintf("%s = %d\n", key, value))
	}
}

// ApplyLocalConfig copies every value present in the local file onto cfg.
// Callers restore explicitly set flags afterwards.
func ApplyLocalConfig(cfg *Config, local *LocalConfig) {
	if local == nil {
		return
	}

	if local.Host != "" {
		cfg.Host = local.Host
	}
	if local.Port != 0 {
		cfg.Port = local.Port
	}
	if local.User != "" {
		cfg.User = local.User
	}
	if local.Database != "" {
		cfg.Database = local.Database
	}
	if local.SSLMode != "" {
		cfg.SSLMode = local.SSLMode
	}
	if local.Template != "" {
		cfg.DBTemplate = local.Template
	}
	if local.PgPath != "" {
		cfg.PgPath = local.PgPath
	}
	if local.DataDir != "" {
		cfg.DataDir = local.DataDir
	}
	if local.ListDB != nil {
		cfg.ListDB = *local.ListDB
	}
	if local.DBFilter != "" {
		cfg.DBFilter = local.DBFilter
	}
	if local.DBName != "" {
		cfg.DBName = local.DBName
	}
	if local.AuditLog != "" {
		cfg.AuditLog = local.AuditLog
	}
	if local.BackupDir != "" {
		cfg.BackupDir = local.BackupDir
	}
	if local.RetentionDays != 0 {
		cfg.RetentionDays = local.RetentionDays
	}
	if local.MinBackups != 0 {
		cfg.MinBackups = local.MinBackups
	}
}

// ConfigFromConfig creates a LocalConfig from a Config
func ConfigFromConfig(cfg *Config) *LocalConfig {
	listDB := cfg.ListDB
	return &LocalConfig{
		Host:          cfg.Host,
		Port:          cfg.Port,
		User:          cfg.User,
		Database:      cfg.Database,
		SSLMode:       cfg.SSLMode,
		Template:      cfg.DBTemplate,
		PgPath:        cfg.PgPath,
		DataDir:       cfg.DataDir,
		ListDB:        &listDB,
		DBFilter:      cfg.DBFilter,
		DBName:        cfg.DBName,
		AuditLog:      cfg.AuditLog,
		BackupDir:     cfg.BackupDir,
		RetentionDays: cfg.RetentionDays,
		MinBackups:    cfg.MinBackups,
	}
}
