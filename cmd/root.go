package cmd

import (
	"context"
	"fmt"
	"sync"

	"dbmanager/internal/config"
	"dbmanager/internal/logger"
	"dbmanager/internal/security"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfg *config.Config
	log logger.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dbmanager",
	Short: "PostgreSQL database lifecycle manager",
	Long: `Create, duplicate, rename, drop, dump and restore application databases
together with their file store directory.

Every command that changes a database requires database management to be
enabled (--list-db, LIST_DB=true or list_db in .dbmanager.conf).

Archive layout (zip format):
  dump.sql        plain SQL dump
  manifest.json   installed modules and versions
  filestore/      copy of the file store (optional)

For help with specific commands, use: dbmanager [command] --help`,
	Version:       "",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return nil
		}

		// stdout carries dumps; every log line goes to stderr
		log = logger.NewWithWriter(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())

		// Store which flags were explicitly set by user
		flagsSet := make(map[string]bool)
		cmd.Flags().Visit(func(f *pflag.Flag) {
			flagsSet[f.Name] = true
		})

		// Load local config if not disabled
		if !cfg.NoLoadConfig {
			if localCfg, err := config.LoadLocalConfig(); err != nil {
				log.Warn("Failed to load local config", "error", err)
			} else if localCfg != nil {
				// Save current flag values that were explicitly set
				saved := *cfg

				// Apply config from file
				config.ApplyLocalConfig(cfg, localCfg)
				log.Debug("Loaded configuration from " + config.ConfigFileName)

				// Restore explicitly set flag values (flags have priority)
				restoreFlags(cfg, &saved, flagsSet)
			}
		}

		cfg.UpdateFromEnvironment()
		if cfg.Debug {
			cfg.LogLevel = "debug"
		}
		log = logger.NewWithWriter(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		// Check privileges
		return security.NewPrivilegeChecker(log).CheckAndWarn(cfg.AllowRoot)
	},
}

// restoreFlags puts back the values of flags given on the command line
func restoreFlags(cfg, saved *config.Config, flagsSet map[string]bool) {
	if flagsSet["host"] {
		cfg.Host = saved.Host
	}
	if flagsSet["port"] {
		cfg.Port = saved.Port
	}
	if flagsSet["user"] {
		cfg.User = saved.User
	}
	if flagsSet["database"] {
		cfg.Database = saved.Database
	}
	if flagsSet["ssl-mode"] {
		cfg.SSLMode = saved.SSLMode
	}
	if flagsSet["db-template"] {
		cfg.DBTemplate = saved.DBTemplate
	}
	if flagsSet["pg-path"] {
		cfg.PgPath = saved.PgPath
	}
	if flagsSet["data-dir"] {
		cfg.DataDir = saved.DataDir
	}
	if flagsSet["list-db"] {
		cfg.ListDB = saved.ListDB
	}
	if flagsSet["db-filter"] {
		cfg.DBFilter = saved.DBFilter
	}
	if flagsSet["db-name"] {
		cfg.DBName = saved.DBName
	}
	if flagsSet["audit-log"] {
		cfg.AuditLog = saved.AuditLog
	}
	if flagsSet["backup-dir"] {
		cfg.BackupDir = saved.BackupDir
	}
	if flagsSet["retention-days"] {
		cfg.RetentionDays = saved.RetentionDays
	}
	if flagsSet["min-backups"] {
		cfg.MinBackups = saved.MinBackups
	}
}

var bindOnce sync.Once

// Execute adds all child commands to the root command and sets flags appropriately.
// Flags bind to the first config passed in; later calls copy into it.
func Execute(ctx context.Context, config *config.Config, logger logger.Logger) error {
	log = logger
	if cfg == nil {
		cfg = config
	} else {
		*cfg = *config
	}
	bindOnce.Do(bindFlags)

	// Set version info
	rootCmd.Version = fmt.Sprintf("%s (built: %s, commit: %s)",
		cfg.Version, cfg.BuildTime, cfg.GitCommit)

	return rootCmd.ExecuteContext(ctx)
}

func bindFlags() {
	// Connection flags
	rootCmd.PersistentFlags().StringVar(&cfg.Host, "host", cfg.Host, "Database host")
	rootCmd.PersistentFlags().IntVar(&cfg.Port, "port", cfg.Port, "Database port")
	rootCmd.PersistentFlags().StringVar(&cfg.User, "user", cfg.User, "Database user")
	rootCmd.PersistentFlags().StringVar(&cfg.Database, "database", cfg.Database, "Maintenance database used for DDL")
	rootCmd.PersistentFlags().StringVar(&cfg.Password, "db-password", cfg.Password, "Database password (prefer PGPASSWORD)")
	rootCmd.PersistentFlags().StringVar(&cfg.SSLMode, "ssl-mode", cfg.SSLMode, "SSL mode for connections")
	rootCmd.PersistentFlags().StringVar(&cfg.PgPath, "pg-path", cfg.PgPath, "Directory holding pg_dump, pg_restore and psql")

	// Database unit flags
	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Data directory; file stores live in <data-dir>/filestore/<database>")
	rootCmd.PersistentFlags().StringVar(&cfg.DBTemplate, "db-template", cfg.DBTemplate, "Template database for new databases")
	rootCmd.PersistentFlags().BoolVar(&cfg.Unaccent, "unaccent", cfg.Unaccent, "Create the unaccent extension in new databases")
	rootCmd.PersistentFlags().StringVar(&cfg.AppVersion, "app-version", cfg.AppVersion, "Application version recorded in dumps")

	// Management gate flags
	rootCmd.PersistentFlags().BoolVar(&cfg.ListDB, "list-db", cfg.ListDB, "Enable database management and listing")
	rootCmd.PersistentFlags().StringVar(&cfg.DBFilter, "db-filter", cfg.DBFilter, "Regular expression restricting listed databases")
	rootCmd.PersistentFlags().StringVar(&cfg.DBName, "db-name", cfg.DBName, "Comma-separated databases to expose")
	rootCmd.PersistentFlags().StringVar(&cfg.AuditLog, "audit-log", cfg.AuditLog, "Append audit events to this file")
	rootCmd.PersistentFlags().BoolVar(&cfg.AllowRoot, "allow-root", cfg.AllowRoot, "Allow running as root/Administrator")

	// Backup flags
	rootCmd.PersistentFlags().StringVar(&cfg.BackupDir, "backup-dir", cfg.BackupDir, "Backup directory")
	rootCmd.PersistentFlags().IntVar(&cfg.RetentionDays, "retention-days", cfg.RetentionDays, "Backup retention period in days (0=disabled)")
	rootCmd.PersistentFlags().IntVar(&cfg.MinBackups, "min-backups", cfg.MinBackups, "Minimum number of backups to keep")

	// Output flags
	rootCmd.PersistentFlags().BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text|json)")
	rootCmd.PersistentFlags().BoolVar(&cfg.NoLoadConfig, "no-config", false, "Don't load configuration from .dbmanager.conf")
}

func init() {
	// Register subcommands
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(duplicateCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(neutralizeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(backupCmd)
}
