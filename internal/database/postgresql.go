package database

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"dbmanager/internal/config"
	"dbmanager/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// socketDirs are the usual PostgreSQL Unix socket locations
var socketDirs = []string{
	"/var/run/postgresql",
	"/tmp",
	"/var/lib/pgsql",
}

// Connector opens pgx-backed handles onto any database of the configured server
type Connector struct {
	cfg *config.Config
	log logger.Logger
}

// NewConnector creates a new Connector
func NewConnector(cfg *config.Config, log logger.Logger) *Connector {
	return &Connector{cfg: cfg, log: log}
}

// Open connects to dbname using pgx and wraps the pool in a Handle
func (c *Connector) Open(ctx context.Context, dbname string) (*Handle, error) {
	dsn := c.buildPgxDSN(dbname)

	c.log.Debug("Connecting to PostgreSQL with pgx", "database", dbname, "dsn", sanitizeDSN(dsn))

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}

	// Lifecycle commands run one statement at a time
	poolConfig.MaxConns = 4
	poolConfig.MinConns = 0
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", dbname, err)
	}

	db := stdlib.OpenDBFromPool(pool)

	return &Handle{DB: db, name: dbname, pool: pool}, nil
}

// buildPgxDSN builds a connection string for pgx
func (c *Connector) buildPgxDSN(dbname string) string {
	// Try Unix socket first for localhost without password
	if c.cfg.Host == "localhost" && c.cfg.Password == "" {
		for _, dir := range socketDirs {
			socketPath := fmt.Sprintf("%s/.s.PGSQL.%d", dir, c.cfg.Port)
			if _, err := os.Stat(socketPath); err == nil {
				c.log.Debug("Using PostgreSQL socket", "path", socketPath)
				return fmt.Sprintf("user=%s dbname=%s host=%s port=%d sslmode=disable application_name=dbmanager",
					quoteDSNValue(c.cfg.User), quoteDSNValue(dbname), dir, c.cfg.Port)
			}
		}
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   c.cfg.Host + ":" + strconv.Itoa(c.cfg.Port),
		Path:   "/" + dbname,
	}
	if c.cfg.Password != "" {
		u.User = url.UserPassword(c.cfg.User, c.cfg.Password)
	} else {
		u.User = url.User(c.cfg.User)
	}

	params := url.Values{}
	params.Set("sslmode", normalizeSSLMode(c.cfg.SSLMode))
	params.Set("application_name", "dbmanager")
	params.Set("connect_timeout", "30")
	u.RawQuery = params.Encode()

	return u.String()
}

func normalizeSSLMode(mode string) string {
	switch strings.ToLower(mode) {
	case "require", "required":
		return "require"
	case "verify-ca":
		return "verify-ca"
	case "verify-full", "verify-identity":
		return "verify-full"
	case "disable", "disabled":
		return "disable"
	default:
		return "prefer"
	}
}

// quoteDSNValue quotes a keyword=value DSN value when it contains spaces or quotes
func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// sanitizeDSN removes password from DSN for logging
func sanitizeDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
		return u.String()
	}

	parts := strings.Split(dsn, " ")
	var sanitized []string

	for _, part := range parts {
		if strings.HasPrefix(part, "password=") {
			sanitized = append(sanitized, "password=***")
		} else {
			sanitized = append(sanitized, part)
		}
	}

	return strings.Join(sanitized, " ")
}
