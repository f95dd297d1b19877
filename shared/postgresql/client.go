package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const (
	defaultConnectTimeout = 5 * time.Second
	healthCheckTimeout    = 2 * time.Second
)

// Config holds PostgreSQL connection configuration
type Config struct {
	// DSN, when set, is used as-is instead of the discrete fields below
	DSN             string
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

func (c *Config) dataSourceName() string {
	if c.DSN != "" {
		return c.DSN
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// target describes the server for logs without leaking credentials
func (c *Config) target() slog.Attr {
	if c.DSN != "" {
		return slog.String("target", "dsn")
	}
	return slog.Group("target",
		slog.String("host", c.Host),
		slog.Int("port", c.Port),
		slog.String("database", c.Database),
	)
}

// Client wraps a pooled sqlx handle for the job store
type Client struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewClient opens the pool and fails unless the server answers a ping within
// ConnectTimeout
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	logger.Info("Connecting to PostgreSQL", config.target())

	db, err := sqlx.Open("postgres", config.dataSourceName())
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	timeout := config.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL within %s: %w", timeout, err)
	}

	logger.Info("Connected to PostgreSQL",
		config.target(),
		slog.Int("max_open_conns", config.MaxOpenConns),
		slog.Int("max_idle_conns", config.MaxIdleConns),
	)

	return &Client{db: db, logger: logger}, nil
}

// GetDB returns the underlying sqlx.DB instance
func (c *Client) GetDB() *sqlx.DB {
	return c.db
}

// Pool exposes the database/sql pool, used for connection metrics
func (c *Client) Pool() *sql.DB {
	return c.db.DB
}

// Close closes the database connection
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close PostgreSQL connection: %w", err)
	}
	c.logger.Info("PostgreSQL connection closed")
	return nil
}

// InTx runs fn inside a transaction. The transaction commits when fn returns
// nil and rolls back otherwise; fn's error is returned unchanged.
func (c *Client) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			c.logger.Warn("Failed to roll back transaction", slog.Any("error", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ExecScript executes a multi-statement SQL script such as the schema file
func (c *Client) ExecScript(ctx context.Context, script string) error {
	if _, err := c.db.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("failed to execute script: %w", err)
	}
	return nil
}

// HealthCheck pings the server and runs a trivial query
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var one int
	if err := c.db.GetContext(ctx, &one, "SELECT 1"); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
