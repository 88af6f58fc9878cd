package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mkrupp/homecase-users/internal/infra/logging"
	"github.com/mkrupp/homecase-users/internal/infra/metrics"
)

// SQLiteGatewayConfig holds configuration for the SQLite storage gateway.
type SQLiteGatewayConfig struct {
	// Path is the filesystem path to the SQLite database file
	Path string `env:"PATH" envDefault:"var/storage/users.db"`

	// BusyTimeout is how long a statement waits for a competing writer before failing
	BusyTimeout time.Duration `env:"BUSY_TIMEOUT" envDefault:"5s"`

	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"8"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`

	// Seed inserts the sample users when bootstrapping an empty table
	Seed bool `env:"SEED" envDefault:"true"`
}

// Gateway owns the database handle and hands out one connection per request.
type Gateway struct {
	db  *sqlx.DB
	log logging.Logger
	cfg SQLiteGatewayConfig
}

// NewSQLiteGateway opens the database file, creating its directory if needed.
// Returns an error if the database cannot be opened or pinged.
func NewSQLiteGateway(ctx context.Context, cfg SQLiteGatewayConfig) (*Gateway, error) {
	log := logging.GetLogger("infra.database.sqlite_gateway").With(
		logging.Group("db", "path", cfg.Path),
	)

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dataSourceName(cfg))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}

	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping db: %w", err)
	}

	log.DebugContext(ctx, "database opened")

	return &Gateway{db: db, log: log, cfg: cfg}, nil
}

// pragmas go into the DSN so that every pooled connection gets them,
// not just the one that happens to run a PRAGMA statement.
func dataSourceName(cfg SQLiteGatewayConfig) string {
	query := url.Values{}
	query.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	query.Add("_pragma", "foreign_keys(1)")
	query.Add("_pragma", "journal_mode(WAL)")

	return "file:" + cfg.Path + "?" + query.Encode()
}

// Open acquires a dedicated connection. Every successful Open must be paired
// with exactly one Release.
func (g *Gateway) Open(ctx context.Context) (*sqlx.Conn, error) {
	conn, err := g.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire conn: %w", err)
	}

	metrics.DBConnectionsInUse.Inc()

	return conn, nil
}

// Release returns conn to the pool.
func (g *Gateway) Release(ctx context.Context, conn *sqlx.Conn) {
	metrics.DBConnectionsInUse.Dec()

	if err := conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		g.log.ErrorContext(ctx, "release conn failed", "error", err)
	}
}

// WithConn runs fn on a freshly acquired connection and releases it afterwards,
// whether fn returns normally, with an error, or panics.
func (g *Gateway) WithConn(ctx context.Context, fn func(conn *sqlx.Conn) error) error {
	conn, err := g.Open(ctx)
	if err != nil {
		return err
	}
	defer g.Release(ctx, conn)

	return fn(conn)
}

// Ping checks that the database is reachable.
func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	return nil
}

// Stats exposes pool statistics, mostly for tests and diagnostics.
func (g *Gateway) Stats() sql.DBStats {
	return g.db.Stats()
}

// Close closes the underlying database handle.
func (g *Gateway) Close() error {
	if err := g.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func IsUniqueViolation(err error) bool {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}

	switch liteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	default:
		return false
	}
}
