package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"waasp/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect names the SQL engine behind a DB.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Rebind converts $n placeholders to the dialect's syntax.
// SQLite accepts ?NNN, which keeps argument numbering identical.
func (d Dialect) Rebind(query string) string {
	if d == DialectSQLite {
		return strings.ReplaceAll(query, "$", "?")
	}
	return query
}

// ForUpdate returns the row-lock suffix for SELECTs inside a transaction.
// SQLite serialises writers at the database level, so it needs none.
func (d Dialect) ForUpdate() string {
	if d == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Querier runs $n-style queries against a pool or a transaction,
// rewriting placeholders for the active dialect.
type Querier struct {
	db      DBTX
	dialect Dialect
}

func (q Querier) Dialect() Dialect { return q.dialect }

func (q Querier) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.dialect.Rebind(query), args...)
}

func (q Querier) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.dialect.Rebind(query), args...)
}

func (q Querier) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.dialect.Rebind(query), args...)
}

// DB is the storage handle shared by the services.
// A nil *DB is valid to hold but every operation on it fails with ErrUnavailable.
type DB struct {
	SQL     *sql.DB
	Dialect Dialect
}

// Open connects to the database named by url.
//
//	postgres://... | postgresql://... | "host=... dbname=..."  -> pgx
//	sqlite://path | file:path | :memory:                       -> modernc sqlite
func Open(ctx context.Context, url string, pool utils.PoolConfig) (*DB, error) {
	dialect, driver, dsn, err := parseURL(url)
	if err != nil {
		return nil, err
	}

	pool.SingleConn = dialect == DialectSQLite

	db, err := utils.OpenDB(ctx, driver, dsn, pool)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &DB{SQL: db, Dialect: dialect}, nil
}

func parseURL(url string) (Dialect, string, string, error) {
	u := strings.TrimSpace(url)
	switch {
	case u == "":
		return "", "", "", fmt.Errorf("database url is required")
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"), strings.Contains(u, "host="):
		return DialectPostgres, "pgx", u, nil
	case strings.HasPrefix(u, "sqlite://"):
		return DialectSQLite, "sqlite", sqliteDSN(strings.TrimPrefix(u, "sqlite://")), nil
	case strings.HasPrefix(u, "file:"), u == ":memory:":
		return DialectSQLite, "sqlite", sqliteDSN(u), nil
	default:
		return "", "", "", fmt.Errorf("unsupported database url scheme")
	}
}

func sqliteDSN(path string) string {
	params := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

// Querier returns a non-transactional querier over the pool.
func (d *DB) Querier() (Querier, error) {
	if d == nil || d.SQL == nil {
		return Querier{}, ErrUnavailable
	}
	return Querier{db: d.SQL, dialect: d.Dialect}, nil
}

// WithTx runs fn in a single transaction. Any error or cancellation rolls
// everything back; nothing fn wrote is visible until it returns nil.
func (d *DB) WithTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	if d == nil || d.SQL == nil {
		return ErrUnavailable
	}
	return utils.WithTx(ctx, d.SQL, nil, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, Querier{db: tx, dialect: d.Dialect})
	})
}

const pingTimeout = 2 * time.Second

// Ping reports whether the database answers within pingTimeout.
func (d *DB) Ping(ctx context.Context) error {
	if d == nil || d.SQL == nil {
		return ErrUnavailable
	}
	return utils.Ping(ctx, d.SQL, pingTimeout)
}

func (d *DB) Close() error {
	if d == nil || d.SQL == nil {
		return nil
	}
	return d.SQL.Close()
}
