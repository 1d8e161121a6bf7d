package utils

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PoolConfig sizes the shared *sql.DB used by the contact and audit stores.
// Zero values pick the defaults in withDefaults.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration

	// SingleConn pins the pool to one connection that never expires.
	// Embedded SQLite needs it: a :memory: database lives and dies with its
	// connection, and the file engine allows one writer at a time.
	SingleConn bool
}

func (c PoolConfig) withDefaults() PoolConfig {
	out := c
	if out.PingTimeout <= 0 {
		out.PingTimeout = 5 * time.Second
	}
	if out.SingleConn {
		out.MaxOpenConns, out.MaxIdleConns = 1, 1
		out.ConnMaxLifetime, out.ConnMaxIdleTime = 0, 0
		return out
	}
	if out.MaxOpenConns <= 0 {
		out.MaxOpenConns = 25
	}
	if out.MaxIdleConns <= 0 || out.MaxIdleConns > out.MaxOpenConns {
		out.MaxIdleConns = out.MaxOpenConns
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	return out
}

// OpenDB opens the pool for driverName ("pgx" or "sqlite") and fails
// unless the database answers a ping within PingTimeout.
// The dsn can carry a password and is never included in errors.
func OpenDB(ctx context.Context, driverName, dsn string, pool PoolConfig) (*sql.DB, error) {
	pool = pool.withDefaults()

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s pool: %w", driverName, err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	if err := Ping(ctx, db, pool.PingTimeout); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Ping bounds a liveness check of db by timeout.
func Ping(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("db ping failed: %w", err)
	}
	return nil
}

// TxFunc is one unit of work; returning an error discards all of it.
type TxFunc func(ctx context.Context, tx *sql.Tx) error

// WithTx commits fn's writes only when fn returns nil. Errors, panics and
// ctx cancellation all roll back; a panic is re-raised after rollback.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(ctx, tx)
}
