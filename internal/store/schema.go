package store

import (
	"context"
	"fmt"
)

// The unique index over COALESCE(channel, '') makes the global record
// (channel NULL) collide with itself; a plain UNIQUE(sender_id, channel)
// would treat NULLs as distinct.

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS contacts (
		id          BIGSERIAL PRIMARY KEY,
		sender_id   VARCHAR(255) NOT NULL,
		channel     VARCHAR(50),
		trust_level VARCHAR(16) NOT NULL DEFAULT 'blocked'
			CHECK (trust_level IN ('sovereign', 'trusted', 'limited', 'blocked')),
		name        VARCHAR(255),
		notes       TEXT,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS contacts_sender_channel_uq ON contacts (sender_id, COALESCE(channel, ''))`,
	`CREATE INDEX IF NOT EXISTS contacts_created_at_idx ON contacts (created_at)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id              BIGSERIAL PRIMARY KEY,
		action          VARCHAR(32) NOT NULL,
		sender_id       VARCHAR(255) NOT NULL,
		channel         VARCHAR(50),
		contact_id      BIGINT REFERENCES contacts (id) ON DELETE SET NULL,
		message_preview VARCHAR(500),
		decision_reason TEXT,
		metadata        TEXT,
		created_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS audit_logs_sender_created_idx ON audit_logs (sender_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS audit_logs_action_created_idx ON audit_logs (action, created_at)`,
	`CREATE INDEX IF NOT EXISTS audit_logs_created_at_idx ON audit_logs (created_at)`,
	`CREATE INDEX IF NOT EXISTS audit_logs_contact_idx ON audit_logs (contact_id)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS contacts (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_id   TEXT NOT NULL,
		channel     TEXT,
		trust_level TEXT NOT NULL DEFAULT 'blocked'
			CHECK (trust_level IN ('sovereign', 'trusted', 'limited', 'blocked')),
		name        TEXT,
		notes       TEXT,
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS contacts_sender_channel_uq ON contacts (sender_id, COALESCE(channel, ''))`,
	`CREATE INDEX IF NOT EXISTS contacts_created_at_idx ON contacts (created_at)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		action          TEXT NOT NULL,
		sender_id       TEXT NOT NULL,
		channel         TEXT,
		contact_id      INTEGER REFERENCES contacts (id) ON DELETE SET NULL,
		message_preview TEXT,
		decision_reason TEXT,
		metadata        TEXT,
		created_at      TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS audit_logs_sender_created_idx ON audit_logs (sender_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS audit_logs_action_created_idx ON audit_logs (action, created_at)`,
	`CREATE INDEX IF NOT EXISTS audit_logs_created_at_idx ON audit_logs (created_at)`,
	`CREATE INDEX IF NOT EXISTS audit_logs_contact_idx ON audit_logs (contact_id)`,
}

// Migrate creates the contacts and audit_logs tables and their indexes.
// It is idempotent and safe to run on every start.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := postgresSchema
	if d != nil && d.Dialect == DialectSQLite {
		stmts = sqliteSchema
	}
	err := d.WithTx(ctx, func(ctx context.Context, q Querier) error {
		for i, stmt := range stmts {
			if _, err := q.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrate step %d: %w", i+1, err)
			}
		}
		return nil
	})
	return Wrap(err)
}
