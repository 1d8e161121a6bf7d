package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"waasp/pkg/utils"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:", utils.PoolConfig{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestDialect_Rebind(t *testing.T) {
	q := "SELECT 1 WHERE a = $1 AND b = $2"
	if got := DialectPostgres.Rebind(q); got != q {
		t.Fatalf("postgres rebind changed query: %q", got)
	}
	if got := DialectSQLite.Rebind(q); got != "SELECT 1 WHERE a = ?1 AND b = ?2" {
		t.Fatalf("unexpected sqlite rebind: %q", got)
	}
	if DialectSQLite.ForUpdate() != "" || DialectPostgres.ForUpdate() == "" {
		t.Fatalf("unexpected FOR UPDATE suffixes")
	}
}

func TestParseURL(t *testing.T) {
	cases := []struct {
		url     string
		dialect Dialect
		driver  string
	}{
		{"postgres://u:p@localhost/waasp", DialectPostgres, "pgx"},
		{"postgresql://localhost/waasp", DialectPostgres, "pgx"},
		{"host=localhost dbname=waasp", DialectPostgres, "pgx"},
		{"sqlite://waasp.db", DialectSQLite, "sqlite"},
		{"file:waasp.db", DialectSQLite, "sqlite"},
		{":memory:", DialectSQLite, "sqlite"},
	}
	for _, tc := range cases {
		d, drv, _, err := parseURL(tc.url)
		if err != nil {
			t.Fatalf("%s: unexpected err: %v", tc.url, err)
		}
		if d != tc.dialect || drv != tc.driver {
			t.Fatalf("%s: got %s/%s", tc.url, d, drv)
		}
	}
	if _, _, _, err := parseURL("mysql://x"); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
	if _, _, _, err := parseURL("  "); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestNilDB_IsUnavailable(t *testing.T) {
	var db *DB
	err := db.WithTx(context.Background(), func(context.Context, Querier) error { return nil })
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := db.Querier(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := db.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestUniqueIndex_GlobalPairCollides(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	q, err := db.Querier()
	if err != nil {
		t.Fatalf("querier: %v", err)
	}
	now := time.Now().UTC()
	insert := `INSERT INTO contacts (sender_id, channel, trust_level, created_at, updated_at) VALUES ($1, $2, 'trusted', $3, $3)`

	if _, err := q.Exec(ctx, insert, "+440000000001", nil, now); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err = q.Exec(ctx, insert, "+440000000001", nil, now)
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation for duplicate global pair, got %v", err)
	}
	if _, err := q.Exec(ctx, insert, "+440000000001", "telegram", now); err != nil {
		t.Fatalf("channel record should not collide with global: %v", err)
	}
	_, err = q.Exec(ctx, insert, "+440000000001", "telegram", now)
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation for duplicate channel pair, got %v", err)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(ctx context.Context, q Querier) error {
		_, err := q.Exec(ctx, `INSERT INTO contacts (sender_id, trust_level, created_at, updated_at) VALUES ($1, 'trusted', $2, $2)`, "x", time.Now().UTC())
		if err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	q, _ := db.Querier()
	var n int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected rollback, found %d rows", n)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil) != nil {
		t.Fatalf("expected nil")
	}
	if err := Wrap(errors.New("disk I/O error")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := Wrap(context.Canceled); !errors.Is(err, context.Canceled) || errors.Is(err, ErrUnavailable) {
		t.Fatalf("context errors should pass through, got %v", err)
	}
}
