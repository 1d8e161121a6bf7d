package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"waasp/internal/store"
)

const contactColumns = `id, sender_id, channel, trust_level, name, notes, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanContact(row scanner) (Contact, error) {
	var (
		c                    Contact
		channel, name, notes sql.NullString
		trust                string
	)
	if err := row.Scan(&c.ID, &c.SenderID, &channel, &trust, &name, &notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Contact{}, err
	}
	c.Channel = nullToPtr(channel)
	c.Name = nullToPtr(name)
	c.Notes = nullToPtr(notes)
	c.TrustLevel = ParseTrustLevel(trust)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func nullToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// FindExact looks up the exact (senderID, channel) pair; a nil channel
// matches only the global record. forUpdate locks the row on engines
// that support it and must only be set inside a transaction.
func FindExact(ctx context.Context, q store.Querier, senderID string, channel *string, forUpdate bool) (Contact, bool, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE sender_id = $1 AND channel IS NULL`
	args := []any{senderID}
	if channel != nil {
		query = `SELECT ` + contactColumns + ` FROM contacts WHERE sender_id = $1 AND channel = $2`
		args = append(args, *channel)
	}
	if forUpdate {
		query += q.Dialect().ForUpdate()
	}

	c, err := scanContact(q.QueryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Contact{}, false, nil
	}
	if err != nil {
		return Contact{}, false, err
	}
	return c, true, nil
}

// Insert stores c and fills in its ID. A duplicate pair surfaces as the
// engine's unique violation (see store.IsUniqueViolation).
func Insert(ctx context.Context, q store.Querier, c *Contact) error {
	return q.QueryRow(ctx, `
		INSERT INTO contacts (sender_id, channel, trust_level, name, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		c.SenderID, c.Channel, string(c.TrustLevel), c.Name, c.Notes, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
}

// Update rewrites the mutable fields of an existing contact by id.
func Update(ctx context.Context, q store.Querier, c Contact) error {
	res, err := q.Exec(ctx, `
		UPDATE contacts
		SET trust_level = $1, name = $2, notes = $3, updated_at = $4
		WHERE id = $5`,
		string(c.TrustLevel), c.Name, c.Notes, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("contacts: update affected %d rows", n)
	}
	return nil
}

// Delete removes a contact by id. Audit rows referencing it keep existing
// with contact_id set to NULL by the foreign key.
func Delete(ctx context.Context, q store.Querier, id int64) (bool, error) {
	res, err := q.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListFilter narrows List. Channel matches the exact channel OR global records.
type ListFilter struct {
	TrustLevel *TrustLevel
	Channel    *string
}

// List returns contacts newest first.
func List(ctx context.Context, q store.Querier, f ListFilter) ([]Contact, error) {
	var (
		where []string
		args  []any
	)
	if f.TrustLevel != nil {
		args = append(args, string(*f.TrustLevel))
		where = append(where, fmt.Sprintf("trust_level = $%d", len(args)))
	}
	if f.Channel != nil {
		args = append(args, *f.Channel)
		where = append(where, fmt.Sprintf("(channel = $%d OR channel IS NULL)", len(args)))
	}

	query := `SELECT ` + contactColumns + ` FROM contacts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
