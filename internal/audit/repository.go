package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"waasp/internal/store"
)

// The audit_logs table is INSERT-only for normal operation.
// No update path exists; deleteBefore is reserved for retention.

const entryColumns = `id, action, sender_id, channel, contact_id, message_preview, decision_reason, metadata, created_at`

func insertEntry(ctx context.Context, q store.Querier, e *Entry) error {
	var metadata *string
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("%w: metadata: %v", ErrInvalidEntry, err)
		}
		s := string(b)
		metadata = &s
	}

	return q.QueryRow(ctx, `
		INSERT INTO audit_logs (action, sender_id, channel, contact_id, message_preview, decision_reason, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		string(e.Action), e.SenderID, e.Channel, e.ContactID, e.MessagePreview, e.DecisionReason, metadata, e.CreatedAt,
	).Scan(&e.ID)
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e                                  Entry
		action                             string
		channel, preview, reason, metadata sql.NullString
		contactID                          sql.NullInt64
	)
	if err := rows.Scan(&e.ID, &action, &e.SenderID, &channel, &contactID, &preview, &reason, &metadata, &e.CreatedAt); err != nil {
		return Entry{}, err
	}
	e.Action = Action(action)
	e.Channel = nullString(channel)
	e.MessagePreview = nullString(preview)
	e.DecisionReason = nullString(reason)
	if contactID.Valid {
		id := contactID.Int64
		e.ContactID = &id
	}
	if metadata.Valid && metadata.String != "" {
		// rows written by other tools may hold non-object JSON; keep it readable
		if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
			e.Metadata = map[string]any{"raw": metadata.String}
		}
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func queryEntries(ctx context.Context, q store.Querier, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.SenderID != "" {
		args = append(args, f.SenderID)
		where = append(where, fmt.Sprintf("sender_id = $%d", len(args)))
	}
	if f.Action != "" {
		args = append(args, string(f.Action))
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}
	if f.Channel != "" {
		args = append(args, f.Channel)
		where = append(where, fmt.Sprintf("channel = $%d", len(args)))
	}

	query := `SELECT ` + entryColumns + ` FROM audit_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func countByAction(ctx context.Context, q store.Querier) (map[Action]int64, error) {
	rows, err := q.Query(ctx, `SELECT action, COUNT(*) FROM audit_logs GROUP BY action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[Action]int64{}
	for rows.Next() {
		var (
			action string
			n      int64
		)
		if err := rows.Scan(&action, &n); err != nil {
			return nil, err
		}
		out[Action(action)] = n
	}
	return out, rows.Err()
}

func deleteBefore(ctx context.Context, q store.Querier, cutoff time.Time) (int64, error) {
	res, err := q.Exec(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
