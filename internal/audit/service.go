package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"waasp/internal/store"
	"waasp/pkg/logger"
)

// Service is the write and read path for the audit trail.
//
// IMPORTANT:
//   - Decision entries must be written with RecordTx inside the caller's
//     transaction so the decision and its record commit together.
//   - Audit is internal-only; expose it to admin/auditor roles only.
type Service struct {
	db    *store.DB
	clock func() time.Time
}

func NewService(db *store.DB) *Service {
	return &Service{db: db, clock: time.Now}
}

// Record persists one entry in its own transaction.
func (s *Service) Record(ctx context.Context, e Entry) (Entry, error) {
	var out Entry
	err := s.db.WithTx(ctx, func(ctx context.Context, q store.Querier) error {
		var err error
		out, err = s.RecordTx(ctx, q, e)
		return err
	})
	if err != nil {
		return Entry{}, classify(err)
	}
	return out, nil
}

// RecordTx persists one entry using q, normally a transaction owned by the caller.
func (s *Service) RecordTx(ctx context.Context, q store.Querier, e Entry) (Entry, error) {
	if !e.Action.Valid() {
		return Entry{}, ErrInvalidAction
	}
	if strings.TrimSpace(e.SenderID) == "" {
		return Entry{}, fmt.Errorf("%w: sender_id is required", ErrInvalidEntry)
	}
	if e.MessagePreview != nil {
		p := TruncatePreview(*e.MessagePreview)
		e.MessagePreview = &p
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	if err := insertEntry(ctx, q, &e); err != nil {
		return Entry{}, err
	}
	logger.From(ctx).Debug("audit recorded", "action", string(e.Action), "sender_id", e.SenderID, "audit_id", e.ID)
	return e, nil
}

// Query returns entries newest first. Limit defaults to DefaultLimit and
// is capped at MaxLimit.
func (s *Service) Query(ctx context.Context, f Filter) ([]Entry, error) {
	if f.Action != "" && !f.Action.Valid() {
		return nil, ErrInvalidAction
	}
	q, err := s.db.Querier()
	if err != nil {
		return nil, err
	}
	out, err := queryEntries(ctx, q, f.Normalize())
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// Stats counts entries per action kind. Kinds with no entries are absent.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	q, err := s.db.Querier()
	if err != nil {
		return Stats{}, err
	}
	by, err := countByAction(ctx, q)
	if err != nil {
		return Stats{}, classify(err)
	}
	st := Stats{ByAction: by}
	for _, n := range by {
		st.TotalEntries += n
	}
	return st, nil
}

// Cleanup deletes entries older than olderThan and returns how many went.
func (s *Service) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: retention must be > 0", ErrInvalidEntry)
	}
	return s.PurgeBefore(ctx, s.clock().UTC().Add(-olderThan))
}

// PurgeBefore deletes entries created strictly before cutoff.
func (s *Service) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	q, err := s.db.Querier()
	if err != nil {
		return 0, err
	}
	n, err := deleteBefore(ctx, q, cutoff.UTC())
	if err != nil {
		return 0, classify(err)
	}
	logger.From(ctx).Info("audit cleanup", "deleted", n, "cutoff", cutoff.UTC())
	return n, nil
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidAction), errors.Is(err, ErrInvalidEntry):
		return err
	default:
		return store.Wrap(err)
	}
}
