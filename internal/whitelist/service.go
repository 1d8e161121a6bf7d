package whitelist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"waasp/internal/audit"
	"waasp/internal/contacts"
	"waasp/internal/notify"
	"waasp/internal/store"
	"waasp/pkg/logger"
)

// Service is the whitelist gate: checks plus contact administration.
//
// Every operation is one short transaction. The audit entry for an
// operation is written in the same transaction, so a result is only
// returned once its record is committed.
type Service struct {
	db       *store.DB
	audit    *audit.Service
	notifier notify.Publisher
	clock    func() time.Time
}

func NewService(db *store.DB, auditSvc *audit.Service) *Service {
	return &Service{db: db, audit: auditSvc, notifier: notify.Nop{}, clock: time.Now}
}

// WithNotifier sets the publisher used for committed BLOCKED decisions.
func (s *Service) WithNotifier(p notify.Publisher) *Service {
	if p == nil {
		p = notify.Nop{}
	}
	s.notifier = p
	return s
}

const notifyTimeout = 2 * time.Second

// Check resolves the sender and records exactly one decision entry.
func (s *Service) Check(ctx context.Context, req CheckRequest) (CheckResult, error) {
	sender, err := normalizeSender(req.SenderID)
	if err != nil {
		return CheckResult{}, err
	}
	channel, err := normalizeChannel(req.Channel)
	if err != nil {
		return CheckResult{}, err
	}
	if req.MessagePreview != nil {
		if !utf8.ValidString(*req.MessagePreview) || strings.ContainsRune(*req.MessagePreview, 0) {
			return CheckResult{}, invalid("message_preview must be valid UTF-8 without NUL")
		}
	}
	if s.audit == nil {
		return CheckResult{}, store.ErrUnavailable
	}

	var res CheckResult
	err = s.db.WithTx(ctx, func(ctx context.Context, q store.Querier) error {
		c, found, err := contacts.Resolve(ctx, q, sender, channel)
		if err != nil {
			return err
		}
		res = decide(c, found)

		reason := res.Reason
		entry := audit.Entry{
			Action:         res.Action(),
			SenderID:       sender,
			Channel:        channel,
			MessagePreview: req.MessagePreview,
			DecisionReason: &reason,
		}
		if found {
			entry.ContactID = &c.ID
		}
		e, err := s.audit.RecordTx(ctx, q, entry)
		if err != nil {
			return err
		}
		res.AuditID = e.ID
		return nil
	})
	if err != nil {
		return CheckResult{}, s.fail(ctx, "check", err)
	}

	logger.From(ctx).Info("check",
		"sender_id", sender,
		"channel", deref(channel),
		"action", string(res.Action()),
		"trust_level", string(res.TrustLevel),
	)

	if res.Action() == audit.ActionBlocked {
		s.notifyBlocked(ctx, sender, channel, res.Reason)
	}
	return res, nil
}

func (s *Service) notifyBlocked(ctx context.Context, sender string, channel *string, reason string) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	err := s.notifier.PublishBlocked(nctx, notify.Event{
		SenderID: sender,
		Channel:  channel,
		Reason:   reason,
		At:       s.clock().UTC(),
	})
	if err != nil {
		logger.From(ctx).Warn("blocked notification failed", "sender_id", sender, "err", err)
	}
}

// Add creates a contact for an exact (sender, channel) pair.
// Concurrent adds for one pair: one wins, the rest get ErrAlreadyExists.
func (s *Service) Add(ctx context.Context, req AddRequest) (contacts.Contact, error) {
	sender, err := normalizeSender(req.SenderID)
	if err != nil {
		return contacts.Contact{}, err
	}
	channel, err := normalizeChannel(req.Channel)
	if err != nil {
		return contacts.Contact{}, err
	}
	lvl := req.TrustLevel
	if lvl == "" {
		lvl = contacts.TrustTrusted
	}
	if err := checkTrust(lvl); err != nil {
		return contacts.Contact{}, err
	}
	if err := checkOptional("name", req.Name, MaxNameLen); err != nil {
		return contacts.Contact{}, err
	}
	if err := checkOptional("notes", req.Notes, MaxNotesLen); err != nil {
		return contacts.Contact{}, err
	}
	if s.audit == nil {
		return contacts.Contact{}, store.ErrUnavailable
	}

	now := s.clock().UTC()
	c := contacts.Contact{
		SenderID:   sender,
		Channel:    channel,
		TrustLevel: lvl,
		Name:       emptyToNil(req.Name),
		Notes:      emptyToNil(req.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.db.WithTx(ctx, func(ctx context.Context, q store.Querier) error {
		if _, found, err := contacts.FindExact(ctx, q, sender, channel, false); err != nil {
			return err
		} else if found {
			return ErrAlreadyExists
		}
		if err := contacts.Insert(ctx, q, &c); err != nil {
			if store.IsUniqueViolation(err) {
				return ErrAlreadyExists
			}
			return err
		}

		reason := fmt.Sprintf("Added with trust level %s", lvl)
		_, err := s.audit.RecordTx(ctx, q, audit.Entry{
			Action:         audit.ActionContactAdded,
			SenderID:       sender,
			Channel:        channel,
			ContactID:      &c.ID,
			DecisionReason: &reason,
			Metadata:       audit.ActorMetadata(ctx),
		})
		return err
	})
	if err != nil {
		return contacts.Contact{}, s.fail(ctx, "add", err)
	}

	logger.From(ctx).Info("contact added", "sender_id", sender, "channel", deref(channel), "contact_id", c.ID, "trust_level", string(lvl))
	return c, nil
}

// Update changes trust level, name or notes of the exact pair.
// It records trust_changed when the level moves, otherwise contact_updated.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (contacts.Contact, error) {
	sender, err := normalizeSender(req.SenderID)
	if err != nil {
		return contacts.Contact{}, err
	}
	channel, err := normalizeChannel(req.Channel)
	if err != nil {
		return contacts.Contact{}, err
	}
	if req.TrustLevel != nil {
		if err := checkTrust(*req.TrustLevel); err != nil {
			return contacts.Contact{}, err
		}
	}
	if err := checkOptional("name", req.Name, MaxNameLen); err != nil {
		return contacts.Contact{}, err
	}
	if err := checkOptional("notes", req.Notes, MaxNotesLen); err != nil {
		return contacts.Contact{}, err
	}
	if s.audit == nil {
		return contacts.Contact{}, store.ErrUnavailable
	}

	var c contacts.Contact
	err = s.db.WithTx(ctx, func(ctx context.Context, q store.Querier) error {
		var (
			found bool
			err   error
		)
		c, found, err = contacts.FindExact(ctx, q, sender, channel, true)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}

		old := c.TrustLevel
		if req.TrustLevel != nil {
			c.TrustLevel = *req.TrustLevel
		}
		if req.Name != nil {
			c.Name = emptyToNil(req.Name)
		}
		if req.Notes != nil {
			c.Notes = emptyToNil(req.Notes)
		}
		c.UpdatedAt = s.clock().UTC()

		if err := contacts.Update(ctx, q, c); err != nil {
			return err
		}

		action := audit.ActionContactUpdated
		reason := "Contact details updated"
		if c.TrustLevel != old {
			action = audit.ActionTrustChanged
			reason = fmt.Sprintf("Trust changed from %s to %s", old, c.TrustLevel)
		}
		_, err = s.audit.RecordTx(ctx, q, audit.Entry{
			Action:         action,
			SenderID:       sender,
			Channel:        channel,
			ContactID:      &c.ID,
			DecisionReason: &reason,
			Metadata:       audit.ActorMetadata(ctx),
		})
		return err
	})
	if err != nil {
		return contacts.Contact{}, s.fail(ctx, "update", err)
	}

	logger.From(ctx).Info("contact updated", "sender_id", sender, "channel", deref(channel), "contact_id", c.ID, "trust_level", string(c.TrustLevel))
	return c, nil
}

// Remove deletes the exact pair. A missing pair is not an error: it
// returns false and records nothing.
func (s *Service) Remove(ctx context.Context, senderID string, channel *string) (bool, error) {
	sender, err := normalizeSender(senderID)
	if err != nil {
		return false, err
	}
	ch, err := normalizeChannel(channel)
	if err != nil {
		return false, err
	}
	if s.audit == nil {
		return false, store.ErrUnavailable
	}

	var removed bool
	err = s.db.WithTx(ctx, func(ctx context.Context, q store.Querier) error {
		c, found, err := contacts.FindExact(ctx, q, sender, ch, true)
		if err != nil || !found {
			return err
		}
		removed, err = contacts.Delete(ctx, q, c.ID)
		if err != nil || !removed {
			return err
		}

		md := audit.ActorMetadata(ctx)
		if md == nil {
			md = map[string]any{}
		}
		md["trust_level"] = string(c.TrustLevel)
		reason := "Contact removed from whitelist"
		_, err = s.audit.RecordTx(ctx, q, audit.Entry{
			Action:         audit.ActionContactRemoved,
			SenderID:       sender,
			Channel:        ch,
			DecisionReason: &reason,
			Metadata:       md,
		})
		return err
	})
	if err != nil {
		return false, s.fail(ctx, "remove", err)
	}
	if removed {
		logger.From(ctx).Info("contact removed", "sender_id", sender, "channel", deref(ch))
	}
	return removed, nil
}

// List returns contacts newest first. A channel filter includes global records.
func (s *Service) List(ctx context.Context, f ListFilter) ([]contacts.Contact, error) {
	if f.TrustLevel != nil {
		if err := checkTrust(*f.TrustLevel); err != nil {
			return nil, err
		}
	}
	ch, err := normalizeChannel(f.Channel)
	if err != nil {
		return nil, err
	}
	f.Channel = ch

	q, err := s.db.Querier()
	if err != nil {
		return nil, err
	}
	out, err := contacts.List(ctx, q, f)
	if err != nil {
		return nil, s.fail(ctx, "list", err)
	}
	return out, nil
}

// Get returns the exact pair, without channel fallback.
func (s *Service) Get(ctx context.Context, senderID string, channel *string) (contacts.Contact, error) {
	sender, err := normalizeSender(senderID)
	if err != nil {
		return contacts.Contact{}, err
	}
	ch, err := normalizeChannel(channel)
	if err != nil {
		return contacts.Contact{}, err
	}

	q, err := s.db.Querier()
	if err != nil {
		return contacts.Contact{}, err
	}
	c, found, err := contacts.FindExact(ctx, q, sender, ch, false)
	if err != nil {
		return contacts.Contact{}, s.fail(ctx, "get", err)
	}
	if !found {
		return contacts.Contact{}, ErrNotFound
	}
	return c, nil
}

// fail keeps domain errors as-is and turns anything else into
// store.ErrUnavailable after logging the cause.
func (s *Service) fail(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrNotFound):
		return err
	case errors.Is(err, audit.ErrInvalidAction), errors.Is(err, audit.ErrInvalidEntry):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	wrapped := store.Wrap(err)
	logger.From(ctx).Error("whitelist operation failed", "op", op, "err", err)
	return wrapped
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
