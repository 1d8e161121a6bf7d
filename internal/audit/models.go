package audit

import (
	"errors"
	"strings"
	"time"
)

// Entry is an immutable, append-only audit log record.
//
// Invariants:
// - Entries are never updated. They are deleted only by retention cleanup.
// - SenderID is always set, even when no contact exists.
// - ContactID is a weak reference; it becomes nil when the contact is removed.
// - MessagePreview is never stored longer than MaxPreviewLen characters.
type Entry struct {
	ID             int64          `json:"id"`
	Action         Action         `json:"action"`
	SenderID       string         `json:"sender_id"`
	Channel        *string        `json:"channel"`
	ContactID      *int64         `json:"contact_id"`
	MessagePreview *string        `json:"message_preview"`
	DecisionReason *string        `json:"decision_reason"`
	Metadata       map[string]any `json:"metadata"`
	CreatedAt      time.Time      `json:"created_at"`
}

type Action string

const (
	// decision outcomes
	ActionAllowed Action = "allowed"
	ActionBlocked Action = "blocked"
	ActionLimited Action = "limited"

	// admin actions
	ActionContactAdded   Action = "contact_added"
	ActionContactUpdated Action = "contact_updated"
	ActionContactRemoved Action = "contact_removed"
	ActionTrustChanged   Action = "trust_changed"

	// reserved for adapters
	ActionCheckPerformed Action = "check_performed"
	ActionAPIAccess      Action = "api_access"
)

// Actions is the closed set of audit kinds.
var Actions = []Action{
	ActionAllowed, ActionBlocked, ActionLimited,
	ActionContactAdded, ActionContactUpdated, ActionContactRemoved, ActionTrustChanged,
	ActionCheckPerformed, ActionAPIAccess,
}

var (
	ErrInvalidAction = errors.New("audit: invalid action")
	ErrInvalidEntry  = errors.New("audit: invalid entry")
)

// ParseAction accepts only the defined kinds.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if a.Valid() {
		return a, nil
	}
	return "", ErrInvalidAction
}

func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// IsDecision reports whether a is the outcome of a check.
func (a Action) IsDecision() bool {
	return a == ActionAllowed || a == ActionBlocked || a == ActionLimited
}

const (
	MaxPreviewLen = 500
	DefaultLimit  = 100
	MaxLimit      = 1000
)

// Filter narrows Query. Empty fields are not applied; set fields are ANDed.
type Filter struct {
	SenderID string
	Action   Action
	Channel  string
	Limit    int
	Offset   int
}

// Normalize applies the default and maximum page size.
func (f Filter) Normalize() Filter {
	out := f
	if out.Limit <= 0 {
		out.Limit = DefaultLimit
	}
	if out.Limit > MaxLimit {
		out.Limit = MaxLimit
	}
	if out.Offset < 0 {
		out.Offset = 0
	}
	return out
}

type Stats struct {
	TotalEntries int64            `json:"total_entries"`
	ByAction     map[Action]int64 `json:"by_action"`
}

// TruncatePreview caps s at MaxPreviewLen characters, replacing the tail
// with "..." when it is cut.
func TruncatePreview(s string) string {
	r := []rune(s)
	if len(r) <= MaxPreviewLen {
		return s
	}
	return string(r[:MaxPreviewLen-3]) + "..."
}
