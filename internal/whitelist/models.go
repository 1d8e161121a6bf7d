package whitelist

import (
	"errors"

	"waasp/internal/audit"
	"waasp/internal/contacts"
)

var (
	ErrInvalidArgument = errors.New("whitelist: invalid argument")
	ErrAlreadyExists   = errors.New("whitelist: contact already exists")
	ErrNotFound        = errors.New("whitelist: contact not found")
)

type CheckRequest struct {
	SenderID       string
	Channel        *string
	MessagePreview *string
}

// CheckResult is the verdict for one message.
// Allowed is true for limited senders: they reach the agent but
// TrustLevel.CanTriggerActions is false.
type CheckResult struct {
	Allowed    bool                `json:"allowed"`
	TrustLevel contacts.TrustLevel `json:"trust"`
	Name       *string             `json:"name"`
	Reason     string              `json:"reason"`

	Contact *contacts.Contact `json:"-"`
	AuditID int64             `json:"-"`
}

// Action is the audit kind recorded for this verdict.
func (r CheckResult) Action() audit.Action {
	switch {
	case r.Allowed && r.TrustLevel == contacts.TrustLimited:
		return audit.ActionLimited
	case r.Allowed:
		return audit.ActionAllowed
	default:
		return audit.ActionBlocked
	}
}

// AddRequest creates a contact. An empty TrustLevel means trusted.
type AddRequest struct {
	SenderID   string
	TrustLevel contacts.TrustLevel
	Channel    *string
	Name       *string
	Notes      *string
}

// UpdateRequest changes an existing contact in place.
// Nil fields are left untouched; a pointer to "" clears Name or Notes.
type UpdateRequest struct {
	SenderID   string
	Channel    *string
	TrustLevel *contacts.TrustLevel
	Name       *string
	Notes      *string
}

type ListFilter = contacts.ListFilter
