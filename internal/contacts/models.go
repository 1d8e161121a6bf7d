package contacts

import (
	"errors"
	"strings"
	"time"
)

// Contact is a trust assertion about one sender, optionally scoped to a channel.
//
// Invariants:
// - (SenderID, Channel) is unique; Channel nil is the global record.
// - Name and Notes carry no policy meaning.
type Contact struct {
	ID         int64      `json:"id"`
	SenderID   string     `json:"sender_id"`
	Channel    *string    `json:"channel"`
	TrustLevel TrustLevel `json:"trust_level"`
	Name       *string    `json:"name"`
	Notes      *string    `json:"notes"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ChannelLabel returns the channel, or "" for a global record.
func (c Contact) ChannelLabel() string {
	if c.Channel == nil {
		return ""
	}
	return *c.Channel
}

// TrustLevel decides what a sender's messages may do.
type TrustLevel string

const (
	TrustSovereign TrustLevel = "sovereign"
	TrustTrusted   TrustLevel = "trusted"
	TrustLimited   TrustLevel = "limited"
	TrustBlocked   TrustLevel = "blocked"
)

// TrustLevels lists every level, most privileged first.
var TrustLevels = []TrustLevel{TrustSovereign, TrustTrusted, TrustLimited, TrustBlocked}

// ErrInvalidTrustLevel is returned by ValidateTrustLevel for unknown input.
var ErrInvalidTrustLevel = errors.New("contacts: invalid trust level")

// ParseTrustLevel is the forgiving parser for free text such as CLI flags.
// Anything unrecognised resolves to blocked.
func ParseTrustLevel(s string) TrustLevel {
	if lvl, err := ValidateTrustLevel(s); err == nil {
		return lvl
	}
	return TrustBlocked
}

// ValidateTrustLevel is the strict parser for API input.
func ValidateTrustLevel(s string) (TrustLevel, error) {
	switch TrustLevel(strings.ToLower(strings.TrimSpace(s))) {
	case TrustSovereign:
		return TrustSovereign, nil
	case TrustTrusted:
		return TrustTrusted, nil
	case TrustLimited:
		return TrustLimited, nil
	case TrustBlocked:
		return TrustBlocked, nil
	}
	return "", ErrInvalidTrustLevel
}

// Valid reports whether l is one of the canonical lowercase levels.
func (l TrustLevel) Valid() bool {
	switch l {
	case TrustSovereign, TrustTrusted, TrustLimited, TrustBlocked:
		return true
	}
	return false
}

// IsAllowed reports whether messages from this level reach the agent at all.
func (l TrustLevel) IsAllowed() bool { return l != TrustBlocked }

// CanTriggerActions reports whether the agent may act on messages, not only see them.
func (l TrustLevel) CanTriggerActions() bool { return l == TrustSovereign || l == TrustTrusted }

// IsSovereign reports whether l is the owner level.
func (l TrustLevel) IsSovereign() bool { return l == TrustSovereign }

func (l TrustLevel) String() string { return string(l) }
