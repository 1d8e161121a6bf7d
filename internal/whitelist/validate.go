package whitelist

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"waasp/internal/audit"
	"waasp/internal/contacts"
)

const (
	MaxSenderIDLen = 255
	MaxChannelLen  = 50
	MaxNameLen     = 255
	MaxNotesLen    = 4000
	MaxPreviewLen  = audit.MaxPreviewLen
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// normalizeSender trims s and enforces presence and length.
func normalizeSender(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", invalid("sender_id is required")
	}
	if err := checkText("sender_id", s, MaxSenderIDLen); err != nil {
		return "", err
	}
	return s, nil
}

// normalizeChannel trims the channel; blank means global (nil).
// Matching stays case-sensitive.
func normalizeChannel(p *string) (*string, error) {
	if p == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil, nil
	}
	if err := checkText("channel", s, MaxChannelLen); err != nil {
		return nil, err
	}
	return &s, nil
}

func checkOptional(field string, p *string, max int) error {
	if p == nil {
		return nil
	}
	return checkText(field, *p, max)
}

// checkText enforces a length bound in characters. NUL is refused because
// Postgres text columns cannot hold it; everything else is stored verbatim.
func checkText(field, s string, max int) error {
	if !utf8.ValidString(s) {
		return invalid("%s must be valid UTF-8", field)
	}
	if strings.ContainsRune(s, 0) {
		return invalid("%s must not contain NUL", field)
	}
	if n := utf8.RuneCountInString(s); n > max {
		return invalid("%s exceeds %d characters", field, max)
	}
	return nil
}

func checkTrust(l contacts.TrustLevel) error {
	if !l.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, contacts.ErrInvalidTrustLevel)
	}
	return nil
}

// emptyToNil turns an explicit "" into a cleared (NULL) field.
func emptyToNil(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	return p
}
