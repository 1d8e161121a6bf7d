package whitelist

import (
	"fmt"

	"waasp/internal/contacts"
)

const (
	ReasonUnknownSender = "Unknown sender - not in whitelist"
	ReasonBlocked       = "Sender is explicitly blocked"
	ReasonLimited       = "Sender has limited access"
)

// decide maps a resolved contact (or its absence) to a verdict.
// Absence is never trust: an unresolved sender is blocked.
func decide(c contacts.Contact, found bool) CheckResult {
	if !found {
		return CheckResult{Allowed: false, TrustLevel: contacts.TrustBlocked, Reason: ReasonUnknownSender}
	}

	res := CheckResult{TrustLevel: c.TrustLevel, Name: c.Name, Contact: &c}
	switch c.TrustLevel {
	case contacts.TrustSovereign, contacts.TrustTrusted:
		res.Allowed = true
		res.Reason = fmt.Sprintf("Sender is %s", c.TrustLevel)
	case contacts.TrustLimited:
		res.Allowed = true
		res.Reason = ReasonLimited
	default:
		res.Allowed = false
		res.TrustLevel = contacts.TrustBlocked
		res.Reason = ReasonBlocked
	}
	return res
}
