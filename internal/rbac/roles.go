package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts
// and appear in issued tokens.
const (
	RoleAdmin   = "admin"
	RoleAuditor = "auditor"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

// IsKnownRole reports whether role may be put in a token.
func IsKnownRole(role string) bool { return role == RoleAdmin || role == RoleAuditor }
