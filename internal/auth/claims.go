package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the only supported JWT claims shape for admin tokens.
// Subject (sub) names the operator; Role drives RBAC.
type Claims struct {
	jwt.RegisteredClaims

	Role string `json:"role"`
}
