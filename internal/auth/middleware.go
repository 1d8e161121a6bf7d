package auth

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"time"

	"waasp/internal/audit"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// Authenticator resolves the admin caller for a request.
//
// Accepted credentials, in order:
// - the static APIToken (role DefaultRole)
// - a JWT issued by Manager (role from the token)
//
// Without a bearer token the request passes only when AllowUnauthenticated
// is set (no credentials configured outside production) or TrustLoopback is
// set and the TCP peer is loopback. X-Forwarded-For is never consulted for that.
type Authenticator struct {
	Manager              *Manager
	APIToken             string
	DefaultRole          string
	AllowUnauthenticated bool
	TrustLoopback        bool
	Now                  func() time.Time
}

const (
	subjectAPIToken  = "api-token"
	subjectLocal     = "localhost"
	subjectAnonymous = "anonymous"
)

// Middleware verifies the caller and injects identity into the request context,
// both for RBAC (WithIdentity) and for audit metadata (audit.WithActor).
// It does not perform RBAC checks; those belong to internal/rbac.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, role, ok := a.authenticate(c)
		if !ok {
			return
		}

		ctx := WithIdentity(c.Request.Context(), subject, role)
		ctx = audit.WithActor(ctx, audit.Actor{Subject: subject, Role: role, ClientIP: c.ClientIP()})
		c.Request = c.Request.WithContext(ctx)

		// Also store on gin context for handler convenience.
		c.Set("subject", subject)
		c.Set("role", role)

		c.Next()
	}
}

func (a *Authenticator) authenticate(c *gin.Context) (string, string, bool) {
	raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
	if raw == "" {
		switch {
		case a.AllowUnauthenticated:
			return subjectAnonymous, a.DefaultRole, true
		case a.TrustLoopback && isLoopback(c.RemoteIP()):
			return subjectLocal, a.DefaultRole, true
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return "", "", false
	}
	if !strings.HasPrefix(raw, bearerPrefix) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return "", "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(raw, bearerPrefix))

	if a.APIToken != "" && subtle.ConstantTimeCompare([]byte(tok), []byte(a.APIToken)) == 1 {
		return subjectAPIToken, a.DefaultRole, true
	}
	if a.Manager != nil {
		now := time.Now
		if a.Now != nil {
			now = a.Now
		}
		if claims, err := a.Manager.Verify(tok, now()); err == nil {
			return claims.Subject, claims.Role, true
		}
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	return "", "", false
}

func isLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
