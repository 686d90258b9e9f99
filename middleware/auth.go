package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/techblog/techblog/auth"
	"github.com/techblog/techblog/utils"
)

const (
	// ContextIdentityKey stores the resolved auth.Identity inside Gin context.
	ContextIdentityKey = "identity"
	// ContextTokenKey stores the raw session token inside Gin context.
	ContextTokenKey = "session_token"
)

// SessionCookie describes the cookie that carries the session token.
type SessionCookie struct {
	Name   string
	Secure bool
}

// Write sets the cookie so that it lives for maxAge; a negative maxAge clears it.
func (c SessionCookie) Write(ctx *gin.Context, token string, maxAge time.Duration) {
	seconds := int(maxAge.Seconds())
	if maxAge < 0 {
		seconds = -1
	}
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(c.Name, token, seconds, "/", "", c.Secure, true)
}

// SessionResolver resolves the request's session token to an identity on every request.
// Requests without a valid session continue as anonymous. A live session read
// from the cookie gets the cookie rewritten, so the browser's expiry slides
// along with the server-side one.
func SessionResolver(sessions *auth.Manager, cookie SessionCookie) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, fromCookie := tokenFromRequest(ctx, cookie.Name)
		identity := sessions.Resolve(ctx.Request.Context(), token)
		if fromCookie && !identity.IsAnonymous() {
			cookie.Write(ctx, token, sessions.TTL())
		}
		ctx.Set(ContextTokenKey, token)
		ctx.Set(ContextIdentityKey, identity)
		ctx.Next()
	}
}

// AuthRequired rejects anonymous callers so the client re-prompts for credentials.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if auth.CanMutate(Identity(ctx)) != auth.Allowed {
			utils.Abort(ctx, http.StatusUnauthorized, 40101, "login required")
			return
		}
		ctx.Next()
	}
}

// Identity returns the caller resolved by SessionResolver, or auth.Anonymous.
func Identity(ctx *gin.Context) auth.Identity {
	if v, ok := ctx.Get(ContextIdentityKey); ok {
		if id, ok := v.(auth.Identity); ok {
			return id
		}
	}
	return auth.Anonymous
}

// SessionToken returns the raw token the request carried, if any.
func SessionToken(ctx *gin.Context) string {
	return ctx.GetString(ContextTokenKey)
}

// tokenFromRequest prefers a Bearer header and falls back to the session cookie.
func tokenFromRequest(ctx *gin.Context, cookieName string) (token string, fromCookie bool) {
	if header := ctx.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1]), false
		}
	}
	if cookie, err := ctx.Cookie(cookieName); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}
