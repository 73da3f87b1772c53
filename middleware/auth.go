package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pulseblog/pulse/config"
	"github.com/pulseblog/pulse/utils"
)

const (
	// ContextUserIDKey is the key used to store the authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
)

// tokenFromRequest extracts a JWT from the Authorization header or, for
// browser flows, from the token cookie set at login.
func tokenFromRequest(ctx *gin.Context) string {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := ctx.Cookie("token"); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

// authenticate resolves the request's token into claims. It returns false
// for missing, revoked, or invalid tokens.
func authenticate(ctx *gin.Context) bool {
	token := tokenFromRequest(ctx)
	if token == "" || utils.IsTokenBlacklisted(token) {
		return false
	}
	claims, err := utils.ParseToken(token)
	if err != nil {
		return false
	}
	ctx.Set(ContextUserIDKey, claims.UserID)
	ctx.Set(ContextUsernameKey, claims.Username)
	return true
}

// LoginRequired guards pages that need an authenticated user. Anonymous
// requests are redirected to the login path with next pointing back at the
// originally requested URL.
func LoginRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !authenticate(ctx) {
			cfg := config.Get()
			target := cfg.LoginPath + "?next=" + url.QueryEscape(ctx.Request.URL.RequestURI())
			ctx.Redirect(http.StatusFound, target)
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// OptionalAuth resolves the user when a valid token is present but never
// blocks the request. Pages like profiles use it to personalize output.
func OptionalAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		_ = authenticate(ctx)
		ctx.Next()
	}
}
