package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"assetdeck/api/internal/config"
	"assetdeck/api/internal/security"
	"assetdeck/api/internal/service"
)

const (
	AccessCookie  = "session_token"
	RefreshCookie = "refresh_token"

	identityKey = "identity"
)

// Session resolves the request's identity from the two cookie slots:
// a valid access cookie wins; otherwise a valid, unrevoked refresh cookie
// yields a rotated access cookie on the response. Anything else is
// anonymous. The only side effect is that cookie write.
func Session(auth *service.AuthService, cfg *config.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken, _ := c.Cookie(AccessCookie)
		refreshToken, _ := c.Cookie(RefreshCookie)

		identity, refreshedAccess := auth.Resolve(c.Request.Context(), accessToken, refreshToken)
		if refreshedAccess != "" {
			SetAccessCookie(c, cfg, refreshedAccess)
		}
		if identity != nil {
			c.Set(identityKey, *identity)
		}

		c.Next()
	}
}

// RequireAuth rejects anonymous requests. The 401 body never distinguishes
// expired from forged credentials.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentIdentity(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func CurrentIdentity(c *gin.Context) (security.Identity, bool) {
	val, exists := c.Get(identityKey)
	if !exists {
		return security.Identity{}, false
	}
	identity, ok := val.(security.Identity)
	return identity, ok
}

func SetAccessCookie(c *gin.Context, cfg *config.AppConfig, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessCookie, token, int(cfg.Security.AccessTTL.Seconds()), "/", cfg.Security.CookieDomain, cfg.Security.CookieSecure, true)
}

func SetRefreshCookie(c *gin.Context, cfg *config.AppConfig, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(RefreshCookie, token, int(cfg.Security.RefreshTTL.Seconds()), "/", cfg.Security.CookieDomain, cfg.Security.CookieSecure, true)
}

func ClearSessionCookies(c *gin.Context, cfg *config.AppConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessCookie, "", -1, "/", cfg.Security.CookieDomain, cfg.Security.CookieSecure, true)
	c.SetCookie(RefreshCookie, "", -1, "/", cfg.Security.CookieDomain, cfg.Security.CookieSecure, true)
}
