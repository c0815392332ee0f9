package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shelfmark/backend/internal/model"
	"github.com/shelfmark/backend/internal/service"
)

const (
	authUserKey   = "auth_user"
	authClaimsKey = "auth_claims"
)

// AuthMiddleware admits requests carrying a valid, unrevoked access token
// whose subject still exists.
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			writeError(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := c.Request.Context()
		claims, err := authService.Authenticate(ctx, token, model.TokenKindAccess)
		if err != nil {
			writeAuthError(c, err)
			return
		}

		user, err := authService.ResolveUser(ctx, claims)
		if err != nil {
			writeAuthError(c, err)
			return
		}

		c.Set(authClaimsKey, claims)
		c.Set(authUserKey, user)
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(allowed ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := service.RequireRole(GetAuthUser(c), allowed...); err != nil {
			writeAuthError(c, err)
			return
		}
		c.Next()
	}
}

func GetAuthUser(c *gin.Context) *model.User {
	if value, ok := c.Get(authUserKey); ok {
		if user, ok := value.(*model.User); ok {
			return user
		}
	}
	return nil
}

func GetClaims(c *gin.Context) *service.Claims {
	if value, ok := c.Get(authClaimsKey); ok {
		if claims, ok := value.(*service.Claims); ok {
			return claims
		}
	}
	return nil
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	allowAll := false
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		switch trimmed {
		case "":
			continue
		case "*":
			allowAll = true
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originMap[origin]; ok || allowAll {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
				c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				c.Header("Access-Control-Expose-Headers", "Retry-After")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
