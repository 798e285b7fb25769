package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/mmdatafocus/pipeworks_backend/utils"
)

const claimsKey = "auth_claims"

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": message})
}

// AuthMiddleware requires a Bearer JWT that has not been logged out and puts
// the caller's identity on the request context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := strings.TrimSpace(c.Request.Header.Get("Authorization"))
		const bearer = "Bearer "
		if len(auth) <= len(bearer) || !strings.EqualFold(auth[:len(bearer)], bearer) {
			unauthorized(c, "unauthorized")
			return
		}
		token := strings.TrimSpace(auth[len(bearer):])

		claims, err := utils.JwtValidate(token)
		if err != nil {
			unauthorized(c, "unauthorized")
			return
		}
		revoked, err := utils.IsTokenRevoked(claims.Id)
		if err != nil {
			config.LogError(config.GetLogger(), "middlewares", "AuthMiddleware", "revocation check", claims.Id, err)
		}
		if revoked {
			unauthorized(c, "session has ended")
			return
		}

		ctx := utils.SetTokenIdInContext(c.Request.Context(), claims.Id)
		ctx = utils.SetUserIdInContext(ctx, claims.UserId)
		ctx = utils.SetUsernameInContext(ctx, claims.Username)
		ctx = utils.SetUserRoleInContext(ctx, claims.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Claims returns the validated token claims, nil outside AuthMiddleware.
func Claims(c *gin.Context) *utils.JwtCustomClaim {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*utils.JwtCustomClaim)
	return claims
}

// RequireRole must run after AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := utils.GetUserRoleFromContext(c.Request.Context())
		for _, r := range roles {
			if strings.EqualFold(r, role) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "forbidden"})
	}
}
