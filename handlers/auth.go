package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pipeworks_backend/middlewares"
	"github.com/mmdatafocus/pipeworks_backend/models"
	"github.com/mmdatafocus/pipeworks_backend/utils"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *API) Login() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if !bindJSON(c, &req) {
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			respondError(c, "Login", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "token": info.Token, "user": info})
	}
}

// Me returns the account behind the bearer token.
func (a *API) Me() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
			return
		}
		user, err := models.GetUser(c.Request.Context(), userId)
		if err != nil {
			respondError(c, "Me", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
	}
}

func (a *API) Logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		expiresAt := time.Now().Add(time.Hour)
		if claims := middlewares.Claims(c); claims != nil {
			expiresAt = time.Unix(claims.ExpiresAt, 0)
		}
		if err := models.Logout(c.Request.Context(), expiresAt); err != nil {
			respondError(c, "Logout", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
