package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/oggyb/agency-backoffice/internal/db"
	"github.com/oggyb/agency-backoffice/internal/repository"
)

// handleLogin verifies credentials and opens a Redis-backed session.
// Staff accounts must be approved before they can sign in.
func (s *Server) handleLogin(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	if email == "" || password == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "email and password are required"})
		return
	}

	users := repository.NewUserRepository(s.appCtx.DB)
	user, err := users.GetByEmail(c.Request.Context(), email)
	if err != nil {
		// same answer for unknown email and bad password
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if user.Role.IsStaff() && user.ApprovalStatus != db.ApprovalApproved {
		c.JSON(http.StatusForbidden, gin.H{"error": "account awaiting approval"})
		return
	}

	token := uuid.NewString()
	if err := s.appCtx.RedisCache.SetSession(c.Request.Context(), token, user.ID, s.cfg.Session.TTL); err != nil {
		s.appCtx.Logger.Error("failed to store session", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session store unavailable"})
		return
	}

	s.appCtx.Logger.Info("login", "user", user.ID, "role", user.Role)
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

// handleLogout drops the caller's session token.
func (s *Server) handleLogout(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if err := s.appCtx.RedisCache.DelSession(c.Request.Context(), token); err != nil {
		s.appCtx.Logger.Warn("failed to drop session", "err", err)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
