package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oggyb/agency-backoffice/internal/authz"
	"github.com/oggyb/agency-backoffice/internal/db"
)

const actorKey = "actor"

// RequestID tags every request with an id for log correlation. An incoming
// X-Request-ID is honored so gateway traces line up.
func (s *Server) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Set("request_id", id)
		c.Next()
	}
}

// RequireAuth resolves the bearer session token to an actor and stores it on
// the gin context. Unauthenticated requests are rejected before any handler
// runs.
func (s *Server) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		userID, ok, err := s.appCtx.RedisCache.GetSession(c.Request.Context(), token)
		if err != nil {
			s.appCtx.Logger.Error("session lookup failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session store unavailable"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			return
		}

		actor, err := authz.Resolve(c.Request.Context(), s.appCtx.DB, userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireRole guards a route group to the given roles. Runs after
// RequireAuth.
func (s *Server) RequireRole(roles ...db.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := mustActor(c)
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

// mustActor fetches the actor set by RequireAuth.
func mustActor(c *gin.Context) authz.Actor {
	v, _ := c.Get(actorKey)
	actor, _ := v.(authz.Actor)
	return actor
}
