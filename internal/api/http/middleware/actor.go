package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/credfluxo/restructure-backend/internal/workflow/domain"
)

const (
	ctxActorID   = "actor_id"
	ctxActorRole = "actor_role"
)

// WithActor consumes the already-authenticated identity forwarded by
// the gateway. The backend never authenticates; it only validates that
// the forwarded role is one it knows.
func WithActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader("X-Actor-Id"))
		role := domain.Role(strings.TrimSpace(c.GetHeader("X-Actor-Role")))

		if id == "" || role == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "missing actor identity"})
			c.Abort()
			return
		}
		if !domain.ValidRole(role) {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unrecognized actor role"})
			c.Abort()
			return
		}

		c.Set(ctxActorID, id)
		c.Set(ctxActorRole, string(role))
		c.Next()
	}
}

// Actor returns the identity set by WithActor.
func Actor(c *gin.Context) domain.Actor {
	return domain.Actor{
		ID:   c.GetString(ctxActorID),
		Role: domain.Role(c.GetString(ctxActorRole)),
	}
}
