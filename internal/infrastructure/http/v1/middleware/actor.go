package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "docledger/internal/core/context"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorName = "X-Actor-Name"
)

// Actor puts the caller identity into the request context.
//
// Authentication happens in front of the service (gateway or proxy), which
// forwards the resolved identity in X-Actor-ID. Requests without it run anonymous.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actorID := strings.TrimSpace(c.GetHeader(HeaderActorID)); actorID != "" {
			ctx := appctx.WithActor(c.Request.Context(), &appctx.Actor{
				ID:   actorID,
				Name: strings.TrimSpace(c.GetHeader(HeaderActorName)),
			})
			c.Request = c.Request.WithContext(ctx)
			c.Set("actor_id", actorID)
		}
		c.Next()
	}
}
