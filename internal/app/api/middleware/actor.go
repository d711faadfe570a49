package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/deliveryhub/pkg/logctx"
)

const HeaderUserID = "X-User-ID"

// ActorMiddleware records the acting user from X-User-ID. Identity is
// trusted as given; authentication happens upstream.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := strings.TrimSpace(c.GetHeader(HeaderUserID)); uid != "" {
			c.Set(logctx.KeyUserID, uid)
			c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logctx.KeyUserID, uid))
		}
		c.Next()
	}
}
