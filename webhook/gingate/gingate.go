// Package gingate exposes a webhook gate on Gin routers. It is a thin
// adapter: all admission, payment and delivery logic stays in the webhook
// package.
package gingate

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/x402gate/x402gate/webhook"
)

// Handler wraps a gate as a Gin handler. Path params are forwarded so
// dynamic segments reach the captured record.
func Handler(g *webhook.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := make(map[string]string, len(c.Params))
		for _, p := range c.Params {
			params[p.Key] = p.Value
		}

		r := c.Request.WithContext(webhook.WithParams(c.Request.Context(), params))
		g.ServeHTTP(c.Writer, r)
		c.Abort()
	}
}

// Mount registers the gate on router for every configured method, translating
// the chi-style path ("/hooks/{id}") into Gin's syntax ("/hooks/:id").
func Mount(router gin.IRouter, g *webhook.Gate) {
	path := ginPath(g.Config().Path)
	handler := Handler(g)
	for _, method := range g.Config().Methods {
		router.Handle(method, path, handler)
	}
}

func ginPath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			segments[i] = ":" + strings.Trim(seg, "{}")
		}
	}
	return strings.Join(segments, "/")
}
