package middleware

import (
	"context"
	"net/http"
	"slices"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/MehulDev0228/aurin-platform-sub001/config"
)

// 客户端需要读到限流头来决定何时重试
const exposedHeaders = "Content-Length, Retry-After, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset"

func CORSMiddleware() app.HandlerFunc {
	allowed := config.Cfg.CORSAllowedOrigins
	wildcard := len(allowed) == 0 || slices.Contains(allowed, "*")

	return func(ctx context.Context, c *app.RequestContext) {
		origin := string(c.GetHeader("Origin"))
		if origin != "" && (wildcard || slices.Contains(allowed, origin)) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id")
			c.Header("Access-Control-Expose-Headers", exposedHeaders)
			c.Header("Access-Control-Max-Age", "86400")
		}

		if string(c.Method()) == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next(ctx)
	}
}
