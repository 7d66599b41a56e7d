package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/config"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/ratelimit"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/metrics"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/response"
)

// GeneralPolicy 所有接口共用的兜底限额，业务接口另有自己的策略
func GeneralPolicy() ratelimit.Policy {
	rpm := config.Cfg.RateLimitRPM
	if rpm <= 0 {
		rpm = 120
	}
	return ratelimit.Policy{Action: "http", Max: rpm, Window: time.Minute}
}

// identifier 已认证按用户，否则按 IP
func identifier(ctx context.Context, c *app.RequestContext) string {
	if userID, ok := GetUserID(ctx, c); ok {
		return fmt.Sprintf("user:%s", userID)
	}
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// SetRateLimitHeaders 写入 X-RateLimit-*，被拒绝时附带 Retry-After
func SetRateLimitHeaders(c *app.RequestContext, d ratelimit.Decision) {
	c.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Response.Header.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	c.Response.Header.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

	if !d.Allowed {
		retry := int(time.Until(d.ResetAt).Seconds()) + 1
		if retry < 1 {
			retry = 1
		}
		c.Response.Header.Set("Retry-After", strconv.Itoa(retry))
	}
}

// RateLimitMiddleware 存储出错时放行，只记录日志
func RateLimitMiddleware(p ratelimit.Policy) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if limiter == nil {
			c.Next(ctx)
			return
		}

		d, err := limiter.Allow(ctx, p, identifier(ctx, c), "")
		if err != nil {
			logger.Logger.Error("Failed to check rate limit", zap.String("action", p.Action), zap.Error(err))
			c.Next(ctx)
			return
		}

		SetRateLimitHeaders(c, d)
		if !d.Allowed {
			metrics.RecordRateLimited(ctx, p.Action)
			response.Error(ctx, c, &ratelimit.ExceededError{Decision: d})
			c.Abort()
			return
		}

		c.Next(ctx)
	}
}

// GeneralRateLimitMiddleware 通用限流中间件
func GeneralRateLimitMiddleware() app.HandlerFunc {
	return RateLimitMiddleware(GeneralPolicy())
}
