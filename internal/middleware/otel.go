package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/MehulDev0228/aurin-platform-sub001/pkg/metrics"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/response"
)

// NewServerTracerConfig 返回 hertz 服务端追踪选项和建 span 的中间件
func NewServerTracerConfig(opts ...hertztracing.Option) (config.Option, app.HandlerFunc) {
	tracer, cfg := hertztracing.NewServerTracer(opts...)
	return tracer, hertztracing.ServerMiddleware(cfg)
}

// RequestTelemetryMiddleware 给服务端 span 补充路由、用户和业务错误码，并记录 HTTP 指标
// span 由 NewServerTracerConfig 的中间件创建，未启用追踪时只记指标
func RequestTelemetryMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		metrics.AddActiveRequest(ctx, 1)
		defer metrics.AddActiveRequest(ctx, -1)

		c.Next(ctx)

		// 路由模板做标签，签到和成就 ID 不进指标
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := string(c.Method())
		status := c.Response.StatusCode()
		metrics.RecordHTTPRequest(ctx, method, route, status, time.Since(start))

		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}
		span.SetAttributes(semconv.HTTPRoute(route))
		if id := c.GetHeader("X-Request-Id"); len(id) > 0 {
			span.SetAttributes(attribute.String("http.request_id", strings.ToValidUTF8(string(id), "")))
		}
		if userID, ok := GetUserID(ctx, c); ok {
			span.SetAttributes(attribute.String("enduser.id", userID))
		}
		if role, ok := GetRole(ctx, c); ok {
			span.SetAttributes(attribute.String("enduser.role", role))
		}
		if code := c.GetString(response.ErrorCodeKey); code != "" {
			span.SetAttributes(attribute.String("aurin.error_code", code))
		}
		if status >= 500 {
			span.SetStatus(codes.Error, "server error")
			if last := c.Errors.Last(); last != nil {
				span.RecordError(last)
			}
		}
	}
}
