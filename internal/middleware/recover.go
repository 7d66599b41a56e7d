package middleware

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/config"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/errors"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/response"
)

// 请求头里这些字段不进日志
var redactedHeaders = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
}

// RecoverConfig recover 中间件配置
type RecoverConfig struct {
	// 堆栈追踪级别（full, simple, none）
	StackTraceLevel string
	// 是否记录请求头
	LogRequestHeaders bool
	// 非生产环境在响应里带上 panic 信息
	ExposeDetails bool
}

func NewRecoverConfig() RecoverConfig {
	return RecoverConfig{
		StackTraceLevel:   "simple",
		LogRequestHeaders: true,
		ExposeDetails:     !config.Cfg.IsProduction(),
	}
}

var DefaultRecoverConfig = NewRecoverConfig()

func RecoverMiddleware() app.HandlerFunc {
	return RecoverMiddlewareWithConfig(DefaultRecoverConfig)
}

func RecoverMiddlewareWithConfig(cfg RecoverConfig) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		defer func() {
			if r := recover(); r != nil {
				handlePanic(ctx, c, r, cfg)
			}
		}()

		c.Next(ctx)
	}
}

func handlePanic(ctx context.Context, c *app.RequestContext, r interface{}, cfg RecoverConfig) {
	stack := stackTrace(cfg.StackTraceLevel)

	fields := []zap.Field{
		zap.String("panic", fmt.Sprintf("%v", r)),
		zap.String("path", string(c.Path())),
		zap.String("method", string(c.Method())),
		zap.String("client_ip", c.ClientIP()),
		zap.String("request_id", requestID(c)),
	}
	if userID, ok := GetUserID(ctx, c); ok {
		fields = append(fields, zap.String("user_id", userID))
	}
	// 请求体里有二维码令牌和证据照片，不记录
	if cfg.LogRequestHeaders {
		headers := make(map[string]string)
		c.Request.Header.VisitAll(func(key, value []byte) {
			if _, hidden := redactedHeaders[strings.ToLower(string(key))]; hidden {
				return
			}
			headers[string(key)] = string(value)
		})
		fields = append(fields, zap.Any("headers", headers))
	}
	if len(stack) > 0 {
		fields = append(fields, zap.ByteString("stack", stack))
	}

	span := trace.SpanFromContext(ctx)
	span.RecordError(fmt.Errorf("panic: %v", r))
	span.SetStatus(codes.Error, "panic recovered")

	logger.Logger.Error("[PANIC RECOVERED]", fields...)

	if c.Response.StatusCode() >= 400 && len(c.Response.Body()) > 0 {
		// 处理函数已经写过错误响应
		c.Abort()
		return
	}

	def := errors.Definition{Code: "INTERNAL_ERROR", Message: "Internal server error"}
	if cfg.ExposeDetails {
		response.ErrorWithDetails(ctx, c, def, map[string]interface{}{
			"panic": fmt.Sprintf("%v", r),
		})
	} else {
		response.Error(ctx, c, def)
	}
	c.Abort()
}

func requestID(c *app.RequestContext) string {
	if id := string(c.GetHeader("X-Request-ID")); id != "" {
		return id
	}
	return string(c.GetHeader("X-Trace-ID"))
}

// stackTrace simple 只保留当前 goroutine 中非 runtime 的帧
func stackTrace(level string) []byte {
	switch level {
	case "full":
		return debug.Stack()
	case "simple":
		var b strings.Builder
		for i := 3; ; i++ {
			pc, file, line, ok := runtime.Caller(i)
			if !ok {
				break
			}
			if strings.Contains(file, "/runtime/") {
				continue
			}
			if fn := runtime.FuncForPC(pc); fn != nil {
				fmt.Fprintf(&b, "  %s:%d\n    %s\n", file, line, fn.Name())
			}
		}
		return []byte(b.String())
	default:
		return nil
	}
}
