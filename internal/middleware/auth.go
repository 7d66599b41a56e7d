package middleware

import (
	"context"
	"fmt"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/jwt"

	"github.com/MehulDev0228/aurin-platform-sub001/pkg/errors"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/response"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/token"
)

const (
	IdentityKey = token.IdentityKey
)

var (
	authMiddleware *jwt.HertzJWTMiddleware
)

func initAuthMiddleware() error {
	// 使用 token 包中共享的生成器
	sharedGenerator := token.GetGenerator()
	if sharedGenerator == nil {
		return fmt.Errorf("token generator not initialized, call token.Init() first")
	}

	authMiddleware = &jwt.HertzJWTMiddleware{
		Realm:       "Aurin API",
		Key:         sharedGenerator.Key,
		Timeout:     sharedGenerator.Timeout,
		MaxRefresh:  sharedGenerator.MaxRefresh,
		IdentityKey: sharedGenerator.IdentityKey,
		TimeFunc:    sharedGenerator.TimeFunc,

		IdentityHandler: func(ctx context.Context, c *app.RequestContext) interface{} {
			id, err := token.IdentityFromClaims(jwt.ExtractClaims(ctx, c))
			if err != nil {
				return nil
			}
			return id
		},

		// 解析不出身份的令牌一律拒绝
		Authorizator: func(data interface{}, ctx context.Context, c *app.RequestContext) bool {
			_, ok := data.(token.Identity)
			return ok
		},

		Unauthorized: func(ctx context.Context, c *app.RequestContext, code int, message string) {
			c.JSON(code, response.ErrorResponse{
				Error: response.ErrorDetail{
					Code:    errors.Unauthorized.Code,
					Message: message,
				},
			})
		},

		TokenLookup:   "header: Authorization",
		TokenHeadName: "Bearer",
	}

	return authMiddleware.MiddlewareInit()
}

func AuthMiddleware() app.HandlerFunc {
	if authMiddleware == nil {
		panic("AuthMiddleware not initialized, call Init() first")
	}
	return authMiddleware.MiddlewareFunc()
}

// RequireRole 必须在 AuthMiddleware 之后
func RequireRole(roles ...string) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		role, _ := GetRole(ctx, c)
		for _, r := range roles {
			if r == role {
				c.Next(ctx)
				return
			}
		}
		response.Error(ctx, c, errors.Forbidden)
		c.Abort()
	}
}

func identity(c *app.RequestContext) (token.Identity, bool) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return token.Identity{}, false
	}
	id, ok := v.(token.Identity)
	return id, ok
}

// GetUserID 从请求上下文中获取用户ID
func GetUserID(ctx context.Context, c *app.RequestContext) (string, bool) {
	id, ok := identity(c)
	if !ok || id.UserID == "" {
		return "", false
	}
	return id.UserID, true
}

func GetRole(ctx context.Context, c *app.RequestContext) (string, bool) {
	id, ok := identity(c)
	if !ok {
		return "", false
	}
	return id.Role, id.Role != ""
}
