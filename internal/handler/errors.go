package handler

import (
	"context"
	stderrors "errors"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/middleware"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/model/dto"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/ratelimit"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/errors"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/response"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/snowflake"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/validate"
)

// writeError 在统一错误响应之外补充限流头和下一步动作
func writeError(ctx context.Context, c *app.RequestContext, err error) {
	var exceeded *ratelimit.ExceededError
	if stderrors.As(err, &exceeded) {
		middleware.SetRateLimitHeaders(c, exceeded.Decision)
	}

	if stderrors.Is(err, errors.WalletRequired) {
		response.ErrorWithDetails(ctx, c, err, map[string]interface{}{
			"next_action": dto.NextActionConnectWallet,
		})
		return
	}

	response.Error(ctx, c, err)
}

// bindAndValidate 绑定请求体并做字段校验，失败时已写入响应
func bindAndValidate(ctx context.Context, c *app.RequestContext, req interface{}) bool {
	if err := c.BindJSON(req); err != nil {
		response.BindError(ctx, c, err)
		return false
	}
	if err := validate.Struct(req); err != nil {
		if fields := validate.FieldErrors(err); len(fields) > 0 {
			response.ValidationError(ctx, c, fields)
		} else {
			response.BindError(ctx, c, err)
		}
		return false
	}
	return true
}

func mustUserID(ctx context.Context, c *app.RequestContext) (string, bool) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return "", false
	}
	return userID, true
}

// pathID 解析路径中的 snowflake ID
func pathID(ctx context.Context, c *app.RequestContext, name string) (int64, bool) {
	id, err := snowflake.ParseID(c.Param(name))
	if err != nil || id <= 0 {
		response.ValidationError(ctx, c, map[string]string{name: "must be a numeric id"})
		return 0, false
	}
	return id, true
}
