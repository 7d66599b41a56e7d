package response

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/MehulDev0228/aurin-platform-sub001/pkg/errors"
)

// ErrorCodeKey 写错误响应时把业务错误码记在请求上下文里，供追踪中间件读取
const ErrorCodeKey = "response.error_code"

// ErrorResponse 统一的错误响应格式
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Details map[string]interface{} `json:"details,omitempty"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
}

// SuccessResponse 统一的成功响应格式
type SuccessResponse struct {
	Data interface{}            `json:"data"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// asDefinition 支持被 %w 包装过的 Definition
func asDefinition(err error) (errors.Definition, bool) {
	var def errors.Definition
	if stderrors.As(err, &def) {
		return def, true
	}
	return errors.Definition{}, false
}

// StatusOf 将业务错误映射为 HTTP 状态码
func StatusOf(err error) int {
	def, ok := asDefinition(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch def.Code {
	case errors.Unauthorized.Code:
		return http.StatusUnauthorized // 401
	case errors.Forbidden.Code, errors.IssuerUnauthorized.Code:
		return http.StatusForbidden // 403
	case errors.RateLimited.Code:
		return http.StatusTooManyRequests // 429
	case errors.InvalidRequest.Code,
		errors.TokenExpired.Code, errors.TokenReplayed.Code, errors.TokenInvalidSignature.Code,
		errors.CheckInMismatch.Code, errors.EvidenceInvalid.Code, errors.OutsideGeofence.Code,
		errors.WalletInvalid.Code:
		return http.StatusBadRequest // 400
	case errors.EventNotFound.Code, errors.CheckInNotFound.Code, errors.AchievementNotFound.Code,
		errors.BadgeNotFound.Code, errors.ProfileNotFound.Code:
		return http.StatusNotFound // 404
	case errors.Conflict.Code, errors.InvalidTransition.Code:
		return http.StatusConflict // 409
	case errors.WalletRequired.Code:
		return http.StatusPreconditionFailed // 412
	default:
		return http.StatusInternalServerError // 500
	}
}

// Error 返回错误响应
func Error(ctx context.Context, c *app.RequestContext, err error) {
	ErrorWithDetails(ctx, c, err, nil)
}

func ErrorWithDetails(ctx context.Context, c *app.RequestContext, err error, details map[string]interface{}) {
	statusCode := StatusOf(err)

	var code, message string
	if def, ok := asDefinition(err); ok {
		code = def.Code
		message = def.Message
	} else {
		// 内部错误不向调用方暴露底层信息
		code = "INTERNAL_ERROR"
		message = "Internal server error"
		_ = c.Error(err)
	}
	c.Set(ErrorCodeKey, code)

	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data: data,
	})
}

func SuccessWithMeta(ctx context.Context, c *app.RequestContext, data interface{}, meta map[string]interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data: data,
		Meta: meta,
	})
}

// Created 返回 201，用于首次创建的资源
func Created(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{
		Data: data,
	})
}

func BindError(ctx context.Context, c *app.RequestContext, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    errors.InvalidRequest.Code,
			Message: err.Error(),
		},
	})
}

// ValidationError 返回字段级校验错误
func ValidationError(ctx context.Context, c *app.RequestContext, fields map[string]string) {
	details := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		details[k] = v
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    errors.InvalidRequest.Code,
			Message: errors.InvalidRequest.Message,
			Details: details,
		},
	})
}
