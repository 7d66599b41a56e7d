package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/MehulDev0228/aurin-platform-sub001/pkg/response"
)

// Healthz 存活探针
// GET /healthz
func Healthz(ctx context.Context, c *app.RequestContext) {
	response.Success(ctx, c, map[string]string{"status": "ok"})
}
