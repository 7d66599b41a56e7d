package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/handler"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/middleware"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/token"
)

func Register(h *server.Hertz) {
	h.Use(middleware.RecoverMiddleware())
	h.Use(middleware.CORSMiddleware())
	h.Use(middleware.RequestTelemetryMiddleware())

	h.GET("/healthz", handler.Healthz)

	v1 := h.Group("/v1")
	v1.Use(middleware.AuthMiddleware(), middleware.GeneralRateLimitMiddleware())

	// LiveProof 签到
	liveProof := v1.Group("/liveproof")
	{
		liveProof.POST("/start", middleware.RequireRole(token.RoleOrganizer), handler.StartLiveProof)
		liveProof.POST("/verify", middleware.RequireRole(token.RoleAttendee), handler.VerifyLiveProof)
	}

	v1.GET("/checkins/:id", handler.GetCheckIn)

	// 成就发放与铸造进度
	achievements := v1.Group("/achievements")
	{
		achievements.POST("/issue", middleware.RequireRole(token.RoleOrganizer), handler.IssueAchievement)
		achievements.GET("/:id", handler.GetAchievement)
		achievements.POST("/:id/retry", handler.RetryAchievement)
	}

	v1.PUT("/me/wallet", handler.ConnectWallet)
}
