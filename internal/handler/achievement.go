package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/model/dto"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/service"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/response"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/snowflake"
)

// IssueAchievement 组织者为已验证的签到发放成就
// POST /v1/achievements/issue
func IssueAchievement(ctx context.Context, c *app.RequestContext) {
	userID, ok := mustUserID(ctx, c)
	if !ok {
		return
	}

	var req dto.IssueAchievementRequest
	if !bindAndValidate(ctx, c, &req) {
		return
	}

	// numeric 已校验，这里只剩溢出和 0
	in := service.IssueInput{AttendeeID: req.AttendeeID}
	fields := map[string]string{}
	var err error
	if in.EventID, err = snowflake.ParseID(req.EventID); err != nil {
		fields["event_id"] = "must be a numeric id"
	}
	if in.BadgeID, err = snowflake.ParseID(req.BadgeID); err != nil {
		fields["badge_id"] = "must be a numeric id"
	}
	if in.CheckInID, err = snowflake.ParseID(req.CheckInID); err != nil {
		fields["checkin_id"] = "must be a numeric id"
	}
	if len(fields) > 0 {
		response.ValidationError(ctx, c, fields)
		return
	}

	achievement, created, err := service.Achievement().Issue(ctx, userID, in)
	if err != nil {
		writeError(ctx, c, err)
		return
	}

	result := dto.IssueAchievementResponse{
		AchievementID: snowflake.FormatID(achievement.ID),
		Status:        string(achievement.Status),
		NextAction:    dto.NextActionMintNFT,
	}
	if created {
		response.Created(ctx, c, result)
		return
	}
	result.NextAction = service.NextAction(achievement)
	response.Success(ctx, c, result)
}

// GetAchievement 查询成就状态和 ProofScore，客户端轮询使用
// GET /v1/achievements/:id
func GetAchievement(ctx context.Context, c *app.RequestContext) {
	userID, ok := mustUserID(ctx, c)
	if !ok {
		return
	}
	id, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}

	result, err := service.Achievement().Get(ctx, userID, id)
	if err != nil {
		writeError(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// RetryAchievement 手动重试失败或挂起的铸造
// POST /v1/achievements/:id/retry
func RetryAchievement(ctx context.Context, c *app.RequestContext) {
	userID, ok := mustUserID(ctx, c)
	if !ok {
		return
	}
	id, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}

	achievement, err := service.Achievement().Retry(ctx, userID, id)
	if err != nil {
		writeError(ctx, c, err)
		return
	}

	response.Success(ctx, c, dto.IssueAchievementResponse{
		AchievementID: snowflake.FormatID(achievement.ID),
		Status:        string(achievement.Status),
		NextAction:    dto.NextActionWait,
	})
}
