package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/checkin"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/model/dto"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/service"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/response"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/snowflake"
)

// StartLiveProof 组织者生成签到二维码
// POST /v1/liveproof/start
func StartLiveProof(ctx context.Context, c *app.RequestContext) {
	userID, ok := mustUserID(ctx, c)
	if !ok {
		return
	}

	var req dto.StartLiveProofRequest
	if !bindAndValidate(ctx, c, &req) {
		return
	}
	eventID, err := snowflake.ParseID(req.EventID)
	if err != nil {
		response.ValidationError(ctx, c, map[string]string{"event_id": "must be a numeric id"})
		return
	}

	result, err := service.LiveProof().Start(ctx, userID, eventID)
	if err != nil {
		writeError(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// VerifyLiveProof 参与者扫码提交到场证明
// POST /v1/liveproof/verify
func VerifyLiveProof(ctx context.Context, c *app.RequestContext) {
	userID, ok := mustUserID(ctx, c)
	if !ok {
		return
	}

	var req dto.VerifyLiveProofRequest
	if !bindAndValidate(ctx, c, &req) {
		return
	}

	checkIn, created, err := service.LiveProof().Verify(ctx, userID, service.VerifyInput{
		Token: req.QRToken,
		Evidence: checkin.Evidence{
			Data:        req.Evidence,
			ContentType: req.EvidenceContentType,
		},
		Geolocation:       req.Geolocation,
		DeviceFingerprint: req.DeviceFingerprint,
	})
	if err != nil {
		writeError(ctx, c, err)
		return
	}

	result := dto.VerifyLiveProofResponse{
		CheckInID:  snowflake.FormatID(checkIn.ID),
		NextAction: dto.NextActionIssueAchievement,
	}
	if created {
		response.Created(ctx, c, result)
		return
	}
	response.Success(ctx, c, result)
}

// GetCheckIn 查询签到详情
// GET /v1/checkins/:id
func GetCheckIn(ctx context.Context, c *app.RequestContext) {
	userID, ok := mustUserID(ctx, c)
	if !ok {
		return
	}
	id, ok := pathID(ctx, c, "id")
	if !ok {
		return
	}

	result, err := service.LiveProof().GetCheckIn(ctx, userID, id)
	if err != nil {
		writeError(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}
