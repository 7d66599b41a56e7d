package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/model/dto"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/service"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/response"
)

// ConnectWallet 绑定接收成就的钱包地址
// PUT /v1/me/wallet
func ConnectWallet(ctx context.Context, c *app.RequestContext) {
	userID, ok := mustUserID(ctx, c)
	if !ok {
		return
	}

	var req dto.ConnectWalletRequest
	if !bindAndValidate(ctx, c, &req) {
		return
	}

	result, err := service.Wallet().ConnectWallet(ctx, userID, req.WalletAddress)
	if err != nil {
		writeError(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}
