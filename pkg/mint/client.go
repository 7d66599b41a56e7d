// Package mint 链上铸造协作方的客户端
package mint

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
)

// Standard 凭证标准
type Standard string

const (
	StandardERC721  Standard = "ERC721"
	StandardERC1155 Standard = "ERC1155"
)

// Result 铸造结果
type Result struct {
	TokenID string
	TxHash  string
}

// Client 铸造客户端接口
type Client interface {
	// Mint 为 recipient 铸造一个凭证，错误需能被 Classify 区分临时或永久
	Mint(ctx context.Context, standard Standard, recipient, metadataURI string) (*Result, error)
	// Await 继续等待已提交交易的回执，不会重新提交
	Await(ctx context.Context, standard Standard, txHash string) (*Result, error)
}

// Config 由入口从配置组装
type Config struct {
	Provider        string // ethereum | mock
	RPCURL          string
	PrivateKey      string
	ERC721Contract  string
	ERC1155Contract string
	ReceiptTimeout  time.Duration
}

// New 按 provider 创建客户端
func New(ctx context.Context, cfg Config) (Client, error) {
	var (
		client Client
		err    error
	)

	switch cfg.Provider {
	case "ethereum":
		client, err = DialEthereum(ctx, cfg)
	case "mock", "":
		client = NewMockClient()
	default:
		err = fmt.Errorf("unsupported mint provider: %s", cfg.Provider)
	}

	if err != nil {
		logger.Logger.Error("Failed to initialize mint client", zap.Error(err))
		return nil, err
	}

	logger.Logger.Info("Mint client initialized successfully",
		zap.String("provider", cfg.Provider),
	)
	return client, nil
}
