package mint

import (
	"context"
	"crypto/ecdsa"
	stderrors "errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
)

// 只声明用到的方法和事件
const (
	erc721ABI = `[
{"inputs":[{"internalType":"address","name":"to","type":"address"},{"internalType":"string","name":"uri","type":"string"}],"name":"safeMint","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"nonpayable","type":"function"},
{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"from","type":"address"},{"indexed":true,"internalType":"address","name":"to","type":"address"},{"indexed":true,"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"Transfer","type":"event"}
]`
	erc1155ABI = `[
{"inputs":[{"internalType":"address","name":"to","type":"address"},{"internalType":"string","name":"uri","type":"string"}],"name":"mint","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"nonpayable","type":"function"},
{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"operator","type":"address"},{"indexed":true,"internalType":"address","name":"from","type":"address"},{"indexed":true,"internalType":"address","name":"to","type":"address"},{"indexed":false,"internalType":"uint256","name":"id","type":"uint256"},{"indexed":false,"internalType":"uint256","name":"value","type":"uint256"}],"name":"TransferSingle","type":"event"}
]`

	defaultReceiptTimeout = 2 * time.Minute
	defaultPollInterval   = time.Second
)

type contractBinding struct {
	address common.Address
	abi     abi.ABI
	bound   *bind.BoundContract
	method  string
	event   string
}

// EthereumClient 通过 minter 私钥直接调用徽章合约
type EthereumClient struct {
	client         backend
	key            *ecdsa.PrivateKey
	chainID        *big.Int
	receiptTimeout time.Duration
	pollInterval   time.Duration
	contracts      map[Standard]*contractBinding

	// 同一个 minter 账户的交易串行提交，避免 nonce 冲突
	sendMu sync.Mutex
}

func DialEthereum(ctx context.Context, cfg Config) (*EthereumClient, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("ethereum rpc url is required")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse minter private key: %w", err)
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ethereum node: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	ec := &EthereumClient{
		client:         client,
		key:            key,
		chainID:        chainID,
		receiptTimeout: cfg.ReceiptTimeout,
		pollInterval:   defaultPollInterval,
		contracts:      make(map[Standard]*contractBinding),
	}
	if ec.receiptTimeout <= 0 {
		ec.receiptTimeout = defaultReceiptTimeout
	}

	if cfg.ERC721Contract != "" {
		if err := ec.bind(StandardERC721, cfg.ERC721Contract, erc721ABI, "safeMint", "Transfer"); err != nil {
			client.Close()
			return nil, err
		}
	}
	if cfg.ERC1155Contract != "" {
		if err := ec.bind(StandardERC1155, cfg.ERC1155Contract, erc1155ABI, "mint", "TransferSingle"); err != nil {
			client.Close()
			return nil, err
		}
	}
	if len(ec.contracts) == 0 {
		client.Close()
		return nil, fmt.Errorf("no badge contract configured")
	}

	logger.Logger.Info("Connected to ethereum node",
		zap.String("chain_id", chainID.String()),
		zap.String("minter", crypto.PubkeyToAddress(key.PublicKey).Hex()),
	)
	return ec, nil
}

func (e *EthereumClient) bind(standard Standard, address, rawABI, method, event string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid %s contract address: %s", standard, address)
	}

	parsed, err := abi.JSON(strings.NewReader(rawABI))
	if err != nil {
		return fmt.Errorf("failed to parse %s ABI: %w", standard, err)
	}

	addr := common.HexToAddress(address)
	e.contracts[standard] = &contractBinding{
		address: addr,
		abi:     parsed,
		bound:   bind.NewBoundContract(addr, parsed, e.client, e.client, e.client),
		method:  method,
		event:   event,
	}
	return nil
}

func (e *EthereumClient) Close() {
	e.client.Close()
}

func (e *EthereumClient) Mint(ctx context.Context, standard Standard, recipient, metadataURI string) (*Result, error) {
	if !common.IsHexAddress(recipient) {
		return nil, Permanent(fmt.Errorf("%w: %s", ErrInvalidRecipient, recipient))
	}
	to := common.HexToAddress(recipient)
	if to == (common.Address{}) {
		return nil, Permanent(fmt.Errorf("%w: zero address", ErrInvalidRecipient))
	}

	c, ok := e.contracts[standard]
	if !ok {
		return nil, Permanent(fmt.Errorf("%w: %s", ErrUnsupportedStandard, standard))
	}

	tx, err := e.send(ctx, c, to, metadataURI)
	if err != nil {
		return nil, err
	}
	return e.await(ctx, c, tx.Hash())
}

func (e *EthereumClient) Await(ctx context.Context, standard Standard, txHash string) (*Result, error) {
	c, ok := e.contracts[standard]
	if !ok {
		return nil, Permanent(fmt.Errorf("%w: %s", ErrUnsupportedStandard, standard))
	}
	if len(common.FromHex(txHash)) != common.HashLength {
		return nil, Permanent(fmt.Errorf("invalid transaction hash: %s", txHash))
	}
	return e.await(ctx, c, common.HexToHash(txHash))
}

// await 轮询回执直到上链或超时，超时返回带交易哈希的 PendingError
func (e *EthereumClient) await(ctx context.Context, c *contractBinding, hash common.Hash) (*Result, error) {
	waitCtx, cancel := context.WithTimeout(ctx, e.receiptTimeout)
	defer cancel()

	receipt, err := waitReceipt(waitCtx, e.client, hash, e.pollInterval)
	if err != nil {
		return nil, Transient(&PendingError{TxHash: hash.Hex(), Err: receiptError(waitCtx, ctx, err)})
	}
	return c.result(receipt)
}

func receiptError(waitCtx, ctx context.Context, err error) error {
	if waitCtx.Err() != nil && ctx.Err() == nil {
		return ErrReceiptTimeout
	}
	return fmt.Errorf("failed to wait for receipt: %w", err)
}

// receiptReader ethclient 和模拟链都实现
type receiptReader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// backend *ethclient.Client 实现
type backend interface {
	bind.ContractBackend
	receiptReader
	Close()
}

func waitReceipt(ctx context.Context, r receiptReader, hash common.Hash, every time.Duration) (*types.Receipt, error) {
	if every <= 0 {
		every = defaultPollInterval
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		receipt, err := r.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !stderrors.Is(err, ethereum.NotFound) {
			logger.Logger.Debug("Receipt lookup failed, retrying",
				zap.String("tx_hash", hash.Hex()),
				zap.Error(err),
			)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *contractBinding) result(receipt *types.Receipt) (*Result, error) {
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, Permanent(fmt.Errorf("%w: %s", ErrReverted, receipt.TxHash.Hex()))
	}

	tokenID, err := c.tokenID(receipt)
	if err != nil {
		return nil, Permanent(err)
	}

	return &Result{
		TokenID: tokenID.String(),
		TxHash:  receipt.TxHash.Hex(),
	}, nil
}

func (e *EthereumClient) send(ctx context.Context, c *contractBinding, to common.Address, metadataURI string) (*types.Transaction, error) {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	auth, err := bind.NewKeyedTransactorWithChainID(e.key, e.chainID)
	if err != nil {
		return nil, Permanent(fmt.Errorf("failed to create transactor: %w", err))
	}
	auth.Context = ctx

	tx, err := c.bound.Transact(auth, c.method, to, metadataURI)
	if err != nil {
		return nil, fmt.Errorf("failed to submit mint: %w", err)
	}
	return tx, nil
}

// tokenID 从合约发出的铸造事件中取出 tokenId
func (c *contractBinding) tokenID(receipt *types.Receipt) (*big.Int, error) {
	ev, ok := c.abi.Events[c.event]
	if !ok {
		return nil, fmt.Errorf("event %s not in ABI", c.event)
	}

	for _, lg := range receipt.Logs {
		if lg.Address != c.address || len(lg.Topics) == 0 || lg.Topics[0] != ev.ID {
			continue
		}

		switch c.event {
		case "Transfer":
			if len(lg.Topics) == 4 {
				return new(big.Int).SetBytes(lg.Topics[3].Bytes()), nil
			}
		case "TransferSingle":
			values, err := c.abi.Unpack(c.event, lg.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to unpack %s: %w", c.event, err)
			}
			if len(values) > 0 {
				if id, ok := values[0].(*big.Int); ok {
					return id, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("mint event %s not found in receipt", c.event)
}
