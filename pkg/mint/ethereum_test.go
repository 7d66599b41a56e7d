package mint

import (
	"context"
	"crypto/ecdsa"
	stderrors "errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recipient = "0x00000000000000000000000000000000000000a1"

var (
	// 任意调用都发出 Transfer(0, calldata[4:36], 42)
	transferCode = common.FromHex("602e80600b6000396000f3" +
		"602a" + "600435" + "6000" +
		"7fddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef" +
		"6000" + "6000" + "a4" + "00")
	// 任意调用都 revert
	revertCode = common.FromHex("600580600b6000396000f3" + "60006000fd")
)

// simBackend 模拟链，autoCommit 时每笔交易立即出块
type simBackend struct {
	*backends.SimulatedBackend
	autoCommit bool
}

func (b *simBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := b.SimulatedBackend.SendTransaction(ctx, tx); err != nil {
		return err
	}
	if b.autoCommit {
		b.Commit()
	}
	return nil
}

func (b *simBackend) Close() { _ = b.SimulatedBackend.Close() }

type chainFixture struct {
	sim    *simBackend
	key    *ecdsa.PrivateKey
	client *EthereumClient
}

func newChainFixture(t *testing.T, code []byte) *chainFixture {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)

	balance := new(big.Int).Mul(big.NewInt(1e18), big.NewInt(100))
	sim := &simBackend{
		SimulatedBackend: backends.NewSimulatedBackend(core.GenesisAlloc{from: {Balance: balance}}, 10_000_000),
		autoCommit:       true,
	}
	t.Cleanup(sim.Close)

	chainID := big.NewInt(1337)
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	require.NoError(t, err)

	parsed, err := abi.JSON(strings.NewReader(erc721ABI))
	require.NoError(t, err)
	addr, _, _, err := bind.DeployContract(auth, parsed, code, sim)
	require.NoError(t, err)

	ec := &EthereumClient{
		client:         sim,
		key:            key,
		chainID:        chainID,
		receiptTimeout: 5 * time.Second,
		pollInterval:   10 * time.Millisecond,
		contracts:      make(map[Standard]*contractBinding),
	}
	require.NoError(t, ec.bind(StandardERC721, addr.Hex(), erc721ABI, "safeMint", "Transfer"))

	return &chainFixture{sim: sim, key: key, client: ec}
}

func TestEthereumMintReadsTokenIDFromTransferEvent(t *testing.T) {
	f := newChainFixture(t, transferCode)

	res, err := f.client.Mint(context.Background(), StandardERC721, recipient, "ipfs://badge/1")
	require.NoError(t, err)
	assert.Equal(t, "42", res.TokenID)
	assert.Len(t, res.TxHash, 66)
}

func TestEthereumAwaitResumesPendingTransaction(t *testing.T) {
	f := newChainFixture(t, transferCode)
	f.sim.autoCommit = false
	f.client.receiptTimeout = 50 * time.Millisecond

	_, err := f.client.Mint(context.Background(), StandardERC721, recipient, "ipfs://badge/1")
	require.Error(t, err)
	assert.Equal(t, KindTransient, Classify(err))
	assert.ErrorIs(t, err, ErrReceiptTimeout)
	hash, ok := PendingTx(err)
	require.True(t, ok)

	// 交易之后才出块，继续等待同一笔交易
	f.sim.Commit()
	f.client.receiptTimeout = 5 * time.Second
	res, err := f.client.Await(context.Background(), StandardERC721, hash)
	require.NoError(t, err)
	assert.Equal(t, "42", res.TokenID)
	assert.Equal(t, hash, res.TxHash)
}

func TestEthereumRevertIsPermanent(t *testing.T) {
	f := newChainFixture(t, revertCode)

	_, err := f.client.Mint(context.Background(), StandardERC721, recipient, "ipfs://badge/1")
	require.Error(t, err)
	assert.Equal(t, KindPermanent, Classify(err))
}

func TestEthereumRejectsBadInputsBeforeSending(t *testing.T) {
	ec := &EthereumClient{contracts: map[Standard]*contractBinding{StandardERC721: {}}}
	ctx := context.Background()

	for _, to := range []string{"not-an-address", "0x0000000000000000000000000000000000000000"} {
		_, err := ec.Mint(ctx, StandardERC721, to, "ipfs://x")
		assert.ErrorIs(t, err, ErrInvalidRecipient, to)
		assert.Equal(t, KindPermanent, Classify(err))
	}

	_, err := ec.Mint(ctx, StandardERC1155, recipient, "ipfs://x")
	assert.ErrorIs(t, err, ErrUnsupportedStandard)
	assert.Equal(t, KindPermanent, Classify(err))

	_, err = ec.Await(ctx, StandardERC721, "0x1234")
	assert.Equal(t, KindPermanent, Classify(err))
}

func TestTokenIDFromReceiptLogs(t *testing.T) {
	contract := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	other := common.HexToAddress("0x00000000000000000000000000000000000000c2")

	binding := func(rawABI, event string) *contractBinding {
		parsed, err := abi.JSON(strings.NewReader(rawABI))
		require.NoError(t, err)
		return &contractBinding{address: contract, abi: parsed, event: event}
	}

	t.Run("erc721 transfer", func(t *testing.T) {
		c := binding(erc721ABI, "Transfer")
		topic := c.abi.Events["Transfer"].ID
		receipt := &types.Receipt{Logs: []*types.Log{
			// 其他合约的同名事件要忽略
			{Address: other, Topics: []common.Hash{topic, {}, common.HexToHash(recipient), common.BigToHash(big.NewInt(1))}},
			{Address: contract, Topics: []common.Hash{topic, {}, common.HexToHash(recipient), common.BigToHash(big.NewInt(99))}},
		}}

		id, err := c.tokenID(receipt)
		require.NoError(t, err)
		assert.Equal(t, int64(99), id.Int64())
	})

	t.Run("erc1155 transfer single", func(t *testing.T) {
		c := binding(erc1155ABI, "TransferSingle")
		ev := c.abi.Events["TransferSingle"]
		data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(7), big.NewInt(1))
		require.NoError(t, err)

		receipt := &types.Receipt{Logs: []*types.Log{
			{Address: contract, Topics: []common.Hash{ev.ID, {}, {}, common.HexToHash(recipient)}, Data: data},
		}}
		id, err := c.tokenID(receipt)
		require.NoError(t, err)
		assert.Equal(t, int64(7), id.Int64())
	})

	t.Run("missing event", func(t *testing.T) {
		c := binding(erc721ABI, "Transfer")
		_, err := c.tokenID(&types.Receipt{})
		require.Error(t, err)
	})

	t.Run("reverted receipt", func(t *testing.T) {
		c := binding(erc721ABI, "Transfer")
		_, err := c.result(&types.Receipt{Status: types.ReceiptStatusFailed})
		require.True(t, stderrors.Is(err, ErrReverted))
		assert.Equal(t, KindPermanent, Classify(err))
	})
}
