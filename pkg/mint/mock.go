package mint

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// MockCall 记录的调用参数
type MockCall struct {
	Standard    Standard
	Recipient   string
	MetadataURI string
}

// MockClient 可编排的铸造客户端，按顺序消费 Script 中的错误，nil 表示成功
type MockClient struct {
	mu     sync.Mutex
	Calls  []MockCall
	Awaits []string // Await 收到的交易哈希
	Script []error
	nextID int64
}

func NewMockClient(script ...error) *MockClient {
	return &MockClient{
		Calls:  make([]MockCall, 0),
		Script: script,
		nextID: 1,
	}
}

func (m *MockClient) Mint(ctx context.Context, standard Standard, recipient, metadataURI string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{
		Standard:    standard,
		Recipient:   recipient,
		MetadataURI: metadataURI,
	})

	if err := m.next(ctx); err != nil {
		return nil, err
	}

	id := m.nextID
	m.nextID++
	return &Result{
		TokenID: strconv.FormatInt(id, 10),
		TxHash:  fmt.Sprintf("0x%064x", id),
	}, nil
}

// Await 与 Mint 共用 Script，成功时返回原交易哈希
func (m *MockClient) Await(ctx context.Context, standard Standard, txHash string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Awaits = append(m.Awaits, txHash)
	if err := m.next(ctx); err != nil {
		return nil, err
	}

	id := m.nextID
	m.nextID++
	return &Result{TokenID: strconv.FormatInt(id, 10), TxHash: txHash}, nil
}

func (m *MockClient) next(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(m.Script) == 0 {
		return nil
	}
	err := m.Script[0]
	m.Script = m.Script[1:]
	return err
}

// AwaitCount 等待已提交交易的次数
func (m *MockClient) AwaitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Awaits)
}

// CallCount 已发生的 Mint 调用次数
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
