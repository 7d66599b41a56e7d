package mint

import (
	"context"
	stderrors "errors"
	"net"
	"strings"

	"github.com/MehulDev0228/aurin-platform-sub001/pkg/breaker"
)

// Kind 错误分类
type Kind int

const (
	KindTransient Kind = iota // 网络、超时、nonce 竞争，可退避重试
	KindPermanent             // 地址无效、合约 revert，不重试
)

func (k Kind) String() string {
	if k == KindPermanent {
		return "permanent"
	}
	return "transient"
}

var (
	ErrInvalidRecipient    = stderrors.New("invalid recipient address")
	ErrUnsupportedStandard = stderrors.New("unsupported token standard")
	ErrReverted            = stderrors.New("mint transaction reverted")
	ErrReceiptTimeout      = stderrors.New("timed out waiting for mint receipt")
)

// Error 带分类的铸造错误
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PendingError 交易已经提交，等待时限内没有回执，链上结果未知
type PendingError struct {
	TxHash string
	Err    error
}

func (e *PendingError) Error() string {
	return "transaction " + e.TxHash + " pending: " + e.Err.Error()
}

func (e *PendingError) Unwrap() error {
	return e.Err
}

// PendingTx 取出已提交但未确认的交易哈希，重试时应继续等待它而不是重新提交
func PendingTx(err error) (string, bool) {
	var pe *PendingError
	if stderrors.As(err, &pe) && pe.TxHash != "" {
		return pe.TxHash, true
	}
	return "", false
}

func Transient(err error) error {
	return &Error{Kind: KindTransient, Err: err}
}

func Permanent(err error) error {
	return &Error{Kind: KindPermanent, Err: err}
}

// 节点返回的错误多为字符串，按关键字归类
var (
	permanentHints = []string{
		"execution reverted",
		"invalid address",
		"invalid recipient",
		"erc721: mint to the zero address",
		"erc1155: mint to the zero address",
		"transfer to non erc721receiver",
	}
	transientHints = []string{
		"nonce too low",
		"replacement transaction underpriced",
		"already known",
		"timeout",
		"connection refused",
		"connection reset",
		"too many requests",
		"429",
		"502",
		"503",
		"header not found",
		"eof",
	}
)

// Classify 未知错误按临时处理，由尝试次数兜底
func Classify(err error) Kind {
	var me *Error
	if stderrors.As(err, &me) {
		return me.Kind
	}

	switch {
	case stderrors.Is(err, ErrInvalidRecipient),
		stderrors.Is(err, ErrUnsupportedStandard),
		stderrors.Is(err, ErrReverted):
		return KindPermanent
	case stderrors.Is(err, breaker.ErrOpen),
		stderrors.Is(err, ErrReceiptTimeout),
		stderrors.Is(err, context.DeadlineExceeded),
		stderrors.Is(err, context.Canceled):
		return KindTransient
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return KindTransient
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range permanentHints {
		if strings.Contains(msg, hint) {
			return KindPermanent
		}
	}
	for _, hint := range transientHints {
		if strings.Contains(msg, hint) {
			return KindTransient
		}
	}
	return KindTransient
}

// IsTransient 供熔断器判断失败
func IsTransient(err error) bool {
	return err != nil && Classify(err) == KindTransient
}
