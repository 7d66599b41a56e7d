package breaker

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
)

// ErrOpen 熔断中，调用未执行
var ErrOpen = stderrors.New("circuit breaker is open")

// State 熔断器状态
type State int

const (
	StateClosed   State = iota // 关闭状态：正常工作
	StateOpen                  // 开启状态：熔断中
	StateHalfOpen              // 半开状态：尝试恢复
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker 外部依赖熔断器
type CircuitBreaker struct {
	name             string
	maxFailures      int           // 连续失败次数阈值
	resetTimeout     time.Duration // 熔断后多久进入半开
	halfOpenMaxCalls int           // 半开状态最大并发试探数

	// isFailure 决定哪些错误计入失败，默认所有非 nil 错误
	isFailure func(error) bool
	now       func() time.Time

	mu            sync.Mutex
	state         State
	failures      int
	lastFailTime  time.Time
	halfOpenCalls int
}

type Option func(*CircuitBreaker)

// WithFailurePredicate 只有返回 true 的错误才会推动熔断
func WithFailurePredicate(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) {
		cb.isFailure = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

func WithHalfOpenCalls(n int) Option {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.halfOpenMaxCalls = n
		}
	}
}

// New 创建熔断器
func New(name string, maxFailures int, resetTimeout time.Duration, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		maxFailures:      maxFailures,
		resetTimeout:     resetTimeout,
		halfOpenMaxCalls: 1,
		isFailure:        func(err error) bool { return err != nil },
		now:              time.Now,
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Call 执行带熔断保护的操作
func (cb *CircuitBreaker) Call(ctx context.Context, operation func(ctx context.Context) error) error {
	if !cb.allowRequest() {
		return ErrOpen
	}

	err := operation(ctx)
	cb.recordResult(err)
	return err
}

// allowRequest 检查是否允许请求
func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.lastFailTime) < cb.resetTimeout {
			return false
		}
		cb.transitionToHalfOpen()
		fallthrough
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMaxCalls {
			return false
		}
		cb.halfOpenCalls++
		return true
	default:
		return false
	}
}

// recordResult 记录操作结果
func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && cb.isFailure(err) {
		cb.onFailure()
		return
	}

	if cb.state == StateHalfOpen {
		// 不计入失败的错误也说明依赖可达
		cb.transitionToClosed()
		return
	}
	cb.failures = 0
}

// onFailure 处理失败情况
func (cb *CircuitBreaker) onFailure() {
	cb.failures++
	cb.lastFailTime = cb.now()

	logger.Logger.Warn("Breaker operation failed",
		zap.String("breaker", cb.name),
		zap.Int("failures", cb.failures),
		zap.String("state", cb.state.String()),
	)

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.maxFailures {
			cb.transitionToOpen()
		}
	case StateHalfOpen:
		cb.transitionToOpen()
	default:
	}
}

func (cb *CircuitBreaker) transitionToClosed() {
	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenCalls = 0

	logger.Logger.Info("Circuit breaker transitioned to closed",
		zap.String("breaker", cb.name),
	)
}

func (cb *CircuitBreaker) transitionToOpen() {
	cb.state = StateOpen
	cb.halfOpenCalls = 0

	logger.Logger.Warn("Circuit breaker transitioned to open",
		zap.String("breaker", cb.name),
		zap.Int("failures", cb.failures),
		zap.Duration("reset_timeout", cb.resetTimeout),
	)
}

func (cb *CircuitBreaker) transitionToHalfOpen() {
	cb.state = StateHalfOpen
	cb.halfOpenCalls = 0

	logger.Logger.Info("Circuit breaker transitioned to half-open",
		zap.String("breaker", cb.name),
	)
}

// GetState 获取当前状态
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats 获取统计信息
func (cb *CircuitBreaker) GetStats() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return map[string]interface{}{
		"name":       cb.name,
		"state":      cb.state.String(),
		"failures":   cb.failures,
		"last_fail":  cb.lastFailTime,
		"half_calls": cb.halfOpenCalls,
	}
}
