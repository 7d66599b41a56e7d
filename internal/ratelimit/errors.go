package ratelimit

import (
	pkgerrors "github.com/MehulDev0228/aurin-platform-sub001/pkg/errors"
)

// ExceededError 携带决策，接口层据此写 X-RateLimit-* 响应头
type ExceededError struct {
	Decision Decision
}

func (e *ExceededError) Error() string {
	return pkgerrors.RateLimited.Message
}

func (e *ExceededError) Unwrap() error {
	return pkgerrors.RateLimited
}
