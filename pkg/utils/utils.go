// Package utils 提供重试/backoff、错误包装、指针辅助等通用工具
package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryWithBackoff 带指数退避的重试，ctx 取消时立即返回
func RetryWithBackoff(ctx context.Context, maxAttempts int, initialDelay, maxDelay time.Duration, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	delay := initialDelay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt < maxAttempts-1 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
			case <-timer.C:
			}
			// 指数退避
			delay = time.Duration(float64(delay) * 1.5)
			if delay > maxDelay {
				delay = maxDelay
			}
		}
	}
	return lastErr
}

// ErrorWrapper 错误包装器，用作 HTTP 错误响应体
type ErrorWrapper struct {
	Code    string `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
	Details any    `json:"details,omitempty" msgpack:"details,omitempty"`
	Cause   error  `json:"-" msgpack:"-"`
}

// NewErrorWrapper 创建错误包装器
func NewErrorWrapper(code, message string, cause error) *ErrorWrapper {
	return &ErrorWrapper{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithDetails 添加错误详情
func (ew *ErrorWrapper) WithDetails(details any) *ErrorWrapper {
	ew.Details = details
	return ew
}

// Error 实现 error 接口
func (ew *ErrorWrapper) Error() string {
	if ew.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", ew.Code, ew.Message, ew.Cause)
	}
	return fmt.Sprintf("[%s] %s", ew.Code, ew.Message)
}

// Unwrap 返回底层错误
func (ew *ErrorWrapper) Unwrap() error { return ew.Cause }

// Float64Ptr 返回 float64 指针
func Float64Ptr(f float64) *float64 {
	return &f
}

// DerefFloat64 解引用 float64 指针，nil 时返回 def
func DerefFloat64(f *float64, def float64) float64 {
	if f == nil {
		return def
	}
	return *f
}
