package analysis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"contract-guard/types"
)

// Classify 将模型调用错误归类为 RateLimited / Timeout / ServiceUnavailable
// 无法识别的错误原样返回，由调用方视为非瞬时错误
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if types.IsTransient(err) || errors.Is(err, types.ErrAnalysisUnavailable) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", types.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", types.ErrTimeout, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "429", "rate limit", "too many requests", "quota"):
		return fmt.Errorf("%w: %w", types.ErrRateLimited, err)
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return fmt.Errorf("%w: %w", types.ErrTimeout, err)
	case containsAny(msg, "502", "503", "504", "unavailable", "connection refused", "connection reset", "bad gateway", "overloaded"):
		return fmt.Errorf("%w: %w", types.ErrServiceUnavailable, err)
	}
	return err
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
