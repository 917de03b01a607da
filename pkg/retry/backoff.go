package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Policy 指数退避策略
type Policy struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Base        time.Duration `yaml:"base"`
	Factor      float64       `yaml:"factor"`
	Max         time.Duration `yaml:"max"`
	Jitter      float64       `yaml:"jitter"` // 抖动比例 0~1
}

// DefaultPolicy 3 次尝试，1s 起步，倍数 2，上限 30s
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Base:        time.Second,
		Factor:      2,
		Max:         30 * time.Second,
		Jitter:      0.2,
	}
}

// Backoff 第 attempt 次失败后的等待时间，attempt 从 1 开始
// delay = base * factor^(attempt-1)，封顶 Max，再叠加 [0, Jitter*delay) 的随机抖动
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	exp := attempt - 1
	if exp > 30 {
		exp = 30
	}
	delay := float64(p.Base) * math.Pow(factor, float64(exp))
	if p.Max > 0 && delay > float64(p.Max) {
		delay = float64(p.Max)
	}
	if p.Jitter > 0 && delay > 0 {
		delay += rand.Float64() * p.Jitter * delay
	}
	return time.Duration(delay)
}

// Sleep 可被 ctx 打断的等待
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
