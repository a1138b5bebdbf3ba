// Package retry 调用方的乐观并发重试
//
// 事件存储与仓储本身从不重试；DuplicatePlayheadError 要求调用方重新加载聚合
// 并重新执行命令，本包把这一循环封装起来。
package retry

import (
	"context"
	"errors"
	"time"

	"eventcore/eventing"
	"eventcore/logging"
)

// Operation 可重试的操作，每次尝试都必须重新加载聚合
type Operation func(ctx context.Context, attempt int) error

// Config 重试配置
type Config struct {
	MaxAttempts   int           // 最大尝试次数（包括首次）
	InitialDelay  time.Duration // 初始退避延迟
	BackoffFactor float64       // 指数退避倍数
	MaxDelay      time.Duration
	// Retryable 判断错误是否值得重试，为空时只重试 playhead 冲突
	Retryable func(error) bool
}

// DefaultConfig 3 次尝试，2ms 起的指数退避
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		InitialDelay:  2 * time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      time.Second,
	}
}

// IsConflict 是否为乐观并发冲突
func IsConflict(err error) bool {
	return errors.Is(err, eventing.ErrDuplicatePlayhead)
}

// Do 执行操作直到成功、遇到不可重试错误或用尽次数，返回最后一次的错误
func Do(ctx context.Context, cfg Config, op Operation) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsConflict
	}

	var lastErr error
	delay := cfg.InitialDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx, attempt)
		if lastErr == nil || !retryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		logging.ComponentLogger("retry").Debug(ctx, "操作冲突，准备重试",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(lastErr))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}

// OnConflict 使用默认配置，仅在 playhead 冲突时重试
func OnConflict(ctx context.Context, op Operation) error {
	return Do(ctx, DefaultConfig(), op)
}
