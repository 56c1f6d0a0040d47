package pipeline

import (
	"context"
	"time"
)

// pollUntil 以固定间隔轮询 fn，直到 fn 返回 done、出错、ctx 取消或超过 deadline。
// 超过 deadline 返回 ErrIndexingTimeout 之外的调用方自定义语义由 fn 承担，
// 这里只负责节奏控制。
func pollUntil(ctx context.Context, interval, deadline time.Duration, fn func(ctx context.Context) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return ErrIndexingTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
