package utils

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const maxBackoff = 30 * time.Second

// RetryWithBackoff runs fn up to maxAttempts times with exponential backoff
// between attempts. It stops early when ctx is cancelled.
func RetryWithBackoff(ctx context.Context, maxAttempts int, initialDelay time.Duration, logger *zap.Logger, fn func() error) error {
	var lastErr error
	delay := initialDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			logger.Warn("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts),
				zap.Duration("backoff", delay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxBackoff {
				delay = maxBackoff
			}
		}

		if err := fn(); err != nil {
			lastErr = err
			logger.Debug("attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		return nil
	}
	return fmt.Errorf("all %d attempts failed, last error: %w", maxAttempts, lastErr)
}
