package rtsp

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ReconnectConfig configures the exponential backoff reconnection loop.
type ReconnectConfig struct {
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// DefaultReconnectConfig matches the reference stream source's tuning.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:    5,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// connectFunc attempts to (re)establish the pipeline.
type connectFunc func(ctx context.Context) error

// runWithReconnect retries connectFn with exponential backoff
// (retryDelay * 2^(attempt-1), capped at maxRetryDelay) until it
// succeeds, ctx is cancelled, or MaxRetries is exceeded.
func runWithReconnect(ctx context.Context, connectFn connectFunc, cfg ReconnectConfig, reconnects *atomic.Uint32) error {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := connectFn(ctx); err == nil {
			attempt = 0
			return nil
		} else {
			slog.Error("rtsp: connection attempt failed", "error", err)
		}

		attempt++
		reconnects.Add(1)
		if attempt > cfg.MaxRetries {
			return fmt.Errorf("rtsp: max retries exceeded (%d attempts)", cfg.MaxRetries)
		}

		delay := backoffDelay(attempt, cfg)
		slog.Warn("rtsp: retrying connection", "attempt", attempt, "max_retries", cfg.MaxRetries, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func backoffDelay(attempt int, cfg ReconnectConfig) time.Duration {
	delay := cfg.RetryDelay * time.Duration(uint64(1)<<uint(attempt-1))
	if delay > cfg.MaxRetryDelay {
		delay = cfg.MaxRetryDelay
	}
	return delay
}
