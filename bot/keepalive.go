package bot

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// StartKeepAlive launches a goroutine that runs b.KeepAlive roughly every interval until ctx is done.
// The first pass waits a random delay of up to interval/2; later passes are spaced interval ±20%.
// A non-positive interval disables the timer.
func StartKeepAlive(ctx context.Context, b *Bot, interval time.Duration) {
	if interval <= 0 {
		slog.Info("keep-alive timer disabled", slog.String("component", "bot"))
		return
	}
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(jitter(interval / 2)):
		}
		for {
			if err := b.KeepAlive(ctx); err != nil {
				slog.Warn("keep-alive pass failed", slog.Any("err", err), slog.String("component", "bot"))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(nextInterval(interval)):
			}
		}
	}()
}

// jitter returns a random duration in [0, limit).
func jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	return time.Duration(rand.Int63n(int64(limit)))
}

func nextInterval(interval time.Duration) time.Duration {
	spread := interval / 5
	if spread <= 0 {
		return interval
	}
	next := interval - spread + jitter(2*spread)
	if next < interval/2 {
		next = interval / 2
	}
	return next
}
