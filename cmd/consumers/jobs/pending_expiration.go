package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultCheckInterval = time.Minute
	expireBatchSize      = 500
)

// Expirer moves stale pending purchases to failed.
type Expirer interface {
	ExpirePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// PendingExpirationJob fails purchases whose checkout was never completed.
type PendingExpirationJob struct {
	expirer  Expirer
	timeout  time.Duration
	interval time.Duration
	ticker   *time.Ticker
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewPendingExpirationJob(expirer Expirer, timeout, interval time.Duration) *PendingExpirationJob {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &PendingExpirationJob{
		expirer:  expirer,
		timeout:  timeout,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs a check immediately and then on every tick until Stop.
func (j *PendingExpirationJob) Start(ctx context.Context) {
	slog.Info("Starting pending expiration job", "check_interval", j.interval, "timeout", j.timeout)

	j.ticker = time.NewTicker(j.interval)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.RunOnce(ctx)
		for {
			select {
			case <-j.ticker.C:
				j.RunOnce(ctx)
			case <-ctx.Done():
				return
			case <-j.done:
				slog.Info("Pending expiration job stopped")
				return
			}
		}
	}()
}

// Stop halts the job and waits for a running check to finish.
func (j *PendingExpirationJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
	j.wg.Wait()
}

// RunOnce drains stale purchases batch by batch.
func (j *PendingExpirationJob) RunOnce(ctx context.Context) int {
	total := 0
	for {
		n, err := j.expirer.ExpirePending(ctx, j.timeout, expireBatchSize)
		total += n
		if err != nil {
			slog.Error("Failed to expire pending purchases", "error", err)
			break
		}
		if n < expireBatchSize {
			break
		}
	}

	if total > 0 {
		slog.Info("Expired pending purchases", "count", total)
	} else {
		slog.Debug("No stale pending purchases found")
	}
	return total
}
