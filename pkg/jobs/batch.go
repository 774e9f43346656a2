package jobs

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Gate is a counting admission gate. Every task of a run that opens a scarce
// resource (a mailbox session) goes through the same Gate, so the number of
// resources held at once never exceeds the limit regardless of batch size.
type Gate struct {
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewGate builds a gate admitting at most limit concurrent holders. limit < 1 is treated as 1.
func NewGate(limit int) *Gate {
	if limit < 1 {
		limit = 1
	}
	return &Gate{sem: semaphore.NewWeighted(int64(limit))}
}

// Do runs fn while holding one slot of the gate. The slot is released when fn
// returns, whether it succeeded or not.
func (g *Gate) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire admission slot: %w", err)
	}
	defer g.sem.Release(1)

	current := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		peak := g.peak.Load()
		if current <= peak || g.peak.CompareAndSwap(peak, current) {
			break
		}
	}

	return fn(ctx)
}

// InFlight reports how many holders are currently admitted.
func (g *Gate) InFlight() int { return int(g.inFlight.Load()) }

// Peak reports the highest number of simultaneous holders observed.
func (g *Gate) Peak() int { return int(g.peak.Load()) }

// BatchConfig configures RunBatches.
type BatchConfig struct {
	BatchSize int
	Logger    *zap.Logger
}

// RunBatches partitions items into consecutive batches of cfg.BatchSize and runs
// fn for every item of a batch concurrently. A batch starts only after every task
// of the previous batch has returned. Results are positional: results[i] belongs
// to items[i]. The first task error cancels its batch, stops further batches and
// is returned together with the results gathered so far.
func RunBatches[T any, R any](ctx context.Context, cfg BatchConfig, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	size := cfg.BatchSize
	if size < 1 {
		size = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	results := make([]R, len(items))
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}

		if err := ctx.Err(); err != nil {
			return results[:start], err
		}

		logger.Sugar().Debugw("batch started", "from", start, "to", end, "total", len(items))
		g, batchCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				res, err := fn(batchCtx, items[i])
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			logger.Sugar().Warnw("batch aborted", "from", start, "to", end, "error", err)
			return results[:end], err
		}
		logger.Sugar().Debugw("batch finished", "from", start, "to", end)
	}

	return results, nil
}
