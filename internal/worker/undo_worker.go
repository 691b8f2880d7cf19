package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"taskbot/internal/logger"
)

const defaultSweepInterval = 5 * time.Minute

// UndoSweeper retires expired undo records. Retention only; swept tasks
// remain soft-deleted.
type UndoSweeper struct {
	buffer   Sweeper
	interval time.Duration
}

type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

func NewUndoSweeper(buffer Sweeper, interval time.Duration) *UndoSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &UndoSweeper{
		buffer:   buffer,
		interval: interval,
	}
}

func (w *UndoSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Info("Worker: undo sweep loop started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ticker.C:
			w.Tick(ctx)
		case <-ctx.Done():
			logger.Info("Worker: undo sweep loop stopping")
			return
		}
	}
}

func (w *UndoSweeper) Tick(ctx context.Context) {
	swept, err := w.buffer.Sweep(ctx)
	if err != nil {
		logger.Warn("Worker: undo sweep failed", zap.Error(err))
		return
	}
	if swept > 0 {
		logger.Info("Worker: expired undo records swept", zap.Int64("count", swept))
	}
}
