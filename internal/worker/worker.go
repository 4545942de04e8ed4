package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Expirer interface {
	ExpireStale(ctx context.Context, olderThan time.Time) (int, error)
}

// Worker periodically expires published tasks whose listing outlived the TTL.
type Worker struct {
	engine Expirer
	log    *zap.Logger
	tick   time.Duration
	ttl    time.Duration
}

func NewWorker(engine Expirer, tick time.Duration, ttl time.Duration, logger *zap.Logger) *Worker {
	return &Worker{engine: engine, tick: tick, ttl: ttl, log: logger}
}

func (w *Worker) doWork() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second) // TODO: Pass timeout
	defer cancel()
	expired, err := w.engine.ExpireStale(ctx, time.Now().Add(-w.ttl))
	if err != nil {
		w.log.Error("Failed to expire stale tasks", zap.Error(err))
		return
	}
	if expired > 0 {
		w.log.Info("Expired stale tasks", zap.Int("count", expired))
	}
}

func (w *Worker) Start() {
	w.log.Info("Worker started")
	defer w.log.Info("Worker stopped")

	ticker := time.Tick(w.tick)
	for range ticker {
		w.doWork()
	}
}
